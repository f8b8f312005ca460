package main

import (
	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/api"
	"github.com/carrelhq/carrel/version"
)

var (
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "carrel",
	Short: "Local knowledge appliance with hybrid document search",
	Long: `Carrel ingests documents into a searchable local knowledge base.

Uploaded originals run through a resumable pipeline:
  - Text extraction (PDF, DOCX, TXT, RTF, images)
  - OCR for scans and image-only PDFs
  - Overlapping chunking with language detection
  - Embedding into pgvector

Search fuses Postgres full-text ranking with vector similarity, and the
corpus is also exposed to MCP clients (carrel mcp).`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.carrel/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
