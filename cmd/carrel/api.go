package main

import (
	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Carrel server via HTTP.

These commands require a running server (carrel serve).
Use --server to specify a custom server URL.

Examples:
  carrel api health                  # Check server health
  carrel api docs list               # List documents
  carrel api search "safety policy"  # Search the corpus`,
}

var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "Upload staging and confirmation commands",
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Document management commands",
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Pipeline job commands",
}

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Stats and maintenance commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))

	// Uploads as subcommand group
	uploadsCmd.AddCommand((&endpoints.UploadEndpoint{}).Command(getServerURL))
	uploadsCmd.AddCommand((&endpoints.ConfirmUploadEndpoint{}).Command(getServerURL))
	uploadsCmd.AddCommand((&endpoints.ListUploadsEndpoint{}).Command(getServerURL))

	// Documents as subcommand group
	docsCmd.AddCommand((&endpoints.ListDocumentsEndpoint{}).Command(getServerURL))
	docsCmd.AddCommand((&endpoints.GetDocumentEndpoint{}).Command(getServerURL))
	docsCmd.AddCommand((&endpoints.DeleteDocumentEndpoint{}).Command(getServerURL))
	docsCmd.AddCommand((&endpoints.ReprocessEndpoint{}).Command(getServerURL))

	// Retrieval at top level of api
	apiCmd.AddCommand((&endpoints.SearchEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.PassagesEndpoint{}).Command(getServerURL))

	// Job progress stream
	jobsCmd.AddCommand((&endpoints.JobStreamEndpoint{}).Command(getServerURL))

	// System maintenance as subcommand group
	systemCmd.AddCommand((&endpoints.StatsEndpoint{}).Command(getServerURL))
	systemCmd.AddCommand((&endpoints.PurgeRunEndpoint{}).Command(getServerURL))
	systemCmd.AddCommand((&endpoints.ReaperRunEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(uploadsCmd)
	apiCmd.AddCommand(docsCmd)
	apiCmd.AddCommand(jobsCmd)
	apiCmd.AddCommand(systemCmd)
	rootCmd.AddCommand(apiCmd)
}
