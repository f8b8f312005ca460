package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/config"
	"github.com/carrelhq/carrel/internal/embedder"
	"github.com/carrelhq/carrel/internal/mcptool"
	"github.com/carrelhq/carrel/internal/search"
	"github.com/carrelhq/carrel/internal/store"
	"github.com/carrelhq/carrel/version"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the knowledge base to MCP clients over stdio",
	Long: `Serve MCP tools over stdio for agent clients.

Exposed tools:
  kb_search          Hybrid search over the corpus
  kb_read_passages   Read chunk texts by id
  kb_list_documents  List documents and their status
  kb_job_status      Inspect a document's pipeline state

The process talks to Postgres and the embedding sidecar directly; the HTTP
server does not need to be running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Logs go to stderr; stdout belongs to the MCP transport.
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		st, err := store.New(ctx, config.ResolveEnvVars(cfg.Database.URL), int32(cfg.Database.MaxConns))
		if err != nil {
			return err
		}
		defer st.Close()

		eng := search.New(st, embedder.New(cfg.Embedder.URL), search.Options{
			Candidates:        cfg.Search.Candidates,
			LatestBoost:       cfg.Search.LatestBoost,
			OCRBoostFactor:    cfg.Search.OCRBoostFactor,
			ConflictThreshold: cfg.Search.ConflictThreshold,
		}, logger)

		srv, err := mcptool.New(eng, st, version.GitRelease, logger)
		if err != nil {
			return err
		}

		// Blocks until the client disconnects or ctx is cancelled
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
