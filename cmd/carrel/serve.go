package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/config"
	"github.com/carrelhq/carrel/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the carrel server",
	Long: `Start the carrel HTTP server.

The server connects to Postgres, Redis, and MinIO, runs migrations, and
serves the upload, document, and search API. Stage work itself runs in
worker processes (carrel work).

Examples:
  carrel serve                     # Listen on the configured address
  carrel serve --listen :3000      # Listen on a custom address`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cm.WatchConfig()

		srv, err := server.New(server.Config{
			ListenAddr:    serveAddr,
			ConfigManager: cm,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Blocks until shutdown
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "listen", "", "Listen address (default from config)")

	rootCmd.AddCommand(serveCmd)
}
