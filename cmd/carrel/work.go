package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/blob"
	"github.com/carrelhq/carrel/internal/broker"
	"github.com/carrelhq/carrel/internal/config"
	"github.com/carrelhq/carrel/internal/embedder"
	"github.com/carrelhq/carrel/internal/extract"
	"github.com/carrelhq/carrel/internal/ocr"
	"github.com/carrelhq/carrel/internal/pipeline"
	"github.com/carrelhq/carrel/internal/store"
	"github.com/carrelhq/carrel/internal/tika"
)

var workQueues string

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Run a pipeline worker",
	Long: `Run a worker that consumes pipeline stage tasks.

Workers pull from Redis queues and execute stages against Postgres and
MinIO. The io queue carries extract, chunk, and finalize; the cpu queue
carries ocr and embed. Run separate workers per queue to scale the
compute-bound stages independently.

Examples:
  carrel work                    # Consume both queues
  carrel work --queues cpu       # OCR and embedding only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		var queues []string
		for _, q := range strings.Split(workQueues, ",") {
			q = strings.TrimSpace(q)
			switch q {
			case broker.QueueIO, broker.QueueCPU:
				queues = append(queues, q)
			case "":
			default:
				return fmt.Errorf("unknown queue %q (want io or cpu)", q)
			}
		}
		if len(queues) == 0 {
			return fmt.Errorf("no queues to consume")
		}

		st, err := store.New(ctx, config.ResolveEnvVars(cfg.Database.URL), int32(cfg.Database.MaxConns))
		if err != nil {
			return err
		}
		defer st.Close()

		bl, err := blob.New(blob.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: config.ResolveEnvVars(cfg.Minio.AccessKey),
			SecretKey: config.ResolveEnvVars(cfg.Minio.SecretKey),
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return err
		}

		br := broker.New(cfg.Redis.Addr, config.ResolveEnvVars(cfg.Redis.Password), cfg.Redis.DB, logger)
		defer br.Close()
		if err := br.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect broker: %w", err)
		}

		orch := pipeline.New(st, br, logger)
		stages := &pipeline.Stages{
			Store:     st,
			Blob:      bl,
			Extractor: extract.New(tika.New(cfg.Tika.URL), cfg.Pipeline.SyntheticPageChars),
			OCR:       ocr.New(cfg.OCR.Binary, cfg.OCR.Languages, cfg.OCR.DPI),
			Embedder:  embedder.New(cfg.Embedder.URL),
			Tracker:   orch,
			Events:    br,
			Log:       logger,

			TargetChars:  cfg.Pipeline.ChunkTargetChars,
			OverlapChars: cfg.Pipeline.ChunkOverlapChars,
			EmbedBatch:   cfg.Embedder.BatchSize,
		}

		worker := &pipeline.Worker{
			Broker:       br,
			Stages:       stages,
			Orchestrator: orch,
			Queues:       queues,
			Log:          logger,
		}

		// Blocks until shutdown
		return worker.Run(ctx)
	},
}

func init() {
	workCmd.Flags().StringVar(&workQueues, "queues", "io,cpu", "Comma-separated queues to consume (io, cpu)")

	rootCmd.AddCommand(workCmd)
}
