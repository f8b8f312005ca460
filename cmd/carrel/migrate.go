package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/config"
	"github.com/carrelhq/carrel/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the schema to the configured Postgres database.

Migrations are idempotent; running them against an up-to-date database is
a no-op. The serve command also applies them on startup, so this is mainly
for provisioning a database before the first deploy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

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

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		fmt.Println("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
