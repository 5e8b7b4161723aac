package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rcaflow/internal/platform/config"
	"rcaflow/internal/platform/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending Postgres migrations",
	Long:  "Applies the embedded migrations to DATABASE_URL. serve runs them too, this\ncommand exists for deployments that migrate before rolling out.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		if cfg.Postgres.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		db, err := postgres.Open(cmd.Context(), cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := postgres.Migrate(cmd.Context(), db)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
		}
		return nil
	},
}
