package main

import (
	"fmt"

	"github.com/revolutionai/storefront/internal/config"
	"github.com/revolutionai/storefront/internal/migration"
	"github.com/revolutionai/storefront/pkg/db"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		Long: `Apply schema migrations to the configured database.

Postgres uses the embedded, versioned SQL files. MySQL and SQLite are
migrated from the gorm models.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			conn, err := db.Open(db.FromConfig(cfg))
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			if err := migration.Run(conn, cfg.DBType, cfg.MigrationsTable); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.DBType)
			return nil
		},
	}
}
