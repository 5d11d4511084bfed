package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/envelopes/internal/config"
	"github.com/cleared-dev/envelopes/internal/store/postgres"
	"github.com/cleared-dev/envelopes/internal/store/sqlite"
)

func newMigrateCommand(g *globalFlags) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}
	migrateCmd.AddCommand(
		newMigrateStepCommand(g, "up", "Apply all pending migrations", true),
		newMigrateStepCommand(g, "down", "Roll back all migrations", false),
	)
	return migrateCmd
}

func newMigrateStepCommand(g *globalFlags, use, short string, up bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g.configPath)
			if err != nil {
				return err
			}
			if err := runMigrate(cfg, up); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s store %s\n", cfg.Storage.Backend, use)
			return nil
		},
	}
}

func runMigrate(cfg *config.Config, up bool) error {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		if up {
			return sqlite.Migrate(cfg.Storage.SQLite.Path)
		}
		return sqlite.MigrateDown(cfg.Storage.SQLite.Path)
	case config.BackendPostgres:
		dsn := postgresConfig(cfg).DSN()
		if up {
			return postgres.RunMigrations(dsn)
		}
		return postgres.RunMigrationsDown(dsn)
	}
	return fmt.Errorf("storage backend %q has no schema", cfg.Storage.Backend)
}
