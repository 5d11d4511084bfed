package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/envelopes/internal/config"
)

func newInitCommand() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new envelopes workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			if err := runInit(absDir, backend); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized envelopes workspace at %s\n", absDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", config.BackendSQLite, "storage backend (memory, postgres, sqlite)")

	return cmd
}

func runInit(dir, backend string) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	cfg := config.Default()
	cfg.Storage.Backend = backend
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Create directory structure.
	for _, d := range []string{cfg.Import.Dir, filepath.Join(cfg.Import.Dir, "processed")} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	gitignore := "*.db\n*.db-journal\n*.db-wal\nimport/processed/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	return nil
}
