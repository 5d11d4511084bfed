package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/envelopes/internal/buildinfo"
	"github.com/cleared-dev/envelopes/internal/config"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	owner      string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:     "envelopes",
		Short:   "Envelope budgeting import and bank sync",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	defaultOwner := os.Getenv("ENVELOPES_OWNER")
	if defaultOwner == "" {
		defaultOwner = "local"
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", config.FileName, "path to config file")
	rootCmd.PersistentFlags().StringVar(&g.owner, "owner", defaultOwner, "owner id for CLI operations")

	rootCmd.AddCommand(
		newInitCommand(),
		newServeCommand(g),
		newMigrateCommand(g),
		newImportCommand(g),
		newSimpleFINCommand(g),
		newLogsCommand(g),
		newTokenCommand(g),
	)

	return rootCmd
}
