package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/envelopes/internal/httpapi"
)

func newTokenCommand(g *globalFlags) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the --owner (requires JWT_SECRET)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g.configPath)
			if err != nil {
				return err
			}
			auth, err := httpapi.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(g.owner, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
