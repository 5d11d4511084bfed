package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/envelopes/internal/httpapi"
)

func newServeCommand(g *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			auth, err := httpapi.NewAuthenticator(a.cfg.Auth.Secret, a.cfg.Auth.Issuer)
			if err != nil {
				return fmt.Errorf("auth: %w (set JWT_SECRET)", err)
			}

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			router := httpapi.NewRouter(httpapi.Deps{
				Service:      a.svc,
				Auth:         auth,
				Store:        a.store,
				Metrics:      a.metrics,
				Log:          a.log,
				MaxBodyBytes: a.cfg.Server.MaxBodyBytes,
			})
			srv := httpapi.NewServer(addr, router, a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.log)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}
