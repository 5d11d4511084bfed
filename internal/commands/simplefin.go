package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSimpleFINCommand(g *globalFlags) *cobra.Command {
	sfCmd := &cobra.Command{
		Use:   "simplefin",
		Short: "Manage SimpleFIN bank connections",
	}
	sfCmd.AddCommand(
		newSimpleFINConnectCommand(g),
		newSimpleFINSyncCommand(g),
		newSimpleFINListCommand(g),
		newSimpleFINRemoveCommand(g),
	)
	return sfCmd
}

func newSimpleFINConnectCommand(g *globalFlags) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "connect <setup-token>",
		Short: "Claim a setup token and store the connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			conn, err := a.svc.Connect(cmd.Context(), g.owner, args[0], name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connected %q (%s)\n", conn.Name, conn.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "connection name (default \"My Bank\")")

	return cmd
}

func newSimpleFINSyncCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <connection-id>",
		Short: "Fetch recent activity for a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.Sync(cmd.Context(), g.owner, args[0])
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newSimpleFINListCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			views, err := a.svc.Connections(cmd.Context(), g.owner)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tACTIVE\tLAST SYNC")
			for _, v := range views {
				last := "never"
				if v.LastSync != nil {
					last = v.LastSync.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", v.ID, v.ConnectionName, v.IsActive, last)
			}
			return tw.Flush()
		},
	}
}

func newSimpleFINRemoveCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <connection-id>",
		Short: "Delete a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.RemoveConnection(cmd.Context(), g.owner, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed connection %s\n", args[0])
			return nil
		},
	}
}
