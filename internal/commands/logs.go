package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/envelopes/internal/ledger"
	"github.com/cleared-dev/envelopes/internal/model"
)

func newLogsCommand(g *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the import log, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch format {
			case "table", "csv", "json":
			default:
				return fmt.Errorf("unknown format %q (want table, csv or json)", format)
			}

			a, err := newApp(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.svc.Logs(cmd.Context(), g.owner)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "csv":
				return ledger.WriteCSV(out, entries)
			case "json":
				if entries == nil {
					entries = []model.ImportLog{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSOURCE\tFILE\tSTATUS\tACCOUNTS\tTRANSACTIONS\tCATEGORIES\tERROR")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					e.CreatedAt.Format(time.RFC3339), e.Source, e.FileName, e.Status,
					e.AccountsImported, e.TransactionsImported, e.CategoriesImported, e.ErrorMessage)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table, csv or json")

	return cmd
}
