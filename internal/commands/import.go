package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/envelopes/internal/importer"
	"github.com/cleared-dev/envelopes/internal/model"
)

type importFlags struct {
	account  string
	fileName string
	dedupe   bool
}

func newImportCommand(g *globalFlags) *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import budget exports and bank files",
		Long:  "Import budget exports and bank files.\n\nSupported sources: " + supportedSources() + ".",
	}
	importCmd.AddCommand(
		newImportFileCommand(g, "ynab-json <file>", "Import a YNAB budget JSON export", model.SourceYNABJSON),
		newImportFileCommand(g, "ynab-csv <file>", "Import a YNAB register CSV into one account", model.SourceYNABCSV),
		newImportFileCommand(g, "actual <file>", "Import an Actual Budget JSON export", model.SourceActualBudget),
		newImportFileCommand(g, "bank-csv <file>", "Import a bank CSV export into one account", model.SourceCSV),
		newImportDirCommand(g),
	)
	return importCmd
}

func newImportFileCommand(g *globalFlags, use, short string, source model.ImportSource) *cobra.Command {
	var f importFlags

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening %s: %w", path, err)
			}
			defer file.Close()

			var extra []importer.ServiceOption
			if f.dedupe {
				p := importer.DefaultPolicies()[source]
				p.Dedupe = true
				extra = append(extra, importer.WithPolicy(source, p))
			}

			a, err := newApp(cmd.Context(), g, cmd.ErrOrStderr(), extra...)
			if err != nil {
				return err
			}
			defer a.Close()

			fileName := f.fileName
			if fileName == "" {
				fileName = filepath.Base(path)
			}
			res, err := a.svc.Import(cmd.Context(), g.owner, source, file, importer.Options{
				FileName:    fileName,
				AccountName: f.account,
			})
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	if source == model.SourceYNABCSV || source == model.SourceCSV {
		cmd.Flags().StringVar(&f.account, "account", "", "account to import into (required)")
		_ = cmd.MarkFlagRequired("account")
	}
	cmd.Flags().StringVar(&f.fileName, "file-name", "", "file name recorded in the import log (default: base name of file)")
	cmd.Flags().BoolVar(&f.dedupe, "dedupe", false, "skip transactions already present with the same date, amount and payee")

	return cmd
}

func newImportDirCommand(g *globalFlags) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "dir [directory]",
		Short: "Import every .json and .csv file in a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			dir := a.cfg.Import.Dir
			if len(args) > 0 {
				dir = args[0]
			}

			results, err := a.svc.ImportDir(cmd.Context(), g.owner, dir, account)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintf(out, "No files to import in %s\n", dir)
				return nil
			}
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "%s: FAILED: %v\n", r.File, r.Err)
					continue
				}
				fmt.Fprintf(out, "%s (%s): ", r.File, r.Source)
				printResult(out, r.Result)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account for CSV files (default: file name without extension)")

	return cmd
}

func supportedSources() string {
	sources := importer.DefaultRegistry().Sources()
	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = string(src)
	}
	return strings.Join(names, ", ")
}

func printResult(w io.Writer, r importer.Result) {
	fmt.Fprintf(w, "Imported %d accounts, %d transactions, %d categories",
		r.AccountsImported, r.TransactionsImported, r.CategoriesImported)
	if r.Duplicates > 0 || r.Dropped > 0 {
		fmt.Fprintf(w, " (%d duplicates skipped, %d dropped)", r.Duplicates, r.Dropped)
	}
	fmt.Fprintln(w)
}
