package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cleared-dev/envelopes/internal/model"
)

// Header is the CSV header for ledger exports.
const Header = "created_at,id,source,file_name,status,accounts_imported,transactions_imported,categories_imported,error_message"

const (
	numFields       = 9
	colCreatedAt    = 0
	colID           = 1
	colSource       = 2
	colFileName     = 3
	colStatus       = 4
	colAccounts     = 5
	colTransactions = 6
	colCategories   = 7
	colError        = 8
)

// MarshalEntry converts an entry to a CSV row.
func MarshalEntry(e model.ImportLog) []string {
	row := make([]string, numFields)
	row[colCreatedAt] = e.CreatedAt.UTC().Format(time.RFC3339)
	row[colID] = e.ID
	row[colSource] = string(e.Source)
	row[colFileName] = e.FileName
	row[colStatus] = string(e.Status)
	row[colAccounts] = strconv.Itoa(e.AccountsImported)
	row[colTransactions] = strconv.Itoa(e.TransactionsImported)
	row[colCategories] = strconv.Itoa(e.CategoriesImported)
	row[colError] = e.ErrorMessage
	return row
}

// WriteCSV writes the header followed by one row per entry.
func WriteCSV(w io.Writer, entries []model.ImportLog) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
