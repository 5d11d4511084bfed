package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/envelopes/internal/model"
)

// ChaseParser parses Chase checking CSV exports into a single-account
// batch for the generic bank CSV source.
type ChaseParser struct{}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
	chaseColType    = 4
	chaseAccountID  = "chase"
)

// Source returns the import source this parser feeds.
func (p *ChaseParser) Source() model.ImportSource { return model.SourceCSV }

// RequiresAccount reports that imports need a target account name.
func (p *ChaseParser) RequiresAccount() bool { return true }

// Parse reads a Chase CSV into one checking account named opts.AccountName.
func (p *ChaseParser) Parse(r io.Reader, opts Options) (*model.Batch, error) {
	if opts.AccountName == "" {
		return nil, fmt.Errorf("%w: account name", ErrMissingInput)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	batch := &model.Batch{
		Source: model.SourceCSV,
		Accounts: []model.ExternalAccount{{
			ExternalID: chaseAccountID,
			Account: model.NormalizedAccount{
				Name:    opts.AccountName,
				Type:    model.AccountTypeChecking,
				Balance: decimal.Zero,
			},
		}},
	}
	if len(records) <= 1 {
		return batch, nil
	}

	for i, rec := range records[1:] {
		txn, err := parseChaseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		batch.Transactions = append(batch.Transactions, txn)
	}
	return batch, nil
}

func parseChaseRow(rec []string) (model.ExternalTransaction, error) {
	date, err := time.Parse(chaseDateFormat, rec[chaseColDate])
	if err != nil {
		return model.ExternalTransaction{}, fmt.Errorf("parsing date %q: %w", rec[chaseColDate], err)
	}

	amount, err := decimal.NewFromString(rec[chaseColAmount])
	if err != nil {
		return model.ExternalTransaction{}, fmt.Errorf("parsing amount %q: %w", rec[chaseColAmount], err)
	}

	desc := strings.TrimSpace(rec[chaseColDesc])
	payee := desc
	if payee == "" {
		payee = model.UnknownPayee
	}

	return model.ExternalTransaction{
		ExternalID:        makeChaseRef(date, desc),
		ExternalAccountID: chaseAccountID,
		Transaction: model.NormalizedTransaction{
			Date:   date,
			Payee:  payee,
			Amount: amount.Round(2),
			Notes:  rec[chaseColType],
		},
	}, nil
}

// makeChaseRef creates a reference like chase_20250103_GITHUB.
func makeChaseRef(date time.Time, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("chase_%s_%s", date.Format("20060102"), prefix)
}
