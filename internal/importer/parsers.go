package importer

import (
	"fmt"
	"io"

	"github.com/cleared-dev/envelopes/internal/actual"
	"github.com/cleared-dev/envelopes/internal/model"
	"github.com/cleared-dev/envelopes/internal/ynab"
)

// YNABJSONParser reads YNAB budget JSON exports.
type YNABJSONParser struct{}

func (YNABJSONParser) Source() model.ImportSource { return model.SourceYNABJSON }

func (YNABJSONParser) Parse(r io.Reader, _ Options) (*model.Batch, error) {
	b, err := ynab.ParseJSON(r)
	if err != nil {
		return nil, err
	}
	return b.ToBatch()
}

// YNABCSVParser reads YNAB register CSV exports into one named account.
type YNABCSVParser struct{}

func (YNABCSVParser) Source() model.ImportSource { return model.SourceYNABCSV }

func (YNABCSVParser) RequiresAccount() bool { return true }

func (YNABCSVParser) Parse(r io.Reader, opts Options) (*model.Batch, error) {
	if opts.AccountName == "" {
		return nil, fmt.Errorf("%w: account name", ErrMissingInput)
	}
	rows, err := ynab.ParseCSV(r)
	if err != nil {
		return nil, err
	}
	return ynab.RowsToBatch(rows, opts.AccountName)
}

// ActualParser reads Actual Budget JSON exports.
type ActualParser struct{}

func (ActualParser) Source() model.ImportSource { return model.SourceActualBudget }

func (ActualParser) Parse(r io.Reader, _ Options) (*model.Batch, error) {
	b, err := actual.ParseJSON(r)
	if err != nil {
		return nil, err
	}
	return b.ToBatch()
}
