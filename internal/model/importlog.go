package model

import (
	"encoding/json"
	"time"
)

// ImportSource identifies where an import run's data came from.
type ImportSource string

const (
	SourceYNABJSON     ImportSource = "ynab_json"
	SourceYNABCSV      ImportSource = "ynab_csv"
	SourceActualBudget ImportSource = "actual_budget"
	SourceSimpleFIN    ImportSource = "simplefin"
	SourceCSV          ImportSource = "csv"
)

// ImportStatus is the outcome of an import run.
type ImportStatus string

const (
	ImportSuccess ImportStatus = "success"
	ImportFailed  ImportStatus = "failed"
	ImportPartial ImportStatus = "partial"
)

// ImportLog is one immutable ledger entry describing an import or sync run.
type ImportLog struct {
	ID                   string       `json:"id"`
	OwnerID              string       `json:"userId"`
	Source               ImportSource `json:"source"`
	FileName             string       `json:"fileName"`
	AccountsImported     int          `json:"accountsImported"`
	TransactionsImported int          `json:"transactionsImported"`
	CategoriesImported   int          `json:"categoriesImported"`
	Status               ImportStatus `json:"status"`
	ErrorMessage         string       `json:"errorMessage"`
	CreatedAt            time.Time    `json:"createdAt"`
}

// MarshalJSON writes an empty FileName or ErrorMessage as null.
func (e ImportLog) MarshalJSON() ([]byte, error) {
	type plain ImportLog
	return json.Marshal(struct {
		plain
		FileName     *string `json:"fileName"`
		ErrorMessage *string `json:"errorMessage"`
	}{
		plain:        plain(e),
		FileName:     nullable(e.FileName),
		ErrorMessage: nullable(e.ErrorMessage),
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
