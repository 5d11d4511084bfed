package ynab

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/envelopes/internal/model"
)

// Row is one register CSV row keyed by header name. Missing columns are
// absent from the map.
type Row map[string]string

// Column names used from a register export.
const (
	colDate    = "Date"
	colPayee   = "Payee"
	colMemo    = "Memo"
	colAmount  = "Amount"
	colInflow  = "Inflow"
	colOutflow = "Outflow"
)

// ParseCSV reads a header-driven CSV. Fields are trimmed and blank lines
// are skipped.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		if blank(rec) {
			continue
		}
		if len(rec) > len(header) {
			return nil, fmt.Errorf("line %d: %d fields, header has %d", line, len(rec), len(header))
		}
		row := make(Row, len(header))
		for i, v := range rec {
			row[header[i]] = strings.TrimSpace(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Amount returns the signed amount: the Amount column when present,
// otherwise Inflow minus Outflow.
func (r Row) Amount() (decimal.Decimal, error) {
	if v, ok := r[colAmount]; ok {
		return model.ParseLooseAmount(v)
	}
	inflow, err := r.optionalAmount(colInflow)
	if err != nil {
		return decimal.Zero, err
	}
	outflow, err := r.optionalAmount(colOutflow)
	if err != nil {
		return decimal.Zero, err
	}
	return inflow.Sub(outflow), nil
}

func (r Row) optionalAmount(col string) (decimal.Decimal, error) {
	v := r[col]
	if v == "" {
		return decimal.Zero, nil
	}
	return model.ParseLooseAmount(v)
}

// Normalize maps a row to a transaction.
func (r Row) Normalize() (model.NormalizedTransaction, error) {
	date, err := parseDate(r[colDate])
	if err != nil {
		return model.NormalizedTransaction{}, err
	}
	amount, err := r.Amount()
	if err != nil {
		return model.NormalizedTransaction{}, err
	}
	payee := r[colPayee]
	if payee == "" {
		payee = model.UnknownPayee
	}
	return model.NormalizedTransaction{
		Date:   date,
		Payee:  payee,
		Amount: amount,
		Notes:  r[colMemo],
	}, nil
}

// RegisterAccountID is the external id given to the single account a
// register CSV batch carries.
const RegisterAccountID = "register"

// RowsToBatch maps register rows into a batch whose transactions all belong
// to one checking account named accountName.
func RowsToBatch(rows []Row, accountName string) (*model.Batch, error) {
	batch := &model.Batch{
		Source: model.SourceYNABCSV,
		Accounts: []model.ExternalAccount{{
			ExternalID: RegisterAccountID,
			Account: model.NormalizedAccount{
				Name:    accountName,
				Type:    model.AccountTypeChecking,
				Balance: decimal.Zero,
			},
		}},
	}
	for i, row := range rows {
		txn, err := row.Normalize()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		batch.Transactions = append(batch.Transactions, model.ExternalTransaction{
			ExternalAccountID: RegisterAccountID,
			Transaction:       txn,
		})
	}
	return batch, nil
}
