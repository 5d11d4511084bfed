// Package ynab parses YNAB budget exports (API JSON and register CSV) into
// normalized batches. Amounts in the JSON export are milliunits.
package ynab

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cleared-dev/envelopes/internal/accounts"
	"github.com/cleared-dev/envelopes/internal/model"
)

// Budget is the subset of a YNAB budget export the importer reads.
type Budget struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Accounts       []Account       `json:"accounts"`
	Transactions   []Transaction   `json:"transactions"`
	Categories     []Category      `json:"categories"`
	CategoryGroups []CategoryGroup `json:"category_groups"`
}

type Account struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	OnBudget bool   `json:"on_budget"`
	Closed   bool   `json:"closed"`
	Deleted  bool   `json:"deleted"`
	Balance  int64  `json:"balance"`
}

type Transaction struct {
	ID                string `json:"id"`
	Date              string `json:"date"`
	Amount            int64  `json:"amount"`
	Memo              string `json:"memo"`
	PayeeName         string `json:"payee_name"`
	PayeeID           string `json:"payee_id"`
	AccountID         string `json:"account_id"`
	CategoryID        string `json:"category_id"`
	CategoryName      string `json:"category_name"`
	TransferAccountID string `json:"transfer_account_id"`
	Deleted           bool   `json:"deleted"`
}

type CategoryGroup struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Hidden  bool   `json:"hidden"`
	Deleted bool   `json:"deleted"`
}

type Category struct {
	ID              string `json:"id"`
	CategoryGroupID string `json:"category_group_id"`
	Name            string `json:"name"`
	Hidden          bool   `json:"hidden"`
	Budgeted        int64  `json:"budgeted"`
	Deleted         bool   `json:"deleted"`
}

// ParseJSON decodes a budget export. It accepts the API response envelope
// {"data":{"budget":...}}, a bare {"budget":...}, or the budget object itself.
func ParseJSON(r io.Reader) (*Budget, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading budget: %w", err)
	}

	var envelope struct {
		Data *struct {
			Budget *json.RawMessage `json:"budget"`
		} `json:"data"`
		Budget *json.RawMessage `json:"budget"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding budget JSON: %w", err)
	}

	body := raw
	switch {
	case envelope.Data != nil && envelope.Data.Budget != nil:
		body = *envelope.Data.Budget
	case envelope.Budget != nil:
		body = *envelope.Budget
	}
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil, fmt.Errorf("decoding budget JSON: budget is null")
	}

	var b Budget
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("decoding budget JSON: %w", err)
	}
	return &b, nil
}

// ToBatch normalizes b. Deleted or closed accounts, deleted or hidden
// categories, and deleted transactions are left out.
func (b *Budget) ToBatch() (*model.Batch, error) {
	batch := &model.Batch{Source: model.SourceYNABJSON}

	for _, a := range b.Accounts {
		if a.Deleted || a.Closed {
			continue
		}
		batch.Accounts = append(batch.Accounts, model.ExternalAccount{
			ExternalID: a.ID,
			Account: model.NormalizedAccount{
				Name:    a.Name,
				Type:    accounts.BudgetClassifier.Infer(a.Type, a.Name),
				Balance: model.FromMinorUnits(a.Balance, model.MilliUnits).Round(2),
			},
		})
	}

	for _, c := range b.Categories {
		if c.Deleted || c.Hidden {
			continue
		}
		batch.Categories = append(batch.Categories, model.ExternalCategory{
			ExternalID: c.ID,
			Category: model.NormalizedCategory{
				Name:     c.Name,
				Budgeted: model.FromMinorUnits(c.Budgeted, model.MilliUnits).Round(2),
			},
		})
	}

	for _, t := range b.Transactions {
		if t.Deleted {
			continue
		}
		date, err := parseDate(t.Date)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		payee := t.PayeeName
		if payee == "" {
			payee = model.UnknownPayee
		}
		batch.Transactions = append(batch.Transactions, model.ExternalTransaction{
			ExternalID:         t.ID,
			ExternalAccountID:  t.AccountID,
			ExternalCategoryID: t.CategoryID,
			Transaction: model.NormalizedTransaction{
				Date:   date,
				Payee:  payee,
				Amount: model.FromMinorUnits(t.Amount, model.MilliUnits).Round(2),
				Notes:  t.Memo,
			},
		})
	}
	return batch, nil
}

var dateLayouts = []string{"2006-01-02", time.RFC3339Nano, "01/02/2006", "1/2/2006"}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q", s)
}
