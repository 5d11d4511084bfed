// Package actual parses Actual Budget JSON exports into normalized batches.
// Amounts are integer cents.
package actual

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/envelopes/internal/accounts"
	"github.com/cleared-dev/envelopes/internal/model"
)

// Budget is the subset of an Actual Budget export the importer reads.
type Budget struct {
	Accounts     []Account     `json:"accounts"`
	Transactions []Transaction `json:"transactions"`
	Categories   []Category    `json:"categories"`
	Payees       []Payee       `json:"payees"`
}

type Account struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	OffBudget bool   `json:"offbudget"`
	Closed    bool   `json:"closed"`
	Balance   *int64 `json:"balance"`
}

type Transaction struct {
	ID         string `json:"id"`
	Date       Date   `json:"date"`
	Amount     int64  `json:"amount"`
	Notes      string `json:"notes"`
	Payee      string `json:"payee"`
	PayeeName  string `json:"payee_name"`
	Account    string `json:"account"`
	Category   string `json:"category"`
	TransferID string `json:"transfer_id"`
}

type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsIncome bool   `json:"is_income"`
	Hidden   bool   `json:"hidden"`
}

type Payee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Date accepts "2006-01-02" strings or the integer form 20060102 that
// Actual uses internally.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		n, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("parsing date %s: %w", b, err)
		}
		s = strconv.FormatInt(n, 10)
	}
	for _, layout := range []string{"2006-01-02", "20060102", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("parsing date %q", s)
}

// ParseJSON decodes an export, unwrapping an optional {"data": ...} envelope.
func ParseJSON(r io.Reader) (*Budget, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading budget: %w", err)
	}

	var envelope struct {
		Data *json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding budget JSON: %w", err)
	}
	body := raw
	if envelope.Data != nil {
		body = *envelope.Data
	}

	var b Budget
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("decoding budget JSON: %w", err)
	}
	return &b, nil
}

// ToBatch normalizes b. Closed accounts and hidden categories are left out.
// Category budgets are not carried over; every category starts at zero.
func (b *Budget) ToBatch() (*model.Batch, error) {
	batch := &model.Batch{Source: model.SourceActualBudget}

	for _, a := range b.Accounts {
		if a.Closed {
			continue
		}
		balance := decimal.Zero
		if a.Balance != nil {
			balance = model.FromMinorUnits(*a.Balance, model.Cents)
		}
		batch.Accounts = append(batch.Accounts, model.ExternalAccount{
			ExternalID: a.ID,
			Account: model.NormalizedAccount{
				Name:    a.Name,
				Type:    accounts.BudgetClassifier.Infer(a.Type, a.Name),
				Balance: balance,
			},
		})
	}

	for _, c := range b.Categories {
		if c.Hidden {
			continue
		}
		batch.Categories = append(batch.Categories, model.ExternalCategory{
			ExternalID: c.ID,
			Category:   model.NormalizedCategory{Name: c.Name, Budgeted: decimal.Zero},
		})
	}

	payees := make(map[string]string, len(b.Payees))
	for _, p := range b.Payees {
		payees[p.ID] = p.Name
	}

	for _, t := range b.Transactions {
		if t.Date.IsZero() {
			return nil, fmt.Errorf("transaction %s: missing date", t.ID)
		}
		batch.Transactions = append(batch.Transactions, model.ExternalTransaction{
			ExternalID:         t.ID,
			ExternalAccountID:  t.Account,
			ExternalCategoryID: t.Category,
			Transaction: model.NormalizedTransaction{
				Date:   t.Date.Time,
				Payee:  t.payeeName(payees),
				Amount: model.FromMinorUnits(t.Amount, model.Cents),
				Notes:  t.Notes,
			},
		})
	}
	return batch, nil
}

// payeeName prefers the denormalized name, then the payee table, then the
// raw payee reference.
func (t Transaction) payeeName(payees map[string]string) string {
	if t.PayeeName != "" {
		return t.PayeeName
	}
	if name := payees[t.Payee]; name != "" {
		return name
	}
	if t.Payee != "" {
		return t.Payee
	}
	return model.UnknownPayee
}
