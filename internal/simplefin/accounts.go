package simplefin

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/envelopes/internal/accounts"
	"github.com/cleared-dev/envelopes/internal/model"
)

// AccountSet is the /accounts response body.
type AccountSet struct {
	Errors   []string  `json:"errors"`
	Accounts []Account `json:"accounts"`
}

// Account is one aggregated bank account. Money fields are decimal strings.
type Account struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Currency         string        `json:"currency"`
	Balance          string        `json:"balance"`
	AvailableBalance string        `json:"available-balance,omitempty"`
	BalanceDate      int64         `json:"balance-date"`
	Transactions     []Transaction `json:"transactions"`
}

// Transaction is one posted or pending bank transaction.
type Transaction struct {
	ID          string `json:"id"`
	Posted      int64  `json:"posted"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Pending     bool   `json:"pending,omitempty"`
	Extra       *Extra `json:"extra,omitempty"`
}

// Extra carries optional per-transaction hints.
type Extra struct {
	Category string `json:"category,omitempty"`
}

// ToBatch normalizes an account set. Transactions reference their account
// by the aggregator's account id.
func (s *AccountSet) ToBatch() (*model.Batch, error) {
	batch := &model.Batch{Source: model.SourceSimpleFIN}
	for _, a := range s.Accounts {
		acct, err := a.normalize()
		if err != nil {
			return nil, err
		}
		batch.Accounts = append(batch.Accounts, model.ExternalAccount{ExternalID: a.ID, Account: acct})

		for _, t := range a.Transactions {
			txn, err := t.normalize()
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", a.ID, err)
			}
			batch.Transactions = append(batch.Transactions, model.ExternalTransaction{
				ExternalID:        t.ID,
				ExternalAccountID: a.ID,
				Transaction:       txn,
			})
		}
	}
	return batch, nil
}

func (a Account) normalize() (model.NormalizedAccount, error) {
	balance, err := decimal.NewFromString(a.Balance)
	if err != nil {
		return model.NormalizedAccount{}, fmt.Errorf("account %s: parsing balance %q: %w", a.ID, a.Balance, err)
	}
	return model.NormalizedAccount{
		Name:    a.Name,
		Type:    accounts.BankClassifier.Infer(a.Name),
		Balance: balance.Round(2),
	}, nil
}

func (t Transaction) normalize() (model.NormalizedTransaction, error) {
	amount, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return model.NormalizedTransaction{}, fmt.Errorf("transaction %s: parsing amount %q: %w", t.ID, t.Amount, err)
	}
	payee := t.Description
	if payee == "" {
		payee = model.UnknownPayee
	}
	var notes string
	if t.Extra != nil {
		notes = t.Extra.Category
	}
	return model.NormalizedTransaction{
		Date:   time.Unix(t.Posted, 0).UTC(),
		Payee:  payee,
		Amount: amount.Round(2),
		Notes:  notes,
	}, nil
}
