package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownPayee is used when a source omits the payee.
const UnknownPayee = "Unknown"

// Transaction is a stored ledger transaction. CategoryID and Notes are
// empty when absent and persist as NULL.
type Transaction struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"userId"`
	AccountID  string          `json:"accountId"`
	CategoryID string          `json:"categoryId,omitempty"`
	Date       time.Time       `json:"date"`
	Payee      string          `json:"payee"`
	Amount     decimal.Decimal `json:"amount"` // negative = outflow
	Notes      string          `json:"notes,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}
