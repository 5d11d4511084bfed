package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// NormalizedAccount is the source-agnostic form of an external account.
type NormalizedAccount struct {
	Name    string
	Type    AccountType
	Balance decimal.Decimal
}

// NormalizedTransaction is the source-agnostic form of an external transaction.
type NormalizedTransaction struct {
	Date   time.Time
	Payee  string
	Amount decimal.Decimal
	Notes  string
}

// NormalizedCategory is the source-agnostic form of an external category.
type NormalizedCategory struct {
	Name     string
	Budgeted decimal.Decimal
}

// ExternalAccount pairs a normalized account with its id in the source.
type ExternalAccount struct {
	ExternalID string
	Account    NormalizedAccount
}

// ExternalCategory pairs a normalized category with its id in the source.
type ExternalCategory struct {
	ExternalID string
	Category   NormalizedCategory
}

// ExternalTransaction references its owning account (and optionally its
// category) by source id. References are resolved during reconciliation.
type ExternalTransaction struct {
	ExternalID         string
	ExternalAccountID  string
	ExternalCategoryID string
	Transaction        NormalizedTransaction
}

// Batch is everything one adapter call produced.
type Batch struct {
	Source       ImportSource
	Accounts     []ExternalAccount
	Categories   []ExternalCategory
	Transactions []ExternalTransaction
}
