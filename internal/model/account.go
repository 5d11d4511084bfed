package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies a budget account.
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeCredit     AccountType = "credit"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeOther      AccountType = "other"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeCredit, AccountTypeInvestment, AccountTypeOther:
		return true
	}
	return false
}

// Account is a stored budget account owned by a single user.
type Account struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"userId"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Category is a budget envelope.
type Category struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"userId"`
	Name      string          `json:"name"`
	Budgeted  decimal.Decimal `json:"budgeted"`
	SortOrder int             `json:"sortOrder"`
	CreatedAt time.Time       `json:"createdAt"`
}
