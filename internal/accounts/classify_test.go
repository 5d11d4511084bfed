package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cleared-dev/envelopes/internal/model"
)

func TestBankClassifier(t *testing.T) {
	tests := []struct {
		name string
		want model.AccountType
	}{
		{"Everyday CHECKING", model.AccountTypeChecking},
		{"TD Chequing", model.AccountTypeChecking},
		{"High Yield Savings", model.AccountTypeSavings},
		{"Save Up", model.AccountTypeSavings},
		{"Sapphire Credit", model.AccountTypeCredit},
		{"Visa Card", model.AccountTypeCredit},
		{"Brokerage", model.AccountTypeInvestment},
		{"Roth IRA", model.AccountTypeInvestment},
		{"Company 401k", model.AccountTypeInvestment},
		{"Mortgage", model.AccountTypeOther},
		{"", model.AccountTypeOther},
		// checking is tested before credit
		{"Credit Union Checking", model.AccountTypeChecking},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BankClassifier.Infer(tt.name), "name %q", tt.name)
	}
}

func TestBudgetClassifier_TypeAndName(t *testing.T) {
	tests := []struct {
		typ, name string
		want      model.AccountType
	}{
		{"checking", "Main", model.AccountTypeChecking},
		{"creditCard", "Visa", model.AccountTypeCredit},
		{"lineOfCredit", "HELOC", model.AccountTypeCredit},
		{"investmentAccount", "Stocks", model.AccountTypeInvestment},
		{"otherAsset", "My Savings", model.AccountTypeSavings},
		{"", "Cash", model.AccountTypeOther},
		// savings in the type beats credit in the name because rules are ordered
		{"savings", "Credit Union", model.AccountTypeSavings},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BudgetClassifier.Infer(tt.typ, tt.name), "%q/%q", tt.typ, tt.name)
	}
}
