package accounts

import (
	"strings"

	"github.com/cleared-dev/envelopes/internal/model"
)

// TypeRule assigns Type when any hint contains any of Keywords.
type TypeRule struct {
	Type     model.AccountType
	Keywords []string
}

// Classifier infers an account type from free-text hints. Rules are
// checked in order; the first rule with a matching keyword wins.
type Classifier []TypeRule

// Infer returns the inferred type, or AccountTypeOther when nothing matches.
// Matching is case-insensitive substring matching.
func (c Classifier) Infer(hints ...string) model.AccountType {
	lowered := make([]string, len(hints))
	for i, h := range hints {
		lowered[i] = strings.ToLower(h)
	}
	for _, rule := range c {
		for _, h := range lowered {
			if h == "" {
				continue
			}
			for _, kw := range rule.Keywords {
				if strings.Contains(h, kw) {
					return rule.Type
				}
			}
		}
	}
	return model.AccountTypeOther
}

// BankClassifier is used for aggregator accounts, where only the display
// name is available.
var BankClassifier = Classifier{
	{Type: model.AccountTypeChecking, Keywords: []string{"checking", "chequing"}},
	{Type: model.AccountTypeSavings, Keywords: []string{"savings", "save"}},
	{Type: model.AccountTypeCredit, Keywords: []string{"credit", "card"}},
	{Type: model.AccountTypeInvestment, Keywords: []string{"investment", "brokerage", "401k", "ira"}},
}

// BudgetClassifier is used for budgeting-app exports, matched against both
// the source's type string and the account name.
var BudgetClassifier = Classifier{
	{Type: model.AccountTypeChecking, Keywords: []string{"checking"}},
	{Type: model.AccountTypeSavings, Keywords: []string{"savings"}},
	{Type: model.AccountTypeCredit, Keywords: []string{"credit"}},
	{Type: model.AccountTypeInvestment, Keywords: []string{"invest"}},
}
