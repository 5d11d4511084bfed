package importer

import "github.com/cleared-dev/envelopes/internal/model"

// AccountMatch selects how incoming accounts are matched against the
// owner's existing accounts.
type AccountMatch int

const (
	// MatchNone always creates a new account.
	MatchNone AccountMatch = iota
	// MatchName reuses an existing account with the same name.
	MatchName
	// MatchNameAndType reuses an existing account with the same name and type.
	MatchNameAndType
)

func (m AccountMatch) String() string {
	switch m {
	case MatchName:
		return "name"
	case MatchNameAndType:
		return "name+type"
	default:
		return "none"
	}
}

// Policy controls how one run reconciles its batch.
type Policy struct {
	AccountMatch AccountMatch
	// UpdateBalance overwrites a matched account's balance with the
	// incoming one.
	UpdateBalance bool
	// Dedupe skips transactions whose (date, amount, payee) already exists
	// in the target account.
	Dedupe bool
}

// DefaultPolicies are the per-source policies. Aggregator syncs run
// repeatedly and must not duplicate; budget imports are one-shot.
func DefaultPolicies() map[model.ImportSource]Policy {
	return map[model.ImportSource]Policy{
		model.SourceSimpleFIN:    {AccountMatch: MatchNameAndType, UpdateBalance: true, Dedupe: true},
		model.SourceYNABJSON:     {AccountMatch: MatchNone},
		model.SourceActualBudget: {AccountMatch: MatchNone},
		model.SourceYNABCSV:      {AccountMatch: MatchName},
		model.SourceCSV:          {AccountMatch: MatchName, Dedupe: true},
	}
}
