package accounts

import "github.com/cleared-dev/envelopes/internal/model"

// Index provides in-memory lookup over one owner's accounts for the
// duration of an import run. Accounts created or updated during the run
// are added back so later lookups see them.
type Index struct {
	accounts []model.Account
	byID     map[string]int
}

// NewIndex creates an Index from a slice of accounts.
func NewIndex(accounts []model.Account) *Index {
	idx := &Index{byID: make(map[string]int, len(accounts))}
	for _, a := range accounts {
		idx.Put(a)
	}
	return idx
}

// Put adds a, or replaces the account with the same ID.
func (i *Index) Put(a model.Account) {
	if pos, ok := i.byID[a.ID]; ok {
		i.accounts[pos] = a
		return
	}
	i.byID[a.ID] = len(i.accounts)
	i.accounts = append(i.accounts, a)
}

// FindByName returns the first account with exactly the given name.
func (i *Index) FindByName(name string) (model.Account, bool) {
	for _, a := range i.accounts {
		if a.Name == name {
			return a, true
		}
	}
	return model.Account{}, false
}

// FindByNameAndType returns the first account matching both name and type exactly.
func (i *Index) FindByNameAndType(name string, t model.AccountType) (model.Account, bool) {
	for _, a := range i.accounts {
		if a.Name == name && a.Type == t {
			return a, true
		}
	}
	return model.Account{}, false
}
