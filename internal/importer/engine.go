package importer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/envelopes/internal/accounts"
	"github.com/cleared-dev/envelopes/internal/id"
	"github.com/cleared-dev/envelopes/internal/model"
	"github.com/cleared-dev/envelopes/internal/store"
)

// Summary counts what one Apply call created.
type Summary struct {
	AccountsImported     int
	TransactionsImported int
	CategoriesImported   int
	// Duplicates counts transactions skipped by dedupe.
	Duplicates int
	// Dropped counts transactions whose account reference did not resolve.
	Dropped int
}

// Reconciler applies normalized batches to a store. Records are processed
// one at a time in batch order.
type Reconciler struct {
	log zerolog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(log zerolog.Logger) *Reconciler {
	return &Reconciler{log: log}
}

type run struct {
	st      store.Store
	ownerID string
	policy  Policy
	log     zerolog.Logger

	index      *accounts.Index
	accounts   map[string]model.Account // external id -> local account
	categories map[string]string        // external id -> local category id
	seen       map[string]map[string]struct{}
	summary    Summary
}

// Apply writes batch for ownerID. Accounts are resolved first, then
// categories, then transactions. Transactions referencing an account that
// is not in the batch are dropped and counted, not reported as errors.
func (r *Reconciler) Apply(ctx context.Context, st store.Store, ownerID string, batch *model.Batch, policy Policy) (Summary, error) {
	rn := &run{
		st:         st,
		ownerID:    ownerID,
		policy:     policy,
		log:        r.log.With().Str("owner_id", ownerID).Str("source", string(batch.Source)).Logger(),
		accounts:   make(map[string]model.Account, len(batch.Accounts)),
		categories: make(map[string]string, len(batch.Categories)),
		seen:       make(map[string]map[string]struct{}),
	}

	if policy.AccountMatch != MatchNone {
		existing, err := st.ListAccounts(ctx, ownerID)
		if err != nil {
			return Summary{}, fmt.Errorf("loading accounts: %w", err)
		}
		rn.index = accounts.NewIndex(existing)
	}

	for _, ea := range batch.Accounts {
		if err := rn.resolveAccount(ctx, ea); err != nil {
			return Summary{}, err
		}
	}
	for i, ec := range batch.Categories {
		if err := rn.createCategory(ctx, ec, i); err != nil {
			return Summary{}, err
		}
	}
	for _, et := range batch.Transactions {
		if err := rn.applyTransaction(ctx, et); err != nil {
			return Summary{}, err
		}
	}

	if rn.summary.Dropped > 0 {
		rn.log.Info().Int("dropped", rn.summary.Dropped).Msg("dropped transactions with unresolved accounts")
	}
	return rn.summary, nil
}

func (rn *run) match(a model.NormalizedAccount) (model.Account, bool) {
	switch rn.policy.AccountMatch {
	case MatchName:
		return rn.index.FindByName(a.Name)
	case MatchNameAndType:
		return rn.index.FindByNameAndType(a.Name, a.Type)
	default:
		return model.Account{}, false
	}
}

func (rn *run) resolveAccount(ctx context.Context, ea model.ExternalAccount) error {
	if !ea.Account.Type.Valid() {
		return fmt.Errorf("account %q: unknown account type %q", ea.Account.Name, ea.Account.Type)
	}
	if existing, ok := rn.match(ea.Account); ok {
		if rn.policy.UpdateBalance {
			balance := ea.Account.Balance
			updated, err := rn.st.UpdateAccount(ctx, existing.ID, rn.ownerID, store.AccountPatch{Balance: &balance})
			if err != nil {
				return fmt.Errorf("updating account %q: %w", ea.Account.Name, err)
			}
			existing = updated
			rn.index.Put(updated)
		}
		rn.accounts[ea.ExternalID] = existing
		return nil
	}

	created, err := rn.st.CreateAccount(ctx, model.Account{
		OwnerID: rn.ownerID,
		Name:    ea.Account.Name,
		Type:    ea.Account.Type,
		Balance: ea.Account.Balance,
	})
	if err != nil {
		return fmt.Errorf("creating account %q: %w", ea.Account.Name, err)
	}
	if rn.index != nil {
		rn.index.Put(created)
	}
	rn.accounts[ea.ExternalID] = created
	rn.summary.AccountsImported++
	return nil
}

func (rn *run) createCategory(ctx context.Context, ec model.ExternalCategory, order int) error {
	created, err := rn.st.CreateCategory(ctx, model.Category{
		OwnerID:   rn.ownerID,
		Name:      ec.Category.Name,
		Budgeted:  ec.Category.Budgeted,
		SortOrder: order,
	})
	if err != nil {
		return fmt.Errorf("creating category %q: %w", ec.Category.Name, err)
	}
	if ec.ExternalID != "" {
		rn.categories[ec.ExternalID] = created.ID
	}
	rn.summary.CategoriesImported++
	return nil
}

func (rn *run) applyTransaction(ctx context.Context, et model.ExternalTransaction) error {
	acct, ok := rn.accounts[et.ExternalAccountID]
	if !ok || acct.OwnerID != rn.ownerID {
		rn.summary.Dropped++
		return nil
	}

	t := et.Transaction
	if rn.policy.Dedupe {
		seen, err := rn.seenFor(ctx, acct.ID)
		if err != nil {
			return err
		}
		key := id.TransactionKey(acct.ID, t.Date, t.Amount, t.Payee)
		if _, dup := seen[key]; dup {
			rn.summary.Duplicates++
			return nil
		}
		seen[key] = struct{}{}
	}

	if _, err := rn.st.CreateTransaction(ctx, model.Transaction{
		OwnerID:    rn.ownerID,
		AccountID:  acct.ID,
		CategoryID: rn.categories[et.ExternalCategoryID],
		Date:       t.Date,
		Payee:      t.Payee,
		Amount:     t.Amount,
		Notes:      t.Notes,
	}); err != nil {
		return fmt.Errorf("creating transaction in account %q: %w", acct.Name, err)
	}
	rn.summary.TransactionsImported++
	return nil
}

// seenFor returns the dedupe keys for an account, loading stored
// transactions on first use.
func (rn *run) seenFor(ctx context.Context, accountID string) (map[string]struct{}, error) {
	if seen, ok := rn.seen[accountID]; ok {
		return seen, nil
	}
	existing, err := rn.st.ListTransactions(ctx, rn.ownerID, accountID)
	if err != nil {
		return nil, fmt.Errorf("loading transactions for dedupe: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		seen[id.TransactionKey(t.AccountID, t.Date, t.Amount, t.Payee)] = struct{}{}
	}
	rn.seen[accountID] = seen
	return seen, nil
}
