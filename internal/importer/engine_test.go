package importer

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/envelopes/internal/model"
	"github.com/cleared-dev/envelopes/internal/store/memory"
)

const owner = "user-1"

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func extAccount(extID, name string, typ model.AccountType, balance string) model.ExternalAccount {
	return model.ExternalAccount{
		ExternalID: extID,
		Account:    model.NormalizedAccount{Name: name, Type: typ, Balance: decimal.RequireFromString(balance)},
	}
}

func extTxn(extID, acct, date, payee, amount string) model.ExternalTransaction {
	return model.ExternalTransaction{
		ExternalID:        extID,
		ExternalAccountID: acct,
		Transaction: model.NormalizedTransaction{
			Date:   day(date),
			Payee:  payee,
			Amount: decimal.RequireFromString(amount),
		},
	}
}

func syncBatch(balance string) *model.Batch {
	return &model.Batch{
		Source:   model.SourceSimpleFIN,
		Accounts: []model.ExternalAccount{extAccount("ACT-1", "Everyday Checking", model.AccountTypeChecking, balance)},
		Transactions: []model.ExternalTransaction{
			extTxn("T1", "ACT-1", "2025-01-15", "GROCERY MART", "-42.50"),
			extTxn("T2", "ACT-1", "2025-01-16", "PAYROLL", "2500.00"),
		},
	}
}

func syncPolicy() Policy {
	return Policy{AccountMatch: MatchNameAndType, UpdateBalance: true, Dedupe: true}
}

func TestApply_CreatesEverything(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	r := NewReconciler(zerolog.Nop())

	batch := syncBatch("100.00")
	batch.Categories = []model.ExternalCategory{
		{ExternalID: "c1", Category: model.NormalizedCategory{Name: "Groceries", Budgeted: decimal.RequireFromString("400.00")}},
		{ExternalID: "c2", Category: model.NormalizedCategory{Name: "Fun", Budgeted: decimal.Zero}},
	}
	batch.Transactions[0].ExternalCategoryID = "c1"

	sum, err := r.Apply(ctx, st, owner, batch, Policy{})
	require.NoError(t, err)
	assert.Equal(t, Summary{AccountsImported: 1, TransactionsImported: 2, CategoriesImported: 2}, sum)

	cats, err := st.ListCategories(ctx, owner)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	byName := map[string]model.Category{}
	for _, c := range cats {
		byName[c.Name] = c
	}
	assert.Equal(t, 0, byName["Groceries"].SortOrder)
	assert.Equal(t, 1, byName["Fun"].SortOrder)
	assert.Equal(t, "400.00", model.Fixed2(byName["Groceries"].Budgeted))

	txns, err := st.ListTransactions(ctx, owner, "")
	require.NoError(t, err)
	require.Len(t, txns, 2)
	for _, txn := range txns {
		switch txn.Payee {
		case "GROCERY MART":
			assert.Equal(t, byName["Groceries"].ID, txn.CategoryID)
		case "PAYROLL":
			assert.Empty(t, txn.CategoryID)
		default:
			t.Fatalf("unexpected payee %q", txn.Payee)
		}
	}
}

func TestApply_SyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	r := NewReconciler(zerolog.Nop())

	first, err := r.Apply(ctx, st, owner, syncBatch("100.00"), syncPolicy())
	require.NoError(t, err)
	assert.Equal(t, 1, first.AccountsImported)
	assert.Equal(t, 2, first.TransactionsImported)

	second, err := r.Apply(ctx, st, owner, syncBatch("57.50"), syncPolicy())
	require.NoError(t, err)
	assert.Equal(t, 0, second.AccountsImported)
	assert.Equal(t, 0, second.TransactionsImported)
	assert.Equal(t, 2, second.Duplicates)

	accts, err := st.ListAccounts(ctx, owner)
	require.NoError(t, err)
	require.Len(t, accts, 1)
	assert.Equal(t, "57.50", model.Fixed2(accts[0].Balance))

	txns, err := st.ListTransactions(ctx, owner, "")
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestApply_NameAndTypeRequiresBothToMatch(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	_, err := st.CreateAccount(ctx, model.Account{OwnerID: owner, Name: "Everyday Checking", Type: model.AccountTypeSavings})
	require.NoError(t, err)

	sum, err := NewReconciler(zerolog.Nop()).Apply(ctx, st, owner, syncBatch("1.00"), syncPolicy())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.AccountsImported)

	accts, err := st.ListAccounts(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, accts, 2)
}

func TestApply_DedupeWithinRun(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	batch := syncBatch("0")
	batch.Transactions = append(batch.Transactions, extTxn("T1-again", "ACT-1", "2025-01-15", "GROCERY MART", "-42.5"))

	sum, err := NewReconciler(zerolog.Nop()).Apply(ctx, st, owner, batch, syncPolicy())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TransactionsImported)
	assert.Equal(t, 1, sum.Duplicates)
}

func TestApply_NoDedupeKeepsRepeats(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	r := NewReconciler(zerolog.Nop())

	_, err := r.Apply(ctx, st, owner, syncBatch("0"), Policy{})
	require.NoError(t, err)
	sum, err := r.Apply(ctx, st, owner, syncBatch("0"), Policy{})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.AccountsImported)
	assert.Equal(t, 2, sum.TransactionsImported)

	accts, err := st.ListAccounts(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, accts, 2)
}

func TestApply_MatchNameReusesAccountWithoutBalanceChange(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	existing, err := st.CreateAccount(ctx, model.Account{
		OwnerID: owner, Name: "Everyday Checking", Type: model.AccountTypeOther, Balance: decimal.RequireFromString("12.34"),
	})
	require.NoError(t, err)

	sum, err := NewReconciler(zerolog.Nop()).Apply(ctx, st, owner, syncBatch("999.00"), Policy{AccountMatch: MatchName})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.AccountsImported)
	assert.Equal(t, 2, sum.TransactionsImported)

	accts, err := st.ListAccounts(ctx, owner)
	require.NoError(t, err)
	require.Len(t, accts, 1)
	assert.Equal(t, existing.ID, accts[0].ID)
	assert.Equal(t, "12.34", model.Fixed2(accts[0].Balance))
}

func TestApply_DropsDanglingReferences(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	batch := syncBatch("0")
	batch.Transactions = append(batch.Transactions, extTxn("T9", "ACT-MISSING", "2025-01-20", "NOWHERE", "-1.00"))

	sum, err := NewReconciler(zerolog.Nop()).Apply(ctx, st, owner, batch, Policy{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TransactionsImported)
	assert.Equal(t, 1, sum.Dropped)

	txns, err := st.ListTransactions(ctx, owner, "")
	require.NoError(t, err)
	for _, txn := range txns {
		assert.NotEqual(t, "NOWHERE", txn.Payee)
	}
}

func TestApply_NeverTouchesOtherOwners(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	theirs, err := st.CreateAccount(ctx, model.Account{
		OwnerID: "user-2", Name: "Everyday Checking", Type: model.AccountTypeChecking, Balance: decimal.RequireFromString("5.00"),
	})
	require.NoError(t, err)

	sum, err := NewReconciler(zerolog.Nop()).Apply(ctx, st, owner, syncBatch("100.00"), syncPolicy())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.AccountsImported)

	other, err := st.ListAccounts(ctx, "user-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, theirs.ID, other[0].ID)
	assert.Equal(t, "5.00", model.Fixed2(other[0].Balance))

	otherTxns, err := st.ListTransactions(ctx, "user-2", "")
	require.NoError(t, err)
	assert.Empty(t, otherTxns)
}

func TestApply_UnknownAccountTypeFails(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	batch := &model.Batch{
		Source:   model.SourceYNABJSON,
		Accounts: []model.ExternalAccount{extAccount("A1", "Mortgage", model.AccountType("loan"), "0")},
	}

	_, err := NewReconciler(zerolog.Nop()).Apply(ctx, st, owner, batch, Policy{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown account type "loan"`)

	accts, err := st.ListAccounts(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, accts)
}
