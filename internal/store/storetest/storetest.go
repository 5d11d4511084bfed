// Package storetest holds behaviour tests shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/envelopes/internal/model"
	"github.com/cleared-dev/envelopes/internal/store"
)

// Factory returns a fresh, empty store for one test.
type Factory func(t *testing.T) store.Store

// Run exercises the full Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, newStore(t)) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("Categories", func(t *testing.T) { testCategories(t, newStore(t)) })
	t.Run("Connections", func(t *testing.T) { testConnections(t, newStore(t)) })
	t.Run("ImportLogs", func(t *testing.T) { testImportLogs(t, newStore(t)) })
	t.Run("TxCommit", func(t *testing.T) { testTxCommit(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()

	a, err := s.CreateAccount(ctx, model.Account{OwnerID: "u1", Name: "Checking", Type: model.AccountTypeChecking, Balance: dec("10.50")})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.CreatedAt.IsZero())

	_, err = s.CreateAccount(ctx, model.Account{OwnerID: "u2", Name: "Other", Type: model.AccountTypeOther, Balance: decimal.Zero})
	require.NoError(t, err)

	got, err := s.ListAccounts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Checking", got[0].Name)
	assert.Equal(t, model.AccountTypeChecking, got[0].Type)
	assert.Equal(t, "10.50", got[0].Balance.StringFixed(2))

	bal := dec("99.99")
	updated, err := s.UpdateAccount(ctx, a.ID, "u1", store.AccountPatch{Balance: &bal})
	require.NoError(t, err)
	assert.Equal(t, "99.99", updated.Balance.StringFixed(2))
	assert.Equal(t, "Checking", updated.Name)

	_, err = s.UpdateAccount(ctx, a.ID, "u2", store.AccountPatch{Balance: &bal})
	assert.ErrorIs(t, err, store.ErrNotFound, "another owner cannot update")
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	a1, err := s.CreateAccount(ctx, model.Account{OwnerID: "u1", Name: "A1", Type: model.AccountTypeChecking})
	require.NoError(t, err)
	a2, err := s.CreateAccount(ctx, model.Account{OwnerID: "u1", Name: "A2", Type: model.AccountTypeSavings})
	require.NoError(t, err)

	older := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 1, 9, 15, 4, 5, 0, time.UTC)

	_, err = s.CreateTransaction(ctx, model.Transaction{OwnerID: "u1", AccountID: a1.ID, Date: older, Payee: "Coffee", Amount: dec("-4.25")})
	require.NoError(t, err)
	tx2, err := s.CreateTransaction(ctx, model.Transaction{OwnerID: "u1", AccountID: a1.ID, Date: newer, Payee: "Salary", Amount: dec("2500"), Notes: "Income"})
	require.NoError(t, err)
	_, err = s.CreateTransaction(ctx, model.Transaction{OwnerID: "u1", AccountID: a2.ID, Date: newer, Payee: "Interest", Amount: dec("1.10")})
	require.NoError(t, err)

	all, err := s.ListTransactions(ctx, "u1", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	inA1, err := s.ListTransactions(ctx, "u1", a1.ID)
	require.NoError(t, err)
	require.Len(t, inA1, 2)
	assert.Equal(t, tx2.ID, inA1[0].ID, "newest first")
	assert.True(t, inA1[0].Date.Equal(newer))
	assert.Equal(t, "2500.00", inA1[0].Amount.StringFixed(2))
	assert.Equal(t, "Income", inA1[0].Notes)
	assert.Equal(t, "", inA1[1].Notes)
	assert.Equal(t, "-4.25", inA1[1].Amount.StringFixed(2))

	none, err := s.ListTransactions(ctx, "u2", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testCategories(t *testing.T, s store.Store) {
	ctx := context.Background()
	c, err := s.CreateCategory(ctx, model.Category{OwnerID: "u1", Name: "Groceries", Budgeted: dec("400")})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	got, err := s.ListCategories(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "400.00", got[0].Budgeted.StringFixed(2))
}

func testConnections(t *testing.T, s store.Store) {
	ctx := context.Background()
	c, err := s.CreateConnection(ctx, model.Connection{OwnerID: "u1", EncryptedAccessURL: "aa:bb:cc", Name: "My Bank", IsActive: true})
	require.NoError(t, err)
	assert.Nil(t, c.LastSync)

	got, err := s.GetConnection(ctx, c.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc", got.EncryptedAccessURL)
	assert.True(t, got.IsActive)

	_, err = s.GetConnection(ctx, c.ID, "u2")
	assert.ErrorIs(t, err, store.ErrNotFound)

	synced := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	updated, err := s.UpdateConnection(ctx, c.ID, "u1", store.ConnectionPatch{LastSync: &synced})
	require.NoError(t, err)
	require.NotNil(t, updated.LastSync)
	assert.True(t, updated.LastSync.Equal(synced))

	list, err := s.ListConnections(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, s.DeleteConnection(ctx, c.ID, "u2"), store.ErrNotFound)
	require.NoError(t, s.DeleteConnection(ctx, c.ID, "u1"))
	_, err = s.GetConnection(ctx, c.ID, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testImportLogs(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.AppendImportLog(ctx, model.ImportLog{OwnerID: "u1", Source: model.SourceYNABJSON, FileName: "a.json", AccountsImported: 1, Status: model.ImportSuccess, CreatedAt: base})
	require.NoError(t, err)
	_, err = s.AppendImportLog(ctx, model.ImportLog{OwnerID: "u1", Source: model.SourceSimpleFIN, Status: model.ImportFailed, ErrorMessage: "boom", CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	_, err = s.AppendImportLog(ctx, model.ImportLog{OwnerID: "u2", Source: model.SourceCSV, Status: model.ImportSuccess, CreatedAt: base})
	require.NoError(t, err)

	logs, err := s.ListImportLogs(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.SourceSimpleFIN, logs[0].Source, "newest first")
	assert.Equal(t, "boom", logs[0].ErrorMessage)
	assert.Equal(t, "", logs[0].FileName)
	assert.Equal(t, "a.json", logs[1].FileName)
	assert.Equal(t, 1, logs[1].AccountsImported)
}

func testTxCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	err := s.InTx(ctx, func(tx store.Store) error {
		_, err := tx.CreateAccount(ctx, model.Account{OwnerID: "u1", Name: "In Tx", Type: model.AccountTypeOther})
		return err
	})
	require.NoError(t, err)

	got, err := s.ListAccounts(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx store.Store) error {
		a, err := tx.CreateAccount(ctx, model.Account{OwnerID: "u1", Name: "Doomed", Type: model.AccountTypeOther})
		if err != nil {
			return err
		}
		if _, err := tx.CreateTransaction(ctx, model.Transaction{OwnerID: "u1", AccountID: a.ID, Date: time.Now(), Payee: "x", Amount: dec("1")}); err != nil {
			return err
		}
		// Writes are visible inside the transaction.
		inside, err := tx.ListTransactions(ctx, "u1", a.ID)
		if err != nil {
			return err
		}
		if len(inside) != 1 {
			return errors.New("write not visible inside transaction")
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	accts, err := s.ListAccounts(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, accts)
	txns, err := s.ListTransactions(ctx, "u1", "")
	require.NoError(t, err)
	assert.Empty(t, txns)
}
