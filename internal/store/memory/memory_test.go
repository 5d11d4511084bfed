package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/envelopes/internal/model"
	"github.com/cleared-dev/envelopes/internal/store"
	"github.com/cleared-dev/envelopes/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestInTx_RollbackKeepsOutsideWrites(t *testing.T) {
	ctx := context.Background()
	s := New()

	kept, err := s.CreateAccount(ctx, model.Account{OwnerID: "alice", Name: "Checking", Type: model.AccountTypeChecking, Balance: decimal.NewFromInt(10)})
	require.NoError(t, err)

	errRun := errors.New("run failed")
	err = s.InTx(ctx, func(tx store.Store) error {
		_, err := tx.CreateAccount(ctx, model.Account{OwnerID: "alice", Name: "Savings", Type: model.AccountTypeSavings})
		require.NoError(t, err)
		bal := decimal.NewFromInt(99)
		_, err = tx.UpdateAccount(ctx, kept.ID, "alice", store.AccountPatch{Balance: &bal})
		require.NoError(t, err)

		// Another request's writes land while this run is open.
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, err := s.AppendImportLog(ctx, model.ImportLog{OwnerID: "bob", Source: model.SourceCSV, Status: model.ImportSuccess})
			assert.NoError(t, err)
			_, err = s.CreateConnection(ctx, model.Connection{OwnerID: "bob", Name: "Bank", IsActive: true})
			assert.NoError(t, err)
		}()
		<-done
		return errRun
	})
	require.ErrorIs(t, err, errRun)

	logs, err := s.ListImportLogs(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, logs, 1, "ledger entry written outside the transaction survives rollback")

	conns, err := s.ListConnections(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, conns, 1)

	accts, err := s.ListAccounts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, accts, 1, "account created inside the transaction is removed")
	assert.Equal(t, kept.ID, accts[0].ID)
	assert.True(t, decimal.NewFromInt(10).Equal(accts[0].Balance), "balance update is reverted")
}

func TestInTx_RollbackRestoresDeletedConnection(t *testing.T) {
	ctx := context.Background()
	s := New()
	conn, err := s.CreateConnection(ctx, model.Connection{OwnerID: "alice", Name: "Bank", IsActive: true})
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx store.Store) error {
		require.NoError(t, tx.DeleteConnection(ctx, conn.ID, "alice"))
		return errors.New("abort")
	})
	require.Error(t, err)

	got, err := s.GetConnection(ctx, conn.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Bank", got.Name)
}

func TestInTx_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.InTx(ctx, func(tx store.Store) error {
		require.NoError(t, tx.InTx(ctx, func(inner store.Store) error {
			_, err := inner.CreateCategory(ctx, model.Category{OwnerID: "alice", Name: "Groceries"})
			return err
		}))
		return errors.New("abort")
	})
	require.Error(t, err)

	cats, err := s.ListCategories(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, cats)
}
