package memory

import (
	"context"

	"github.com/cleared-dev/envelopes/internal/model"
	"github.com/cleared-dev/envelopes/internal/store"
)

// tx is the Store handed to an InTx callback. Reads go straight to the
// store; every write records how to reverse itself.
type tx struct {
	*Store
	undo []undoFunc
}

func (t *tx) track(u undoFunc, err error) error {
	if err == nil && u != nil {
		t.undo = append(t.undo, u)
	}
	return err
}

func (t *tx) CreateAccount(_ context.Context, a model.Account) (model.Account, error) {
	a, u, err := t.createAccount(a)
	return a, t.track(u, err)
}

func (t *tx) UpdateAccount(_ context.Context, accountID, ownerID string, patch store.AccountPatch) (model.Account, error) {
	a, u, err := t.updateAccount(accountID, ownerID, patch)
	return a, t.track(u, err)
}

func (t *tx) CreateTransaction(_ context.Context, txn model.Transaction) (model.Transaction, error) {
	txn, u, err := t.createTransaction(txn)
	return txn, t.track(u, err)
}

func (t *tx) CreateCategory(_ context.Context, c model.Category) (model.Category, error) {
	c, u, err := t.createCategory(c)
	return c, t.track(u, err)
}

func (t *tx) CreateConnection(_ context.Context, c model.Connection) (model.Connection, error) {
	c, u, err := t.createConnection(c)
	return c, t.track(u, err)
}

func (t *tx) UpdateConnection(_ context.Context, connID, ownerID string, patch store.ConnectionPatch) (model.Connection, error) {
	c, u, err := t.updateConnection(connID, ownerID, patch)
	return c, t.track(u, err)
}

func (t *tx) DeleteConnection(_ context.Context, connID, ownerID string) error {
	u, err := t.deleteConnection(connID, ownerID)
	return t.track(u, err)
}

func (t *tx) AppendImportLog(_ context.Context, entry model.ImportLog) (model.ImportLog, error) {
	entry, u, err := t.appendImportLog(entry)
	return entry, t.track(u, err)
}

// InTx on a transaction joins it.
func (t *tx) InTx(_ context.Context, fn func(store.Store) error) error {
	return fn(t)
}
