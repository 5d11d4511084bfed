// Package memory is an in-process Store used for development and tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cleared-dev/envelopes/internal/id"
	"github.com/cleared-dev/envelopes/internal/model"
	"github.com/cleared-dev/envelopes/internal/store"
)

type data struct {
	accounts     []model.Account
	transactions []model.Transaction
	categories   []model.Category
	connections  []model.Connection
	logs         []model.ImportLog
}

// undoFunc reverses one write. It runs with mu held.
type undoFunc func(d *data)

// Store keeps all collections in slices guarded by a mutex. Transactions
// are serialized and roll back by reversing their own writes, so writes
// made outside the transaction survive a rollback.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	d    data
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{now: time.Now}
}

func (s *Store) ListAccounts(_ context.Context, ownerID string) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Account
	for _, a := range s.d.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) CreateAccount(_ context.Context, a model.Account) (model.Account, error) {
	a, _, err := s.createAccount(a)
	return a, err
}

func (s *Store) createAccount(a model.Account) (model.Account, undoFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = id.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	a.UpdatedAt = a.CreatedAt
	s.d.accounts = append(s.d.accounts, a)
	return a, func(d *data) {
		d.accounts = slices.DeleteFunc(d.accounts, func(x model.Account) bool { return x.ID == a.ID })
	}, nil
}

func (s *Store) UpdateAccount(_ context.Context, accountID, ownerID string, patch store.AccountPatch) (model.Account, error) {
	a, _, err := s.updateAccount(accountID, ownerID, patch)
	return a, err
}

func (s *Store) updateAccount(accountID, ownerID string, patch store.AccountPatch) (model.Account, undoFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.d.accounts {
		if a.ID != accountID || a.OwnerID != ownerID {
			continue
		}
		prev := a
		if patch.Name != nil {
			a.Name = *patch.Name
		}
		if patch.Type != nil {
			a.Type = *patch.Type
		}
		if patch.Balance != nil {
			a.Balance = *patch.Balance
		}
		a.UpdatedAt = s.now().UTC()
		s.d.accounts[i] = a
		return a, func(d *data) {
			if j := slices.IndexFunc(d.accounts, func(x model.Account) bool { return x.ID == prev.ID }); j >= 0 {
				d.accounts[j] = prev
			}
		}, nil
	}
	return model.Account{}, nil, store.ErrNotFound
}

func (s *Store) ListTransactions(_ context.Context, ownerID, accountID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Transaction
	for _, t := range s.d.transactions {
		if t.OwnerID != ownerID || accountID != "" && t.AccountID != accountID {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *Store) CreateTransaction(_ context.Context, t model.Transaction) (model.Transaction, error) {
	t, _, err := s.createTransaction(t)
	return t, err
}

func (s *Store) createTransaction(t model.Transaction) (model.Transaction, undoFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = id.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}
	s.d.transactions = append(s.d.transactions, t)
	return t, func(d *data) {
		d.transactions = slices.DeleteFunc(d.transactions, func(x model.Transaction) bool { return x.ID == t.ID })
	}, nil
}

func (s *Store) ListCategories(_ context.Context, ownerID string) ([]model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Category
	for _, c := range s.d.categories {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c model.Category) (model.Category, error) {
	c, _, err := s.createCategory(c)
	return c, err
}

func (s *Store) createCategory(c model.Category) (model.Category, undoFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = id.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	s.d.categories = append(s.d.categories, c)
	return c, func(d *data) {
		d.categories = slices.DeleteFunc(d.categories, func(x model.Category) bool { return x.ID == c.ID })
	}, nil
}

func (s *Store) CreateConnection(_ context.Context, c model.Connection) (model.Connection, error) {
	c, _, err := s.createConnection(c)
	return c, err
}

func (s *Store) createConnection(c model.Connection) (model.Connection, undoFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = id.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	s.d.connections = append(s.d.connections, c)
	return c, func(d *data) {
		d.connections = slices.DeleteFunc(d.connections, func(x model.Connection) bool { return x.ID == c.ID })
	}, nil
}

func (s *Store) GetConnection(_ context.Context, connID, ownerID string) (model.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.d.connections {
		if c.ID == connID && c.OwnerID == ownerID {
			return c, nil
		}
	}
	return model.Connection{}, store.ErrNotFound
}

func (s *Store) ListConnections(_ context.Context, ownerID string) ([]model.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Connection
	for _, c := range s.d.connections {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) UpdateConnection(_ context.Context, connID, ownerID string, patch store.ConnectionPatch) (model.Connection, error) {
	c, _, err := s.updateConnection(connID, ownerID, patch)
	return c, err
}

func (s *Store) updateConnection(connID, ownerID string, patch store.ConnectionPatch) (model.Connection, undoFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.d.connections {
		if c.ID != connID || c.OwnerID != ownerID {
			continue
		}
		prev := c
		if patch.Name != nil {
			c.Name = *patch.Name
		}
		if patch.LastSync != nil {
			ts := *patch.LastSync
			c.LastSync = &ts
		}
		if patch.IsActive != nil {
			c.IsActive = *patch.IsActive
		}
		s.d.connections[i] = c
		return c, func(d *data) {
			if j := slices.IndexFunc(d.connections, func(x model.Connection) bool { return x.ID == prev.ID }); j >= 0 {
				d.connections[j] = prev
			}
		}, nil
	}
	return model.Connection{}, nil, store.ErrNotFound
}

func (s *Store) DeleteConnection(_ context.Context, connID, ownerID string) error {
	_, err := s.deleteConnection(connID, ownerID)
	return err
}

func (s *Store) deleteConnection(connID, ownerID string) (undoFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.d.connections {
		if c.ID == connID && c.OwnerID == ownerID {
			s.d.connections = slices.Delete(s.d.connections, i, i+1)
			return func(d *data) { d.connections = append(d.connections, c) }, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) AppendImportLog(_ context.Context, entry model.ImportLog) (model.ImportLog, error) {
	entry, _, err := s.appendImportLog(entry)
	return entry, err
}

func (s *Store) appendImportLog(entry model.ImportLog) (model.ImportLog, undoFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	s.d.logs = append(s.d.logs, entry)
	return entry, func(d *data) {
		d.logs = slices.DeleteFunc(d.logs, func(x model.ImportLog) bool { return x.ID == entry.ID })
	}, nil
}

func (s *Store) ListImportLogs(_ context.Context, ownerID string) ([]model.ImportLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ImportLog
	// Walk backwards so equal timestamps keep newest-appended first.
	for i := len(s.d.logs) - 1; i >= 0; i-- {
		if s.d.logs[i].OwnerID == ownerID {
			out = append(out, s.d.logs[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// InTx serializes with other transactions. When fn fails, the writes fn
// made through tx are reversed newest first; concurrent writes made
// outside the transaction are kept.
func (s *Store) InTx(_ context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	t := &tx{Store: s}
	if err := fn(t); err != nil {
		s.mu.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i](&s.d)
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
