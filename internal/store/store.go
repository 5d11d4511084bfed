// Package store defines the persistent store consumed by the import core.
// Every operation is scoped by owner identity; backends live in
// subpackages and are selected at bootstrap.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/envelopes/internal/model"
)

// ErrNotFound is returned when an entity does not exist for the given owner.
var ErrNotFound = errors.New("store: not found")

// AccountPatch lists the account fields to change; nil fields are left alone.
type AccountPatch struct {
	Name    *string
	Type    *model.AccountType
	Balance *decimal.Decimal
}

// ConnectionPatch lists the connection fields to change; nil fields are left alone.
type ConnectionPatch struct {
	Name     *string
	LastSync *time.Time
	IsActive *bool
}

// Store is the persistence contract. Create operations assign ID and
// CreatedAt when they are unset and return the stored entity.
type Store interface {
	ListAccounts(ctx context.Context, ownerID string) ([]model.Account, error)
	CreateAccount(ctx context.Context, a model.Account) (model.Account, error)
	UpdateAccount(ctx context.Context, id, ownerID string, patch AccountPatch) (model.Account, error)

	// ListTransactions returns the owner's transactions, newest first.
	// An empty accountID lists all accounts.
	ListTransactions(ctx context.Context, ownerID, accountID string) ([]model.Transaction, error)
	CreateTransaction(ctx context.Context, t model.Transaction) (model.Transaction, error)

	ListCategories(ctx context.Context, ownerID string) ([]model.Category, error)
	CreateCategory(ctx context.Context, c model.Category) (model.Category, error)

	CreateConnection(ctx context.Context, c model.Connection) (model.Connection, error)
	GetConnection(ctx context.Context, id, ownerID string) (model.Connection, error)
	ListConnections(ctx context.Context, ownerID string) ([]model.Connection, error)
	UpdateConnection(ctx context.Context, id, ownerID string, patch ConnectionPatch) (model.Connection, error)
	DeleteConnection(ctx context.Context, id, ownerID string) error

	AppendImportLog(ctx context.Context, entry model.ImportLog) (model.ImportLog, error)
	// ListImportLogs returns the owner's ledger, newest first.
	ListImportLogs(ctx context.Context, ownerID string) ([]model.ImportLog, error)

	// InTx runs fn against a Store whose writes commit together when fn
	// returns nil and are discarded otherwise.
	InTx(ctx context.Context, fn func(tx Store) error) error

	Ping(ctx context.Context) error
	Close() error
}
