// Package ledger is the append-only history of import and sync runs.
// Entries are never updated or deleted.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/envelopes/internal/events"
	"github.com/cleared-dev/envelopes/internal/model"
)

// Store is the persistence the ledger needs.
type Store interface {
	AppendImportLog(ctx context.Context, entry model.ImportLog) (model.ImportLog, error)
	ListImportLogs(ctx context.Context, ownerID string) ([]model.ImportLog, error)
}

// DefaultPublishTimeout bounds how long Record waits on the event publisher.
const DefaultPublishTimeout = 5 * time.Second

// Ledger records run outcomes and announces them.
type Ledger struct {
	store          Store
	publisher      events.Publisher
	log            zerolog.Logger
	publishTimeout time.Duration
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublishTimeout overrides DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.publishTimeout = d }
}

// New creates a Ledger. A nil publisher disables events.
func New(store Store, publisher events.Publisher, log zerolog.Logger, opts ...Option) *Ledger {
	if publisher == nil {
		publisher = events.Nop{}
	}
	l := &Ledger{store: store, publisher: publisher, log: log, publishTimeout: DefaultPublishTimeout}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends entry and publishes an import.completed event. The
// publish is bounded by the publish timeout; a failure is logged and does
// not fail the call.
func (l *Ledger) Record(ctx context.Context, entry model.ImportLog) (model.ImportLog, error) {
	stored, err := l.store.AppendImportLog(ctx, entry)
	if err != nil {
		return model.ImportLog{}, fmt.Errorf("appending import log: %w", err)
	}

	l.log.Info().
		Str("log_id", stored.ID).
		Str("owner_id", stored.OwnerID).
		Str("source", string(stored.Source)).
		Str("status", string(stored.Status)).
		Int("accounts", stored.AccountsImported).
		Int("transactions", stored.TransactionsImported).
		Int("categories", stored.CategoriesImported).
		Msg("import recorded")

	pubCtx, cancel := context.WithTimeout(ctx, l.publishTimeout)
	defer cancel()
	if err := l.publisher.PublishImportCompleted(pubCtx, stored); err != nil {
		l.log.Warn().Err(err).Str("log_id", stored.ID).Msg("publishing import event failed")
	}
	return stored, nil
}

// List returns the owner's entries, newest first.
func (l *Ledger) List(ctx context.Context, ownerID string) ([]model.ImportLog, error) {
	entries, err := l.store.ListImportLogs(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing import logs: %w", err)
	}
	return entries, nil
}
