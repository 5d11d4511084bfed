package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/envelopes/internal/ledger"
	"github.com/cleared-dev/envelopes/internal/metrics"
	"github.com/cleared-dev/envelopes/internal/model"
	"github.com/cleared-dev/envelopes/internal/simplefin"
	"github.com/cleared-dev/envelopes/internal/store"
)

// ErrSimpleFINDisabled is returned by connection operations when the
// service has no aggregator client.
var ErrSimpleFINDisabled = errors.New("simplefin is not configured")

// DefaultLookback is how far back a sync asks the aggregator for
// transactions.
const DefaultLookback = 60 * 24 * time.Hour

// DefaultConnectionName names connections created without one.
const DefaultConnectionName = "My Bank"

// defaultFileNames label ledger entries for uploads that arrive unnamed.
var defaultFileNames = map[model.ImportSource]string{
	model.SourceYNABJSON:     "ynab-import.json",
	model.SourceYNABCSV:      "ynab-import.csv",
	model.SourceActualBudget: "actual-budget-import.json",
	model.SourceCSV:          "bank-import.csv",
}

// Aggregator is the SimpleFIN surface the service uses.
type Aggregator interface {
	ClaimSetupToken(ctx context.Context, setupToken string) (string, error)
	FetchAccounts(ctx context.Context, encryptedAccessURL string, opts simplefin.FetchOptions) (*simplefin.AccountSet, error)
}

// Result is the outcome of a successful run.
type Result struct {
	LogID                string `json:"logId"`
	AccountsImported     int    `json:"accountsImported"`
	TransactionsImported int    `json:"transactionsImported"`
	CategoriesImported   int    `json:"categoriesImported"`
	Duplicates           int    `json:"duplicates"`
	Dropped              int    `json:"dropped"`
}

// Service runs imports and syncs. Each run executes in one store
// transaction and writes exactly one ledger entry, success or failure.
// Concurrent syncs of the same connection are not serialized here.
type Service struct {
	store      store.Store
	ledger     *ledger.Ledger
	registry   *Registry
	reconciler *Reconciler
	aggregator Aggregator
	metrics    *metrics.Recorder
	policies   map[model.ImportSource]Policy
	lookback   time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithAggregator enables SimpleFIN connections and syncs.
func WithAggregator(a Aggregator) ServiceOption {
	return func(s *Service) { s.aggregator = a }
}

// WithMetrics records run metrics.
func WithMetrics(m *metrics.Recorder) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// WithRegistry replaces the parser registry.
func WithRegistry(r *Registry) ServiceOption {
	return func(s *Service) { s.registry = r }
}

// WithPolicy overrides the policy for one source.
func WithPolicy(source model.ImportSource, p Policy) ServiceOption {
	return func(s *Service) { s.policies[source] = p }
}

// WithLookback sets the sync window.
func WithLookback(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.lookback = d
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service over st, recording runs in l.
func NewService(st store.Store, l *ledger.Ledger, opts ...ServiceOption) *Service {
	s := &Service{
		store:    st,
		ledger:   l,
		registry: DefaultRegistry(),
		policies: DefaultPolicies(),
		lookback: DefaultLookback,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.reconciler = NewReconciler(s.log)
	return s
}

// Policy returns the policy applied to source.
func (s *Service) Policy(source model.ImportSource) Policy {
	return s.policies[source]
}

type runSpec struct {
	ownerID  string
	source   model.ImportSource
	fileName string
	// load produces the batch. It runs outside the store transaction.
	load func(ctx context.Context) (*model.Batch, error)
	// finish runs inside the transaction after the batch is applied.
	finish func(ctx context.Context, tx store.Store) error
}

func (s *Service) run(ctx context.Context, spec runSpec) (Result, error) {
	start := s.now()
	log := s.log.With().Str("owner_id", spec.ownerID).Str("source", string(spec.source)).Logger()

	var sum Summary
	err := func() error {
		batch, err := spec.load(ctx)
		if err != nil {
			return err
		}
		return s.store.InTx(ctx, func(tx store.Store) error {
			var err error
			if sum, err = s.reconciler.Apply(ctx, tx, spec.ownerID, batch, s.Policy(spec.source)); err != nil {
				return err
			}
			if spec.finish != nil {
				return spec.finish(ctx, tx)
			}
			return nil
		})
	}()

	entry := model.ImportLog{
		OwnerID:  spec.ownerID,
		Source:   spec.source,
		FileName: spec.fileName,
		Status:   model.ImportSuccess,
	}
	if err != nil {
		sum = Summary{}
		entry.Status = model.ImportFailed
		entry.ErrorMessage = err.Error()
		log.Error().Err(err).Msg("import failed")
	} else {
		entry.AccountsImported = sum.AccountsImported
		entry.TransactionsImported = sum.TransactionsImported
		entry.CategoriesImported = sum.CategoriesImported
	}

	stored, lerr := s.ledger.Record(ctx, entry)
	s.metrics.ObserveRun(metrics.Run{
		Source:       string(spec.source),
		Status:       string(entry.Status),
		Accounts:     entry.AccountsImported,
		Transactions: entry.TransactionsImported,
		Categories:   entry.CategoriesImported,
		Elapsed:      s.now().Sub(start),
	})

	if err != nil {
		if lerr != nil {
			log.Error().Err(lerr).Msg("recording failed import")
		}
		return Result{}, err
	}
	if lerr != nil {
		return Result{}, fmt.Errorf("recording import: %w", lerr)
	}
	return Result{
		LogID:                stored.ID,
		AccountsImported:     sum.AccountsImported,
		TransactionsImported: sum.TransactionsImported,
		CategoriesImported:   sum.CategoriesImported,
		Duplicates:           sum.Duplicates,
		Dropped:              sum.Dropped,
	}, nil
}

// accountScoped is implemented by parsers that import into one named
// account.
type accountScoped interface {
	RequiresAccount() bool
}

// Import parses r with the parser registered for source and applies it.
func (s *Service) Import(ctx context.Context, ownerID string, source model.ImportSource, r io.Reader, opts Options) (Result, error) {
	p := s.registry.Get(source)
	if p == nil {
		return Result{}, fmt.Errorf("no parser for source %q", source)
	}
	if ap, ok := p.(accountScoped); ok && ap.RequiresAccount() && opts.AccountName == "" {
		return Result{}, fmt.Errorf("%w: account name", ErrMissingInput)
	}
	if opts.FileName == "" {
		opts.FileName = defaultFileNames[source]
	}
	return s.run(ctx, runSpec{
		ownerID:  ownerID,
		source:   source,
		fileName: opts.FileName,
		load: func(context.Context) (*model.Batch, error) {
			batch, err := p.Parse(r, opts)
			if err != nil {
				if errors.Is(err, ErrMissingInput) {
					return nil, err
				}
				return nil, &ParseError{Source: source, Err: err}
			}
			return batch, nil
		},
	})
}

// ImportYNABJSON imports a YNAB budget export.
func (s *Service) ImportYNABJSON(ctx context.Context, ownerID string, r io.Reader, fileName string) (Result, error) {
	return s.Import(ctx, ownerID, model.SourceYNABJSON, r, Options{FileName: fileName})
}

// ImportYNABCSV imports a YNAB register CSV into the named account,
// creating it as checking if the owner has no account by that name.
func (s *Service) ImportYNABCSV(ctx context.Context, ownerID string, r io.Reader, accountName, fileName string) (Result, error) {
	return s.Import(ctx, ownerID, model.SourceYNABCSV, r, Options{FileName: fileName, AccountName: accountName})
}

// ImportActualBudget imports an Actual Budget export.
func (s *Service) ImportActualBudget(ctx context.Context, ownerID string, r io.Reader, fileName string) (Result, error) {
	return s.Import(ctx, ownerID, model.SourceActualBudget, r, Options{FileName: fileName})
}

// ImportBankCSV imports a bank CSV export into the named account.
func (s *Service) ImportBankCSV(ctx context.Context, ownerID string, r io.Reader, accountName, fileName string) (Result, error) {
	return s.Import(ctx, ownerID, model.SourceCSV, r, Options{FileName: fileName, AccountName: accountName})
}

// Connect claims a setup token and stores the encrypted access URL as a
// new active connection.
func (s *Service) Connect(ctx context.Context, ownerID, setupToken, name string) (model.Connection, error) {
	if s.aggregator == nil {
		return model.Connection{}, ErrSimpleFINDisabled
	}
	if setupToken == "" {
		return model.Connection{}, fmt.Errorf("%w: setup token", ErrMissingInput)
	}
	if name == "" {
		name = DefaultConnectionName
	}

	sealed, err := s.aggregator.ClaimSetupToken(ctx, setupToken)
	if err != nil {
		return model.Connection{}, err
	}

	conn, err := s.store.CreateConnection(ctx, model.Connection{
		OwnerID:            ownerID,
		EncryptedAccessURL: sealed,
		Name:               name,
		IsActive:           true,
	})
	if err != nil {
		return model.Connection{}, fmt.Errorf("saving connection: %w", err)
	}
	s.log.Info().Str("owner_id", ownerID).Str("connection_id", conn.ID).Msg("simplefin connection created")
	return conn, nil
}

// Connections lists the owner's connections without credentials.
func (s *Service) Connections(ctx context.Context, ownerID string) ([]model.ConnectionView, error) {
	conns, err := s.store.ListConnections(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	views := make([]model.ConnectionView, len(conns))
	for i, c := range conns {
		views[i] = c.View()
	}
	return views, nil
}

// RemoveConnection deletes one of the owner's connections.
func (s *Service) RemoveConnection(ctx context.Context, ownerID, connID string) error {
	if err := s.store.DeleteConnection(ctx, connID, ownerID); err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}
	return nil
}

// Sync fetches recent activity for a connection and reconciles it:
// accounts match on name and type with balances refreshed, and
// transactions already present are skipped. An unknown connection
// returns store.ErrNotFound without a ledger entry.
func (s *Service) Sync(ctx context.Context, ownerID, connID string) (Result, error) {
	conn, connErr := s.store.GetConnection(ctx, connID, ownerID)
	if errors.Is(connErr, store.ErrNotFound) {
		return Result{}, connErr
	}

	return s.run(ctx, runSpec{
		ownerID: ownerID,
		source:  model.SourceSimpleFIN,
		load: func(ctx context.Context) (*model.Batch, error) {
			if connErr != nil {
				return nil, fmt.Errorf("loading connection: %w", connErr)
			}
			if s.aggregator == nil {
				return nil, ErrSimpleFINDisabled
			}
			set, err := s.aggregator.FetchAccounts(ctx, conn.EncryptedAccessURL, simplefin.FetchOptions{
				StartDate: s.now().Add(-s.lookback),
			})
			if err != nil {
				return nil, err
			}
			return set.ToBatch()
		},
		finish: func(ctx context.Context, tx store.Store) error {
			synced := s.now().UTC()
			if _, err := tx.UpdateConnection(ctx, conn.ID, ownerID, store.ConnectionPatch{LastSync: &synced}); err != nil {
				return fmt.Errorf("updating last sync: %w", err)
			}
			return nil
		},
	})
}

// Logs returns the owner's ledger, newest first.
func (s *Service) Logs(ctx context.Context, ownerID string) ([]model.ImportLog, error) {
	return s.ledger.List(ctx, ownerID)
}
