// Package sqlite is the single-file Store used by the CLI when no database
// server is configured. Timestamps are stored as unix microseconds and
// money as fixed two-decimal text.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/cleared-dev/envelopes/internal/id"
	"github.com/cleared-dev/envelopes/internal/model"
	"github.com/cleared-dev/envelopes/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store implements store.Store on a SQLite file.
type Store struct {
	db   *sql.DB
	q    querier
	inTx bool
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

func dsn(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := Migrate(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Store{db: db, q: db, now: time.Now}, nil
}

func withMigrator(path string, fn func(m *migrate.Migrate) error) error {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("sqlite: migration driver: %w", err)
	}
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite: open migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("sqlite: create migrator: %w", err)
	}
	defer m.Close()
	return fn(m)
}

// Migrate applies all pending migrations to the database at path.
func Migrate(path string) error {
	return withMigrator(path, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("sqlite: run migrations up: %w", err)
		}
		return nil
	})
}

// MigrateDown rolls back all migrations on the database at path.
func MigrateDown(path string) error {
	return withMigrator(path, func(m *migrate.Migrate) error {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("sqlite: run migrations down: %w", err)
		}
		return nil
	})
}

func micros(t time.Time) int64 { return t.UTC().UnixMicro() }

func fromMicros(v int64) time.Time { return time.UnixMicro(v).UTC() }

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}

type scanner interface {
	Scan(dest ...any) error
}

const accountColumns = `id, user_id, name, type, balance, created_at, updated_at`

func scanAccount(row scanner) (model.Account, error) {
	var (
		a                  model.Account
		typ, balance       string
		created, updatedAt int64
	)
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &typ, &balance, &created, &updatedAt); err != nil {
		return model.Account{}, err
	}
	a.Type = model.AccountType(typ)
	a.CreatedAt = fromMicros(created)
	a.UpdatedAt = fromMicros(updatedAt)
	var err error
	a.Balance, err = parseMoney(balance)
	return a, err
}

func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]model.Account, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY created_at, rowid`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CreateAccount(ctx context.Context, a model.Account) (model.Account, error) {
	if a.ID == "" {
		a.ID = id.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	a.UpdatedAt = a.CreatedAt

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, name, type, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Name, string(a.Type), model.Fixed2(a.Balance), micros(a.CreatedAt), micros(a.UpdatedAt),
	)
	if err != nil {
		return model.Account{}, fmt.Errorf("inserting account: %w", err)
	}
	return a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, accountID, ownerID string, patch store.AccountPatch) (model.Account, error) {
	var typ, balance *string
	if patch.Type != nil {
		t := string(*patch.Type)
		typ = &t
	}
	if patch.Balance != nil {
		b := model.Fixed2(*patch.Balance)
		balance = &b
	}

	a, err := scanAccount(s.q.QueryRowContext(ctx, `
		UPDATE accounts SET
			name = COALESCE(?, name),
			type = COALESCE(?, type),
			balance = COALESCE(?, balance),
			updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING `+accountColumns,
		patch.Name, typ, balance, micros(s.now()), accountID, ownerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, store.ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("updating account: %w", err)
	}
	return a, nil
}

func (s *Store) ListTransactions(ctx context.Context, ownerID, accountID string) ([]model.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, account_id, category_id, date, payee, amount, notes, created_at
		FROM transactions
		WHERE user_id = ? AND (? = '' OR account_id = ?)
		ORDER BY date DESC, created_at DESC, rowid DESC`, ownerID, accountID, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var (
			t               model.Transaction
			categoryID      sql.NullString
			notes           sql.NullString
			amount          string
			date, createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.AccountID, &categoryID, &date, &t.Payee, &amount, &notes, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		if t.Amount, err = parseMoney(amount); err != nil {
			return nil, err
		}
		t.CategoryID = categoryID.String
		t.Notes = notes.String
		t.Date = fromMicros(date)
		t.CreatedAt = fromMicros(createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) CreateTransaction(ctx context.Context, t model.Transaction) (model.Transaction, error) {
	if t.ID == "" {
		t.ID = id.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, account_id, category_id, date, payee, amount, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.AccountID, nullString(t.CategoryID), micros(t.Date), t.Payee, model.Fixed2(t.Amount),
		nullString(t.Notes), micros(t.CreatedAt),
	)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("inserting transaction: %w", err)
	}
	return t, nil
}

func (s *Store) ListCategories(ctx context.Context, ownerID string) ([]model.Category, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, name, budgeted, sort_order, created_at
		FROM categories WHERE user_id = ? ORDER BY sort_order, created_at, rowid`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		var (
			c         model.Category
			budgeted  string
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &budgeted, &c.SortOrder, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		if c.Budgeted, err = parseMoney(budgeted); err != nil {
			return nil, err
		}
		c.CreatedAt = fromMicros(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, c model.Category) (model.Category, error) {
	if c.ID == "" {
		c.ID = id.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, budgeted, sort_order, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, model.Fixed2(c.Budgeted), c.SortOrder, micros(c.CreatedAt),
	)
	if err != nil {
		return model.Category{}, fmt.Errorf("inserting category: %w", err)
	}
	return c, nil
}

const connectionColumns = `id, user_id, access_url, connection_name, last_sync, is_active, created_at`

func scanConnection(row scanner) (model.Connection, error) {
	var (
		c         model.Connection
		lastSync  sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&c.ID, &c.OwnerID, &c.EncryptedAccessURL, &c.Name, &lastSync, &c.IsActive, &createdAt); err != nil {
		return model.Connection{}, err
	}
	if lastSync.Valid {
		ts := fromMicros(lastSync.Int64)
		c.LastSync = &ts
	}
	c.CreatedAt = fromMicros(createdAt)
	return c, nil
}

func (s *Store) CreateConnection(ctx context.Context, c model.Connection) (model.Connection, error) {
	if c.ID == "" {
		c.ID = id.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO simplefin_connections (id, user_id, access_url, connection_name, last_sync, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.EncryptedAccessURL, c.Name, nullMicros(c.LastSync), c.IsActive, micros(c.CreatedAt),
	)
	if err != nil {
		return model.Connection{}, fmt.Errorf("inserting connection: %w", err)
	}
	return c, nil
}

func (s *Store) GetConnection(ctx context.Context, connID, ownerID string) (model.Connection, error) {
	c, err := scanConnection(s.q.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM simplefin_connections WHERE id = ? AND user_id = ?`, connID, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Connection{}, store.ErrNotFound
	}
	if err != nil {
		return model.Connection{}, fmt.Errorf("getting connection: %w", err)
	}
	return c, nil
}

func (s *Store) ListConnections(ctx context.Context, ownerID string) ([]model.Connection, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+connectionColumns+` FROM simplefin_connections WHERE user_id = ? ORDER BY created_at, rowid`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	defer rows.Close()

	var out []model.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning connection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateConnection(ctx context.Context, connID, ownerID string, patch store.ConnectionPatch) (model.Connection, error) {
	c, err := scanConnection(s.q.QueryRowContext(ctx, `
		UPDATE simplefin_connections SET
			connection_name = COALESCE(?, connection_name),
			last_sync = COALESCE(?, last_sync),
			is_active = COALESCE(?, is_active)
		WHERE id = ? AND user_id = ?
		RETURNING `+connectionColumns,
		patch.Name, nullMicros(patch.LastSync), patch.IsActive, connID, ownerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Connection{}, store.ErrNotFound
	}
	if err != nil {
		return model.Connection{}, fmt.Errorf("updating connection: %w", err)
	}
	return c, nil
}

func (s *Store) DeleteConnection(ctx context.Context, connID, ownerID string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM simplefin_connections WHERE id = ? AND user_id = ?`, connID, ownerID)
	if err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AppendImportLog(ctx context.Context, e model.ImportLog) (model.ImportLog, error) {
	if e.ID == "" {
		e.ID = id.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO import_logs (id, user_id, source, file_name, accounts_imported, transactions_imported,
			categories_imported, status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, string(e.Source), nullString(e.FileName), e.AccountsImported, e.TransactionsImported,
		e.CategoriesImported, string(e.Status), nullString(e.ErrorMessage), micros(e.CreatedAt),
	)
	if err != nil {
		return model.ImportLog{}, fmt.Errorf("inserting import log: %w", err)
	}
	return e, nil
}

func (s *Store) ListImportLogs(ctx context.Context, ownerID string) ([]model.ImportLog, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, source, file_name, accounts_imported, transactions_imported,
			categories_imported, status, error_message, created_at
		FROM import_logs WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing import logs: %w", err)
	}
	defer rows.Close()

	var out []model.ImportLog
	for rows.Next() {
		var (
			e                model.ImportLog
			source, status   string
			fileName, errMsg sql.NullString
			createdAt        int64
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &source, &fileName, &e.AccountsImported, &e.TransactionsImported,
			&e.CategoriesImported, &status, &errMsg, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning import log: %w", err)
		}
		e.Source = model.ImportSource(source)
		e.Status = model.ImportStatus(status)
		e.FileName = fileName.String
		e.ErrorMessage = errMsg.String
		e.CreatedAt = fromMicros(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// InTx runs fn inside a database transaction. Nested calls reuse the
// enclosing transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}

	if err := fn(&Store{db: s.db, q: tx, inTx: true, now: s.now}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("sqlite: rollback tx: %w (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit tx: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullMicros(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: micros(*t), Valid: true}
}
