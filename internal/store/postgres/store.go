// Package postgres is the PostgreSQL-backed Store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/envelopes/internal/id"
	"github.com/cleared-dev/envelopes/internal/model"
	"github.com/cleared-dev/envelopes/internal/store"
)

// Querier abstracts pgxpool.Pool and pgx.Tx so that store methods can run
// against either.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements store.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	q    Querier
	inTx bool
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool, now: time.Now}
}

const accountColumns = `id, user_id, name, type, balance::text, created_at, updated_at`

func scanAccount(row pgx.Row) (model.Account, error) {
	var (
		a       model.Account
		typ     string
		balance string
	)
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &typ, &balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return model.Account{}, err
	}
	a.Type = model.AccountType(typ)
	d, err := decimal.NewFromString(balance)
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing balance %q: %w", balance, err)
	}
	a.Balance = d
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]model.Account, error) {
	rows, err := s.q.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY created_at, id`, ownerID)
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

	_, err := s.q.Exec(ctx, `
		INSERT INTO accounts (id, user_id, name, type, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)`,
		a.ID, a.OwnerID, a.Name, string(a.Type), model.Fixed2(a.Balance), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return model.Account{}, fmt.Errorf("inserting account: %w", err)
	}
	return a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, accountID, ownerID string, patch store.AccountPatch) (model.Account, error) {
	var name, typ, balance *string
	if patch.Name != nil {
		name = patch.Name
	}
	if patch.Type != nil {
		t := string(*patch.Type)
		typ = &t
	}
	if patch.Balance != nil {
		b := model.Fixed2(*patch.Balance)
		balance = &b
	}

	row := s.q.QueryRow(ctx, `
		UPDATE accounts SET
			name = COALESCE($3, name),
			type = COALESCE($4, type),
			balance = COALESCE($5::numeric, balance),
			updated_at = $6
		WHERE id = $1 AND user_id = $2
		RETURNING `+accountColumns,
		accountID, ownerID, name, typ, balance, s.now().UTC(),
	)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, store.ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("updating account: %w", err)
	}
	return a, nil
}

func (s *Store) ListTransactions(ctx context.Context, ownerID, accountID string) ([]model.Transaction, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, user_id, account_id, category_id, date, payee, amount::text, notes, created_at
		FROM transactions
		WHERE user_id = $1 AND ($2::text = '' OR account_id = $2::text)
		ORDER BY date DESC, created_at DESC`, ownerID, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var (
			t          model.Transaction
			categoryID *string
			notes      *string
			amount     string
		)
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.AccountID, &categoryID, &t.Date, &t.Payee, &amount, &notes, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing amount %q: %w", amount, err)
		}
		t.CategoryID = deref(categoryID)
		t.Notes = deref(notes)
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
	_, err := s.q.Exec(ctx, `
		INSERT INTO transactions (id, user_id, account_id, category_id, date, payee, amount, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9)`,
		t.ID, t.OwnerID, t.AccountID, nullable(t.CategoryID), t.Date.UTC(), t.Payee, model.Fixed2(t.Amount), nullable(t.Notes), t.CreatedAt,
	)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("inserting transaction: %w", err)
	}
	return t, nil
}

func (s *Store) ListCategories(ctx context.Context, ownerID string) ([]model.Category, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, user_id, name, budgeted::text, sort_order, created_at
		FROM categories WHERE user_id = $1 ORDER BY sort_order, created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		var (
			c        model.Category
			budgeted string
		)
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &budgeted, &c.SortOrder, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		if c.Budgeted, err = decimal.NewFromString(budgeted); err != nil {
			return nil, fmt.Errorf("parsing budgeted %q: %w", budgeted, err)
		}
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
	_, err := s.q.Exec(ctx, `
		INSERT INTO categories (id, user_id, name, budgeted, sort_order, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)`,
		c.ID, c.OwnerID, c.Name, model.Fixed2(c.Budgeted), c.SortOrder, c.CreatedAt,
	)
	if err != nil {
		return model.Category{}, fmt.Errorf("inserting category: %w", err)
	}
	return c, nil
}

const connectionColumns = `id, user_id, access_url, connection_name, last_sync, is_active, created_at`

func scanConnection(row pgx.Row) (model.Connection, error) {
	var c model.Connection
	err := row.Scan(&c.ID, &c.OwnerID, &c.EncryptedAccessURL, &c.Name, &c.LastSync, &c.IsActive, &c.CreatedAt)
	return c, err
}

func (s *Store) CreateConnection(ctx context.Context, c model.Connection) (model.Connection, error) {
	if c.ID == "" {
		c.ID = id.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO simplefin_connections (id, user_id, access_url, connection_name, last_sync, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.OwnerID, c.EncryptedAccessURL, c.Name, c.LastSync, c.IsActive, c.CreatedAt,
	)
	if err != nil {
		return model.Connection{}, fmt.Errorf("inserting connection: %w", err)
	}
	return c, nil
}

func (s *Store) GetConnection(ctx context.Context, connID, ownerID string) (model.Connection, error) {
	c, err := scanConnection(s.q.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM simplefin_connections WHERE id = $1 AND user_id = $2`, connID, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Connection{}, store.ErrNotFound
	}
	if err != nil {
		return model.Connection{}, fmt.Errorf("getting connection: %w", err)
	}
	return c, nil
}

func (s *Store) ListConnections(ctx context.Context, ownerID string) ([]model.Connection, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+connectionColumns+` FROM simplefin_connections WHERE user_id = $1 ORDER BY created_at, id`, ownerID)
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
	c, err := scanConnection(s.q.QueryRow(ctx, `
		UPDATE simplefin_connections SET
			connection_name = COALESCE($3, connection_name),
			last_sync = COALESCE($4, last_sync),
			is_active = COALESCE($5, is_active)
		WHERE id = $1 AND user_id = $2
		RETURNING `+connectionColumns,
		connID, ownerID, patch.Name, patch.LastSync, patch.IsActive,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Connection{}, store.ErrNotFound
	}
	if err != nil {
		return model.Connection{}, fmt.Errorf("updating connection: %w", err)
	}
	return c, nil
}

func (s *Store) DeleteConnection(ctx context.Context, connID, ownerID string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM simplefin_connections WHERE id = $1 AND user_id = $2`, connID, ownerID)
	if err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
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
	_, err := s.q.Exec(ctx, `
		INSERT INTO import_logs (id, user_id, source, file_name, accounts_imported, transactions_imported,
			categories_imported, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.OwnerID, string(e.Source), nullable(e.FileName), e.AccountsImported, e.TransactionsImported,
		e.CategoriesImported, string(e.Status), nullable(e.ErrorMessage), e.CreatedAt,
	)
	if err != nil {
		return model.ImportLog{}, fmt.Errorf("inserting import log: %w", err)
	}
	return e, nil
}

func (s *Store) ListImportLogs(ctx context.Context, ownerID string) ([]model.ImportLog, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, user_id, source, file_name, accounts_imported, transactions_imported,
			categories_imported, status, error_message, created_at
		FROM import_logs WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing import logs: %w", err)
	}
	defer rows.Close()

	var out []model.ImportLog
	for rows.Next() {
		var (
			e                model.ImportLog
			source, status   string
			fileName, errMsg *string
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &source, &fileName, &e.AccountsImported, &e.TransactionsImported,
			&e.CategoriesImported, &status, &errMsg, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning import log: %w", err)
		}
		e.Source = model.ImportSource(source)
		e.Status = model.ImportStatus(status)
		e.FileName = deref(fileName)
		e.ErrorMessage = deref(errMsg)
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	if err := fn(&Store{pool: s.pool, q: tx, inTx: true, now: s.now}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("postgres: rollback tx: %w (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
