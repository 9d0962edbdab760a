// Package sqlite implements store.Store on SQLite through the Grove ORM.
// It shares the revision compare-and-swap scheme of the postgres store and
// suits single-node deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the sqlite migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	ledgerstore "github.com/xraph/credits/store"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db         *grove.DB
	sdb        *sqlitedriver.SqliteDB
	maxRetries int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxRetries bounds the compare-and-swap attempts of MutateAccount.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:         db,
		sdb:        sqlitedriver.Unwrap(db),
		maxRetries: account.DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("credits/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("credits/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Account Store ====================

func (s *Store) GetAccount(ctx context.Context, uid string) (*account.Account, error) {
	m, err := s.getModel(ctx, uid)
	if err != nil {
		return nil, err
	}
	return fromAccountModel(m)
}

func (s *Store) getModel(ctx context.Context, uid string) (*accountModel, error) {
	m := new(accountModel)
	err := s.sdb.NewSelect(m).
		Where("uid = ?", uid).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", credits.ErrAccountNotFound, uid)
		}
		return nil, fmt.Errorf("credits/sqlite: get account: %w", err)
	}
	return m, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	res, err := s.sdb.NewInsert(toAccountModel(a)).
		OnConflict("(uid) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/sqlite: create account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credits/sqlite: create account: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", credits.ErrAccountExists, a.UID)
	}
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, uid string, f account.Fields) error {
	if f.IsEmpty() {
		_, err := s.getModel(ctx, uid)
		return err
	}

	q := s.sdb.NewUpdate((*accountModel)(nil))
	if f.Email != nil {
		q = q.Set("email = ?", *f.Email)
	}
	if f.DisplayName != nil {
		q = q.Set("display_name = ?", *f.DisplayName)
	}
	if f.PhotoURL != nil {
		q = q.Set("photo_url = ?", *f.PhotoURL)
	}
	if f.Plan != nil {
		q = q.Set("plan = ?", string(*f.Plan))
	}
	if f.LastLogin != nil {
		q = q.Set("last_login = ?", int64(*f.LastLogin))
	}
	if f.UsePersonalAPIKey != nil {
		q = q.Set("use_personal_api_key = ?", *f.UsePersonalAPIKey)
	}

	res, err := q.Where("uid = ?", uid).Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/sqlite: update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credits/sqlite: update account: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", credits.ErrAccountNotFound, uid)
	}
	return nil
}

// MutateAccount applies fn to the current row and commits only if the
// revision is unchanged since the read.
func (s *Store) MutateAccount(ctx context.Context, uid string, fn account.MutateFunc) (*account.Account, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m, err := s.getModel(ctx, uid)
		if err != nil {
			return nil, err
		}
		current, err := fromAccountModel(m)
		if err != nil {
			return nil, fmt.Errorf("credits/sqlite: decode history: %w", err)
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}

		res, err := s.sdb.NewUpdate((*accountModel)(nil)).
			Set("credits = ?", next.Credits).
			Set("template_credits = ?", next.TemplateCredits).
			Set("last_credit_reset = ?", int64(next.LastCreditReset)).
			Set("credit_history = ?", historyText(next.History)).
			Set("revision = ?", m.Revision+1).
			Where("uid = ?", uid).
			Where("revision = ?", m.Revision).
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("credits/sqlite: mutate account: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("credits/sqlite: mutate account: %w", err)
		}
		if n == 1 {
			current.CopyLedgerFields(next)
			return current, nil
		}
	}

	return nil, fmt.Errorf("credits/sqlite: mutate account %s after %d attempts: %w: %w",
		uid, s.maxRetries, credits.ErrStoreUnavailable, credits.ErrWriteConflict)
}

func (s *Store) DeleteAccount(ctx context.Context, uid string) error {
	res, err := s.sdb.NewDelete((*accountModel)(nil)).
		Where("uid = ?", uid).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/sqlite: delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credits/sqlite: delete account: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", credits.ErrAccountNotFound, uid)
	}
	return nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, grove.ErrNoRows)
}
