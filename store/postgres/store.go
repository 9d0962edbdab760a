// Package postgres implements store.Store on PostgreSQL through the Grove
// ORM. Each row carries a revision counter; MutateAccount commits with
// "WHERE revision = <read revision>" and retries when another writer got
// there first.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the pg migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	ledgerstore "github.com/xraph/credits/store"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db         *grove.DB
	pg         *pgdriver.PgDB
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

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:         db,
		pg:         pgdriver.Unwrap(db),
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
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("credits/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("credits/postgres: migration failed: %w", err)
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
	err := s.pg.NewSelect(m).
		Where("uid = $1", uid).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", credits.ErrAccountNotFound, uid)
		}
		return nil, fmt.Errorf("credits/postgres: get account: %w", err)
	}
	return m, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	res, err := s.pg.NewInsert(toAccountModel(a)).
		OnConflict("(uid) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/postgres: create account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credits/postgres: create account: %w", err)
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

	q := s.pg.NewUpdate((*accountModel)(nil))
	argIdx := 0
	set := func(column string, v any) {
		argIdx++
		q = q.Set(fmt.Sprintf("%s = $%d", column, argIdx), v)
	}

	if f.Email != nil {
		set("email", *f.Email)
	}
	if f.DisplayName != nil {
		set("display_name", *f.DisplayName)
	}
	if f.PhotoURL != nil {
		set("photo_url", *f.PhotoURL)
	}
	if f.Plan != nil {
		set("plan", string(*f.Plan))
	}
	if f.LastLogin != nil {
		set("last_login", int64(*f.LastLogin))
	}
	if f.UsePersonalAPIKey != nil {
		set("use_personal_api_key", *f.UsePersonalAPIKey)
	}

	res, err := q.Where(fmt.Sprintf("uid = $%d", argIdx+1), uid).Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/postgres: update account: %w", err)
	}
	return expectOne(res, uid)
}

// MutateAccount applies fn to the current row and commits only if the
// revision is unchanged. Plain field updates do not bump the revision, so
// they never conflict with a balance change.
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
			return nil, fmt.Errorf("credits/postgres: decode history: %w", err)
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}

		res, err := s.pg.NewUpdate((*accountModel)(nil)).
			Set("credits = $1", next.Credits).
			Set("template_credits = $2", next.TemplateCredits).
			Set("last_credit_reset = $3", int64(next.LastCreditReset)).
			Set("credit_history = $4", string(marshalHistory(next.History))).
			Set("revision = $5", m.Revision+1).
			Where("uid = $6", uid).
			Where("revision = $7", m.Revision).
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("credits/postgres: mutate account: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("credits/postgres: mutate account: %w", err)
		}
		if n == 1 {
			current.CopyLedgerFields(next)
			return current, nil
		}
	}

	return nil, fmt.Errorf("credits/postgres: mutate account %s after %d attempts: %w: %w",
		uid, s.maxRetries, credits.ErrStoreUnavailable, credits.ErrWriteConflict)
}

func (s *Store) DeleteAccount(ctx context.Context, uid string) error {
	res, err := s.pg.NewDelete((*accountModel)(nil)).
		Where("uid = $1", uid).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/postgres: delete account: %w", err)
	}
	return expectOne(res, uid)
}

// ==================== Helpers ====================

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func expectOne(res rowsAffecter, uid string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credits/postgres: rows affected: %w", err)
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
