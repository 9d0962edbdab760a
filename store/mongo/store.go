// Package mongo implements store.Store on MongoDB through the Grove ORM.
//
// Accounts live in the "users" collection, one document per user, in the
// layout the web client has always written. The document carries no
// version field, so MutateAccount detects concurrent writers by matching
// the fields it read (balance, template counter, last reset and the id of
// the newest history entry) in the update filter.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	ledgerstore "github.com/xraph/credits/store"
)

// Collection name constants.
const (
	colAccounts = "users"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db         *grove.DB
	mdb        *mongodriver.MongoDB
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

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:         db,
		mdb:        mongodriver.Unwrap(db),
		maxRetries: account.DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for the account collection.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("credits/mongo: migrate %s indexes: %w", col, err)
		}
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
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"uid": uid}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("%w: %s", credits.ErrAccountNotFound, uid)
		}
		return nil, fmt.Errorf("credits/mongo: get account: %w", err)
	}
	return fromAccountModel(&m), nil
}

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	_, err := s.mdb.NewInsert(toAccountModel(a)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", credits.ErrAccountExists, a.UID)
		}
		return fmt.Errorf("credits/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, uid string, f account.Fields) error {
	set := fieldsUpdate(f)
	if len(set) == 0 {
		_, err := s.GetAccount(ctx, uid)
		return err
	}

	res, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"uid": uid}).
		SetUpdate(bson.M{"$set": set}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: update account: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("%w: %s", credits.ErrAccountNotFound, uid)
	}
	return nil
}

// MutateAccount reads the account, applies fn to a copy and writes the
// ledger fields back only if the document still matches what was read.
// A mismatch means another writer won; the loop re-reads and retries.
func (s *Store) MutateAccount(ctx context.Context, uid string, fn account.MutateFunc) (*account.Account, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current, err := s.GetAccount(ctx, uid)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}

		res, err := s.mdb.NewUpdate((*accountModel)(nil)).
			Filter(casFilter(current)).
			SetUpdate(bson.M{"$set": ledgerUpdate(next)}).
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("credits/mongo: mutate account: %w", err)
		}
		if res.MatchedCount() == 1 {
			current.CopyLedgerFields(next)
			return current, nil
		}
	}

	return nil, fmt.Errorf("credits/mongo: mutate account %s after %d attempts: %w: %w",
		uid, s.maxRetries, credits.ErrStoreUnavailable, credits.ErrWriteConflict)
}

func (s *Store) DeleteAccount(ctx context.Context, uid string) error {
	res, err := s.mdb.NewDelete((*accountModel)(nil)).
		Filter(bson.M{"uid": uid}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: delete account: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("%w: %s", credits.ErrAccountNotFound, uid)
	}
	return nil
}

// ==================== Helpers ====================

// casFilter matches the account only while its ledger fields are still the
// ones in snapshot. Every ledger mutation either changes a counter, the
// reset time or the head of the history, and history ids are UUIDs, so an
// unchanged filter means no intervening write.
func casFilter(snapshot *account.Account) bson.M {
	f := bson.M{
		"uid":             snapshot.UID,
		"credits":         snapshot.Credits,
		"templateCredits": zeroOrMissing(snapshot.TemplateCredits),
		"lastCreditReset": zeroOrMissing(int64(snapshot.LastCreditReset)),
	}
	if len(snapshot.History) > 0 {
		f["creditHistory.0.id"] = snapshot.History[0].ID
	} else {
		f["creditHistory.0"] = bson.M{"$exists": false}
	}
	return f
}

// zeroOrMissing matches v, treating 0 as "0, null or absent" so documents
// written before a field existed still match.
func zeroOrMissing(v int64) any {
	if v == 0 {
		return bson.M{"$in": bson.A{int64(0), nil}}
	}
	return v
}

// ledgerUpdate is the $set document of a mutation.
func ledgerUpdate(a *account.Account) bson.M {
	set := bson.M{
		"credits":         a.Credits,
		"templateCredits": a.TemplateCredits,
		"creditHistory":   toTransactionModels(a.History),
	}
	if !a.LastCreditReset.IsZero() {
		set["lastCreditReset"] = int64(a.LastCreditReset)
	}
	return set
}

func fieldsUpdate(f account.Fields) bson.M {
	set := bson.M{}
	if f.Email != nil {
		set["email"] = *f.Email
	}
	if f.DisplayName != nil {
		set["displayName"] = *f.DisplayName
	}
	if f.PhotoURL != nil {
		set["photoURL"] = *f.PhotoURL
	}
	if f.Plan != nil {
		set["plan"] = string(*f.Plan)
	}
	if f.LastLogin != nil {
		set["lastLogin"] = int64(*f.LastLogin)
	}
	if f.UsePersonalAPIKey != nil {
		set["usePersonalApiKey"] = *f.UsePersonalAPIKey
	}
	return set
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for the account collection.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{
				Keys:    bson.D{{Key: "uid", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "lastCreditReset", Value: 1}}},
		},
	}
}
