// Package redis implements store.Store on Redis. Each account is one JSON
// document under "<prefix><uid>" in the persisted document layout.
// Mutations run inside WATCH/MULTI/EXEC and are retried when the key
// changed between the read and the commit.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	ledgerstore "github.com/xraph/credits/store"
)

// DefaultKeyPrefix namespaces account documents.
const DefaultKeyPrefix = "credits:account:"

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using a go-redis client.
type Store struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
}

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithMaxRetries bounds the optimistic transaction attempts of MutateAccount.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// New creates a new Redis store.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:     client,
		prefix:     DefaultKeyPrefix,
		maxRetries: account.DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the underlying redis client.
func (s *Store) Client() redis.UniversalClient { return s.client }

// Migrate is a no-op; Redis has no schema.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("credits/redis: ping: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(uid string) string { return s.prefix + uid }

// ==================== Account Store ====================

func (s *Store) GetAccount(ctx context.Context, uid string) (*account.Account, error) {
	data, err := s.client.Get(ctx, s.key(uid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", credits.ErrAccountNotFound, uid)
		}
		return nil, fmt.Errorf("credits/redis: get account: %w", err)
	}
	return decode(data)
}

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	data, err := encode(a)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.key(a.UID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("credits/redis: create account: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", credits.ErrAccountExists, a.UID)
	}
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, uid string, f account.Fields) error {
	if f.IsEmpty() {
		_, err := s.GetAccount(ctx, uid)
		return err
	}
	_, err := s.transact(ctx, uid, func(current *account.Account) error {
		f.Apply(current)
		return nil
	})
	return err
}

// MutateAccount runs fn on a copy of the stored document and writes back
// only the ledger-owned fields, all within one optimistic transaction.
func (s *Store) MutateAccount(ctx context.Context, uid string, fn account.MutateFunc) (*account.Account, error) {
	return s.transact(ctx, uid, func(current *account.Account) error {
		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}
		current.CopyLedgerFields(next)
		return nil
	})
}

func (s *Store) DeleteAccount(ctx context.Context, uid string) error {
	n, err := s.client.Del(ctx, s.key(uid)).Result()
	if err != nil {
		return fmt.Errorf("credits/redis: delete account: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", credits.ErrAccountNotFound, uid)
	}
	return nil
}

// transact reads the document under WATCH, lets apply modify it, and
// commits with MULTI/EXEC. A concurrent write aborts EXEC with
// redis.TxFailedErr and the loop starts over from a fresh read.
func (s *Store) transact(ctx context.Context, uid string, apply func(*account.Account) error) (*account.Account, error) {
	key := s.key(uid)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var result *account.Account
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return fmt.Errorf("%w: %s", credits.ErrAccountNotFound, uid)
				}
				return fmt.Errorf("credits/redis: read account: %w", err)
			}

			current, err := decode(data)
			if err != nil {
				return err
			}
			if err := apply(current); err != nil {
				return err
			}

			out, err := encode(current)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, out, 0)
				return nil
			})
			if err != nil {
				return err
			}

			result = current
			return nil
		}, key)

		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return nil, err
		}
	}

	return nil, fmt.Errorf("credits/redis: mutate account %s after %d attempts: %w: %w",
		uid, s.maxRetries, credits.ErrStoreUnavailable, credits.ErrWriteConflict)
}

func encode(a *account.Account) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("credits/redis: encode account: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*account.Account, error) {
	a := new(account.Account)
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("credits/redis: decode account: %w", err)
	}
	return a, nil
}
