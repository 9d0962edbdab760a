// Package memory provides an in-process account store. A single mutex
// serializes every mutation, which trivially satisfies the per-account
// isolation the ledger needs. Used by tests and the default extension
// setup.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	ledgerstore "github.com/xraph/credits/store"
)

// Compile-time interface check.
var _ ledgerstore.Store = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	accounts map[string]*account.Account
	closed   bool
}

func New() *Store {
	return &Store{
		accounts: make(map[string]*account.Account),
	}
}

// ==================== Account Store ====================

func (s *Store) GetAccount(_ context.Context, uid string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}

	a, ok := s.accounts[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", credits.ErrAccountNotFound, uid)
	}
	return a.Clone(), nil
}

func (s *Store) CreateAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}

	if _, exists := s.accounts[a.UID]; exists {
		return fmt.Errorf("%w: %s", credits.ErrAccountExists, a.UID)
	}
	s.accounts[a.UID] = a.Clone()
	return nil
}

func (s *Store) UpdateAccount(_ context.Context, uid string, f account.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}

	a, ok := s.accounts[uid]
	if !ok {
		return fmt.Errorf("%w: %s", credits.ErrAccountNotFound, uid)
	}
	f.Apply(a)
	return nil
}

func (s *Store) MutateAccount(_ context.Context, uid string, fn account.MutateFunc) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}

	current, ok := s.accounts[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", credits.ErrAccountNotFound, uid)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	current.CopyLedgerFields(next)
	return current.Clone(), nil
}

func (s *Store) DeleteAccount(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}

	if _, ok := s.accounts[uid]; !ok {
		return fmt.Errorf("%w: %s", credits.ErrAccountNotFound, uid)
	}
	delete(s.accounts, uid)
	return nil
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// ==================== Lifecycle ====================

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return credits.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
