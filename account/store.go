// Package account defines the persisted account record and the store
// contract the ledger depends on.
package account

import "context"

// MutateFunc changes the ledger-owned fields of a snapshot in place.
// Returning an error aborts the mutation and nothing is written.
type MutateFunc func(a *Account) error

// DefaultMaxRetries bounds the compare-and-swap loop of remote stores.
const DefaultMaxRetries = 5

// Store defines persistence for accounts.
//
// MutateAccount is the only way the balance and history change. It must
// behave as a serializable read-modify-write per account: fn sees a
// consistent snapshot and its result is committed only if no other writer
// committed in between. Implementations retry conflicts a bounded number of
// times and then fail with an error matching both the store-unavailable and
// write-conflict sentinels of the credits package.
type Store interface {
	GetAccount(ctx context.Context, uid string) (*Account, error)
	CreateAccount(ctx context.Context, a *Account) error
	UpdateAccount(ctx context.Context, uid string, f Fields) error
	MutateAccount(ctx context.Context, uid string, fn MutateFunc) (*Account, error)
	DeleteAccount(ctx context.Context, uid string) error
}
