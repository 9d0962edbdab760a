// Package store defines the aggregate storage interface a credits ledger
// runs against. Backends live in the sub-packages.
package store

import (
	"context"

	"github.com/xraph/credits/account"
)

// Store is the unified storage interface: account persistence plus the
// lifecycle methods the ledger and the forge extension call.
type Store interface {
	account.Store

	// Migrate prepares tables, indexes or collections. It is idempotent.
	Migrate(ctx context.Context) error
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close releases the underlying connection.
	Close() error
}
