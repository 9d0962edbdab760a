// Package plugin provides the hook system of the credits ledger.
// Plugins observe ledger events; they can never veto or alter a write.
package plugin

import (
	"context"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountCreated is called after a first fetch created an account.
type OnAccountCreated interface {
	Plugin
	OnAccountCreated(ctx context.Context, acct *account.Account) error
}

// OnAccountDeleted is called after an account was removed.
type OnAccountDeleted interface {
	Plugin
	OnAccountDeleted(ctx context.Context, uid string) error
}

// OnPlanChanged is called after an account's plan was written.
type OnPlanChanged interface {
	Plugin
	OnPlanChanged(ctx context.Context, uid string, p plan.Plan) error
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnCreditsDebited is called after a debit committed.
type OnCreditsDebited interface {
	Plugin
	OnCreditsDebited(ctx context.Context, uid string, tx transaction.Transaction, balance int64) error
}

// OnDebitDenied is called when a debit was refused for lack of credits.
type OnDebitDenied interface {
	Plugin
	OnDebitDenied(ctx context.Context, uid string, required, balance int64) error
}

// OnCreditsGranted is called after a purchase, bonus or adjustment committed.
type OnCreditsGranted interface {
	Plugin
	OnCreditsGranted(ctx context.Context, uid string, tx transaction.Transaction, balance int64) error
}

// OnMonthlyReset is called after a lazy reset normalized the balance.
type OnMonthlyReset interface {
	Plugin
	OnMonthlyReset(ctx context.Context, uid string, tx transaction.Transaction, balanceBefore int64) error
}

// OnTemplateCreditsAdded is called after the template counter grew.
type OnTemplateCreditsAdded interface {
	Plugin
	OnTemplateCreditsAdded(ctx context.Context, uid string, amount, total int64) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentCompleted is called after a charge succeeded and was applied.
type OnPaymentCompleted interface {
	Plugin
	OnPaymentCompleted(ctx context.Context, uid, paymentID string, amount types.Money) error
}

// OnPaymentFailed is called when a charge or its ledger follow-up failed.
type OnPaymentFailed interface {
	Plugin
	OnPaymentFailed(ctx context.Context, uid, paymentID string, amount types.Money, err error) error
}
