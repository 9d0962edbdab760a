package extension

import (
	"time"

	"github.com/xraph/credits"
	"github.com/xraph/credits/payment"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/store"
)

// Option configures the credits Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGateway replaces the mock payment gateway.
func WithGateway(g payment.Gateway) Option {
	return func(e *Extension) {
		e.gateway = g
	}
}

// WithLedgerOption passes a credits.Option through to the underlying ledger.
func WithLedgerOption(opt credits.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, credits.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithMonthlyAllotment sets the balance restored by a monthly reset.
func WithMonthlyAllotment(n int64) Option {
	return func(e *Extension) { e.config.MonthlyAllotment = n }
}

// WithResetInterval sets the time between monthly resets.
func WithResetInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.ResetInterval = d }
}

// WithHistoryLimit caps the stored transactions per account.
func WithHistoryLimit(n int) Option {
	return func(e *Extension) { e.config.HistoryLimit = n }
}

// WithPaymentLatency sets the delay of the mock payment gateway.
func WithPaymentLatency(d time.Duration) Option {
	return func(e *Extension) { e.config.PaymentLatency = durationPtr(d) }
}
