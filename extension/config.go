package extension

import (
	"time"

	"github.com/xraph/credits"
	"github.com/xraph/credits/payment"
)

// Config holds the credits extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.credits" or "credits" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// WelcomeBonus is granted when an account is created (default: 25).
	WelcomeBonus int64 `json:"welcome_bonus" mapstructure:"welcome_bonus" yaml:"welcome_bonus"`

	// MonthlyAllotment is the balance restored by a monthly reset (default: 25).
	MonthlyAllotment int64 `json:"monthly_allotment" mapstructure:"monthly_allotment" yaml:"monthly_allotment"`

	// ResetInterval is the time between resets (default: 720h).
	ResetInterval time.Duration `json:"reset_interval" mapstructure:"reset_interval" yaml:"reset_interval"`

	// HistoryLimit caps the stored transactions per account (default: 50).
	HistoryLimit int `json:"history_limit" mapstructure:"history_limit" yaml:"history_limit"`

	// PaymentLatency is the delay of the mock payment gateway. Unset selects
	// 1.5s; an explicit zero approves charges immediately.
	PaymentLatency *time.Duration `json:"payment_latency,omitempty" mapstructure:"payment_latency" yaml:"payment_latency,omitempty"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with the production rules.
func DefaultConfig() Config {
	p := credits.DefaultPolicy()
	return Config{
		WelcomeBonus:     p.WelcomeBonus,
		MonthlyAllotment: p.MonthlyAllotment,
		ResetInterval:    p.ResetInterval,
		HistoryLimit:     p.HistoryLimit,
		PaymentLatency:   durationPtr(payment.DefaultMockLatency),
	}
}

func durationPtr(d time.Duration) *time.Duration { return &d }

// MockLatency returns the configured gateway delay, or the default when unset.
func (c Config) MockLatency() time.Duration {
	if c.PaymentLatency == nil {
		return payment.DefaultMockLatency
	}
	return *c.PaymentLatency
}

// Policy returns the ledger policy described by c.
func (c Config) Policy() credits.Policy {
	return credits.Policy{
		WelcomeBonus:     c.WelcomeBonus,
		MonthlyAllotment: c.MonthlyAllotment,
		ResetInterval:    c.ResetInterval,
		HistoryLimit:     c.HistoryLimit,
	}
}
