package credits

import (
	"time"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Fixed business constants.
const (
	WelcomeBonus     int64 = 25
	MonthlyAllotment int64 = 25
	ResetInterval          = 30 * 24 * time.Hour
	HistoryLimit           = transaction.DefaultHistoryLimit

	// Feature costs charged by callers.
	CostResumeAI         int64 = 1
	CostInterviewSession int64 = 5

	// ProUpgradeBonus is granted with a paid upgrade to the pro plan.
	ProUpgradeBonus int64 = 50
)

// Policy holds the allotment rules applied by the ledger.
type Policy struct {
	WelcomeBonus     int64         `json:"welcome_bonus" mapstructure:"welcome_bonus" yaml:"welcome_bonus"`
	MonthlyAllotment int64         `json:"monthly_allotment" mapstructure:"monthly_allotment" yaml:"monthly_allotment"`
	ResetInterval    time.Duration `json:"reset_interval" mapstructure:"reset_interval" yaml:"reset_interval"`
	HistoryLimit     int           `json:"history_limit" mapstructure:"history_limit" yaml:"history_limit"`
}

// DefaultPolicy returns the production rules.
func DefaultPolicy() Policy {
	return Policy{
		WelcomeBonus:     WelcomeBonus,
		MonthlyAllotment: MonthlyAllotment,
		ResetInterval:    ResetInterval,
		HistoryLimit:     HistoryLimit,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.WelcomeBonus <= 0 {
		p.WelcomeBonus = d.WelcomeBonus
	}
	if p.MonthlyAllotment <= 0 {
		p.MonthlyAllotment = d.MonthlyAllotment
	}
	if p.ResetInterval <= 0 {
		p.ResetInterval = d.ResetInterval
	}
	if p.HistoryLimit <= 0 {
		p.HistoryLimit = d.HistoryLimit
	}
	return p
}

// ResetDue reports whether the allotment period of a has elapsed at now.
// The comparison is strict: an account exactly one interval old is not due.
func (p Policy) ResetDue(a *account.Account, now time.Time) bool {
	return types.MillisOf(now).Sub(a.ResetAnchor()) > p.ResetInterval
}

// NextReset returns when a's balance is next normalized.
func (p Policy) NextReset(a *account.Account) time.Time {
	return a.NextReset(p.ResetInterval)
}
