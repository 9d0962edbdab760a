// Package gate charges credits in front of paid AI features.
//
// A Gate debits the feature cost before running the feature. If the debit
// fails for any reason the feature does not run. Accounts that bring their
// own provider key bypass the charge entirely.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
)

// Feature is a paid capability with a fixed per-use cost.
type Feature struct {
	Key         string `json:"key"`
	Cost        int64  `json:"cost"`
	Description string `json:"description"`
}

// Built-in features.
var (
	ResumeAI = Feature{
		Key:         "resume_ai",
		Cost:        credits.CostResumeAI,
		Description: "AI resume assistance",
	}
	InterviewSession = Feature{
		Key:         "interview_session",
		Cost:        credits.CostInterviewSession,
		Description: "Interview session",
	}
)

// Features returns the built-in features.
func Features() []Feature {
	return []Feature{ResumeAI, InterviewSession}
}

// Lookup finds a built-in feature by key.
func Lookup(key string) (Feature, bool) {
	for _, f := range Features() {
		if f.Key == key {
			return f, true
		}
	}
	return Feature{}, false
}

// Ledger is the subset of *credits.Ledger the gate needs.
type Ledger interface {
	RefreshAccount(ctx context.Context, uid string) (*account.Account, error)
	Debit(ctx context.Context, uid string, amount int64, description string) (int64, error)
}

// Decision describes how a gated call was paid for.
type Decision struct {
	Charged  bool  `json:"charged"`
	Balance  int64 `json:"balance"`
	Bypassed bool  `json:"bypassed"`
}

// Gate runs features after charging for them.
type Gate struct {
	ledger Ledger
	logger *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// New creates a Gate.
func New(l Ledger, opts ...Option) *Gate {
	g := &Gate{ledger: l, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run charges feature.Cost to uid and then runs fn. A monthly reset that
// fell due since the last fetch is applied before charging. The returned Decision
// is meaningful whenever the charge step succeeded, even if fn failed.
// A failed fn is not refunded.
func (g *Gate) Run(ctx context.Context, uid string, feature Feature, fn func(context.Context) error) (Decision, error) {
	if feature.Cost <= 0 {
		return Decision{}, fmt.Errorf("gate: feature %q: %w", feature.Key, credits.ErrInvalidAmount)
	}

	acct, err := g.ledger.RefreshAccount(ctx, uid)
	if err != nil {
		return Decision{}, err
	}

	var d Decision
	if acct.UsePersonalAPIKey {
		d = Decision{Bypassed: true, Balance: acct.Credits}
	} else {
		balance, err := g.ledger.Debit(ctx, uid, feature.Cost, feature.Description)
		if err != nil {
			if errors.Is(err, credits.ErrInsufficientCredits) {
				g.logger.Info("feature denied", "uid", uid, "feature", feature.Key, "cost", feature.Cost)
			}
			return Decision{}, err
		}
		d = Decision{Charged: true, Balance: balance}
	}

	if err := fn(ctx); err != nil {
		g.logger.Warn("feature failed after charge",
			"uid", uid,
			"feature", feature.Key,
			"charged", d.Charged,
			"error", err,
		)
		return d, err
	}
	return d, nil
}
