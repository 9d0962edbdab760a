package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Transaction descriptions written by the ledger itself.
const (
	descWelcomeBonus = "Welcome bonus"
	descMonthlyReset = "Monthly credit reset"
)

// errResetNotDue aborts a reset mutation whose snapshot shows another
// caller already reset the account.
var errResetNotDue = errors.New("credits: reset not due")

// Ledger is the credit ledger service.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	policy  Policy
	now     func() time.Time
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		policy:  DefaultPolicy(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock replaces the wall clock. Tests use it to move across reset
// boundaries.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithPolicy overrides the allotment rules. Zero fields keep their defaults.
func WithPolicy(p Policy) Option {
	return func(l *Ledger) {
		l.policy = p.withDefaults()
	}
}

// Plugins returns the plugin registry so collaborators such as the payment
// processor can emit through the same hooks.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Policy returns the rules in effect.
func (l *Ledger) Policy() Policy { return l.policy }

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("ledger started",
		"welcome_bonus", l.policy.WelcomeBonus,
		"monthly_allotment", l.policy.MonthlyAllotment,
		"reset_interval", l.policy.ResetInterval,
		"history_limit", l.policy.HistoryLimit,
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// FetchOrCreateAccount returns the account of p.UID, creating it with the
// welcome bonus on first use. A due monthly reset is applied before the
// account is returned; otherwise the login time is refreshed.
//
// It is safe to call on every session start and from concurrent sessions.
func (l *Ledger) FetchOrCreateAccount(ctx context.Context, p account.Profile) (*account.Account, error) {
	if p.UID == "" {
		return nil, ValidationError{Field: "uid", Message: "required"}
	}

	now := l.now()

	a, err := l.store.GetAccount(ctx, p.UID)
	if IsNotFound(err) {
		created, cerr := l.createAccount(ctx, p, now)
		if cerr == nil {
			return created, nil
		}
		if !errors.Is(cerr, ErrAccountExists) {
			return nil, classify(cerr)
		}
		// Lost the creation race to a concurrent session.
		a, err = l.store.GetAccount(ctx, p.UID)
	}
	if err != nil {
		return nil, classify(err)
	}

	if l.policy.ResetDue(a, now) {
		return l.applyReset(ctx, p.UID, now)
	}

	l.touchLogin(ctx, a, now)
	return a, nil
}

func (l *Ledger) createAccount(ctx context.Context, p account.Profile, now time.Time) (*account.Account, error) {
	ts := types.MillisOf(now)
	bonus := transaction.New(l.policy.WelcomeBonus, transaction.KindBonus, descWelcomeBonus, ts)

	a := &account.Account{
		UID:         p.UID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
		Plan:        plan.Free,
		Credits:     l.policy.WelcomeBonus,
		CreatedAt:   ts,
		LastLogin:   ts,
		History:     []transaction.Transaction{bonus},
	}

	if err := l.store.CreateAccount(ctx, a); err != nil {
		return nil, err
	}

	l.logger.Info("account created", "uid", a.UID, "credits", a.Credits)
	l.plugins.EmitAccountCreated(ctx, a)

	return a, nil
}

// applyReset normalizes the balance to the monthly allotment. The due check
// is repeated on the snapshot inside the mutation, so of two concurrent
// fetches only the first resets.
func (l *Ledger) applyReset(ctx context.Context, uid string, now time.Time) (*account.Account, error) {
	var (
		tx     transaction.Transaction
		before int64
	)

	updated, err := l.store.MutateAccount(ctx, uid, func(a *account.Account) error {
		if !l.policy.ResetDue(a, now) {
			return errResetNotDue
		}

		ts := types.MillisOf(now)
		before = a.Credits
		tx = transaction.New(l.policy.MonthlyAllotment-a.Credits, transaction.KindMonthlyReset, descMonthlyReset, ts)

		a.Credits = l.policy.MonthlyAllotment
		a.LastCreditReset = ts
		a.History = transaction.Prepend(a.History, tx, l.policy.HistoryLimit)
		return nil
	})
	if errors.Is(err, errResetNotDue) {
		return l.GetAccount(ctx, uid)
	}
	if err != nil {
		return nil, classify(err)
	}

	l.logger.Info("monthly reset applied",
		"uid", uid,
		"balance_before", before,
		"delta", tx.Amount,
	)
	l.plugins.EmitMonthlyReset(ctx, uid, tx, before)

	return updated, nil
}

// touchLogin records the login time. Failure does not affect the result.
func (l *Ledger) touchLogin(ctx context.Context, a *account.Account, now time.Time) {
	ts := types.MillisOf(now)
	if err := l.store.UpdateAccount(ctx, a.UID, account.Fields{LastLogin: &ts}); err != nil {
		l.logger.Warn("refresh last login failed", "uid", a.UID, "error", err)
		return
	}
	a.LastLogin = ts
}

// RefreshAccount reads an existing account and applies a due monthly reset.
// Unlike FetchOrCreateAccount it never creates the account and leaves
// lastLogin alone.
func (l *Ledger) RefreshAccount(ctx context.Context, uid string) (*account.Account, error) {
	a, err := l.GetAccount(ctx, uid)
	if err != nil {
		return nil, err
	}
	now := l.now()
	if l.policy.ResetDue(a, now) {
		return l.applyReset(ctx, uid, now)
	}
	return a, nil
}

// GetAccount reads an account without applying a due reset.
func (l *Ledger) GetAccount(ctx context.Context, uid string) (*account.Account, error) {
	a, err := l.store.GetAccount(ctx, uid)
	if err != nil {
		return nil, classify(err)
	}
	return a, nil
}

// History returns the account's transactions, newest first.
func (l *Ledger) History(ctx context.Context, uid string) ([]transaction.Transaction, error) {
	a, err := l.GetAccount(ctx, uid)
	if err != nil {
		return nil, err
	}
	return a.History, nil
}

// NextReset returns when a's balance is next normalized.
func (l *Ledger) NextReset(a *account.Account) time.Time {
	return l.policy.NextReset(a)
}

// DeleteAccount removes the account record entirely.
func (l *Ledger) DeleteAccount(ctx context.Context, uid string) error {
	if err := l.store.DeleteAccount(ctx, uid); err != nil {
		return classify(err)
	}

	l.logger.Info("account deleted", "uid", uid)
	l.plugins.EmitAccountDeleted(ctx, uid)
	return nil
}

// ──────────────────────────────────────────────────
// Balance
// ──────────────────────────────────────────────────

// Debit takes amount credits from the account and returns the new balance.
// Concurrent debits never overdraw: the balance check and the write form
// one atomic mutation. A refused debit returns *InsufficientCreditsError
// and leaves balance and history untouched.
func (l *Ledger) Debit(ctx context.Context, uid string, amount int64, description string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	now := l.now()
	var tx transaction.Transaction

	updated, err := l.store.MutateAccount(ctx, uid, func(a *account.Account) error {
		if a.Credits < amount {
			return &InsufficientCreditsError{
				Balance:   a.Credits,
				Required:  amount,
				NextReset: nextResetAfter(l.policy.NextReset(a), now),
			}
		}

		tx = transaction.New(-amount, transaction.KindUsage, description, types.MillisOf(now))
		a.Credits -= amount
		a.History = transaction.Prepend(a.History, tx, l.policy.HistoryLimit)
		return nil
	})
	if err != nil {
		if ie, ok := AsInsufficient(err); ok {
			l.logger.Info("debit denied",
				"uid", uid,
				"required", amount,
				"balance", ie.Balance,
			)
			l.plugins.EmitDebitDenied(ctx, uid, amount, ie.Balance)
			return 0, ie
		}
		return 0, classify(err)
	}

	l.logger.Debug("credits debited", "uid", uid, "amount", amount, "balance", updated.Credits)
	l.plugins.EmitCreditsDebited(ctx, uid, tx, updated.Credits)

	return updated.Credits, nil
}

// Credit adds amount credits of a grant kind (purchase, bonus or manual
// adjustment) and returns the new balance.
func (l *Ledger) Credit(ctx context.Context, uid string, amount int64, kind transaction.Kind, description string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if !kind.IsCreditGrant() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	now := l.now()
	var tx transaction.Transaction

	updated, err := l.store.MutateAccount(ctx, uid, func(a *account.Account) error {
		if a.Credits > math.MaxInt64-amount {
			return fmt.Errorf("%w: balance %d, amount %d", ErrBalanceOverflow, a.Credits, amount)
		}
		tx = transaction.New(amount, kind, description, types.MillisOf(now))
		a.Credits += amount
		a.History = transaction.Prepend(a.History, tx, l.policy.HistoryLimit)
		return nil
	})
	if err != nil {
		return 0, classify(err)
	}

	l.logger.Debug("credits granted",
		"uid", uid,
		"amount", amount,
		"kind", kind,
		"balance", updated.Credits,
	)
	l.plugins.EmitCreditsGranted(ctx, uid, tx, updated.Credits)

	return updated.Credits, nil
}

// AddTemplateCredits increments the template counter and returns the new
// total. The counter has no history.
func (l *Ledger) AddTemplateCredits(ctx context.Context, uid string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	updated, err := l.store.MutateAccount(ctx, uid, func(a *account.Account) error {
		if a.TemplateCredits > math.MaxInt64-amount {
			return fmt.Errorf("%w: template credits %d, amount %d", ErrBalanceOverflow, a.TemplateCredits, amount)
		}
		a.TemplateCredits += amount
		return nil
	})
	if err != nil {
		return 0, classify(err)
	}

	l.plugins.EmitTemplateCreditsAdded(ctx, uid, amount, updated.TemplateCredits)
	return updated.TemplateCredits, nil
}

// ──────────────────────────────────────────────────
// Plain field writes
// ──────────────────────────────────────────────────

// UpdatePlan writes the account's plan. It grants nothing by itself.
func (l *Ledger) UpdatePlan(ctx context.Context, uid string, p plan.Plan) error {
	if !p.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPlan, p)
	}

	if err := l.store.UpdateAccount(ctx, uid, account.Fields{Plan: &p}); err != nil {
		return classify(err)
	}

	l.logger.Info("plan updated", "uid", uid, "plan", p)
	l.plugins.EmitPlanChanged(ctx, uid, p)
	return nil
}

// SetPersonalAPIKey records whether the user supplies their own AI key.
// Feature gates skip the debit for such accounts.
func (l *Ledger) SetPersonalAPIKey(ctx context.Context, uid string, enabled bool) error {
	if err := l.store.UpdateAccount(ctx, uid, account.Fields{UsePersonalAPIKey: &enabled}); err != nil {
		return classify(err)
	}
	return nil
}

// classify passes known ledger errors through and tags anything else as a
// store failure, so callers can treat every unknown outcome as a failed
// operation.
// nextResetAfter clamps an overdue reset time to now: the reset is applied
// by the next account fetch.
func nextResetAfter(next, now time.Time) time.Time {
	if next.Before(now) {
		return now
	}
	return next
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrInsufficientCredits),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrBalanceOverflow),
		errors.Is(err, ErrStoreUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}
