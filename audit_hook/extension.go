// Package audithook bridges ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnAccountCreated       = (*Extension)(nil)
	_ plugin.OnAccountDeleted       = (*Extension)(nil)
	_ plugin.OnPlanChanged          = (*Extension)(nil)
	_ plugin.OnCreditsDebited       = (*Extension)(nil)
	_ plugin.OnDebitDenied          = (*Extension)(nil)
	_ plugin.OnCreditsGranted       = (*Extension)(nil)
	_ plugin.OnMonthlyReset         = (*Extension)(nil)
	_ plugin.OnTemplateCreditsAdded = (*Extension)(nil)
	_ plugin.OnPaymentCompleted     = (*Extension)(nil)
	_ plugin.OnPaymentFailed        = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single audit trail entry.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (e *Extension) OnAccountCreated(ctx context.Context, acct *account.Account) error {
	return e.record(ctx, ActionAccountCreated, SeverityInfo, OutcomeSuccess,
		ResourceAccount, acct.UID, CategoryAccount, nil,
		"plan", string(acct.Plan),
		"balance", acct.Credits,
	)
}

// OnAccountDeleted implements plugin.OnAccountDeleted.
func (e *Extension) OnAccountDeleted(ctx context.Context, uid string) error {
	return e.record(ctx, ActionAccountDeleted, SeverityWarning, OutcomeSuccess,
		ResourceAccount, uid, CategoryAccount, nil,
	)
}

// OnPlanChanged implements plugin.OnPlanChanged.
func (e *Extension) OnPlanChanged(ctx context.Context, uid string, p plan.Plan) error {
	return e.record(ctx, ActionPlanChanged, SeverityInfo, OutcomeSuccess,
		ResourceAccount, uid, CategoryBilling, nil,
		"plan", string(p),
	)
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnCreditsDebited implements plugin.OnCreditsDebited.
func (e *Extension) OnCreditsDebited(ctx context.Context, uid string, tx transaction.Transaction, balance int64) error {
	return e.record(ctx, ActionCreditsDebited, SeverityInfo, OutcomeSuccess,
		ResourceCredits, uid, CategoryUsage, nil,
		"transaction_id", tx.ID,
		"amount", tx.Amount,
		"description", tx.Description,
		"balance", balance,
	)
}

// OnDebitDenied implements plugin.OnDebitDenied.
func (e *Extension) OnDebitDenied(ctx context.Context, uid string, required, balance int64) error {
	return e.record(ctx, ActionDebitDenied, SeverityWarning, OutcomeFailure,
		ResourceCredits, uid, CategoryUsage, nil,
		"required", required,
		"balance", balance,
	)
}

// OnCreditsGranted implements plugin.OnCreditsGranted.
func (e *Extension) OnCreditsGranted(ctx context.Context, uid string, tx transaction.Transaction, balance int64) error {
	return e.record(ctx, ActionCreditsGranted, SeverityInfo, OutcomeSuccess,
		ResourceCredits, uid, CategoryBilling, nil,
		"transaction_id", tx.ID,
		"type", string(tx.Kind),
		"amount", tx.Amount,
		"balance", balance,
	)
}

// OnMonthlyReset implements plugin.OnMonthlyReset.
func (e *Extension) OnMonthlyReset(ctx context.Context, uid string, tx transaction.Transaction, balanceBefore int64) error {
	return e.record(ctx, ActionMonthlyReset, SeverityInfo, OutcomeSuccess,
		ResourceCredits, uid, CategoryUsage, nil,
		"transaction_id", tx.ID,
		"amount", tx.Amount,
		"balance_before", balanceBefore,
	)
}

// OnTemplateCreditsAdded implements plugin.OnTemplateCreditsAdded.
func (e *Extension) OnTemplateCreditsAdded(ctx context.Context, uid string, amount, total int64) error {
	return e.record(ctx, ActionTemplateCreditsAdded, SeverityInfo, OutcomeSuccess,
		ResourceCredits, uid, CategoryBilling, nil,
		"amount", amount,
		"total", total,
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentCompleted implements plugin.OnPaymentCompleted.
func (e *Extension) OnPaymentCompleted(ctx context.Context, uid, paymentID string, amount types.Money) error {
	return e.record(ctx, ActionPaymentCompleted, SeverityInfo, OutcomeSuccess,
		ResourcePayment, paymentID, CategoryPayment, nil,
		"uid", uid,
		"amount", amount.String(),
	)
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (e *Extension) OnPaymentFailed(ctx context.Context, uid, paymentID string, amount types.Money, cause error) error {
	return e.record(ctx, ActionPaymentFailed, SeverityError, OutcomeFailure,
		ResourcePayment, paymentID, CategoryPayment, cause,
		"uid", uid,
		"amount", amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
