// Package observability provides a metrics plugin for the credits ledger
// that records event counts and amounts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnAccountCreated       = (*MetricsExtension)(nil)
	_ plugin.OnAccountDeleted       = (*MetricsExtension)(nil)
	_ plugin.OnPlanChanged          = (*MetricsExtension)(nil)
	_ plugin.OnCreditsDebited       = (*MetricsExtension)(nil)
	_ plugin.OnDebitDenied          = (*MetricsExtension)(nil)
	_ plugin.OnCreditsGranted       = (*MetricsExtension)(nil)
	_ plugin.OnMonthlyReset         = (*MetricsExtension)(nil)
	_ plugin.OnTemplateCreditsAdded = (*MetricsExtension)(nil)
	_ plugin.OnPaymentCompleted     = (*MetricsExtension)(nil)
	_ plugin.OnPaymentFailed        = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger metrics.
// Register it as a ledger plugin to track credit flows.
type MetricsExtension struct {
	// Account metrics
	AccountsCreated Counter
	AccountsDeleted Counter
	PlanChanges     Counter

	// Credit metrics
	Debits          Counter
	CreditsSpent    Counter
	DebitSize       Histogram
	DebitsDenied    Counter
	Grants          Counter
	CreditsGranted  Counter
	Resets          Counter
	ResetAdjustment Histogram
	TemplateCredits Counter

	// Payment metrics
	PaymentsCompleted Counter
	PaymentsFailed    Counter
	Revenue           Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		AccountsCreated: factory.Counter("credits.account.created"),
		AccountsDeleted: factory.Counter("credits.account.deleted"),
		PlanChanges:     factory.Counter("credits.account.plan_changed"),

		Debits:          factory.Counter("credits.debit.count"),
		CreditsSpent:    factory.Counter("credits.debit.amount"),
		DebitSize:       factory.Histogram("credits.debit.size"),
		DebitsDenied:    factory.Counter("credits.debit.denied"),
		Grants:          factory.Counter("credits.grant.count"),
		CreditsGranted:  factory.Counter("credits.grant.amount"),
		Resets:          factory.Counter("credits.reset.count"),
		ResetAdjustment: factory.Histogram("credits.reset.adjustment"),
		TemplateCredits: factory.Counter("credits.template.added"),

		PaymentsCompleted: factory.Counter("credits.payment.completed"),
		PaymentsFailed:    factory.Counter("credits.payment.failed"),
		Revenue:           factory.Counter("credits.payment.revenue_minor"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (m *MetricsExtension) OnAccountCreated(_ context.Context, _ *account.Account) error {
	m.AccountsCreated.Inc()
	return nil
}

// OnAccountDeleted implements plugin.OnAccountDeleted.
func (m *MetricsExtension) OnAccountDeleted(_ context.Context, _ string) error {
	m.AccountsDeleted.Inc()
	return nil
}

// OnPlanChanged implements plugin.OnPlanChanged.
func (m *MetricsExtension) OnPlanChanged(_ context.Context, _ string, _ plan.Plan) error {
	m.PlanChanges.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnCreditsDebited implements plugin.OnCreditsDebited.
func (m *MetricsExtension) OnCreditsDebited(_ context.Context, _ string, tx transaction.Transaction, _ int64) error {
	m.Debits.Inc()
	m.CreditsSpent.Add(float64(-tx.Amount))
	m.DebitSize.Observe(float64(-tx.Amount))
	return nil
}

// OnDebitDenied implements plugin.OnDebitDenied.
func (m *MetricsExtension) OnDebitDenied(_ context.Context, _ string, _, _ int64) error {
	m.DebitsDenied.Inc()
	return nil
}

// OnCreditsGranted implements plugin.OnCreditsGranted.
func (m *MetricsExtension) OnCreditsGranted(_ context.Context, _ string, tx transaction.Transaction, _ int64) error {
	m.Grants.Inc()
	m.CreditsGranted.Add(float64(tx.Amount))
	return nil
}

// OnMonthlyReset implements plugin.OnMonthlyReset.
// The adjustment is signed: negative when an overflow balance was cut back.
func (m *MetricsExtension) OnMonthlyReset(_ context.Context, _ string, tx transaction.Transaction, _ int64) error {
	m.Resets.Inc()
	m.ResetAdjustment.Observe(float64(tx.Amount))
	return nil
}

// OnTemplateCreditsAdded implements plugin.OnTemplateCreditsAdded.
func (m *MetricsExtension) OnTemplateCreditsAdded(_ context.Context, _ string, amount, _ int64) error {
	m.TemplateCredits.Add(float64(amount))
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentCompleted implements plugin.OnPaymentCompleted.
func (m *MetricsExtension) OnPaymentCompleted(_ context.Context, _, _ string, amount types.Money) error {
	m.PaymentsCompleted.Inc()
	m.Revenue.Add(float64(amount.Amount))
	return nil
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (m *MetricsExtension) OnPaymentFailed(_ context.Context, _, _ string, _ types.Money, _ error) error {
	m.PaymentsFailed.Inc()
	return nil
}
