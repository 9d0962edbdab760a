package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onAccountCreated       []OnAccountCreated
	onAccountDeleted       []OnAccountDeleted
	onPlanChanged          []OnPlanChanged
	onCreditsDebited       []OnCreditsDebited
	onDebitDenied          []OnDebitDenied
	onCreditsGranted       []OnCreditsGranted
	onMonthlyReset         []OnMonthlyReset
	onTemplateCreditsAdded []OnTemplateCreditsAdded
	onPaymentCompleted     []OnPaymentCompleted
	onPaymentFailed        []OnPaymentFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnAccountCreated); ok {
		r.onAccountCreated = append(r.onAccountCreated, v)
	}
	if v, ok := p.(OnAccountDeleted); ok {
		r.onAccountDeleted = append(r.onAccountDeleted, v)
	}
	if v, ok := p.(OnPlanChanged); ok {
		r.onPlanChanged = append(r.onPlanChanged, v)
	}
	if v, ok := p.(OnCreditsDebited); ok {
		r.onCreditsDebited = append(r.onCreditsDebited, v)
	}
	if v, ok := p.(OnDebitDenied); ok {
		r.onDebitDenied = append(r.onDebitDenied, v)
	}
	if v, ok := p.(OnCreditsGranted); ok {
		r.onCreditsGranted = append(r.onCreditsGranted, v)
	}
	if v, ok := p.(OnMonthlyReset); ok {
		r.onMonthlyReset = append(r.onMonthlyReset, v)
	}
	if v, ok := p.(OnTemplateCreditsAdded); ok {
		r.onTemplateCreditsAdded = append(r.onTemplateCreditsAdded, v)
	}
	if v, ok := p.(OnPaymentCompleted); ok {
		r.onPaymentCompleted = append(r.onPaymentCompleted, v)
	}
	if v, ok := p.(OnPaymentFailed); ok {
		r.onPaymentFailed = append(r.onPaymentFailed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnAccountCreated", reflect.TypeOf((*OnAccountCreated)(nil)).Elem()},
	{"OnAccountDeleted", reflect.TypeOf((*OnAccountDeleted)(nil)).Elem()},
	{"OnPlanChanged", reflect.TypeOf((*OnPlanChanged)(nil)).Elem()},
	{"OnCreditsDebited", reflect.TypeOf((*OnCreditsDebited)(nil)).Elem()},
	{"OnDebitDenied", reflect.TypeOf((*OnDebitDenied)(nil)).Elem()},
	{"OnCreditsGranted", reflect.TypeOf((*OnCreditsGranted)(nil)).Elem()},
	{"OnMonthlyReset", reflect.TypeOf((*OnMonthlyReset)(nil)).Elem()},
	{"OnTemplateCreditsAdded", reflect.TypeOf((*OnTemplateCreditsAdded)(nil)).Elem()},
	{"OnPaymentCompleted", reflect.TypeOf((*OnPaymentCompleted)(nil)).Elem()},
	{"OnPaymentFailed", reflect.TypeOf((*OnPaymentFailed)(nil)).Elem()},
}

// implementedInterfaces lists the hooks p implements, for logging.
func implementedInterfaces(p Plugin) []string {
	var names []string
	t := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if t.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnInit", p.Name(), func() error { return p.OnInit(ctx, l) })
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnShutdown", p.Name(), func() error { return p.OnShutdown(ctx) })
	}
}

// EmitAccountCreated emits an account created event.
func (r *Registry) EmitAccountCreated(ctx context.Context, acct *account.Account) {
	r.mu.RLock()
	plugins := r.onAccountCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnAccountCreated", p.Name(), func() error {
			return p.OnAccountCreated(ctx, acct.Clone())
		})
	}
}

// EmitAccountDeleted emits an account deleted event.
func (r *Registry) EmitAccountDeleted(ctx context.Context, uid string) {
	r.mu.RLock()
	plugins := r.onAccountDeleted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnAccountDeleted", p.Name(), func() error { return p.OnAccountDeleted(ctx, uid) })
	}
}

// EmitPlanChanged emits a plan changed event.
func (r *Registry) EmitPlanChanged(ctx context.Context, uid string, pl plan.Plan) {
	r.mu.RLock()
	plugins := r.onPlanChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnPlanChanged", p.Name(), func() error { return p.OnPlanChanged(ctx, uid, pl) })
	}
}

// EmitCreditsDebited emits a committed debit.
func (r *Registry) EmitCreditsDebited(ctx context.Context, uid string, tx transaction.Transaction, balance int64) {
	r.mu.RLock()
	plugins := r.onCreditsDebited
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnCreditsDebited", p.Name(), func() error {
			return p.OnCreditsDebited(ctx, uid, tx, balance)
		})
	}
}

// EmitDebitDenied emits a refused debit.
func (r *Registry) EmitDebitDenied(ctx context.Context, uid string, required, balance int64) {
	r.mu.RLock()
	plugins := r.onDebitDenied
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnDebitDenied", p.Name(), func() error {
			return p.OnDebitDenied(ctx, uid, required, balance)
		})
	}
}

// EmitCreditsGranted emits a committed grant.
func (r *Registry) EmitCreditsGranted(ctx context.Context, uid string, tx transaction.Transaction, balance int64) {
	r.mu.RLock()
	plugins := r.onCreditsGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnCreditsGranted", p.Name(), func() error {
			return p.OnCreditsGranted(ctx, uid, tx, balance)
		})
	}
}

// EmitMonthlyReset emits an applied reset.
func (r *Registry) EmitMonthlyReset(ctx context.Context, uid string, tx transaction.Transaction, balanceBefore int64) {
	r.mu.RLock()
	plugins := r.onMonthlyReset
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnMonthlyReset", p.Name(), func() error {
			return p.OnMonthlyReset(ctx, uid, tx, balanceBefore)
		})
	}
}

// EmitTemplateCreditsAdded emits a template counter increment.
func (r *Registry) EmitTemplateCreditsAdded(ctx context.Context, uid string, amount, total int64) {
	r.mu.RLock()
	plugins := r.onTemplateCreditsAdded
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnTemplateCreditsAdded", p.Name(), func() error {
			return p.OnTemplateCreditsAdded(ctx, uid, amount, total)
		})
	}
}

// EmitPaymentCompleted emits a successful payment.
func (r *Registry) EmitPaymentCompleted(ctx context.Context, uid, paymentID string, amount types.Money) {
	r.mu.RLock()
	plugins := r.onPaymentCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnPaymentCompleted", p.Name(), func() error {
			return p.OnPaymentCompleted(ctx, uid, paymentID, amount)
		})
	}
}

// EmitPaymentFailed emits a failed payment.
func (r *Registry) EmitPaymentFailed(ctx context.Context, uid, paymentID string, amount types.Money, cause error) {
	r.mu.RLock()
	plugins := r.onPaymentFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnPaymentFailed", p.Name(), func() error {
			return p.OnPaymentFailed(ctx, uid, paymentID, amount, cause)
		})
	}
}

func (r *Registry) dispatch(ctx context.Context, hook, pluginName string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// A slow plugin must not hold up a debit.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
