// Package payment sells catalog products and applies them to the ledger.
//
// The processor charges through a Gateway first and only then calls the
// ledger. If the ledger call fails after a successful charge the purchase
// is reported as failed; reconciling the charge is left to the gateway.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xraph/credits"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/transaction"
)

// FailureMessage is reported to the customer for any failed purchase.
const FailureMessage = "Payment processing failed"

// Result is the customer-facing outcome of a purchase.
type Result struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Ledger is the subset of *credits.Ledger the processor needs.
type Ledger interface {
	Credit(ctx context.Context, uid string, amount int64, kind transaction.Kind, description string) (int64, error)
	AddTemplateCredits(ctx context.Context, uid string, amount int64) (int64, error)
	UpdatePlan(ctx context.Context, uid string, p plan.Plan) error
}

// Processor runs purchases against a Gateway and a Ledger.
type Processor struct {
	gateway Gateway
	ledger  Ledger
	catalog plan.Catalog
	plugins *plugin.Registry
	logger  *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithCatalog replaces plan.DefaultCatalog.
func WithCatalog(c plan.Catalog) Option {
	return func(p *Processor) { p.catalog = c }
}

// WithPlugins routes payment events to the given registry.
func WithPlugins(r *plugin.Registry) Option {
	return func(p *Processor) { p.plugins = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// NewProcessor creates a Processor.
func NewProcessor(g Gateway, l Ledger, opts ...Option) *Processor {
	p := &Processor{
		gateway: g,
		ledger:  l,
		catalog: plan.DefaultCatalog(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Catalog returns the products this processor sells.
func (p *Processor) Catalog() plan.Catalog { return p.catalog }

// Purchase sells productID to uid. Unknown products and a missing uid are
// returned as errors without charging. A failed charge or follow-up yields
// an unsuccessful Result together with an error wrapping ErrPaymentFailed.
func (p *Processor) Purchase(ctx context.Context, uid, productID string) (Result, error) {
	if uid == "" {
		return Result{}, credits.ValidationError{Field: "uid", Message: "required"}
	}
	product, err := p.catalog.Find(productID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s", credits.ErrUnknownProduct, productID)
	}
	if !product.Price.IsPositive() {
		return Result{}, credits.ValidationError{Field: "price", Message: "product " + product.ID + " has no positive price"}
	}

	intent := Intent{
		ID:          id.NewIntentID(),
		UserID:      uid,
		ProductID:   product.ID,
		Amount:      product.Price,
		Description: describe(product),
		Metadata:    metadata(product),
	}
	return p.run(ctx, intent, func(ctx context.Context) error {
		return p.apply(ctx, uid, product)
	})
}

// PurchaseCredits sells a credit pack.
func (p *Processor) PurchaseCredits(ctx context.Context, uid, packID string) (Result, error) {
	product, err := p.catalog.Find(packID)
	if err != nil || product.Kind != plan.ProductCreditPack {
		return Result{}, fmt.Errorf("%w: %s", credits.ErrUnknownProduct, packID)
	}
	return p.Purchase(ctx, uid, packID)
}

// PurchaseTemplateCredit sells one premium template credit.
func (p *Processor) PurchaseTemplateCredit(ctx context.Context, uid string) (Result, error) {
	for _, product := range p.catalog {
		if product.Kind == plan.ProductTemplateCredit {
			return p.Purchase(ctx, uid, product.ID)
		}
	}
	return Result{}, fmt.Errorf("%w: template credit", credits.ErrUnknownProduct)
}

// UpgradePlan sells the upgrade to target.
func (p *Processor) UpgradePlan(ctx context.Context, uid string, target plan.Plan) (Result, error) {
	for _, product := range p.catalog {
		if product.Kind == plan.ProductPlanUpgrade && product.Plan == target {
			return p.Purchase(ctx, uid, product.ID)
		}
	}
	return Result{}, fmt.Errorf("%w: upgrade to %s", credits.ErrUnknownProduct, target)
}

func (p *Processor) run(ctx context.Context, intent Intent, onSuccess func(context.Context) error) (Result, error) {
	p.logger.Info("payment initiated",
		"uid", intent.UserID,
		"intent_id", intent.ID.String(),
		"product", intent.ProductID,
		"kind", intent.Metadata[MetaKind],
		"amount", intent.Amount.String(),
	)

	ref, err := p.gateway.Charge(ctx, intent)
	if err != nil {
		return p.fail(ctx, intent, "", err)
	}
	if err := onSuccess(ctx); err != nil {
		return p.fail(ctx, intent, ref, err)
	}

	p.logger.Info("payment succeeded", "uid", intent.UserID, "payment_id", ref)
	if p.plugins != nil {
		p.plugins.EmitPaymentCompleted(ctx, intent.UserID, ref, intent.Amount)
	}
	return Result{Success: true, TransactionID: ref}, nil
}

func (p *Processor) fail(ctx context.Context, intent Intent, ref string, cause error) (Result, error) {
	p.logger.Error("payment failed",
		"uid", intent.UserID,
		"intent_id", intent.ID.String(),
		"payment_id", ref,
		"error", cause,
	)
	if p.plugins != nil {
		p.plugins.EmitPaymentFailed(ctx, intent.UserID, ref, intent.Amount, cause)
	}
	return Result{Success: false, Error: FailureMessage}, fmt.Errorf("%w: %w", credits.ErrPaymentFailed, cause)
}

func (p *Processor) apply(ctx context.Context, uid string, product plan.Product) error {
	switch product.Kind {
	case plan.ProductCreditPack:
		_, err := p.ledger.Credit(ctx, uid, product.Credits, transaction.KindPurchase, describe(product))
		return err
	case plan.ProductTemplateCredit:
		_, err := p.ledger.AddTemplateCredits(ctx, uid, 1)
		return err
	case plan.ProductPlanUpgrade:
		if err := p.ledger.UpdatePlan(ctx, uid, product.Plan); err != nil {
			return err
		}
		if product.Plan == plan.Pro {
			_, err := p.ledger.Credit(ctx, uid, credits.ProUpgradeBonus, transaction.KindBonus, "Pro upgrade bonus")
			return err
		}
		return nil
	default:
		return fmt.Errorf("payment: unsupported product kind %q", product.Kind)
	}
}

// Intent metadata keys.
const (
	MetaKind    = "kind"
	MetaCredits = "credits"
	MetaPlan    = "plan"
)

// metadata records what the charge buys so the gateway can show it.
func metadata(product plan.Product) map[string]string {
	md := map[string]string{MetaKind: string(product.Kind)}
	if product.Credits > 0 {
		md[MetaCredits] = strconv.FormatInt(product.Credits, 10)
	}
	if product.Plan != "" {
		md[MetaPlan] = string(product.Plan)
	}
	return md
}

func describe(product plan.Product) string {
	switch product.Kind {
	case plan.ProductCreditPack:
		return fmt.Sprintf("Purchase of %d AI Credits", product.Credits)
	case plan.ProductTemplateCredit:
		return "Purchase of Template Credit"
	case plan.ProductPlanUpgrade:
		return fmt.Sprintf("Upgrade to %s Plan", strings.ToUpper(string(product.Plan)))
	default:
		return product.Name
	}
}
