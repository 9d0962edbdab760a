package payment_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/payment"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/store/memory"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

type paymentRecorder struct {
	mu        sync.Mutex
	completed []string
	failed    []string
}

func (r *paymentRecorder) Name() string { return "payment-recorder" }

func (r *paymentRecorder) OnPaymentCompleted(_ context.Context, uid, paymentID string, _ types.Money) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, uid+":"+paymentID)
	return nil
}

func (r *paymentRecorder) OnPaymentFailed(_ context.Context, uid, _ string, _ types.Money, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, uid)
	return nil
}

type declineGateway struct{}

func (declineGateway) Charge(context.Context, payment.Intent) (string, error) {
	return "", errors.New("card declined")
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func setup(t *testing.T, g payment.Gateway) (*credits.Ledger, *payment.Processor, *paymentRecorder) {
	t.Helper()
	l := credits.New(memory.New(), credits.WithLogger(quiet()))
	_, err := l.FetchOrCreateAccount(context.Background(), account.Profile{UID: "u1"})
	require.NoError(t, err)

	rec := &paymentRecorder{}
	reg := plugin.NewRegistry().WithLogger(quiet())
	require.NoError(t, reg.Register(rec))

	return l, payment.NewProcessor(g, l, payment.WithPlugins(reg), payment.WithLogger(quiet())), rec
}

func TestPurchaseCredits(t *testing.T) {
	l, p, rec := setup(t, payment.NewMockGateway(0))
	ctx := context.Background()

	res, err := p.PurchaseCredits(ctx, "u1", plan.ProductCredits10)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, strings.HasPrefix(res.TransactionID, "pay_"))

	a, err := l.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(35), a.Credits)
	assert.Equal(t, transaction.KindPurchase, a.History[0].Kind)
	assert.Equal(t, "Purchase of 10 AI Credits", a.History[0].Description)
	assert.Len(t, rec.completed, 1)
}

func TestPurchaseCreditsRejectsOtherProducts(t *testing.T) {
	_, p, _ := setup(t, payment.NewMockGateway(0))
	_, err := p.PurchaseCredits(context.Background(), "u1", plan.ProductPro)
	assert.ErrorIs(t, err, credits.ErrUnknownProduct)
}

func TestPurchaseTemplateCredit(t *testing.T) {
	l, p, _ := setup(t, payment.NewMockGateway(0))
	ctx := context.Background()

	res, err := p.PurchaseTemplateCredit(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Success)

	a, err := l.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.TemplateCredits)
	assert.Equal(t, int64(25), a.Credits)
	assert.Len(t, a.History, 1)
}

func TestUpgradeToPro(t *testing.T) {
	l, p, _ := setup(t, payment.NewMockGateway(0))
	ctx := context.Background()

	res, err := p.UpgradePlan(ctx, "u1", plan.Pro)
	require.NoError(t, err)
	assert.True(t, res.Success)

	a, err := l.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, plan.Pro, a.Plan)
	assert.Equal(t, int64(75), a.Credits)
	assert.Equal(t, transaction.KindBonus, a.History[0].Kind)
	assert.Equal(t, int64(50), a.History[0].Amount)
}

func TestUpgradeToUnsoldPlan(t *testing.T) {
	_, p, _ := setup(t, payment.NewMockGateway(0))
	_, err := p.UpgradePlan(context.Background(), "u1", plan.Premium)
	assert.ErrorIs(t, err, credits.ErrUnknownProduct)
}

func TestGatewayDecline(t *testing.T) {
	l, p, rec := setup(t, declineGateway{})
	ctx := context.Background()

	res, err := p.Purchase(ctx, "u1", plan.ProductCredits50)
	assert.ErrorIs(t, err, credits.ErrPaymentFailed)
	assert.Equal(t, payment.Result{Success: false, Error: payment.FailureMessage}, res)
	assert.Equal(t, []string{"u1"}, rec.failed)

	a, err := l.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(25), a.Credits)
}

func TestPostPaymentFailure(t *testing.T) {
	_, p, rec := setup(t, payment.NewMockGateway(0))

	res, err := p.Purchase(context.Background(), "ghost", plan.ProductCredits10)
	assert.ErrorIs(t, err, credits.ErrPaymentFailed)
	assert.ErrorIs(t, err, credits.ErrAccountNotFound)
	assert.False(t, res.Success)
	assert.Equal(t, payment.FailureMessage, res.Error)
	assert.Empty(t, rec.completed)
	assert.Len(t, rec.failed, 1)
}

func TestPurchaseValidation(t *testing.T) {
	_, p, _ := setup(t, payment.NewMockGateway(0))
	ctx := context.Background()

	_, err := p.Purchase(ctx, "", plan.ProductCredits10)
	assert.ErrorIs(t, err, credits.ErrInvalidInput)

	_, err = p.Purchase(ctx, "u1", "credits_1000")
	assert.ErrorIs(t, err, credits.ErrUnknownProduct)
}

func TestMockGatewayHonorsContext(t *testing.T) {
	g := payment.NewMockGateway(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Charge(ctx, payment.Intent{})
	assert.ErrorIs(t, err, context.Canceled)
}

type captureGateway struct {
	mu      sync.Mutex
	intents []payment.Intent
}

func (g *captureGateway) Charge(_ context.Context, in payment.Intent) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents = append(g.intents, in)
	return "pay_captured", nil
}

func TestIntentMetadata(t *testing.T) {
	g := &captureGateway{}
	_, p, _ := setup(t, g)
	ctx := context.Background()

	_, err := p.PurchaseCredits(ctx, "u1", plan.ProductCredits50)
	require.NoError(t, err)
	_, err = p.UpgradePlan(ctx, "u1", plan.Pro)
	require.NoError(t, err)

	require.Len(t, g.intents, 2)
	assert.Equal(t, map[string]string{
		payment.MetaKind:    string(plan.ProductCreditPack),
		payment.MetaCredits: "50",
	}, g.intents[0].Metadata)
	assert.Equal(t, types.INR(39900), g.intents[0].Amount)
	assert.Equal(t, map[string]string{
		payment.MetaKind: string(plan.ProductPlanUpgrade),
		payment.MetaPlan: "pro",
	}, g.intents[1].Metadata)
}

func TestPurchaseRejectsUnpricedProduct(t *testing.T) {
	g := &captureGateway{}
	l := credits.New(memory.New(), credits.WithLogger(quiet()))
	catalog := plan.Catalog{{ID: "free_pack", Name: "Free pack", Kind: plan.ProductCreditPack, Credits: 5, Price: types.INR(0)}}
	p := payment.NewProcessor(g, l, payment.WithCatalog(catalog), payment.WithLogger(quiet()))

	_, err := p.Purchase(context.Background(), "u1", "free_pack")
	assert.ErrorIs(t, err, credits.ErrInvalidInput)
	assert.Empty(t, g.intents)
}
