package observability_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/observability"
	"github.com/xraph/credits/store/memory"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

type metric struct {
	mu     sync.Mutex
	total  float64
	values []float64
}

func (m *metric) Inc() { m.Add(1) }

func (m *metric) Add(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total += v
}

func (m *metric) Observe(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = append(m.values, v)
}

type factory struct {
	metrics map[string]*metric
}

func newFactory() *factory { return &factory{metrics: map[string]*metric{}} }

func (f *factory) get(name string) *metric {
	if m, ok := f.metrics[name]; ok {
		return m
	}
	m := &metric{}
	f.metrics[name] = m
	return m
}

func (f *factory) Counter(name string) observability.Counter     { return f.get(name) }
func (f *factory) Histogram(name string) observability.Histogram { return f.get(name) }

func TestLedgerMetrics(t *testing.T) {
	f := newFactory()
	now := time.UnixMilli(1_700_000_000_000)
	l := credits.New(memory.New(),
		credits.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		credits.WithClock(func() time.Time { return now }),
		credits.WithPlugin(observability.NewMetricsExtension(f)),
	)
	ctx := context.Background()

	_, err := l.FetchOrCreateAccount(ctx, account.Profile{UID: "u1"})
	require.NoError(t, err)
	_, err = l.Debit(ctx, "u1", 5, "Interview session")
	require.NoError(t, err)
	_, err = l.Debit(ctx, "u1", 1, "AI resume assistance")
	require.NoError(t, err)
	_, err = l.Debit(ctx, "u1", 100, "too much")
	require.Error(t, err)
	_, err = l.Credit(ctx, "u1", 10, transaction.KindPurchase, "pack")
	require.NoError(t, err)
	_, err = l.AddTemplateCredits(ctx, "u1", 2)
	require.NoError(t, err)

	now = now.Add(credits.ResetInterval + time.Millisecond)
	_, err = l.FetchOrCreateAccount(ctx, account.Profile{UID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, f.get("credits.account.created").total)
	assert.Equal(t, 2.0, f.get("credits.debit.count").total)
	assert.Equal(t, 6.0, f.get("credits.debit.amount").total)
	assert.Equal(t, []float64{5, 1}, f.get("credits.debit.size").values)
	assert.Equal(t, 1.0, f.get("credits.debit.denied").total)
	assert.Equal(t, 10.0, f.get("credits.grant.amount").total)
	assert.Equal(t, 2.0, f.get("credits.template.added").total)
	assert.Equal(t, 1.0, f.get("credits.reset.count").total)
	assert.Equal(t, []float64{-4}, f.get("credits.reset.adjustment").values)
}

func TestPaymentMetrics(t *testing.T) {
	f := newFactory()
	m := observability.NewMetricsExtension(f)
	ctx := context.Background()

	require.NoError(t, m.OnPaymentCompleted(ctx, "u1", "pay_1", types.INR(39900)))
	require.NoError(t, m.OnPaymentFailed(ctx, "u1", "", types.INR(9900), nil))

	assert.Equal(t, 1.0, f.get("credits.payment.completed").total)
	assert.Equal(t, 39900.0, f.get("credits.payment.revenue_minor").total)
	assert.Equal(t, 1.0, f.get("credits.payment.failed").total)
}
