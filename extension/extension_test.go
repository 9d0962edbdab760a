package extension

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/gate"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/store/memory"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{MonthlyAllotment: 40})
	assert.Equal(t, int64(40), cfg.MonthlyAllotment)
	assert.Equal(t, credits.WelcomeBonus, cfg.WelcomeBonus)
	assert.Equal(t, credits.ResetInterval, cfg.ResetInterval)
	assert.Equal(t, credits.HistoryLimit, cfg.HistoryLimit)
	assert.Equal(t, 1500*time.Millisecond, cfg.MockLatency())
}

func TestZeroPaymentLatencySurvivesMerge(t *testing.T) {
	zero := time.Duration(0)

	cfg := mergeWithDefaults(Config{PaymentLatency: &zero})
	assert.Equal(t, time.Duration(0), cfg.MockLatency())

	cfg = mergeConfigurations(Config{}, Config{PaymentLatency: &zero})
	assert.Equal(t, time.Duration(0), cfg.MockLatency())

	second := time.Second
	cfg = mergeConfigurations(Config{PaymentLatency: &zero}, Config{PaymentLatency: &second})
	assert.Equal(t, time.Duration(0), cfg.MockLatency())

	assert.Equal(t, 1500*time.Millisecond, Config{}.MockLatency())
}

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{HistoryLimit: 20}
	prog := Config{HistoryLimit: 10, MonthlyAllotment: 30, DisableMigrate: true}

	cfg := mergeConfigurations(yaml, prog)
	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.Equal(t, int64(30), cfg.MonthlyAllotment)
	assert.True(t, cfg.DisableMigrate)
	assert.Equal(t, credits.WelcomeBonus, cfg.WelcomeBonus)
}

func TestConfigPolicy(t *testing.T) {
	assert.Equal(t, credits.DefaultPolicy(), DefaultConfig().Policy())
}

func TestBuildWiresConsumers(t *testing.T) {
	st := memory.New()
	e := New(WithStore(st), WithHistoryLimit(3), WithPaymentLatency(0))
	e.config = mergeWithDefaults(e.config)
	e.build()

	require.NotNil(t, e.Ledger())
	assert.Equal(t, 3, e.Ledger().Policy().HistoryLimit)

	ctx := context.Background()
	_, err := e.Ledger().FetchOrCreateAccount(ctx, account.Profile{UID: "u1"})
	require.NoError(t, err)

	_, err = e.Gate().Run(ctx, "u1", gate.ResumeAI, func(context.Context) error { return nil })
	require.NoError(t, err)

	res, err := e.Payments().Purchase(ctx, "u1", plan.ProductCredits10)
	require.NoError(t, err)
	assert.True(t, res.Success)

	a, err := e.Ledger().GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(34), a.Credits)

	assert.NoError(t, e.Health(ctx))
}
