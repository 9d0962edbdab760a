package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/credits"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CREDITS_JWT_SECRET", "s3cret")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, driverMemory, cfg.Driver)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 1500*time.Millisecond, cfg.PaymentLatency)
	assert.Equal(t, credits.DefaultPolicy(), cfg.Policy)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CREDITS_JWT_SECRET", "s3cret")
	t.Setenv("CREDITS_STORE_DRIVER", "Postgres")
	t.Setenv("CREDITS_STORE_DSN", "postgres://localhost/credits")
	t.Setenv("CREDITS_LOG_LEVEL", "debug")
	t.Setenv("CREDITS_POLICY_HISTORY_LIMIT", "20")
	t.Setenv("CREDITS_POLICY_RESET_INTERVAL", "24h")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, driverPostgres, cfg.Driver)
	assert.Equal(t, "postgres://localhost/credits", cfg.DSN)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 20, cfg.Policy.HistoryLimit)
	assert.Equal(t, 24*time.Hour, cfg.Policy.ResetInterval)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config
		wantErr string
	}{
		{"memory ok", config{Driver: driverMemory, JWTSecret: "x"}, ""},
		{"missing secret", config{Driver: driverMemory}, "JWT_SECRET"},
		{"sql needs dsn", config{Driver: driverSQLite, JWTSecret: "x"}, "STORE_DSN"},
		{"unknown driver", config{Driver: "etcd", JWTSecret: "x"}, "unknown store driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
