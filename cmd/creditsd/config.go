package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xraph/credits"
)

// Store drivers.
const (
	driverMemory   = "memory"
	driverRedis    = "redis"
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
	driverMongo    = "mongo"
)

type config struct {
	Addr           string
	LogLevel       slog.Level
	Driver         string
	DSN            string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	JWTSecret      string
	AMQPURL        string
	AllowedOrigins []string
	PaymentLatency time.Duration
	Policy         credits.Policy
}

// loadConfig reads CREDITS_* environment variables and, when
// CREDITS_CONFIG names a file, that file.
func loadConfig() (config, error) {
	v := viper.New()
	v.SetEnvPrefix("credits")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	p := credits.DefaultPolicy()
	v.SetDefault("addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("store.driver", driverMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("amqp.url", "")
	v.SetDefault("cors.origins", []string{"https://*", "http://*"})
	v.SetDefault("payment.latency", "1500ms")
	v.SetDefault("policy.welcome_bonus", p.WelcomeBonus)
	v.SetDefault("policy.monthly_allotment", p.MonthlyAllotment)
	v.SetDefault("policy.reset_interval", p.ResetInterval)
	v.SetDefault("policy.history_limit", p.HistoryLimit)

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
		return config{}, fmt.Errorf("log level: %w", err)
	}

	cfg := config{
		Addr:           v.GetString("addr"),
		LogLevel:       level,
		Driver:         strings.ToLower(v.GetString("store.driver")),
		DSN:            v.GetString("store.dsn"),
		RedisAddr:      v.GetString("redis.addr"),
		RedisPassword:  v.GetString("redis.password"),
		RedisDB:        v.GetInt("redis.db"),
		JWTSecret:      v.GetString("jwt.secret"),
		AMQPURL:        v.GetString("amqp.url"),
		AllowedOrigins: v.GetStringSlice("cors.origins"),
		PaymentLatency: v.GetDuration("payment.latency"),
		Policy: credits.Policy{
			WelcomeBonus:     v.GetInt64("policy.welcome_bonus"),
			MonthlyAllotment: v.GetInt64("policy.monthly_allotment"),
			ResetInterval:    v.GetDuration("policy.reset_interval"),
			HistoryLimit:     v.GetInt("policy.history_limit"),
		},
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch c.Driver {
	case driverMemory, driverRedis:
	case driverPostgres, driverSQLite, driverMongo:
		if c.DSN == "" {
			return fmt.Errorf("store driver %s requires CREDITS_STORE_DSN", c.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Driver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("CREDITS_JWT_SECRET is required")
	}
	return nil
}
