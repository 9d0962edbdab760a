// Command creditsd serves the credits ledger over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/credits"
	"github.com/xraph/credits/api"
	"github.com/xraph/credits/eventbus"
	"github.com/xraph/credits/payment"
	"github.com/xraph/credits/stats"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/store/memory"
	mongostore "github.com/xraph/credits/store/mongo"
	"github.com/xraph/credits/store/postgres"
	redisstore "github.com/xraph/credits/store/redis"
	"github.com/xraph/credits/store/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("creditsd exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	redisUp := rdb.Ping(ctx).Err() == nil
	if !redisUp {
		logger.Warn("redis unavailable, stats disabled", "addr", cfg.RedisAddr)
	}

	st, err := openStore(ctx, cfg, rdb, redisUp)
	if err != nil {
		return err
	}

	opts := []credits.Option{
		credits.WithLogger(logger),
		credits.WithPolicy(cfg.Policy),
	}

	var statsSvc *stats.Service
	if redisUp {
		statsSvc = stats.New(rdb, stats.WithLogger(logger))
		opts = append(opts, credits.WithPlugin(statsSvc))
	}

	if cfg.AMQPURL != "" {
		pub, err := eventbus.Dial(cfg.AMQPURL, eventbus.WithLogger(logger))
		if err != nil {
			return err
		}
		opts = append(opts, credits.WithPlugin(pub))
	}

	ledger := credits.New(st, opts...)
	if err := ledger.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := ledger.Stop(); err != nil {
			logger.Warn("ledger stop failed", "error", err)
		}
	}()

	processor := payment.NewProcessor(
		payment.NewMockGateway(cfg.PaymentLatency),
		ledger,
		payment.WithPlugins(ledger.Plugins()),
		payment.WithLogger(logger),
	)

	apiOpts := []api.Option{
		api.WithPayments(processor),
		api.WithHealth(st),
		api.WithAllowedOrigins(cfg.AllowedOrigins...),
		api.WithLogger(logger),
	}
	if statsSvc != nil {
		apiOpts = append(apiOpts, api.WithStats(statsSvc))
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.New(ledger, []byte(cfg.JWTSecret), apiOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("creditsd listening", "addr", cfg.Addr, "store", cfg.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("creditsd shutting down")
	return srv.Shutdown(shutdownCtx)
}

// openStore connects the configured account store.
func openStore(ctx context.Context, cfg config, rdb *redis.Client, redisUp bool) (store.Store, error) {
	switch cfg.Driver {
	case driverMemory:
		return memory.New(), nil

	case driverRedis:
		if !redisUp {
			return nil, fmt.Errorf("redis store: %s unreachable", cfg.RedisAddr)
		}
		return redisstore.New(rdb), nil

	case driverPostgres:
		pg := pgdriver.New()
		if err := pg.Open(ctx, cfg.DSN); err != nil {
			return nil, err
		}
		db, err := grove.Open(pg)
		if err != nil {
			return nil, err
		}
		return postgres.New(db), nil

	case driverSQLite:
		lite := sqlitedriver.New()
		if err := lite.Open(ctx, cfg.DSN); err != nil {
			return nil, err
		}
		db, err := grove.Open(lite)
		if err != nil {
			return nil, err
		}
		return sqlite.New(db), nil

	case driverMongo:
		mdb := mongodriver.New()
		if err := mdb.Open(ctx, cfg.DSN); err != nil {
			return nil, err
		}
		db, err := grove.Open(mdb)
		if err != nil {
			return nil, err
		}
		return mongostore.New(db), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
