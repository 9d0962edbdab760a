// Package stats keeps app-wide usage counters in a Redis hash.
//
// The counters are marketing figures, not accounting: increments are
// best-effort and a failed increment is logged and dropped.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/transaction"
)

// DefaultKey is the hash holding the global counters.
const DefaultKey = "credits:stats:global"

// Hash fields.
const (
	FieldUsers        = "totalUsers"
	FieldResumes      = "totalResumes"
	FieldDownloads    = "totalDownloads"
	FieldCreditsSpent = "creditsSpent"
)

// GlobalStats is a snapshot of the counters. Missing counters read as zero.
type GlobalStats struct {
	TotalUsers     int64 `json:"totalUsers"`
	TotalResumes   int64 `json:"totalResumes"`
	TotalDownloads int64 `json:"totalDownloads"`
	CreditsSpent   int64 `json:"creditsSpent"`
}

// Compile-time interface checks.
var (
	_ plugin.Plugin           = (*Service)(nil)
	_ plugin.OnAccountCreated = (*Service)(nil)
	_ plugin.OnCreditsDebited = (*Service)(nil)
)

// Service reads and increments the counters. Registered as a ledger
// plugin it counts sign-ups and spent credits.
type Service struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(s *Service) { s.key = key }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service.
func New(client redis.UniversalClient, opts ...Option) *Service {
	s := &Service{client: client, key: DefaultKey, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements plugin.Plugin.
func (s *Service) Name() string { return "stats" }

// Get returns the current counters.
func (s *Service) Get(ctx context.Context) (GlobalStats, error) {
	vals, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return GlobalStats{}, fmt.Errorf("stats: read counters: %w", err)
	}

	var out GlobalStats
	for field, dst := range map[string]*int64{
		FieldUsers:        &out.TotalUsers,
		FieldResumes:      &out.TotalResumes,
		FieldDownloads:    &out.TotalDownloads,
		FieldCreditsSpent: &out.CreditsSpent,
	} {
		raw, ok := vals[field]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return GlobalStats{}, fmt.Errorf("stats: counter %s: %w", field, err)
		}
		*dst = n
	}
	return out, nil
}

// IncrementResumes counts a created resume.
func (s *Service) IncrementResumes(ctx context.Context) { s.incr(ctx, FieldResumes, 1) }

// IncrementDownloads counts an exported resume.
func (s *Service) IncrementDownloads(ctx context.Context) { s.incr(ctx, FieldDownloads, 1) }

// OnAccountCreated counts a sign-up.
func (s *Service) OnAccountCreated(ctx context.Context, _ *account.Account) error {
	s.incr(ctx, FieldUsers, 1)
	return nil
}

// OnCreditsDebited adds the debited amount to the spent counter.
func (s *Service) OnCreditsDebited(ctx context.Context, _ string, tx transaction.Transaction, _ int64) error {
	s.incr(ctx, FieldCreditsSpent, -tx.Amount)
	return nil
}

func (s *Service) incr(ctx context.Context, field string, by int64) {
	if err := s.client.HIncrBy(ctx, s.key, field, by).Err(); err != nil {
		s.logger.Warn("stats increment failed", "field", field, "error", err)
	}
}
