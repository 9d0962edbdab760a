// Package api exposes the credits ledger over HTTP.
//
// Every route under /api/v1 except the catalog, stats and health
// endpoints requires an HMAC-signed bearer token whose subject is the
// account uid.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/gate"
	"github.com/xraph/credits/payment"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/stats"
	"github.com/xraph/credits/transaction"
)

// Ledger is the ledger surface served by the API.
type Ledger interface {
	FetchOrCreateAccount(ctx context.Context, p account.Profile) (*account.Account, error)
	GetAccount(ctx context.Context, uid string) (*account.Account, error)
	RefreshAccount(ctx context.Context, uid string) (*account.Account, error)
	History(ctx context.Context, uid string) ([]transaction.Transaction, error)
	NextReset(a *account.Account) time.Time
	Debit(ctx context.Context, uid string, amount int64, description string) (int64, error)
	Credit(ctx context.Context, uid string, amount int64, kind transaction.Kind, description string) (int64, error)
	UpdatePlan(ctx context.Context, uid string, p plan.Plan) error
	SetPersonalAPIKey(ctx context.Context, uid string, enabled bool) error
	DeleteAccount(ctx context.Context, uid string) error
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the HTTP API.
type Server struct {
	ledger    Ledger
	gate      *gate.Gate
	payments  *payment.Processor
	stats     *stats.Service
	health    Pinger
	secret    []byte
	origins   []string
	timeout   time.Duration
	logger    *slog.Logger
	validator *validator.Validate
}

// Option configures a Server.
type Option func(*Server)

// WithPayments enables the payment routes.
func WithPayments(p *payment.Processor) Option {
	return func(s *Server) { s.payments = p }
}

// WithStats enables GET /api/v1/stats.
func WithStats(st *stats.Service) Option {
	return func(s *Server) { s.stats = st }
}

// WithHealth makes GET /health ping the given backend.
func WithHealth(p Pinger) Option {
	return func(s *Server) { s.health = p }
}

// WithAllowedOrigins sets the CORS origins. Defaults to any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server. secret verifies bearer tokens.
func New(l Ledger, secret []byte, opts ...Option) *Server {
	s := &Server{
		ledger:    l,
		secret:    secret,
		origins:   []string{"https://*", "http://*"},
		timeout:   30 * time.Second,
		logger:    slog.Default(),
		validator: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.gate = gate.New(l, gate.WithLogger(s.logger))
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)
		r.Get("/features", s.handleFeatures)
		if s.stats != nil {
			r.Get("/stats", s.handleStats)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/account", s.handleGetAccount)
			r.Delete("/account", s.handleDeleteAccount)
			r.Get("/account/history", s.handleHistory)
			r.Post("/account/debit", s.handleDebit)
			r.Put("/account/plan", s.handleUpdatePlan)
			r.Put("/account/personal-key", s.handlePersonalKey)
			r.With(requireAdmin).Post("/account/credit", s.handleCredit)
			r.Post("/features/{feature}/use", s.handleUseFeature)

			if s.payments != nil {
				r.Post("/payments/{productID}", s.handlePurchase)
			}
		})
	})

	return r
}

// decode reads and validates a JSON body. It writes the error response
// itself and reports whether the handler may continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", nil)
		return false
	}
	if err := s.validator.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return false
	}
	return true
}

func uidOf(r *http.Request) string {
	if c := ClaimsFromContext(r.Context()); c != nil {
		return c.Subject
	}
	return ""
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
