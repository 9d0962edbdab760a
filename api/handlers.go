package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/gate"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
)

// AccountResponse is an account with its next reset time.
type AccountResponse struct {
	*account.Account
	NextReset time.Time `json:"nextReset"`
}

// BalanceResponse is returned by balance-changing routes.
type BalanceResponse struct {
	Balance  int64 `json:"balance"`
	Charged  bool  `json:"charged"`
	Bypassed bool  `json:"bypassed,omitempty"`
}

type debitRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"required,max=200"`
}

type creditRequest struct {
	UID         string `json:"uid" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Type        string `json:"type" validate:"required,oneof=purchase bonus manual_adjustment"`
	Description string `json:"description" validate:"required,max=200"`
}

type planRequest struct {
	Plan string `json:"plan" validate:"required,oneof=free pro premium"`
}

type personalKeyRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	c := plan.DefaultCatalog()
	if s.payments != nil {
		c = s.payments.Catalog()
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleFeatures(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, gate.Features())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.Get(r.Context())
	if err != nil {
		s.logger.Warn("stats unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "stats unavailable", nil)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleGetAccount is the session-start call: it creates the account on
// first use and applies a due monthly reset.
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.ledger.FetchOrCreateAccount(r.Context(), ClaimsFromContext(r.Context()).Profile())
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{Account: a, NextReset: s.ledger.NextReset(a).UTC()})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteAccount(r.Context(), uidOf(r)); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.ledger.History(r.Context(), uidOf(r))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	if history == nil {
		history = []transaction.Transaction{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleDebit(w http.ResponseWriter, r *http.Request) {
	var req debitRequest
	if !s.decode(w, r, &req) {
		return
	}
	balance, err := s.ledger.Debit(r.Context(), uidOf(r), req.Amount, req.Description)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance, Charged: true})
}

// handleUseFeature charges a built-in feature. Accounts using their own
// provider key are not charged.
func (s *Server) handleUseFeature(w http.ResponseWriter, r *http.Request) {
	f, ok := gate.Lookup(chi.URLParam(r, "feature"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown feature", nil)
		return
	}
	d, err := s.gate.Run(r.Context(), uidOf(r), f, func(ctx context.Context) error { return nil })
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Balance: d.Balance, Charged: d.Charged, Bypassed: d.Bypassed})
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if !s.decode(w, r, &req) {
		return
	}
	balance, err := s.ledger.Credit(r.Context(), req.UID, req.Amount, transaction.Kind(req.Type), req.Description)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.logger.Info("manual credit", "admin", uidOf(r), "uid", req.UID, "amount", req.Amount, "type", req.Type)
	writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ledger.UpdatePlan(r.Context(), uidOf(r), plan.Plan(req.Plan)); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePersonalKey(w http.ResponseWriter, r *http.Request) {
	var req personalKeyRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ledger.SetPersonalAPIKey(r.Context(), uidOf(r), *req.Enabled); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	res, err := s.payments.Purchase(r.Context(), uidOf(r), chi.URLParam(r, "productID"))
	if err != nil {
		if errors.Is(err, credits.ErrPaymentFailed) {
			status := http.StatusBadGateway
			if isDeadline(err) {
				status = http.StatusGatewayTimeout
			}
			writeJSON(w, status, res)
			return
		}
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
