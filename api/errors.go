package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/credits"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`

	// Set on 402 responses.
	Balance   *int64     `json:"balance,omitempty"`
	Required  int64      `json:"required,omitempty"`
	NextReset *time.Time `json:"next_reset,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, status int, message string, validationErr error) {
	resp := ErrorResponse{Error: message}
	var verrs validator.ValidationErrors
	if errors.As(validationErr, &verrs) {
		resp.Details = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			resp.Details[fe.Field()] = fmt.Sprintf("failed on '%s'", fe.Tag())
		}
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps ledger errors onto HTTP statuses.
func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	if ie, ok := credits.AsInsufficient(err); ok {
		balance := ie.Balance
		next := ie.NextReset.UTC()
		writeJSON(w, http.StatusPaymentRequired, ErrorResponse{
			Error:     "insufficient credits",
			Balance:   &balance,
			Required:  ie.Required,
			NextReset: &next,
		})
		return
	}

	switch {
	case errors.Is(err, credits.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account not found", nil)
	case errors.Is(err, credits.ErrUnknownProduct):
		writeError(w, http.StatusNotFound, "unknown product", nil)
	case errors.Is(err, credits.ErrInvalidAmount),
		errors.Is(err, credits.ErrInvalidKind),
		errors.Is(err, credits.ErrInvalidPlan),
		errors.Is(err, credits.ErrInvalidInput),
		errors.Is(err, credits.ErrBalanceOverflow):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, credits.ErrStoreUnavailable),
		errors.Is(err, credits.ErrStoreClosed):
		s.logger.Error("store unavailable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable", nil)
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
