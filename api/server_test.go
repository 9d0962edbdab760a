package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/credits"
	"github.com/xraph/credits/api"
	"github.com/xraph/credits/payment"
	"github.com/xraph/credits/store/memory"
)

var secret = []byte("test-secret")

type fixture struct {
	ledger *credits.Ledger
	store  *memory.Store
	srv    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New()
	now := time.UnixMilli(1_700_000_000_000)
	l := credits.New(st,
		credits.WithLogger(logger),
		credits.WithClock(func() time.Time { return now }),
	)
	proc := payment.NewProcessor(payment.NewMockGateway(0), l, payment.WithLogger(logger))

	srv := httptest.NewServer(api.New(l, secret,
		api.WithPayments(proc),
		api.WithHealth(st),
		api.WithLogger(logger),
	).Handler())
	t.Cleanup(srv.Close)

	return &fixture{ledger: l, store: st, srv: srv}
}

func token(t *testing.T, sub string, admin bool) string {
	t.Helper()
	claims := api.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: sub + "@example.com",
		Name:  "User " + sub,
		Admin: admin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return signed
}

func (f *fixture) do(t *testing.T, method, path, tok string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, f.srv.URL+path, rd)
	require.NoError(t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/api/v1/account", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/account", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"}).
		SignedString([]byte("other-secret"))
	require.NoError(t, err)
	resp, _ = f.do(t, http.MethodGet, "/api/v1/account", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetAccountCreatesOnFirstUse(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/v1/account", token(t, "u1", false), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u1", body["uid"])
	assert.Equal(t, "u1@example.com", body["email"])
	assert.Equal(t, "User u1", body["displayName"])
	assert.Equal(t, "free", body["plan"])
	assert.EqualValues(t, 25, body["credits"])
	assert.NotEmpty(t, body["nextReset"])
	assert.Len(t, body["creditHistory"], 1)
	assert.Equal(t, 1, f.store.Len())
}

func TestDebitAndInsufficient(t *testing.T) {
	f := newFixture(t)
	tok := token(t, "u1", false)
	f.do(t, http.MethodGet, "/api/v1/account", tok, nil)

	resp, body := f.do(t, http.MethodPost, "/api/v1/account/debit", tok, map[string]any{
		"amount": 24, "description": "bulk",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["balance"])

	resp, body = f.do(t, http.MethodPost, "/api/v1/features/interview_session/use", tok, nil)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.EqualValues(t, 1, body["balance"])
	assert.EqualValues(t, 5, body["required"])
	assert.NotEmpty(t, body["next_reset"])

	resp, body = f.do(t, http.MethodPost, "/api/v1/features/resume_ai/use", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["balance"])
	assert.Equal(t, true, body["charged"])
}

func TestDebitValidation(t *testing.T) {
	f := newFixture(t)
	tok := token(t, "u1", false)
	f.do(t, http.MethodGet, "/api/v1/account", tok, nil)

	resp, body := f.do(t, http.MethodPost, "/api/v1/account/debit", tok, map[string]any{"amount": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["details"], "Amount")
	assert.Contains(t, body["details"], "Description")

	resp, _ = f.do(t, http.MethodPost, "/api/v1/features/teleport/use", tok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPersonalKeyBypass(t *testing.T) {
	f := newFixture(t)
	tok := token(t, "u1", false)
	f.do(t, http.MethodGet, "/api/v1/account", tok, nil)

	resp, _ := f.do(t, http.MethodPut, "/api/v1/account/personal-key", tok, map[string]any{"enabled": true})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/v1/features/interview_session/use", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["bypassed"])
	assert.EqualValues(t, 25, body["balance"])

	resp, _ = f.do(t, http.MethodPut, "/api/v1/account/personal-key", tok, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestManualCreditRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/v1/account", token(t, "u1", false), nil)

	req := map[string]any{"uid": "u1", "amount": 10, "type": "manual_adjustment", "description": "support"}

	resp, _ := f.do(t, http.MethodPost, "/api/v1/account/credit", token(t, "u1", false), req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/v1/account/credit", token(t, "ops", true), req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 35, body["balance"])

	req["type"] = "usage"
	resp, _ = f.do(t, http.MethodPost, "/api/v1/account/credit", token(t, "ops", true), req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req["type"] = "manual_adjustment"
	req["amount"] = int64(math.MaxInt64)
	resp, _ = f.do(t, http.MethodPost, "/api/v1/account/credit", token(t, "ops", true), req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlanAndHistoryAndDelete(t *testing.T) {
	f := newFixture(t)
	tok := token(t, "u1", false)
	f.do(t, http.MethodGet, "/api/v1/account", tok, nil)

	resp, _ := f.do(t, http.MethodPut, "/api/v1/account/plan", tok, map[string]any{"plan": "premium"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPut, "/api/v1/account/plan", tok, map[string]any{"plan": "gold"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	a, err := f.ledger.GetAccount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "premium", string(a.Plan))

	resp, _ = f.do(t, http.MethodGet, "/api/v1/account/history", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/api/v1/account", tok, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/account/history", tok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/api/v1/account", tok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPurchase(t *testing.T) {
	f := newFixture(t)
	tok := token(t, "u1", false)
	f.do(t, http.MethodGet, "/api/v1/account", tok, nil)

	resp, body := f.do(t, http.MethodPost, "/api/v1/payments/credits_50", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["transactionId"])

	a, err := f.ledger.GetAccount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(75), a.Credits)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/payments/credits_1000", tok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/api/v1/payments/credits_10", token(t, "ghost", false), nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, payment.FailureMessage, body["error"])
}

func TestPublicRoutes(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, _ = f.do(t, http.MethodGet, "/api/v1/catalog", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/features", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/stats", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.Stop())

	resp, _ := f.do(t, http.MethodGet, "/api/v1/account", token(t, "u1", false), nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
