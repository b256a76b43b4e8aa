package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"logibill/internal/core/numbering"
	"logibill/internal/domain/auth"
	domain "logibill/internal/domain/numbering"
	v1 "logibill/internal/infrastructure/http/v1"
	"logibill/internal/infrastructure/http/v1/handlers"
	"logibill/internal/infrastructure/http/v1/middleware"
	"logibill/internal/infrastructure/metrics"
	"logibill/internal/infrastructure/storage/memory"
	"logibill/pkg/logger"
)

type failingPinger struct{}

func (failingPinger) Ready(context.Context) error { return errors.New("connection refused") }

type testAPI struct {
	handler http.Handler
	store   *memory.Store
	jwt     *auth.JWTService
}

func newTestAPI(t *testing.T, mutate func(*v1.RouterConfig)) *testAPI {
	t.Helper()

	store := memory.NewStore()
	store.Seed(numbering.DefaultConfigs()...)

	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig("router-test-secret"))
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := v1.RouterConfig{
		Logger:           logger.NewNop(),
		JWTValidator:     jwtSvc,
		AuthService:      auth.NewService(jwtSvc, auth.Client{ID: "billing-ui", SecretHash: string(hash), Scopes: []string{auth.ScopeAll}}),
		NumberingService: domain.NewService(store, &memory.TxManager{}),
		Metrics:          metrics.New(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	return &testAPI{handler: v1.NewRouter(cfg), store: store, jwt: jwtSvc}
}

func (a *testAPI) token(t *testing.T, scopes ...string) string {
	t.Helper()
	if len(scopes) == 0 {
		scopes = []string{auth.ScopeAll}
	}
	tok, _, err := a.jwt.GenerateAccessToken("billing-ui", scopes)
	require.NoError(t, err)
	return tok
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRouter_RequiresBearerToken(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/api/v1/numbering/configs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[map[string]any](t, rec)["code"])

	rec = api.do(t, http.MethodGet, "/api/v1/numbering/configs", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_IssueTokenAndList(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/v1/auth/token", "", map[string]string{
		"clientId": "billing-ui", "clientSecret": "s3cret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok := decode[map[string]any](t, rec)
	accessToken, _ := tok["accessToken"].(string)
	require.NotEmpty(t, accessToken)
	assert.Equal(t, "Bearer", tok["tokenType"])

	rec = api.do(t, http.MethodGet, "/api/v1/numbering/configs", accessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfgs := decode[[]numbering.Config](t, rec)
	require.Len(t, cfgs, 2)
	assert.Equal(t, numbering.TypeConsignment, cfgs[0].Type)
	assert.Equal(t, int64(5001), cfgs[0].CurrentNumber)
	assert.Equal(t, "LR", cfgs[0].Prefix)
	assert.Equal(t, numbering.TypeInvoice, cfgs[1].Type)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/token", "", map[string]string{
		"clientId": "billing-ui", "clientSecret": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AdvanceIsCompareAndSet(t *testing.T) {
	api := newTestAPI(t, nil)
	tok := api.token(t)

	rec := api.do(t, http.MethodPut, "/api/v1/numbering/configs/invoice/current", tok, map[string]int64{"currentNumber": 1002})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ack := decode[map[string]any](t, rec)
	assert.Equal(t, "invoice", ack["type"])
	assert.Equal(t, float64(1002), ack["currentNumber"])

	// A second client that also read 1001 loses.
	rec = api.do(t, http.MethodPut, "/api/v1/numbering/configs/invoice/current", tok, map[string]int64{"currentNumber": 1002})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONCURRENT_MODIFICATION", decode[map[string]any](t, rec)["code"])

	rec = api.do(t, http.MethodGet, "/api/v1/numbering/configs/invoice", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1002), decode[numbering.Config](t, rec).CurrentNumber)
}

func TestRouter_AdvanceValidation(t *testing.T) {
	api := newTestAPI(t, nil)
	tok := api.token(t)

	rec := api.do(t, http.MethodPut, "/api/v1/numbering/configs/waybill/current", tok, map[string]int64{"currentNumber": 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/v1/numbering/configs/invoice/current", tok, map[string]int64{"currentNumber": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AdvanceMissingConfig(t *testing.T) {
	api := newTestAPI(t, nil)
	api.store = memory.NewStore()
	api.handler = v1.NewRouter(v1.RouterConfig{
		Logger:           logger.NewNop(),
		JWTValidator:     api.jwt,
		NumberingService: domain.NewService(api.store, &memory.TxManager{}),
	})

	rec := api.do(t, http.MethodPut, "/api/v1/numbering/configs/consignment/current", api.token(t), map[string]int64{"currentNumber": 5002})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_SaveDuplicateAndRecord(t *testing.T) {
	api := newTestAPI(t, nil)
	tok := api.token(t)

	rec := api.do(t, http.MethodPost, "/api/v1/numbering/configs", tok, map[string]any{
		"type": "consignment", "startingNumber": 9000, "prefix": "LR",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[numbering.Config](t, rec)
	assert.Equal(t, int64(9000), saved.StartingNumber)
	assert.Equal(t, int64(9000), saved.CurrentNumber)
	assert.False(t, saved.UpdatedAt.IsZero())

	rec = api.do(t, http.MethodPost, "/api/v1/numbering/duplicates/check", tok, map[string]any{"type": "consignment", "number": 9000})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["isDuplicate"])

	rec = api.do(t, http.MethodPost, "/api/v1/numbering/documents", tok, map[string]any{"type": "consignment", "number": 9000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/v1/numbering/duplicates/check", tok, map[string]any{"type": "consignment", "number": 9000})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["isDuplicate"])

	rec = api.do(t, http.MethodPost, "/api/v1/numbering/documents", tok, map[string]any{"type": "consignment", "number": 9000})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/numbering/configs", tok, map[string]any{
		"type": "invoice", "startingNumber": 0, "prefix": "INV",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Scopes(t *testing.T) {
	api := newTestAPI(t, nil)
	readOnly := api.token(t, auth.ScopeRead)

	rec := api.do(t, http.MethodGet, "/api/v1/numbering/configs", readOnly, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/v1/numbering/configs/invoice/current", readOnly, map[string]int64{"currentNumber": 1002})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	writer := api.token(t, auth.ScopeRead, auth.ScopeWrite)
	rec = api.do(t, http.MethodPost, "/api/v1/numbering/configs", writer, map[string]any{
		"type": "invoice", "startingNumber": 2000, "prefix": "INV",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	api := newTestAPI(t, func(cfg *v1.RouterConfig) {
		cfg.RateLimiter = middleware.NewRateLimiter(0.001, 2)
	})
	tok := api.token(t)

	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/v1/numbering/configs", tok, nil).Code)
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/v1/numbering/configs", tok, nil).Code)

	rec := api.do(t, http.MethodGet, "/api/v1/numbering/configs", tok, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))

	rec = api.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	_ = api.do(t, http.MethodGet, "/api/v1/numbering/configs", api.token(t), nil)
	rec = api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/v1/numbering/configs"`)

	down := newTestAPI(t, func(cfg *v1.RouterConfig) {
		cfg.ReadinessChecks = map[string]handlers.Pinger{"database": failingPinger{}}
	})
	rec = down.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", decode[map[string]any](t, rec)["status"])
}

func TestRouter_RequestIDIsEchoed(t *testing.T) {
	api := newTestAPI(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(middleware.HeaderRequestID))
}
