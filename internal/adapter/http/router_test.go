package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/iho/custodyledger/internal/adapter/http/dto"
	"github.com/iho/custodyledger/internal/adapter/http/handler"
	apimiddleware "github.com/iho/custodyledger/internal/adapter/http/middleware"
	"github.com/iho/custodyledger/internal/adapter/repository/memory"
	"github.com/iho/custodyledger/internal/infrastructure/metrics"
	"github.com/iho/custodyledger/internal/usecase"
	"github.com/iho/custodyledger/internal/usecase/mocks"
)

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	rl := apimiddleware.NewRateLimiter(1, 1)
	router := NewRouter(newRouterConfig(t, func(cfg *RouterConfig) {
		cfg.RateLimiter = rl
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig(t))

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"POST /api/v1/custodies/",
		"GET /api/v1/custodies/",
		"GET /api/v1/custodies/{id}",
		"GET /api/v1/custodies/{id}/remaining",
		"POST /api/v1/custodies/{id}/top-ups",
		"POST /api/v1/custodies/{id}/transactions",
		"POST /api/v1/custodies/{id}/payroll-runs",
		"PATCH /api/v1/transactions/{id}",
		"DELETE /api/v1/transactions/{id}",
		"GET /api/v1/ledger/consistency",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

// TestNewRouter_CustodyLifecycle drives the documented walkthrough: budget
// 1000, expense 300, rejected advance 800, amend to 200, reverse.
func TestNewRouter_CustodyLifecycle(t *testing.T) {
	router := NewRouter(newRouterConfig(t, func(cfg *RouterConfig) {
		cfg.IdempotencyStore = mocks.NewMockIdempotencyStore()
	}))

	var custody dto.CustodyResponse
	do(t, router, http.MethodPost, "/api/v1/custodies/", `{"name":"Site A","budget":"1000"}`, http.StatusCreated, &custody)
	base := "/api/v1/custodies/" + custody.ID

	var expense dto.TransactionResponse
	do(t, router, http.MethodPost, base+"/transactions", `{"kind":"expense","amount":"300"}`, http.StatusCreated, &expense)
	assertRemaining(t, router, custody.ID, "700")

	var rejection dto.ErrorResponse
	do(t, router, http.MethodPost, base+"/transactions", `{"kind":"advance","amount":"800"}`, http.StatusUnprocessableEntity, &rejection)
	if rejection.Code != "insufficient_balance" || rejection.CustodyID != custody.ID {
		t.Fatalf("unexpected rejection %+v", rejection)
	}
	assertRemaining(t, router, custody.ID, "700")

	do(t, router, http.MethodPatch, "/api/v1/transactions/"+expense.ID, `{"amount":"200"}`, http.StatusOK, nil)
	assertRemaining(t, router, custody.ID, "800")

	do(t, router, http.MethodDelete, "/api/v1/transactions/"+expense.ID, "", http.StatusNoContent, nil)
	assertRemaining(t, router, custody.ID, "1000")

	do(t, router, http.MethodGet, "/api/v1/transactions/"+expense.ID, "", http.StatusNotFound, nil)

	var consistency dto.ConsistencyResponse
	do(t, router, http.MethodGet, "/api/v1/ledger/consistency", "", http.StatusOK, &consistency)
	if !consistency.Consistent {
		t.Fatalf("expected consistent ledger, got %+v", consistency)
	}
}

func TestNewRouter_IdempotentApplyRunsOnce(t *testing.T) {
	router := NewRouter(newRouterConfig(t, func(cfg *RouterConfig) {
		cfg.IdempotencyStore = mocks.NewMockIdempotencyStore()
	}))

	var custody dto.CustodyResponse
	do(t, router, http.MethodPost, "/api/v1/custodies/", `{"name":"Site B","budget":"1000"}`, http.StatusCreated, &custody)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/custodies/"+custody.ID+"/transactions", strings.NewReader(`{"kind":"expense","amount":"100"}`))
		req.Header.Set(apimiddleware.IdempotencyKeyHeader, "receipt-77")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201, got %d", i, rec.Code)
		}
	}

	assertRemaining(t, router, custody.ID, "900")
}

func newRouterConfig(t *testing.T, opts ...func(*RouterConfig)) RouterConfig {
	t.Helper()

	store := memory.NewStore(time.Second)
	txManager := memory.NewTxManager(store)
	custodyRepo := memory.NewCustodyRepository(store)
	recordRepo := memory.NewTransactionRecordRepository(store)
	outboxRepo := memory.NewOutboxRepository(store)
	auditRepo := memory.NewAuditRepository(store)
	idGen := mocks.NewMockIDGenerator()

	ledgerUC := usecase.NewLedgerUseCase(txManager, custodyRepo, recordRepo, outboxRepo, auditRepo, idGen)
	custodyUC := usecase.NewCustodyUseCase(txManager, custodyRepo, outboxRepo, auditRepo, idGen)
	reconciliationUC := usecase.NewReconciliationUseCase(custodyRepo, memory.NewLedgerRepository(store))

	cfg := RouterConfig{
		CustodyHandler:        handler.NewCustodyHandler(custodyUC),
		TransactionHandler:    handler.NewTransactionHandler(ledgerUC),
		PayrollHandler:        handler.NewPayrollHandler(ledgerUC),
		ReconciliationHandler: handler.NewReconciliationHandler(reconciliationUC),
		HealthHandler:         handler.NewHealthHandler(),
		Metrics:               metrics.NewWithRegistry(prometheus.NewRegistry()),
		Logger:                zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

func do(t *testing.T, router http.Handler, method, path, body string, wantStatus int, out any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body)).WithContext(context.Background())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d: %s", method, path, wantStatus, rec.Code, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
}

func assertRemaining(t *testing.T, router http.Handler, custodyID, want string) {
	t.Helper()

	var resp dto.RemainingResponse
	do(t, router, http.MethodGet, "/api/v1/custodies/"+custodyID+"/remaining", "", http.StatusOK, &resp)
	if resp.Remaining != want {
		t.Fatalf("expected remaining %s, got %s", want, resp.Remaining)
	}
}
