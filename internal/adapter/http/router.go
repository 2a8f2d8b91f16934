package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/custodyledger/internal/adapter/http/handler"
	"github.com/iho/custodyledger/internal/adapter/http/middleware"
	"github.com/iho/custodyledger/internal/infrastructure/metrics"
	"github.com/iho/custodyledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	CustodyHandler        *handler.CustodyHandler
	TransactionHandler    *handler.TransactionHandler
	PayrollHandler        *handler.PayrollHandler
	ReconciliationHandler *handler.ReconciliationHandler
	HealthHandler         *handler.HealthHandler
	IdempotencyStore      usecase.IdempotencyStore
	IdempotencyTTL        time.Duration
	RateLimiter           *middleware.RateLimiter
	Metrics               *metrics.Metrics
	MetricsHandler        http.Handler
	Logger                zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestContext)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotency := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore).
				WithTTL(cfg.IdempotencyTTL).
				WithLogger(cfg.Logger)
			r.Use(idempotency.Wrap)
		}

		// Custodies
		r.Route("/custodies", func(r chi.Router) {
			r.Post("/", cfg.CustodyHandler.Create)
			r.Get("/", cfg.CustodyHandler.List)
			r.Get("/{id}", cfg.CustodyHandler.Get)
			r.Get("/{id}/remaining", cfg.TransactionHandler.Remaining)
			r.Post("/{id}/top-ups", cfg.CustodyHandler.TopUp)
			r.Post("/{id}/activate", cfg.CustodyHandler.Activate)
			r.Post("/{id}/deactivate", cfg.CustodyHandler.Deactivate)
			r.Post("/{id}/transactions", cfg.TransactionHandler.Apply)
			r.Get("/{id}/transactions", cfg.TransactionHandler.ListByCustody)
			r.Post("/{id}/payroll-runs", cfg.PayrollHandler.Apply)
			r.Get("/{id}/reconciliation", cfg.ReconciliationHandler.ReconcileCustody)
		})

		// Transaction records
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/{id}", cfg.TransactionHandler.Get)
			r.Patch("/{id}", cfg.TransactionHandler.Amend)
			r.Delete("/{id}", cfg.TransactionHandler.Reverse)
		})

		// Ledger-wide checks
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/consistency", cfg.ReconciliationHandler.CheckConsistency)
			r.Get("/reconciliation", cfg.ReconciliationHandler.Report)
		})
	})

	return r
}
