package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	LedgerOperations    *prometheus.CounterVec
	LedgerDuration      *prometheus.HistogramVec
	LedgerAmount        *prometheus.HistogramVec
	LedgerBusyRetries   prometheus.Counter
	LedgerInconsistency *prometheus.CounterVec

	// Custody metrics
	CustodiesCreated  prometheus.Counter
	CustodyOperations *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBConnections prometheus.Gauge
	DBErrors      *prometheus.CounterVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisErrors     *prometheus.CounterVec

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Audit metrics
	AuditLogsCreated *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all Prometheus metrics and registers them on reg
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Ledger metrics
		LedgerOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_ledger_operations_total",
				Help: "Total ledger operations by operation, kind and result",
			},
			[]string{"operation", "kind", "result"},
		),
		LedgerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "custody_ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		LedgerAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "custody_ledger_amount",
				Help:    "Amounts applied to custodies",
				Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
			},
			[]string{"kind"},
		),
		LedgerBusyRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "custody_ledger_busy_retries_total",
			Help: "Total retries caused by custody lock contention",
		}),
		LedgerInconsistency: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_ledger_inconsistencies_total",
				Help: "Total detected violations of the custody balance invariant",
			},
			[]string{"source"},
		),

		// Custody metrics
		CustodiesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "custody_ledger_custodies_created_total",
			Help: "Total number of custodies created",
		}),
		CustodyOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_ledger_custody_operations_total",
				Help: "Total custody operations by type",
			},
			[]string{"operation"},
		),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_ledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "custody_ledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "custody_ledger_db_connections",
			Help: "Current number of database connections",
		}),
		DBErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_ledger_db_errors_total",
				Help: "Total database errors",
			},
			[]string{"operation"},
		),

		// Redis metrics
		RedisOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_ledger_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_ledger_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		// Outbox metrics
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "custody_ledger_outbox_published_total",
			Help: "Total outbox events published",
		}),
		OutboxFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "custody_ledger_outbox_failures_total",
			Help: "Total outbox publish failures",
		}),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_ledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),

		// Audit metrics
		AuditLogsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_ledger_audit_logs_total",
				Help: "Total audit logs created",
			},
			[]string{"action", "status"},
		),
	}
}
