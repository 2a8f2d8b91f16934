package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/custodyledger/internal/adapter/http"
	"github.com/iho/custodyledger/internal/adapter/http/handler"
	"github.com/iho/custodyledger/internal/adapter/http/middleware"
	"github.com/iho/custodyledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/custodyledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/custodyledger/internal/adapter/repository/redis"
	"github.com/iho/custodyledger/internal/infrastructure/config"
	"github.com/iho/custodyledger/internal/infrastructure/eventpublisher"
	"github.com/iho/custodyledger/internal/infrastructure/logger"
	"github.com/iho/custodyledger/internal/infrastructure/metrics"
	"github.com/iho/custodyledger/internal/infrastructure/postgres"
	"github.com/iho/custodyledger/internal/infrastructure/redis"
	"github.com/iho/custodyledger/internal/usecase"
)

const serviceName = "custody-ledger"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: serviceName,
	})

	if err := run(cfg, appLogger); err != nil {
		appLogger.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, log, metrics.New())
	if err != nil {
		return err
	}
	defer app.Close()

	workers, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	app.StartWorkers(workers)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      app.router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Str("store", cfg.StoreDriver).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Requests are drained; stop the outbox poller last so their events are
	// still picked up on the next start.
	cancelWorkers()

	log.Info().Msg("server stopped")
	return nil
}

// application is the wired server: router, background workers and the
// resources they hold.
type application struct {
	router      http.Handler
	publisher   *eventpublisher.EventPublisher
	rateLimiter *middleware.RateLimiter
	workers     []func(context.Context)
	closers     []func()
	logger      zerolog.Logger
}

// StartWorkers runs the outbox publisher and limiter cleanup until ctx ends.
func (a *application) StartWorkers(ctx context.Context) {
	if a.publisher != nil {
		go func() {
			if err := a.publisher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Msg("event publisher stopped")
			}
		}()
	}
	if a.rateLimiter != nil {
		go a.rateLimiter.Run(ctx, time.Hour)
	}
	for _, worker := range a.workers {
		go worker(ctx)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// stores bundles the repositories of one storage driver.
type stores struct {
	txManager   usecase.TransactionManager
	custodyRepo usecase.CustodyRepository
	recordRepo  usecase.TransactionRecordRepository
	ledgerRepo  usecase.LedgerRepository
	outboxRepo  usecase.OutboxRepository
	auditRepo   usecase.AuditRepository
	checks      []handler.HealthCheck
}

func buildApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, m *metrics.Metrics) (*application, error) {
	app := &application{logger: log}

	st, err := openStores(ctx, cfg, log, m, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	idGen := postgresRepo.NewULIDGenerator()
	retrier := postgresRepo.NewRetrier().
		WithMaxRetries(cfg.LedgerMaxRetries).
		WithLogger(log).
		OnRetry(func(error, int) { m.LedgerBusyRetries.Inc() })

	var (
		cache            usecase.Cache
		idempotencyStore usecase.IdempotencyStore
	)
	if cfg.RedisEnabled {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		app.closers = append(app.closers, func() { redisClient.Close() })
		log.Info().Msg("connected to redis")

		cache = redisRepo.NewCache(redisClient).WithMetrics(m)
		idempotencyStore = redisRepo.NewIdempotencyStore(redisClient).WithMetrics(m)
		st.checks = append(st.checks, handler.HealthCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	outboxRepo := st.outboxRepo
	if cfg.EventPublisher == config.EventPublisherNone {
		outboxRepo = postgresRepo.NewNullOutboxRepository()
	}

	// Use cases
	ledgerUC := usecase.NewLedgerUseCase(st.txManager, st.custodyRepo, st.recordRepo, outboxRepo, st.auditRepo, idGen).
		WithRetrier(retrier).
		WithMetrics(m).
		WithLogger(log).
		WithTransactionTimeout(cfg.LedgerTxTimeout)
	custodyUC := usecase.NewCustodyUseCase(st.txManager, st.custodyRepo, outboxRepo, st.auditRepo, idGen).
		WithRetrier(retrier).
		WithMetrics(m).
		WithTransactionTimeout(cfg.LedgerTxTimeout)
	reconciliationUC := usecase.NewReconciliationUseCase(st.custodyRepo, st.ledgerRepo).
		WithMetrics(m).
		WithLogger(log)
	if cache != nil {
		reconciliationUC.WithCache(cache, cfg.ReconciliationCacheTTL)
	}

	publisher, err := newPublisher(cfg, log, app)
	if err != nil {
		app.Close()
		return nil, err
	}
	if publisher != nil {
		app.publisher = eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: outboxRepo,
			Publisher:  publisher,
			Logger:     &log,
			Metrics:    m,
			BatchSize:  cfg.EventBatchSize,
			Interval:   cfg.EventPollInterval,
			Retention:  cfg.EventRetention,
		})
	}

	app.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithMetrics(m)

	app.router = httpAdapter.NewRouter(httpAdapter.RouterConfig{
		CustodyHandler:        handler.NewCustodyHandler(custodyUC),
		TransactionHandler:    handler.NewTransactionHandler(ledgerUC),
		PayrollHandler:        handler.NewPayrollHandler(ledgerUC),
		ReconciliationHandler: handler.NewReconciliationHandler(reconciliationUC),
		HealthHandler:         handler.NewHealthHandler(st.checks...),
		IdempotencyStore:      idempotencyStore,
		IdempotencyTTL:        cfg.IdempotencyTTL,
		RateLimiter:           app.rateLimiter,
		Metrics:               m,
		Logger:                log,
	})

	return app, nil
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger, m *metrics.Metrics, app *application) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store := memory.NewStore(cfg.LedgerLockTimeout)
		log.Warn().Msg("using in-memory store; balances are lost on restart")

		return &stores{
			txManager:   memory.NewTxManager(store),
			custodyRepo: memory.NewCustodyRepository(store),
			recordRepo:  memory.NewTransactionRecordRepository(store),
			ledgerRepo:  memory.NewLedgerRepository(store),
			outboxRepo:  memory.NewOutboxRepository(store),
			auditRepo:   memory.NewAuditRepository(store),
		}, nil

	default:
		if cfg.RunMigrations {
			if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}

		pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL:    cfg.DatabaseURL,
			MaxConns:       cfg.DatabaseMaxConns,
			MinConns:       cfg.DatabaseMinConns,
			ConnectTimeout: cfg.DatabaseTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		app.closers = append(app.closers, pool.Close)
		app.workers = append(app.workers, func(ctx context.Context) { sampleConnections(ctx, pool, m, 15*time.Second) })
		log.Info().Msg("connected to postgres")

		return &stores{
			txManager:   postgresRepo.NewTxManager(pool).WithLockTimeout(cfg.LedgerLockTimeout),
			custodyRepo: postgresRepo.NewCustodyRepository(pool),
			recordRepo:  postgresRepo.NewTransactionRecordRepository(pool),
			ledgerRepo:  postgresRepo.NewLedgerRepository(pool),
			outboxRepo:  postgresRepo.NewOutboxRepository(pool),
			auditRepo:   postgresRepo.NewAuditRepository(pool),
			checks:      []handler.HealthCheck{{Name: "postgres", Ping: pool.Ping}},
		}, nil
	}
}

// sampleConnections reports the pool size on the connections gauge.
func sampleConnections(ctx context.Context, pool *pgxpool.Pool, m *metrics.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.DBConnections.Set(float64(pool.Stat().TotalConns()))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// newPublisher returns the outbox sink selected by EVENT_PUBLISHER, or nil
// when events are discarded.
func newPublisher(cfg *config.Config, log zerolog.Logger, app *application) (eventpublisher.Publisher, error) {
	switch cfg.EventPublisher {
	case config.EventPublisherNone:
		return nil, nil
	case config.EventPublisherLog:
		return eventpublisher.NewLogPublisher(log), nil
	case config.EventPublisherKafka:
		kafka := eventpublisher.NewKafkaPublisher(eventpublisher.KafkaConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaTopic,
			WriteTimeout: cfg.KafkaWriteTimeout,
		}, log)
		app.closers = append(app.closers, func() {
			if err := kafka.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close kafka writer")
			}
		})
		return kafka, nil
	default:
		return nil, fmt.Errorf("unknown event publisher %q", cfg.EventPublisher)
	}
}
