package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
)

// CustodyRepository defines data access for custodies and their balances.
type CustodyRepository interface {
	Create(ctx context.Context, tx Transaction, custody *domain.Custody) error
	GetByID(ctx context.Context, id string) (*domain.Custody, error)
	// GetByIDForUpdate locks the custody row until tx ends. It returns a
	// domain.ErrBusy error when the lock cannot be taken within the lock timeout.
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Custody, error)
	UpdateRemaining(ctx context.Context, tx Transaction, id string, remaining decimal.Decimal, updatedAt time.Time) error
	UpdateBudget(ctx context.Context, tx Transaction, id string, budget, remaining decimal.Decimal, updatedAt time.Time) error
	UpdateStatus(ctx context.Context, tx Transaction, id string, status domain.CustodyStatus, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Custody, error)
}

// TransactionRecordRepository defines data access for transaction records.
type TransactionRecordRepository interface {
	Create(ctx context.Context, tx Transaction, record *domain.TransactionRecord) error
	// GetByID returns applied and reversed records alike.
	GetByID(ctx context.Context, id string) (*domain.TransactionRecord, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.TransactionRecord, error)
	Update(ctx context.Context, tx Transaction, record *domain.TransactionRecord) error
	MarkReversed(ctx context.Context, tx Transaction, id string, reversedAt time.Time) error
	// ListByCustody returns applied records only, newest first.
	ListByCustody(ctx context.Context, custodyID string, limit, offset int) ([]*domain.TransactionRecord, error)
	// SumEffects sums the effect of every applied record of the custody.
	SumEffects(ctx context.Context, custodyID string) (decimal.Decimal, error)
}

// LedgerRepository defines data access for ledger-wide checks.
type LedgerRepository interface {
	// CheckConsistency returns Σ(budget + Σeffect) and Σremaining over all custodies.
	CheckConsistency(ctx context.Context) (expected, recorded decimal.Decimal, err error)
	// CustodyBalance returns the custody and the sum of its applied effects
	// read from a single snapshot.
	CustodyBalance(ctx context.Context, custodyID string) (*domain.Custody, decimal.Decimal, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient failures such as lock contention.
type Retrier interface {
	Retry(ctx context.Context, op func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release forgets key so the request can be retried.
	Release(ctx context.Context, key string) error
}
