package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/infrastructure/metrics"
)

// CustodyUseCase handles custody lifecycle and top-ups.
type CustodyUseCase struct {
	txManager   TransactionManager
	custodyRepo CustodyRepository
	journal     journal
	idGen       IDGenerator
	retrier     Retrier
	metrics     *metrics.Metrics
	txTimeout   time.Duration
}

// NewCustodyUseCase creates a new CustodyUseCase.
func NewCustodyUseCase(
	txManager TransactionManager,
	custodyRepo CustodyRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
) *CustodyUseCase {
	return &CustodyUseCase{
		txManager:   txManager,
		custodyRepo: custodyRepo,
		journal:     journal{outboxRepo: outboxRepo, auditRepo: auditRepo, idGen: idGen},
		idGen:       idGen,
		txTimeout:   DefaultTransactionTimeout,
	}
}

// WithRetrier sets the retrier used for Busy and serialization failures.
func (uc *CustodyUseCase) WithRetrier(retrier Retrier) *CustodyUseCase {
	uc.retrier = retrier
	return uc
}

// WithMetrics sets the metrics sink.
func (uc *CustodyUseCase) WithMetrics(m *metrics.Metrics) *CustodyUseCase {
	uc.metrics = m
	uc.journal.metrics = m
	return uc
}

// WithTransactionTimeout bounds each custody transaction.
func (uc *CustodyUseCase) WithTransactionTimeout(d time.Duration) *CustodyUseCase {
	if d > 0 {
		uc.txTimeout = d
	}
	return uc
}

// CreateCustodyInput represents input for creating a custody.
type CreateCustodyInput struct {
	Name   string
	Budget decimal.Decimal
}

// CreateCustody creates an active custody with remaining equal to budget.
func (uc *CustodyUseCase) CreateCustody(ctx context.Context, input CreateCustodyInput) (*domain.Custody, error) {
	if err := domain.ValidateCustodyName(input.Name); err != nil {
		return nil, err
	}
	if err := domain.ValidateBudget(input.Budget); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	custody := &domain.Custody{
		ID:        uc.idGen.Generate(),
		Name:      input.Name,
		Budget:    input.Budget,
		Remaining: input.Budget,
		Status:    domain.CustodyStatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := retry(ctx, uc.retrier, func() error {
		txCtx, cancel := context.WithTimeout(ctx, uc.txTimeout)
		defer cancel()

		tx, err := uc.txManager.Begin(txCtx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		if err := uc.custodyRepo.Create(txCtx, tx, custody); err != nil {
			return err
		}

		err = uc.journal.write(txCtx, tx, journalEntry{
			aggregateType: domain.AggregateTypeCustody,
			aggregateID:   custody.ID,
			eventType:     domain.EventTypeCustodyCreated,
			payload:       domain.BalanceEventPayload(custody, nil, custody.Budget.String()),
			action:        domain.AuditActionCustodyCreate,
			custodyID:     custody.ID,
			afterState:    custody,
		}, now)
		if err != nil {
			return err
		}

		return tx.Commit(txCtx)
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.CustodiesCreated.Inc()
	}

	return custody, nil
}

// GetCustody retrieves a custody by ID.
func (uc *CustodyUseCase) GetCustody(ctx context.Context, id string) (*domain.Custody, error) {
	return uc.custodyRepo.GetByID(ctx, id)
}

// ListCustodies lists custodies with pagination.
func (uc *CustodyUseCase) ListCustodies(ctx context.Context, limit, offset int) ([]*domain.Custody, error) {
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.custodyRepo.List(ctx, limit, offset)
}

// TopUp raises budget and remaining of an active custody by amount.
func (uc *CustodyUseCase) TopUp(ctx context.Context, custodyID string, amount decimal.Decimal) (*domain.Custody, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	custody, err := uc.update(ctx, custodyID, func(txCtx context.Context, tx Transaction, custody *domain.Custody, now time.Time) (*journalEntry, error) {
		if err := custody.EnsureActive(); err != nil {
			return nil, err
		}

		before := *custody
		budget := custody.Budget.Add(amount)
		remaining := custody.Remaining.Add(amount)

		if err := uc.custodyRepo.UpdateBudget(txCtx, tx, custody.ID, budget, remaining, now); err != nil {
			return nil, err
		}
		custody.Budget = budget
		custody.Commit(remaining, now)

		return &journalEntry{
			eventType:   domain.EventTypeCustodyToppedUp,
			payload:     domain.BalanceEventPayload(custody, nil, amount.String()),
			action:      domain.AuditActionCustodyTopUp,
			beforeState: &before,
			afterState:  custody,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	uc.countOperation("top_up")
	return custody, nil
}

// Activate allows ledger operations on a custody again.
func (uc *CustodyUseCase) Activate(ctx context.Context, custodyID string) (*domain.Custody, error) {
	return uc.setStatus(ctx, custodyID, domain.CustodyStatusActive)
}

// Deactivate stops new records and top-ups on a custody. Existing records
// can still be amended or reversed.
func (uc *CustodyUseCase) Deactivate(ctx context.Context, custodyID string) (*domain.Custody, error) {
	return uc.setStatus(ctx, custodyID, domain.CustodyStatusInactive)
}

func (uc *CustodyUseCase) setStatus(ctx context.Context, custodyID string, status domain.CustodyStatus) (*domain.Custody, error) {
	custody, err := uc.update(ctx, custodyID, func(txCtx context.Context, tx Transaction, custody *domain.Custody, now time.Time) (*journalEntry, error) {
		if custody.Status == status {
			return nil, nil
		}

		before := *custody
		if err := uc.custodyRepo.UpdateStatus(txCtx, tx, custody.ID, status, now); err != nil {
			return nil, err
		}
		custody.Status = status
		custody.Version++
		custody.UpdatedAt = now

		payload := domain.BalanceEventPayload(custody, nil, "0")
		payload["status"] = string(status)

		return &journalEntry{
			eventType:   domain.EventTypeCustodyStatusChanged,
			payload:     payload,
			action:      domain.AuditActionCustodyStatus,
			beforeState: &before,
			afterState:  custody,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	uc.countOperation(string(status))
	return custody, nil
}

type custodyMutation func(ctx context.Context, tx Transaction, custody *domain.Custody, now time.Time) (*journalEntry, error)

// update locks the custody, runs fn and journals its result in one
// transaction. A nil entry from fn commits without journaling.
func (uc *CustodyUseCase) update(ctx context.Context, custodyID string, fn custodyMutation) (*domain.Custody, error) {
	var result *domain.Custody

	err := retry(ctx, uc.retrier, func() error {
		txCtx, cancel := context.WithTimeout(ctx, uc.txTimeout)
		defer cancel()

		tx, err := uc.txManager.Begin(txCtx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		custody, err := uc.custodyRepo.GetByIDForUpdate(txCtx, tx, custodyID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		entry, err := fn(txCtx, tx, custody, now)
		if err != nil {
			return err
		}

		if entry != nil {
			entry.aggregateType = domain.AggregateTypeCustody
			entry.aggregateID = custody.ID
			entry.custodyID = custody.ID
			if err := uc.journal.write(txCtx, tx, *entry, now); err != nil {
				return err
			}
		}

		if err := tx.Commit(txCtx); err != nil {
			return err
		}

		result = custody
		return nil
	})

	return result, err
}

func (uc *CustodyUseCase) countOperation(operation string) {
	if uc.metrics != nil {
		uc.metrics.CustodyOperations.WithLabelValues(operation).Inc()
	}
}
