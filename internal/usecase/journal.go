package usecase

import (
	"context"
	"time"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/infrastructure/metrics"
)

// journal writes the outbox event and audit row that accompany every
// balance mutation, inside the mutation's transaction.
type journal struct {
	outboxRepo OutboxRepository
	auditRepo  AuditRepository
	idGen      IDGenerator
	metrics    *metrics.Metrics
}

type journalEntry struct {
	aggregateType string
	aggregateID   string
	eventType     string
	payload       map[string]any

	action      domain.AuditAction
	custodyID   string
	beforeState any
	afterState  any
}

func (j journal) write(ctx context.Context, tx Transaction, entry journalEntry, now time.Time) error {
	if j.outboxRepo != nil {
		event := &domain.OutboxEvent{
			ID:            j.idGen.Generate(),
			AggregateID:   entry.aggregateID,
			AggregateType: entry.aggregateType,
			EventType:     entry.eventType,
			Payload:       entry.payload,
			CreatedAt:     now,
			Published:     false,
		}
		if err := j.outboxRepo.Create(ctx, tx, event); err != nil {
			return err
		}
	}

	if j.auditRepo != nil {
		auditLog := &domain.AuditLog{
			ID:           j.idGen.Generate(),
			UserID:       domain.ActorFromContext(ctx),
			Action:       string(entry.action),
			ResourceType: entry.aggregateType,
			ResourceID:   entry.aggregateID,
			CustodyID:    entry.custodyID,
			RequestID:    domain.RequestIDFromContext(ctx),
			BeforeState:  domain.MarshalState(entry.beforeState),
			AfterState:   domain.MarshalState(entry.afterState),
			Status:       string(domain.AuditStatusSuccess),
			CreatedAt:    now,
		}
		if err := j.auditRepo.CreateTx(ctx, tx, auditLog); err != nil {
			return err
		}
		if j.metrics != nil {
			j.metrics.AuditLogsCreated.WithLabelValues(auditLog.Action, auditLog.Status).Inc()
		}
	}

	return nil
}

func retry(ctx context.Context, retrier Retrier, op func() error) error {
	if retrier == nil {
		return op()
	}
	return retrier.Retry(ctx, op)
}
