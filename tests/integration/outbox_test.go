package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/infrastructure/eventpublisher"
	"github.com/iho/custodyledger/internal/usecase"
	"github.com/iho/custodyledger/tests/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.OutboxEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event *domain.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestOutboxEventsAreJournaledAndPublished(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	ledger := testDB.NewLedger(2*time.Second, nil)
	custody := ledger.CreateTestCustody(t, ctx, "events", 100)

	record, err := ledger.LedgerUC.Apply(ctx, usecase.ApplyInput{
		CustodyID: custody.ID,
		Kind:      domain.KindExpense,
		Amount:    decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	events, err := ledger.Outbox.GetByAggregate(ctx, domain.AggregateTypeTransaction, record.ID, 10, 0)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	if len(events) != 1 || events[0].EventType != domain.EventTypeTransactionApplied {
		t.Fatalf("expected one applied event, got %+v", events)
	}

	logs, err := ledger.Audit.List(ctx, domain.AuditFilter{CustodyID: custody.ID, Limit: 10})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected create and apply audit logs, got %d", len(logs))
	}

	pub := &recordingPublisher{}
	worker := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: ledger.Outbox,
		Publisher:  pub,
		BatchSize:  10,
		Interval:   20 * time.Millisecond,
	})

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		_ = worker.Start(workerCtx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for pub.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	<-done

	if pub.count() != 2 {
		t.Fatalf("expected custody and transaction events to be published, got %d", pub.count())
	}

	remaining, err := ledger.Outbox.GetUnpublished(ctx, 10)
	if err != nil {
		t.Fatalf("get unpublished: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected outbox drained, %d left", len(remaining))
	}
}

func TestFailedApplyWritesNoEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	ledger := testDB.NewLedger(2*time.Second, nil)
	custody := ledger.CreateTestCustody(t, ctx, "quiet", 10)

	if _, err := ledger.LedgerUC.Apply(ctx, usecase.ApplyInput{
		CustodyID: custody.ID,
		Kind:      domain.KindExpense,
		Amount:    decimal.NewFromInt(11),
	}); err == nil {
		t.Fatal("expected overdraw to fail")
	}

	events, err := ledger.Outbox.GetUnpublished(ctx, 10)
	if err != nil {
		t.Fatalf("get unpublished: %v", err)
	}
	if len(events) != 1 || events[0].EventType != domain.EventTypeCustodyCreated {
		t.Fatalf("expected only the creation event, got %+v", events)
	}
}
