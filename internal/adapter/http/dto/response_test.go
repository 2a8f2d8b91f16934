package dto

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
)

func TestCustodyFromDomain(t *testing.T) {
	now := time.Now()
	custody := &domain.Custody{
		ID:        "c1",
		Name:      "Warehouse",
		Budget:    decimal.RequireFromString("1000"),
		Remaining: decimal.RequireFromString("123.45"),
		Status:    domain.CustodyStatusActive,
		Version:   2,
		CreatedAt: now,
		UpdatedAt: now,
	}

	resp := CustodyFromDomain(custody)
	if resp.ID != "c1" || resp.Remaining != "123.45" || resp.Budget != "1000" || resp.Version != 2 {
		t.Fatalf("unexpected custody response: %+v", resp)
	}

	list := CustodiesFromDomain([]*domain.Custody{custody})
	if len(list) != 1 || list[0].ID != custody.ID {
		t.Fatalf("CustodiesFromDomain returned %+v", list)
	}
}

func TestTransactionFromDomain(t *testing.T) {
	runID := "run-1"
	record := &domain.TransactionRecord{
		ID:           "r1",
		CustodyID:    "c1",
		Kind:         domain.KindPayrollLine,
		Amount:       decimal.RequireFromString("10"),
		Effect:       decimal.RequireFromString("-10"),
		OccurredOn:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		PayrollRunID: &runID,
		Status:       domain.TransactionStatusApplied,
		Version:      1,
	}

	resp := TransactionFromDomain(record)
	if resp.Kind != "payroll_line" || resp.Effect != "-10" || resp.OccurredOn != "2026-01-31" {
		t.Fatalf("unexpected transaction response: %+v", resp)
	}
	if resp.PayrollRunID == nil || *resp.PayrollRunID != "run-1" {
		t.Fatalf("expected payroll run id, got %v", resp.PayrollRunID)
	}

	record.OccurredOn = time.Time{}
	if got := TransactionFromDomain(record).OccurredOn; got != "" {
		t.Fatalf("expected empty occurred_on, got %q", got)
	}
}

func TestPayrollRunFromDomain(t *testing.T) {
	run := &domain.PayrollRun{
		ID:        "run-1",
		CustodyID: "c1",
		Total:     decimal.NewFromInt(300),
		Lines: []*domain.TransactionRecord{
			{ID: "l1", Amount: decimal.NewFromInt(100)},
			{ID: "l2", Amount: decimal.NewFromInt(200)},
		},
	}

	resp := PayrollRunFromDomain(run)
	if resp.Total != "300" || len(resp.Lines) != 2 || resp.Lines[1].ID != "l2" {
		t.Fatalf("unexpected payroll run response: %+v", resp)
	}
}

func TestErrorFromDomain(t *testing.T) {
	err := domain.NewInsufficientBalanceError("c1", "r1", decimal.NewFromInt(800), decimal.NewFromInt(700))

	resp := ErrorFromDomain("failed to apply transaction", err)
	if resp.Code != "insufficient_balance" || resp.CustodyID != "c1" || resp.TransactionID != "r1" || resp.Field != "amount" {
		t.Fatalf("unexpected error response: %+v", resp)
	}
	if resp.Message != err.Error() {
		t.Fatalf("expected message %q, got %q", err.Error(), resp.Message)
	}

	plain := ErrorFromDomain("boom", errors.New("disk full"))
	if plain.Code != "internal_error" || plain.CustodyID != "" {
		t.Fatalf("unexpected plain error response: %+v", plain)
	}
}
