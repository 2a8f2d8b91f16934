package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/usecase"
	"github.com/iho/custodyledger/tests/testutil"
)

func TestLedgerLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()

	ledger := testDB.NewLedger(2*time.Second, nil)

	t.Run("apply amend reverse", func(t *testing.T) {
		testDB.TruncateAll(ctx)
		custody := ledger.CreateTestCustody(t, ctx, "field office", 1000)

		expense, err := ledger.LedgerUC.Apply(ctx, usecase.ApplyInput{
			CustodyID: custody.ID,
			Kind:      domain.KindExpense,
			Amount:    decimal.NewFromInt(300),
			Details:   domain.RecordDetails{Description: "fuel"},
		})
		if err != nil {
			t.Fatalf("apply expense: %v", err)
		}
		ledger.AssertRemaining(t, ctx, custody.ID, 700)

		_, err = ledger.LedgerUC.Apply(ctx, usecase.ApplyInput{
			CustodyID: custody.ID,
			Kind:      domain.KindAdvance,
			Amount:    decimal.NewFromInt(800),
		})
		if !errors.Is(err, domain.ErrInsufficientBalance) {
			t.Fatalf("expected insufficient balance, got %v", err)
		}
		ledger.AssertRemaining(t, ctx, custody.ID, 700)

		amended, err := ledger.LedgerUC.Amend(ctx, usecase.AmendInput{
			TransactionID: expense.ID,
			Amount:        decimal.NewFromInt(200),
		})
		if err != nil {
			t.Fatalf("amend: %v", err)
		}
		if amended.Version != expense.Version+1 {
			t.Errorf("expected version %d, got %d", expense.Version+1, amended.Version)
		}
		ledger.AssertRemaining(t, ctx, custody.ID, 800)

		if err := ledger.LedgerUC.Reverse(ctx, expense.ID); err != nil {
			t.Fatalf("reverse: %v", err)
		}
		ledger.AssertRemaining(t, ctx, custody.ID, 1000)

		if err := ledger.LedgerUC.Reverse(ctx, expense.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected second reverse to be not found, got %v", err)
		}
	})

	t.Run("bonus raises remaining above budget", func(t *testing.T) {
		testDB.TruncateAll(ctx)
		custody := ledger.CreateTestCustody(t, ctx, "bonus pool", 100)

		if _, err := ledger.LedgerUC.Apply(ctx, usecase.ApplyInput{
			CustodyID: custody.ID,
			Kind:      domain.KindBonus,
			Amount:    decimal.NewFromInt(50),
		}); err != nil {
			t.Fatalf("apply bonus: %v", err)
		}
		ledger.AssertRemaining(t, ctx, custody.ID, 150)
	})

	t.Run("amend that would overdraw leaves state unchanged", func(t *testing.T) {
		testDB.TruncateAll(ctx)
		custody := ledger.CreateTestCustody(t, ctx, "tight", 500)

		record, err := ledger.LedgerUC.Apply(ctx, usecase.ApplyInput{
			CustodyID: custody.ID,
			Kind:      domain.KindExpense,
			Amount:    decimal.NewFromInt(400),
		})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}

		_, err = ledger.LedgerUC.Amend(ctx, usecase.AmendInput{TransactionID: record.ID, Amount: decimal.NewFromInt(501)})
		if !errors.Is(err, domain.ErrInsufficientBalance) {
			t.Fatalf("expected insufficient balance, got %v", err)
		}

		stored, err := ledger.LedgerUC.GetTransaction(ctx, record.ID)
		if err != nil {
			t.Fatalf("get transaction: %v", err)
		}
		if !stored.Amount.Equal(decimal.NewFromInt(400)) || stored.Version != record.Version {
			t.Fatalf("record changed after failed amend: amount=%s version=%d", stored.Amount, stored.Version)
		}
		ledger.AssertRemaining(t, ctx, custody.ID, 100)
	})

	t.Run("inactive custody rejects new records and allows reversal", func(t *testing.T) {
		testDB.TruncateAll(ctx)
		custody := ledger.CreateTestCustody(t, ctx, "closing", 300)

		record, err := ledger.LedgerUC.Apply(ctx, usecase.ApplyInput{
			CustodyID: custody.ID,
			Kind:      domain.KindExpense,
			Amount:    decimal.NewFromInt(100),
		})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}

		if _, err := ledger.CustodyUC.Deactivate(ctx, custody.ID); err != nil {
			t.Fatalf("deactivate: %v", err)
		}

		_, err = ledger.LedgerUC.Apply(ctx, usecase.ApplyInput{
			CustodyID: custody.ID,
			Kind:      domain.KindExpense,
			Amount:    decimal.NewFromInt(10),
		})
		if !errors.Is(err, domain.ErrCustodyInactive) {
			t.Fatalf("expected custody inactive, got %v", err)
		}

		if err := ledger.LedgerUC.Reverse(ctx, record.ID); err != nil {
			t.Fatalf("reverse on inactive custody: %v", err)
		}
		ledger.AssertRemaining(t, ctx, custody.ID, 300)
	})

	t.Run("top-up raises budget and remaining", func(t *testing.T) {
		testDB.TruncateAll(ctx)
		custody := ledger.CreateTestCustody(t, ctx, "growing", 100)

		updated, err := ledger.CustodyUC.TopUp(ctx, custody.ID, decimal.NewFromInt(50))
		if err != nil {
			t.Fatalf("top up: %v", err)
		}
		if !updated.Budget.Equal(decimal.NewFromInt(150)) {
			t.Errorf("expected budget 150, got %s", updated.Budget)
		}
		ledger.AssertRemaining(t, ctx, custody.ID, 150)
	})

	t.Run("payroll run is all or nothing", func(t *testing.T) {
		testDB.TruncateAll(ctx)
		custody := ledger.CreateTestCustody(t, ctx, "payroll", 1000)

		_, err := ledger.LedgerUC.ApplyPayrollRun(ctx, usecase.ApplyPayrollRunInput{
			CustodyID: custody.ID,
			Lines: []usecase.PayrollLineInput{
				{Amount: decimal.NewFromInt(600)},
				{Amount: decimal.NewFromInt(600)},
			},
		})
		if !errors.Is(err, domain.ErrInsufficientBalance) {
			t.Fatalf("expected insufficient balance, got %v", err)
		}
		ledger.AssertRemaining(t, ctx, custody.ID, 1000)

		records, err := ledger.LedgerUC.ListTransactions(ctx, usecase.ListTransactionsInput{CustodyID: custody.ID, Limit: 10})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(records) != 0 {
			t.Fatalf("expected no records after failed run, got %d", len(records))
		}

		run, err := ledger.LedgerUC.ApplyPayrollRun(ctx, usecase.ApplyPayrollRunInput{
			CustodyID: custody.ID,
			Lines: []usecase.PayrollLineInput{
				{Amount: decimal.NewFromInt(400)},
				{Amount: decimal.NewFromInt(350)},
			},
		})
		if err != nil {
			t.Fatalf("apply payroll run: %v", err)
		}
		if len(run.Lines) != 2 || !run.Total.Equal(decimal.NewFromInt(750)) {
			t.Fatalf("unexpected run %+v", run)
		}
		ledger.AssertRemaining(t, ctx, custody.ID, 250)
	})

	t.Run("missing custody", func(t *testing.T) {
		_, err := ledger.LedgerUC.GetRemaining(ctx, testutil.GenerateID())
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}
