package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/usecase"
	"github.com/iho/custodyledger/internal/usecase/mocks"
)

func activeCustody(id string, remaining int64) *domain.Custody {
	return &domain.Custody{
		ID:        id,
		Name:      "warehouse",
		Budget:    decimal.NewFromInt(1000),
		Remaining: decimal.NewFromInt(remaining),
		Status:    domain.CustodyStatusActive,
		Version:   1,
	}
}

func TestLedgerUseCase_ApplyFailurePaths(t *testing.T) {
	errDB := errors.New("connection reset")

	tests := []struct {
		name       string
		setup      func(*mocks.MockCustodyRepository, *mocks.MockTransactionRecordRepository, *mocks.MockOutboxRepository)
		expectErr  error
		wantCommit bool
	}{
		{
			name: "record insert fails",
			setup: func(_ *mocks.MockCustodyRepository, records *mocks.MockTransactionRecordRepository, _ *mocks.MockOutboxRepository) {
				records.CreateFunc = func(context.Context, usecase.Transaction, *domain.TransactionRecord) error {
					return errDB
				}
			},
			expectErr: errDB,
		},
		{
			name: "balance update fails",
			setup: func(custodies *mocks.MockCustodyRepository, _ *mocks.MockTransactionRecordRepository, _ *mocks.MockOutboxRepository) {
				custodies.UpdateRemainingFunc = func(context.Context, usecase.Transaction, string, decimal.Decimal, time.Time) error {
					return errDB
				}
			},
			expectErr: errDB,
		},
		{
			name: "outbox insert fails",
			setup: func(_ *mocks.MockCustodyRepository, _ *mocks.MockTransactionRecordRepository, outbox *mocks.MockOutboxRepository) {
				outbox.CreateFunc = func(context.Context, usecase.Transaction, *domain.OutboxEvent) error {
					return errDB
				}
			},
			expectErr: errDB,
		},
		{
			name: "lock contention",
			setup: func(custodies *mocks.MockCustodyRepository, _ *mocks.MockTransactionRecordRepository, _ *mocks.MockOutboxRepository) {
				custodies.GetByIDForUpdateFunc = func(_ context.Context, _ usecase.Transaction, id string) (*domain.Custody, error) {
					return nil, domain.NewBusyError(id, nil)
				}
			},
			expectErr: domain.ErrBusy,
		},
		{
			name:       "success",
			setup:      func(*mocks.MockCustodyRepository, *mocks.MockTransactionRecordRepository, *mocks.MockOutboxRepository) {},
			wantCommit: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			custodies := mocks.NewMockCustodyRepository(activeCustody("c1", 500))
			records := mocks.NewMockTransactionRecordRepository()
			outbox := mocks.NewMockOutboxRepository()
			tt.setup(custodies, records, outbox)

			committed, rolledBack := false, false
			txMgr := mocks.NewMockTransactionManager()
			txMgr.BeginFunc = func(context.Context) (usecase.Transaction, error) {
				return &mocks.MockTransaction{
					CommitFunc:   func(context.Context) error { committed = true; return nil },
					RollbackFunc: func(context.Context) error { rolledBack = true; return nil },
				}, nil
			}

			uc := usecase.NewLedgerUseCase(txMgr, custodies, records, outbox, mocks.NewMockAuditRepository(), mocks.NewMockIDGenerator())

			_, err := uc.Apply(context.Background(), usecase.ApplyInput{
				CustodyID: "c1",
				Kind:      domain.KindExpense,
				Amount:    decimal.NewFromInt(100),
			})

			if tt.expectErr != nil && !errors.Is(err, tt.expectErr) {
				t.Fatalf("expected %v, got %v", tt.expectErr, err)
			}
			if tt.expectErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if committed != tt.wantCommit {
				t.Errorf("expected commit=%v, got %v", tt.wantCommit, committed)
			}
			if !rolledBack {
				t.Error("expected deferred rollback to run")
			}
		})
	}
}

func TestLedgerUseCase_CommitFailureIsReturned(t *testing.T) {
	errCommit := errors.New("commit failed")

	txMgr := mocks.NewMockTransactionManager()
	txMgr.BeginFunc = func(context.Context) (usecase.Transaction, error) {
		return &mocks.MockTransaction{CommitFunc: func(context.Context) error { return errCommit }}, nil
	}

	uc := usecase.NewLedgerUseCase(txMgr,
		mocks.NewMockCustodyRepository(activeCustody("c1", 500)),
		mocks.NewMockTransactionRecordRepository(),
		nil, nil, mocks.NewMockIDGenerator())

	_, err := uc.Apply(context.Background(), usecase.ApplyInput{CustodyID: "c1", Kind: domain.KindAdvance, Amount: decimal.NewFromInt(5)})
	if !errors.Is(err, errCommit) {
		t.Fatalf("expected commit error, got %v", err)
	}
}

func TestLedgerUseCase_UsesRetrier(t *testing.T) {
	ctrl := gomock.NewController(t)

	custodies := mocks.NewMockCustodyRepository(activeCustody("c1", 500))
	attempts := 0
	custodies.GetByIDForUpdateFunc = func(ctx context.Context, tx usecase.Transaction, id string) (*domain.Custody, error) {
		attempts++
		if attempts == 1 {
			return nil, domain.NewBusyError(id, nil)
		}
		return activeCustody(id, 500), nil
	}

	retrier := mocks.NewMockRetrier(ctrl)
	retrier.EXPECT().
		Retry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, op func() error) error {
			if err := op(); !errors.Is(err, domain.ErrBusy) {
				t.Fatalf("expected first attempt to be busy, got %v", err)
			}
			return op()
		})

	uc := usecase.NewLedgerUseCase(
		mocks.NewMockTransactionManager(),
		custodies,
		mocks.NewMockTransactionRecordRepository(),
		nil, nil,
		mocks.NewMockIDGenerator(),
	).WithRetrier(retrier)

	record, err := uc.Apply(context.Background(), usecase.ApplyInput{CustodyID: "c1", Kind: domain.KindExpense, Amount: decimal.NewFromInt(50)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if record.Status != domain.TransactionStatusApplied {
		t.Errorf("unexpected record status %s", record.Status)
	}
}

func TestLedgerUseCase_AmendUsesStoredEffect(t *testing.T) {
	stored := &domain.TransactionRecord{
		ID:        "r1",
		CustodyID: "c1",
		Kind:      domain.KindExpense,
		Amount:    decimal.NewFromInt(100),
		Effect:    decimal.NewFromInt(-100),
		Status:    domain.TransactionStatusApplied,
		Version:   4,
	}

	custodies := mocks.NewMockCustodyRepository(activeCustody("c1", 900))
	var newRemaining decimal.Decimal
	custodies.UpdateRemainingFunc = func(_ context.Context, _ usecase.Transaction, _ string, remaining decimal.Decimal, _ time.Time) error {
		newRemaining = remaining
		return nil
	}

	uc := usecase.NewLedgerUseCase(
		mocks.NewMockTransactionManager(),
		custodies,
		mocks.NewMockTransactionRecordRepository(stored),
		nil, nil,
		mocks.NewMockIDGenerator(),
	)

	amended, err := uc.Amend(context.Background(), usecase.AmendInput{TransactionID: "r1", Amount: decimal.NewFromInt(130)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !newRemaining.Equal(decimal.NewFromInt(870)) {
		t.Errorf("expected remaining 870, got %s", newRemaining)
	}
	if amended.Version != 5 {
		t.Errorf("expected version 5, got %d", amended.Version)
	}
}
