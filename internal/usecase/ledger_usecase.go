package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/infrastructure/metrics"
)

// LedgerUseCase is the only path through which transaction records are
// created, amended or reversed. Every mutation locks the custody row first,
// then the record row, and writes both in one transaction.
type LedgerUseCase struct {
	txManager   TransactionManager
	custodyRepo CustodyRepository
	recordRepo  TransactionRecordRepository
	journal     journal
	idGen       IDGenerator
	retrier     Retrier
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	txTimeout   time.Duration
	now         func() time.Time
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	txManager TransactionManager,
	custodyRepo CustodyRepository,
	recordRepo TransactionRecordRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
) *LedgerUseCase {
	return &LedgerUseCase{
		txManager:   txManager,
		custodyRepo: custodyRepo,
		recordRepo:  recordRepo,
		journal:     journal{outboxRepo: outboxRepo, auditRepo: auditRepo, idGen: idGen},
		idGen:       idGen,
		logger:      zerolog.Nop(),
		txTimeout:   DefaultTransactionTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithRetrier sets the retrier used for Busy and serialization failures.
func (uc *LedgerUseCase) WithRetrier(retrier Retrier) *LedgerUseCase {
	uc.retrier = retrier
	return uc
}

// WithMetrics sets the metrics sink.
func (uc *LedgerUseCase) WithMetrics(m *metrics.Metrics) *LedgerUseCase {
	uc.metrics = m
	uc.journal.metrics = m
	return uc
}

// WithLogger sets the logger used to report invariant violations.
func (uc *LedgerUseCase) WithLogger(logger zerolog.Logger) *LedgerUseCase {
	uc.logger = logger
	return uc
}

// WithTransactionTimeout bounds each ledger transaction.
func (uc *LedgerUseCase) WithTransactionTimeout(d time.Duration) *LedgerUseCase {
	if d > 0 {
		uc.txTimeout = d
	}
	return uc
}

// ApplyInput represents input for applying a transaction record.
type ApplyInput struct {
	CustodyID string
	Kind      domain.Kind
	Amount    decimal.Decimal
	Details   domain.RecordDetails
}

// AmendInput represents input for amending a transaction record.
type AmendInput struct {
	TransactionID string
	Amount        decimal.Decimal
	// ExpectedVersion rejects a resubmission built from a stale read.
	ExpectedVersion *int64
	Details         domain.RecordDetails
}

// PayrollLineInput is one line of a payroll run.
type PayrollLineInput struct {
	Amount  decimal.Decimal
	Details domain.RecordDetails
}

// ApplyPayrollRunInput represents input for applying a payroll run.
type ApplyPayrollRunInput struct {
	CustodyID string
	Lines     []PayrollLineInput
}

// Apply creates a record and moves the custody balance by its effect.
func (uc *LedgerUseCase) Apply(ctx context.Context, input ApplyInput) (*domain.TransactionRecord, error) {
	start := time.Now()

	record, err := uc.newRecord(input.CustodyID, input.Kind, input.Amount, input.Details)
	if err != nil {
		uc.observe("apply", input.Kind, input.Amount, start, err)
		return nil, err
	}

	var result *domain.TransactionRecord
	err = retry(ctx, uc.retrier, func() error {
		var opErr error
		result, opErr = uc.apply(ctx, record)
		return opErr
	})

	uc.observe("apply", input.Kind, input.Amount, start, err)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *LedgerUseCase) apply(ctx context.Context, draft *domain.TransactionRecord) (*domain.TransactionRecord, error) {
	txCtx, cancel := context.WithTimeout(ctx, uc.txTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	custody, err := uc.custodyRepo.GetByIDForUpdate(txCtx, tx, draft.CustodyID)
	if err != nil {
		return nil, err
	}

	if err := custody.EnsureActive(); err != nil {
		return nil, err
	}

	remaining, err := custody.AdjustRemaining(draft.Effect, domain.GuardOverdraft)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	record := *draft
	record.Status = domain.TransactionStatusApplied
	record.Version = 1
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.OccurredOn.IsZero() {
		record.OccurredOn = now
	}

	if err := uc.recordRepo.Create(txCtx, tx, &record); err != nil {
		return nil, err
	}

	if err := uc.custodyRepo.UpdateRemaining(txCtx, tx, custody.ID, remaining, now); err != nil {
		return nil, err
	}

	before := *custody
	custody.Commit(remaining, now)

	err = uc.journal.write(txCtx, tx, journalEntry{
		aggregateType: domain.AggregateTypeTransaction,
		aggregateID:   record.ID,
		eventType:     domain.EventTypeTransactionApplied,
		payload:       domain.BalanceEventPayload(custody, &record, record.Effect.String()),
		action:        domain.AuditActionTransactionApply,
		custodyID:     custody.ID,
		beforeState:   &before,
		afterState:    &record,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return &record, nil
}

// Amend changes the amount and descriptive fields of an applied record. The
// balance moves by the difference between the new effect and the stored one.
func (uc *LedgerUseCase) Amend(ctx context.Context, input AmendInput) (*domain.TransactionRecord, error) {
	start := time.Now()

	if err := validateAmend(input); err != nil {
		uc.observe("amend", "", input.Amount, start, err)
		return nil, err
	}

	var result *domain.TransactionRecord
	err := retry(ctx, uc.retrier, func() error {
		var opErr error
		result, opErr = uc.amend(ctx, input)
		return opErr
	})

	kind := domain.Kind("")
	if result != nil {
		kind = result.Kind
	}
	uc.observe("amend", kind, input.Amount, start, err)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func validateAmend(input AmendInput) error {
	if input.TransactionID == "" {
		return domain.NewValidationError("transaction_id", "transaction id is required")
	}
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return err
	}
	return validateDetails(input.Details)
}

func (uc *LedgerUseCase) amend(ctx context.Context, input AmendInput) (*domain.TransactionRecord, error) {
	txCtx, cancel := context.WithTimeout(ctx, uc.txTimeout)
	defer cancel()

	tx, custody, record, err := uc.lockRecord(txCtx, input.TransactionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if input.ExpectedVersion != nil && *input.ExpectedVersion != record.Version {
		return nil, &domain.LedgerError{
			Err:           domain.ErrValidation,
			CustodyID:     custody.ID,
			TransactionID: record.ID,
			Field:         "expected_version",
			Detail:        "record was modified since it was read",
		}
	}

	newEffect := record.Kind.Effect(input.Amount)
	delta := newEffect.Sub(record.Effect)

	remaining, err := custody.AdjustRemaining(delta, domain.GuardOverdraft)
	if err != nil {
		return nil, annotate(err, record.ID)
	}

	now := uc.now()
	before := *record
	record.Amount = input.Amount
	record.Effect = newEffect
	record.ApplyDetails(input.Details)
	record.Version++
	record.UpdatedAt = now

	if err := record.Validate(); err != nil {
		return nil, err
	}

	if err := uc.recordRepo.Update(txCtx, tx, record); err != nil {
		return nil, err
	}

	if !delta.IsZero() {
		if err := uc.custodyRepo.UpdateRemaining(txCtx, tx, custody.ID, remaining, now); err != nil {
			return nil, err
		}
		custody.Commit(remaining, now)
	}

	err = uc.journal.write(txCtx, tx, journalEntry{
		aggregateType: domain.AggregateTypeTransaction,
		aggregateID:   record.ID,
		eventType:     domain.EventTypeTransactionAmended,
		payload:       domain.BalanceEventPayload(custody, record, delta.String()),
		action:        domain.AuditActionTransactionAmend,
		custodyID:     custody.ID,
		beforeState:   &before,
		afterState:    record,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return record, nil
}

// Reverse voids a record and applies the exact inverse of its stored effect.
// Reversal is never rejected for insufficient balance; a negative result
// means the custody was already inconsistent.
func (uc *LedgerUseCase) Reverse(ctx context.Context, transactionID string) error {
	start := time.Now()

	if transactionID == "" {
		err := domain.NewValidationError("transaction_id", "transaction id is required")
		uc.observe("reverse", "", decimal.Zero, start, err)
		return err
	}

	var reversed *domain.TransactionRecord
	err := retry(ctx, uc.retrier, func() error {
		var opErr error
		reversed, opErr = uc.reverse(ctx, transactionID)
		return opErr
	})

	kind, amount := domain.Kind(""), decimal.Zero
	if reversed != nil {
		kind, amount = reversed.Kind, reversed.Amount
	}
	uc.observe("reverse", kind, amount, start, err)

	return err
}

func (uc *LedgerUseCase) reverse(ctx context.Context, transactionID string) (*domain.TransactionRecord, error) {
	txCtx, cancel := context.WithTimeout(ctx, uc.txTimeout)
	defer cancel()

	tx, custody, record, err := uc.lockRecord(txCtx, transactionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	inverse := record.Effect.Neg()
	remaining, err := custody.AdjustRemaining(inverse, domain.GuardInvariant)
	if err != nil {
		return nil, annotate(err, record.ID)
	}

	now := uc.now()
	before := *record

	if err := uc.recordRepo.MarkReversed(txCtx, tx, record.ID, now); err != nil {
		return nil, err
	}

	if err := uc.custodyRepo.UpdateRemaining(txCtx, tx, custody.ID, remaining, now); err != nil {
		return nil, err
	}
	custody.Commit(remaining, now)

	record.Status = domain.TransactionStatusReversed
	record.ReversedAt = &now
	record.UpdatedAt = now

	err = uc.journal.write(txCtx, tx, journalEntry{
		aggregateType: domain.AggregateTypeTransaction,
		aggregateID:   record.ID,
		eventType:     domain.EventTypeTransactionReversed,
		payload:       domain.BalanceEventPayload(custody, record, inverse.String()),
		action:        domain.AuditActionTransactionReverse,
		custodyID:     custody.ID,
		beforeState:   &before,
		afterState:    record,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return record, nil
}

// lockRecord begins a transaction and locks the custody owning transactionID
// and then the record itself. The record's custody is read without a lock
// first so the lock order stays custody before record. On success the caller
// owns the returned transaction.
func (uc *LedgerUseCase) lockRecord(ctx context.Context, transactionID string) (Transaction, *domain.Custody, *domain.TransactionRecord, error) {
	peek, err := uc.recordRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, nil, nil, err
	}
	if peek.IsReversed() {
		return nil, nil, nil, domain.ErrTransactionNotFound.WithTransaction(transactionID)
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	custody, err := uc.custodyRepo.GetByIDForUpdate(ctx, tx, peek.CustodyID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, nil, nil, err
	}

	record, err := uc.recordRepo.GetByIDForUpdate(ctx, tx, transactionID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, nil, nil, err
	}

	if record.IsReversed() {
		_ = tx.Rollback(ctx)
		return nil, nil, nil, domain.ErrTransactionNotFound.WithTransaction(transactionID)
	}

	return tx, custody, record, nil
}

// ApplyPayrollRun applies every line of a payroll run against one custody
// with a single sufficiency check on the run total. Either all lines are
// applied or none.
func (uc *LedgerUseCase) ApplyPayrollRun(ctx context.Context, input ApplyPayrollRunInput) (*domain.PayrollRun, error) {
	start := time.Now()

	run, err := uc.newPayrollRun(input)
	if err != nil {
		uc.observe("payroll_run", domain.KindPayrollLine, decimal.Zero, start, err)
		return nil, err
	}

	var result *domain.PayrollRun
	err = retry(ctx, uc.retrier, func() error {
		var opErr error
		result, opErr = uc.applyPayrollRun(ctx, run)
		return opErr
	})

	uc.observe("payroll_run", domain.KindPayrollLine, run.Total, start, err)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *LedgerUseCase) newPayrollRun(input ApplyPayrollRunInput) (*domain.PayrollRun, error) {
	if len(input.Lines) == 0 {
		return nil, domain.ErrEmptyPayrollRun.WithCustody(input.CustodyID)
	}
	if len(input.Lines) > domain.MaxPayrollLines {
		return nil, domain.NewValidationError("lines", "payroll run exceeds the line limit")
	}

	run := &domain.PayrollRun{
		ID:        uc.idGen.Generate(),
		CustodyID: input.CustodyID,
		Total:     decimal.Zero,
		Lines:     make([]*domain.TransactionRecord, 0, len(input.Lines)),
	}

	for _, line := range input.Lines {
		record, err := uc.newRecord(input.CustodyID, domain.KindPayrollLine, line.Amount, line.Details)
		if err != nil {
			return nil, err
		}
		record.PayrollRunID = &run.ID
		run.Lines = append(run.Lines, record)
		run.Total = run.Total.Add(record.Amount)
	}

	return run, nil
}

func (uc *LedgerUseCase) applyPayrollRun(ctx context.Context, draft *domain.PayrollRun) (*domain.PayrollRun, error) {
	txCtx, cancel := context.WithTimeout(ctx, uc.txTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	custody, err := uc.custodyRepo.GetByIDForUpdate(txCtx, tx, draft.CustodyID)
	if err != nil {
		return nil, err
	}

	if err := custody.EnsureActive(); err != nil {
		return nil, err
	}

	remaining, err := custody.AdjustRemaining(draft.Total.Neg(), domain.GuardOverdraft)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	run := &domain.PayrollRun{
		ID:        draft.ID,
		CustodyID: draft.CustodyID,
		Total:     draft.Total,
		Lines:     make([]*domain.TransactionRecord, 0, len(draft.Lines)),
		CreatedAt: now,
	}

	for _, line := range draft.Lines {
		record := *line
		record.Status = domain.TransactionStatusApplied
		record.Version = 1
		record.CreatedAt = now
		record.UpdatedAt = now
		if record.OccurredOn.IsZero() {
			record.OccurredOn = now
		}

		if err := uc.recordRepo.Create(txCtx, tx, &record); err != nil {
			return nil, err
		}
		run.Lines = append(run.Lines, &record)
	}

	if err := uc.custodyRepo.UpdateRemaining(txCtx, tx, custody.ID, remaining, now); err != nil {
		return nil, err
	}

	before := *custody
	custody.Commit(remaining, now)

	payload := domain.BalanceEventPayload(custody, nil, draft.Total.Neg().String())
	payload["payroll_run_id"] = run.ID
	payload["lines"] = len(run.Lines)

	err = uc.journal.write(txCtx, tx, journalEntry{
		aggregateType: domain.AggregateTypePayrollRun,
		aggregateID:   run.ID,
		eventType:     domain.EventTypePayrollRunApplied,
		payload:       payload,
		action:        domain.AuditActionPayrollRunApply,
		custodyID:     custody.ID,
		beforeState:   &before,
		afterState:    custody,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return run, nil
}

// GetRemaining returns the current remaining balance of a custody.
func (uc *LedgerUseCase) GetRemaining(ctx context.Context, custodyID string) (decimal.Decimal, error) {
	if custodyID == "" {
		return decimal.Zero, domain.NewValidationError("custody_id", "custody id is required")
	}

	custody, err := uc.custodyRepo.GetByID(ctx, custodyID)
	if err != nil {
		return decimal.Zero, err
	}

	return custody.Remaining, nil
}

// GetTransaction returns an applied record. Reversed records are not found.
func (uc *LedgerUseCase) GetTransaction(ctx context.Context, id string) (*domain.TransactionRecord, error) {
	record, err := uc.recordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.IsReversed() {
		return nil, domain.ErrTransactionNotFound.WithTransaction(id)
	}
	return record, nil
}

// ListTransactionsInput represents input for listing a custody's records.
type ListTransactionsInput struct {
	CustodyID string
	Limit     int
	Offset    int
}

// ListTransactions lists applied records of a custody, newest first.
func (uc *LedgerUseCase) ListTransactions(ctx context.Context, input ListTransactionsInput) ([]*domain.TransactionRecord, error) {
	if _, err := uc.custodyRepo.GetByID(ctx, input.CustodyID); err != nil {
		return nil, err
	}

	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)
	return uc.recordRepo.ListByCustody(ctx, input.CustodyID, limit, offset)
}

func (uc *LedgerUseCase) newRecord(custodyID string, kind domain.Kind, amount decimal.Decimal, details domain.RecordDetails) (*domain.TransactionRecord, error) {
	if custodyID == "" {
		return nil, domain.NewValidationError("custody_id", "custody id is required")
	}
	if err := validateDetails(details); err != nil {
		return nil, err
	}

	record := &domain.TransactionRecord{
		ID:        uc.idGen.Generate(),
		CustodyID: custodyID,
		Kind:      kind,
		Amount:    amount,
		Effect:    kind.Effect(amount),
	}
	record.ApplyDetails(details)

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}

func validateDetails(details domain.RecordDetails) error {
	if err := domain.ValidateText("description", details.Description); err != nil {
		return err
	}
	if err := domain.ValidateText("responsible", details.Responsible); err != nil {
		return err
	}
	return domain.ValidateMetadata(details.Metadata)
}

// annotate names transactionID on a ledger error that lacks it.
func annotate(err error, transactionID string) error {
	le, ok := domain.AsLedgerError(err)
	if !ok || le.TransactionID != "" {
		return err
	}
	return le.WithTransaction(transactionID)
}

func (uc *LedgerUseCase) observe(operation string, kind domain.Kind, amount decimal.Decimal, start time.Time, err error) {
	if errors.Is(err, domain.ErrLedgerInconsistency) {
		event := uc.logger.Error().Err(err).Str("operation", operation)
		if le, ok := domain.AsLedgerError(err); ok {
			event = event.Str("custody_id", le.CustodyID).Str("transaction_id", le.TransactionID)
		}
		event.Msg("custody ledger invariant violated")
	}

	if uc.metrics == nil {
		return
	}

	result := "success"
	if err != nil {
		result = domain.Code(err)
	}

	uc.metrics.LedgerOperations.WithLabelValues(operation, string(kind), result).Inc()
	uc.metrics.LedgerDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err == nil && amount.IsPositive() {
		uc.metrics.LedgerAmount.WithLabelValues(string(kind)).Observe(amount.InexactFloat64())
	}
	if errors.Is(err, domain.ErrLedgerInconsistency) {
		uc.metrics.LedgerInconsistency.WithLabelValues(operation).Inc()
	}
	if result == "internal_error" {
		uc.metrics.DBErrors.WithLabelValues(operation).Inc()
	}
}
