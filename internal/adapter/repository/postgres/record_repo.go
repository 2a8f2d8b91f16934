package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/infrastructure/postgres/generated"
	"github.com/iho/custodyledger/internal/usecase"
)

// TransactionRecordRepository implements usecase.TransactionRecordRepository.
type TransactionRecordRepository struct {
	queries *generated.Queries
}

// NewTransactionRecordRepository creates a new TransactionRecordRepository.
func NewTransactionRecordRepository(db generated.DBTX) *TransactionRecordRepository {
	return &TransactionRecordRepository{queries: generated.New(db)}
}

// Create inserts a record within tx.
func (r *TransactionRecordRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.TransactionRecord) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	metadata, err := marshalMetadata(record.Metadata)
	if err != nil {
		return err
	}

	err = queries.CreateCustodyTransaction(ctx, generated.CreateCustodyTransactionParams{
		ID:           record.ID,
		CustodyID:    record.CustodyID,
		Kind:         string(record.Kind),
		Amount:       decimalToNumeric(record.Amount),
		Effect:       decimalToNumeric(record.Effect),
		Description:  record.Description,
		Responsible:  record.Responsible,
		OccurredOn:   timeToPgDate(record.OccurredOn),
		Metadata:     metadata,
		PayrollRunID: stringPtrToPgText(record.PayrollRunID),
		Status:       string(record.Status),
		Version:      record.Version,
		CreatedAt:    timeToPgTimestamptz(record.CreatedAt),
		UpdatedAt:    timeToPgTimestamptz(record.UpdatedAt),
	})

	return mapError(err, record.CustodyID, record.ID)
}

// GetByID retrieves a record by ID, reversed or not.
func (r *TransactionRecordRepository) GetByID(ctx context.Context, id string) (*domain.TransactionRecord, error) {
	row, err := r.queries.GetCustodyTransactionByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound.WithTransaction(id)
		}

		return nil, err
	}

	return rowToRecord(row)
}

// GetByIDForUpdate retrieves a record by ID with a FOR UPDATE lock.
func (r *TransactionRecordRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.TransactionRecord, error) {
	queries, err := txQueries(tx)
	if err != nil {
		return nil, err
	}

	row, err := queries.GetCustodyTransactionByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound.WithTransaction(id)
		}

		return nil, mapError(err, "", id)
	}

	return rowToRecord(row)
}

// Update stores the amount, effect, descriptive fields and version of an
// applied record.
func (r *TransactionRecordRepository) Update(ctx context.Context, tx usecase.Transaction, record *domain.TransactionRecord) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	metadata, err := marshalMetadata(record.Metadata)
	if err != nil {
		return err
	}

	err = queries.UpdateCustodyTransaction(ctx, generated.UpdateCustodyTransactionParams{
		ID:          record.ID,
		Amount:      decimalToNumeric(record.Amount),
		Effect:      decimalToNumeric(record.Effect),
		Description: record.Description,
		Responsible: record.Responsible,
		OccurredOn:  timeToPgDate(record.OccurredOn),
		Metadata:    metadata,
		Version:     record.Version,
		UpdatedAt:   timeToPgTimestamptz(record.UpdatedAt),
	})

	return mapError(err, record.CustodyID, record.ID)
}

// MarkReversed moves an applied record to its terminal state.
func (r *TransactionRecordRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id string, reversedAt time.Time) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	err = queries.MarkCustodyTransactionReversed(ctx, generated.MarkCustodyTransactionReversedParams{
		ID:         id,
		ReversedAt: timeToPgTimestamptz(reversedAt),
	})

	return mapError(err, "", id)
}

// ListByCustody lists applied records of a custody, newest first.
func (r *TransactionRecordRepository) ListByCustody(ctx context.Context, custodyID string, limit, offset int) ([]*domain.TransactionRecord, error) {
	rows, err := r.queries.ListCustodyTransactions(ctx, generated.ListCustodyTransactionsParams{
		CustodyID: custodyID,
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		return nil, err
	}

	records := make([]*domain.TransactionRecord, 0, len(rows))
	for _, row := range rows {
		record, err := rowToRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// SumEffects sums the effects of applied records of a custody.
func (r *TransactionRecordRepository) SumEffects(ctx context.Context, custodyID string) (decimal.Decimal, error) {
	total, err := r.queries.SumCustodyTransactionEffects(ctx, custodyID)
	if err != nil {
		return decimal.Zero, err
	}

	return toDecimal(total)
}

func rowToRecord(row generated.CustodyTransaction) (*domain.TransactionRecord, error) {
	record := &domain.TransactionRecord{
		ID:          row.ID,
		CustodyID:   row.CustodyID,
		Kind:        domain.Kind(row.Kind),
		Amount:      numericToDecimal(row.Amount),
		Effect:      numericToDecimal(row.Effect),
		Description: row.Description,
		Responsible: row.Responsible,
		OccurredOn:  row.OccurredOn.Time,
		Status:      domain.TransactionStatus(row.Status),
		Version:     row.Version,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
		ReversedAt:  pgTimestamptzToTimePtr(row.ReversedAt),
	}

	if row.PayrollRunID.Valid {
		id := row.PayrollRunID.String
		record.PayrollRunID = &id
	}

	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &record.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of transaction %s: %w", row.ID, err)
		}
	}

	return record, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}

	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, domain.NewValidationError("metadata", "metadata is not serializable: "+err.Error())
	}
	return data, nil
}

func timeToPgDate(t time.Time) pgtype.Date {
	y, m, d := t.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

func stringPtrToPgText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

var _ usecase.TransactionRecordRepository = (*TransactionRecordRepository)(nil)
