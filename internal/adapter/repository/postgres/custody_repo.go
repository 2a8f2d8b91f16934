package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/infrastructure/postgres/generated"
	"github.com/iho/custodyledger/internal/usecase"
)

// CustodyRepository implements usecase.CustodyRepository.
type CustodyRepository struct {
	queries *generated.Queries
}

// NewCustodyRepository creates a new CustodyRepository. db is usually a
// *pgxpool.Pool.
func NewCustodyRepository(db generated.DBTX) *CustodyRepository {
	return &CustodyRepository{queries: generated.New(db)}
}

// Create inserts a custody within tx.
func (r *CustodyRepository) Create(ctx context.Context, tx usecase.Transaction, custody *domain.Custody) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	err = queries.CreateCustody(ctx, generated.CreateCustodyParams{
		ID:        custody.ID,
		Name:      custody.Name,
		Budget:    decimalToNumeric(custody.Budget),
		Remaining: decimalToNumeric(custody.Remaining),
		Status:    string(custody.Status),
		Version:   custody.Version,
		CreatedAt: timeToPgTimestamptz(custody.CreatedAt),
		UpdatedAt: timeToPgTimestamptz(custody.UpdatedAt),
	})

	return mapError(err, custody.ID, "")
}

// GetByID retrieves a custody by ID.
func (r *CustodyRepository) GetByID(ctx context.Context, id string) (*domain.Custody, error) {
	row, err := r.queries.GetCustodyByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCustodyNotFound.WithCustody(id)
		}

		return nil, err
	}

	return rowToCustody(row), nil
}

// GetByIDForUpdate retrieves a custody by ID with a FOR UPDATE lock.
func (r *CustodyRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Custody, error) {
	queries, err := txQueries(tx)
	if err != nil {
		return nil, err
	}

	row, err := queries.GetCustodyByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCustodyNotFound.WithCustody(id)
		}

		return nil, mapError(err, id, "")
	}

	return rowToCustody(row), nil
}

// UpdateRemaining updates the remaining balance of a custody.
func (r *CustodyRepository) UpdateRemaining(ctx context.Context, tx usecase.Transaction, id string, remaining decimal.Decimal, updatedAt time.Time) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	err = queries.UpdateCustodyRemaining(ctx, generated.UpdateCustodyRemainingParams{
		ID:        id,
		Remaining: decimalToNumeric(remaining),
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})

	return mapError(err, id, "")
}

// UpdateBudget updates budget and remaining together.
func (r *CustodyRepository) UpdateBudget(ctx context.Context, tx usecase.Transaction, id string, budget, remaining decimal.Decimal, updatedAt time.Time) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	err = queries.UpdateCustodyBudget(ctx, generated.UpdateCustodyBudgetParams{
		ID:        id,
		Budget:    decimalToNumeric(budget),
		Remaining: decimalToNumeric(remaining),
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})

	return mapError(err, id, "")
}

// UpdateStatus updates the status of a custody.
func (r *CustodyRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.CustodyStatus, updatedAt time.Time) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	err = queries.UpdateCustodyStatus(ctx, generated.UpdateCustodyStatusParams{
		ID:        id,
		Status:    string(status),
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})

	return mapError(err, id, "")
}

// List lists custodies with pagination, newest first.
func (r *CustodyRepository) List(ctx context.Context, limit, offset int) ([]*domain.Custody, error) {
	rows, err := r.queries.ListCustodies(ctx, generated.ListCustodiesParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	custodies := make([]*domain.Custody, 0, len(rows))
	for _, row := range rows {
		custodies = append(custodies, rowToCustody(row))
	}

	return custodies, nil
}

func rowToCustody(row generated.Custody) *domain.Custody {
	return &domain.Custody{
		ID:        row.ID,
		Name:      row.Name,
		Budget:    numericToDecimal(row.Budget),
		Remaining: numericToDecimal(row.Remaining),
		Status:    domain.CustodyStatus(row.Status),
		Version:   row.Version,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	d, _ := toDecimal(n)
	return d
}

func toDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(n.Int.String())
	if err != nil {
		return decimal.Zero, err
	}

	if n.Exp != 0 {
		d = d.Shift(n.Exp)
	}

	return d, nil
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func pgTimestamptzToTimePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

var _ usecase.CustodyRepository = (*CustodyRepository)(nil)
