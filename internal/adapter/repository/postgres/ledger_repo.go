package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/infrastructure/postgres/generated"
	"github.com/iho/custodyledger/internal/usecase"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	queries *generated.Queries
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db generated.DBTX) *LedgerRepository {
	return &LedgerRepository{queries: generated.New(db)}
}

// CheckConsistency returns the remaining every custody should hold according
// to its records, summed over all custodies, next to the stored total.
func (r *LedgerRepository) CheckConsistency(ctx context.Context) (expected decimal.Decimal, recorded decimal.Decimal, err error) {
	result, err := r.queries.CheckLedgerConsistency(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	expected, err = toDecimal(result.ExpectedRemaining)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	recorded, err = toDecimal(result.RecordedRemaining)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return expected, recorded, nil
}

// CustodyBalance reads the custody and the sum of its applied effects in one
// statement so both values come from the same snapshot.
func (r *LedgerRepository) CustodyBalance(ctx context.Context, custodyID string) (*domain.Custody, decimal.Decimal, error) {
	row, err := r.queries.GetCustodyBalance(ctx, custodyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, decimal.Zero, domain.ErrCustodyNotFound.WithCustody(custodyID)
		}

		return nil, decimal.Zero, err
	}

	effects, err := toDecimal(row.Effects)
	if err != nil {
		return nil, decimal.Zero, err
	}

	custody := rowToCustody(generated.Custody{
		ID:        row.ID,
		Name:      row.Name,
		Budget:    row.Budget,
		Remaining: row.Remaining,
		Status:    row.Status,
		Version:   row.Version,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	})

	return custody, effects, nil
}

var _ usecase.LedgerRepository = (*LedgerRepository)(nil)
