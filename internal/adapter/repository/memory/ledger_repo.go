package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/usecase"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	store *Store
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(store *Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

// CheckConsistency returns Σ(budget + Σeffect) and Σremaining over all custodies.
func (r *LedgerRepository) CheckConsistency(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	expected, recorded := decimal.Zero, decimal.Zero
	for id, c := range r.store.custodies {
		expected = expected.Add(c.Budget).Add(r.store.sumEffects(id))
		recorded = recorded.Add(c.Remaining)
	}

	return expected, recorded, nil
}

// CustodyBalance returns a copy of the custody and its Σeffect under one read lock.
func (r *LedgerRepository) CustodyBalance(ctx context.Context, custodyID string) (*domain.Custody, decimal.Decimal, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	c, ok := r.store.custodies[custodyID]
	if !ok {
		return nil, decimal.Zero, domain.ErrCustodyNotFound.WithCustody(custodyID)
	}

	custody := *c

	return &custody, r.store.sumEffects(custodyID), nil
}

var _ usecase.LedgerRepository = (*LedgerRepository)(nil)
