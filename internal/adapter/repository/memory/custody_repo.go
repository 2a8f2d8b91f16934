package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/usecase"
)

// CustodyRepository implements usecase.CustodyRepository.
type CustodyRepository struct {
	store *Store
}

// NewCustodyRepository creates a new CustodyRepository.
func NewCustodyRepository(store *Store) *CustodyRepository {
	return &CustodyRepository{store: store}
}

func custodyLockKey(id string) string { return "custody:" + id }

// Create stages a new custody.
func (r *CustodyRepository) Create(ctx context.Context, tx usecase.Transaction, custody *domain.Custody) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	c := *custody
	return t.stage(func() {
		r.store.custodies[c.ID] = &c
	})
}

// GetByID retrieves a committed custody by ID.
func (r *CustodyRepository) GetByID(ctx context.Context, id string) (*domain.Custody, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.get(id)
}

func (r *CustodyRepository) get(id string) (*domain.Custody, error) {
	c, ok := r.store.custodies[id]
	if !ok {
		return nil, domain.ErrCustodyNotFound.WithCustody(id)
	}
	cp := *c
	return &cp, nil
}

// GetByIDForUpdate locks the custody for the rest of tx and returns it.
func (r *CustodyRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Custody, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	if err := t.lock(ctx, custodyLockKey(id), id); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// UpdateRemaining stages a new remaining balance.
func (r *CustodyRepository) UpdateRemaining(ctx context.Context, tx usecase.Transaction, id string, remaining decimal.Decimal, updatedAt time.Time) error {
	return r.update(tx, id, func(c *domain.Custody) {
		c.Commit(remaining, updatedAt)
	})
}

// UpdateBudget stages a new budget together with remaining.
func (r *CustodyRepository) UpdateBudget(ctx context.Context, tx usecase.Transaction, id string, budget, remaining decimal.Decimal, updatedAt time.Time) error {
	return r.update(tx, id, func(c *domain.Custody) {
		c.Budget = budget
		c.Commit(remaining, updatedAt)
	})
}

// UpdateStatus stages a status change.
func (r *CustodyRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.CustodyStatus, updatedAt time.Time) error {
	return r.update(tx, id, func(c *domain.Custody) {
		c.Status = status
		c.Version++
		c.UpdatedAt = updatedAt
	})
}

func (r *CustodyRepository) update(tx usecase.Transaction, id string, apply func(c *domain.Custody)) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	if _, err := r.GetByID(context.Background(), id); err != nil {
		return err
	}

	return t.stage(func() {
		if c, ok := r.store.custodies[id]; ok {
			apply(c)
		}
	})
}

// List returns custodies newest first, ties broken by descending ID.
func (r *CustodyRepository) List(ctx context.Context, limit, offset int) ([]*domain.Custody, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	custodies := make([]*domain.Custody, 0, len(r.store.custodies))
	for _, c := range r.store.custodies {
		cp := *c
		custodies = append(custodies, &cp)
	}

	sort.Slice(custodies, func(i, j int) bool {
		if custodies[i].CreatedAt.Equal(custodies[j].CreatedAt) {
			return custodies[i].ID > custodies[j].ID
		}
		return custodies[i].CreatedAt.After(custodies[j].CreatedAt)
	})

	return page(custodies, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

var _ usecase.CustodyRepository = (*CustodyRepository)(nil)
