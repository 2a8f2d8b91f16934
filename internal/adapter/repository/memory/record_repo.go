package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/usecase"
)

// TransactionRecordRepository implements usecase.TransactionRecordRepository.
type TransactionRecordRepository struct {
	store *Store
}

// NewTransactionRecordRepository creates a new TransactionRecordRepository.
func NewTransactionRecordRepository(store *Store) *TransactionRecordRepository {
	return &TransactionRecordRepository{store: store}
}

func recordLockKey(id string) string { return "record:" + id }

func copyRecord(r *domain.TransactionRecord) *domain.TransactionRecord {
	cp := *r
	if r.Metadata != nil {
		cp.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Create stages a new record.
func (r *TransactionRecordRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.TransactionRecord) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	rec := copyRecord(record)
	return t.stage(func() {
		r.store.records[rec.ID] = rec
	})
}

// GetByID retrieves a committed record by ID.
func (r *TransactionRecordRepository) GetByID(ctx context.Context, id string) (*domain.TransactionRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rec, ok := r.store.records[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound.WithTransaction(id)
	}
	return copyRecord(rec), nil
}

// GetByIDForUpdate locks the record for the rest of tx and returns it.
func (r *TransactionRecordRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.TransactionRecord, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	peek, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := t.lock(ctx, recordLockKey(id), peek.CustodyID); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// Update stages the new amount, effect and descriptive fields of a record.
func (r *TransactionRecordRepository) Update(ctx context.Context, tx usecase.Transaction, record *domain.TransactionRecord) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	if _, err := r.GetByID(ctx, record.ID); err != nil {
		return err
	}

	rec := copyRecord(record)
	return t.stage(func() {
		if current, ok := r.store.records[rec.ID]; ok {
			rec.CreatedAt = current.CreatedAt
			rec.Status = current.Status
			rec.ReversedAt = current.ReversedAt
			r.store.records[rec.ID] = rec
		}
	})
}

// MarkReversed stages the terminal state of a record.
func (r *TransactionRecordRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id string, reversedAt time.Time) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}

	return t.stage(func() {
		if rec, ok := r.store.records[id]; ok {
			rec.Status = domain.TransactionStatusReversed
			rec.ReversedAt = &reversedAt
			rec.UpdatedAt = reversedAt
		}
	})
}

// ListByCustody returns applied records of a custody, newest first.
func (r *TransactionRecordRepository) ListByCustody(ctx context.Context, custodyID string, limit, offset int) ([]*domain.TransactionRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var records []*domain.TransactionRecord
	for _, rec := range r.store.records {
		if rec.CustodyID == custodyID && !rec.IsReversed() {
			records = append(records, copyRecord(rec))
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return page(records, limit, offset), nil
}

// SumEffects sums the effects of applied records of a custody.
func (r *TransactionRecordRepository) SumEffects(ctx context.Context, custodyID string) (decimal.Decimal, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.store.sumEffects(custodyID), nil
}

func (s *Store) sumEffects(custodyID string) decimal.Decimal {
	sum := decimal.Zero
	for _, rec := range s.records {
		if rec.CustodyID == custodyID && !rec.IsReversed() {
			sum = sum.Add(rec.Effect)
		}
	}
	return sum
}

var _ usecase.TransactionRecordRepository = (*TransactionRecordRepository)(nil)
