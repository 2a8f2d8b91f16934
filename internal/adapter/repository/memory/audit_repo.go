package memory

import (
	"context"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/usecase"
)

// AuditRepository implements usecase.AuditRepository.
type AuditRepository struct {
	store *Store
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(store *Store) *AuditRepository {
	return &AuditRepository{store: store}
}

// CreateTx stages an audit row.
func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	l := *log
	return t.stage(func() {
		r.store.audits = append(r.store.audits, &l)
	})
}

// List returns audit rows matching filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var logs []*domain.AuditLog
	for i := len(r.store.audits) - 1; i >= 0; i-- {
		l := r.store.audits[i]
		if !matches(l, filter) {
			continue
		}
		cp := *l
		logs = append(logs, &cp)
	}

	limit, offset := domain.ValidatePagination(filter.Limit, filter.Offset)
	return page(logs, limit, offset), nil
}

func matches(l *domain.AuditLog, f domain.AuditFilter) bool {
	switch {
	case f.UserID != "" && l.UserID != f.UserID:
		return false
	case f.Action != "" && l.Action != f.Action:
		return false
	case f.ResourceType != "" && l.ResourceType != f.ResourceType:
		return false
	case f.ResourceID != "" && l.ResourceID != f.ResourceID:
		return false
	case f.CustodyID != "" && l.CustodyID != f.CustodyID:
		return false
	}
	return true
}

var _ usecase.AuditRepository = (*AuditRepository)(nil)
