package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/infrastructure/postgres/generated"
	"github.com/iho/custodyledger/internal/usecase"
)

const auditColumns = `id, user_id, action, resource_type, resource_id, custody_id,
	request_id, before_state, after_state, status, error_message, created_at`

// AuditRepository implements usecase.AuditRepository.
type AuditRepository struct {
	db generated.DBTX
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db generated.DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateTx inserts an audit log entry within tx.
func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	t, ok := tx.(*Tx)
	if !ok {
		return errForeignTx
	}

	if log.ID == "" {
		log.ID = uuid.New().String()
	}

	beforeState, err := marshalState(log.BeforeState)
	if err != nil {
		return err
	}
	afterState, err := marshalState(log.AfterState)
	if err != nil {
		return err
	}

	_, err = t.PgxTx().Exec(ctx,
		`INSERT INTO audit_logs (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		log.ID,
		log.UserID,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		log.CustodyID,
		log.RequestID,
		beforeState,
		afterState,
		log.Status,
		log.ErrorMessage,
		log.CreatedAt,
	)

	return err
}

// List retrieves audit logs matching filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	query, args := buildAuditQuery(filter)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.AuditLog
	for rows.Next() {
		log, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

func buildAuditQuery(filter domain.AuditFilter) (string, []any) {
	var (
		where []string
		args  []any
	)

	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	add("user_id", filter.UserID)
	add("action", filter.Action)
	add("resource_type", filter.ResourceType)
	add("resource_id", filter.ResourceID)
	add("custody_id", filter.CustodyID)

	query := `SELECT ` + auditColumns + ` FROM audit_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	limit, offset := domain.ValidatePagination(filter.Limit, filter.Offset)
	args = append(args, limit, offset)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return query, args
}

func scanAuditLog(rows pgx.Rows) (*domain.AuditLog, error) {
	var (
		log                     domain.AuditLog
		beforeState, afterState []byte
	)

	err := rows.Scan(
		&log.ID,
		&log.UserID,
		&log.Action,
		&log.ResourceType,
		&log.ResourceID,
		&log.CustodyID,
		&log.RequestID,
		&beforeState,
		&afterState,
		&log.Status,
		&log.ErrorMessage,
		&log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(beforeState) > 0 {
		if err := json.Unmarshal(beforeState, &log.BeforeState); err != nil {
			return nil, err
		}
	}
	if len(afterState) > 0 {
		if err := json.Unmarshal(afterState, &log.AfterState); err != nil {
			return nil, err
		}
	}

	return &log, nil
}

func marshalState(state domain.JSON) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}

var _ usecase.AuditRepository = (*AuditRepository)(nil)
