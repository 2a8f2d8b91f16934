package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/custodyledger/internal/domain"
)

// PostgreSQL error codes the ledger reacts to.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrLockNotAvailable     = "55P03"
	pgErrQueryCanceled        = "57014"
	pgErrCheckViolation       = "23514"
)

// mapError translates lock and constraint failures into ledger errors.
// Anything else is returned unchanged.
func mapError(err error, custodyID, transactionID string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgErrLockNotAvailable, pgErrQueryCanceled:
		return domain.NewBusyError(custodyID, err)
	case pgErrCheckViolation:
		return domain.NewInconsistencyError(custodyID, transactionID,
			"constraint "+pgErr.ConstraintName+" rejected the write")
	default:
		return err
	}
}
