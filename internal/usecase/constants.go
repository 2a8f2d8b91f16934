package usecase

import "time"

const (
	// DefaultTransactionTimeout bounds one ledger transaction, lock wait included
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// ReconciliationCacheKey holds the last ledger-wide reconciliation report
	ReconciliationCacheKey = "custodyledger:reconciliation:report"
)
