package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/iho/custodyledger/internal/domain"
)

// Retrier implements usecase.Retrier with exponential backoff. It retries
// deadlocks, serialization failures and lock waits that ran out; ledger
// inconsistencies and every other error are returned at once.
type Retrier struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	logger          zerolog.Logger
	onRetry         func(err error, attempt int)
}

// NewRetrier creates a new retrier with default settings.
func NewRetrier() *Retrier {
	return &Retrier{
		maxRetries:      3,
		initialInterval: 50 * time.Millisecond,
		maxInterval:     1 * time.Second,
		maxElapsedTime:  10 * time.Second,
		logger:          zerolog.Nop(),
	}
}

// WithMaxRetries sets how many times an operation is re-run.
func (r *Retrier) WithMaxRetries(n int) *Retrier {
	if n >= 0 {
		r.maxRetries = n
	}
	return r
}

// WithLogger sets the logger that reports each retry.
func (r *Retrier) WithLogger(logger zerolog.Logger) *Retrier {
	r.logger = logger
	return r
}

// OnRetry registers fn to run before every retry.
func (r *Retrier) OnRetry(fn func(err error, attempt int)) *Retrier {
	r.onRetry = fn
	return r
}

// Retry executes an operation with exponential backoff on retryable errors.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = r.maxElapsedTime

	retryCount := 0

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}

		if !isRetryableError(err) {
			return backoff.Permanent(err)
		}

		retryCount++
		if retryCount > r.maxRetries {
			return backoff.Permanent(err)
		}

		r.logger.Warn().
			Err(err).
			Int("retry", retryCount).
			Msg("transient ledger error, retrying")

		if r.onRetry != nil {
			r.onRetry(err, retryCount)
		}

		return err
	}, backoff.WithContext(b, ctx))
}

// isRetryableError reports whether err is contention that may clear up.
func isRetryableError(err error) bool {
	if errors.Is(err, domain.ErrBusy) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrDeadlock, pgErrSerializationFailure, pgErrLockNotAvailable:
			return true
		}
	}
	return false
}
