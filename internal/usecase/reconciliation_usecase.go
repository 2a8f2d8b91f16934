package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/infrastructure/metrics"
)

// reconcileBatchSize is the page size used when walking every custody.
const reconcileBatchSize = 100

// ReconciliationUseCase recomputes custody balances from their records and
// compares them with the stored remaining.
type ReconciliationUseCase struct {
	custodyRepo CustodyRepository
	ledgerRepo  LedgerRepository
	cache       Cache
	cacheTTL    time.Duration
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	custodyRepo CustodyRepository,
	ledgerRepo LedgerRepository,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		custodyRepo: custodyRepo,
		ledgerRepo:  ledgerRepo,
		logger:      zerolog.Nop(),
	}
}

// WithCache caches the ledger-wide report for ttl.
func (uc *ReconciliationUseCase) WithCache(cache Cache, ttl time.Duration) *ReconciliationUseCase {
	uc.cache = cache
	uc.cacheTTL = ttl
	return uc
}

// WithMetrics sets the metrics sink.
func (uc *ReconciliationUseCase) WithMetrics(m *metrics.Metrics) *ReconciliationUseCase {
	uc.metrics = m
	return uc
}

// WithLogger sets the logger used to report drift.
func (uc *ReconciliationUseCase) WithLogger(logger zerolog.Logger) *ReconciliationUseCase {
	uc.logger = logger
	return uc
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	CustodyID         string          `json:"custody_id"`
	Budget            decimal.Decimal `json:"budget"`
	RecordedRemaining decimal.Decimal `json:"recorded_remaining"`
	ExpectedRemaining decimal.Decimal `json:"expected_remaining"`
	Difference        decimal.Decimal `json:"difference"`
	IsReconciled      bool            `json:"is_reconciled"`
	LastChecked       time.Time       `json:"last_checked"`
}

// ReconcileCustody compares remaining with budget plus the effects of every
// applied record of the custody. Both sides come from one read, so a commit
// landing mid-check cannot show up as drift.
func (uc *ReconciliationUseCase) ReconcileCustody(ctx context.Context, custodyID string) (*ReconciliationResult, error) {
	custody, effects, err := uc.ledgerRepo.CustodyBalance(ctx, custodyID)
	if err != nil {
		return nil, err
	}

	expected := custody.Budget.Add(effects)
	result := &ReconciliationResult{
		CustodyID:         custody.ID,
		Budget:            custody.Budget,
		RecordedRemaining: custody.Remaining,
		ExpectedRemaining: expected,
		Difference:        custody.Remaining.Sub(expected),
		IsReconciled:      custody.Remaining.Equal(expected),
		LastChecked:       time.Now().UTC(),
	}

	if !result.IsReconciled {
		uc.reportDrift(result)
	}

	return result, nil
}

// ReconcileAllCustodies reconciles every custody in the system
func (uc *ReconciliationUseCase) ReconcileAllCustodies(ctx context.Context) ([]*ReconciliationResult, error) {
	var results []*ReconciliationResult

	for offset := 0; ; offset += reconcileBatchSize {
		custodies, err := uc.custodyRepo.List(ctx, reconcileBatchSize, offset)
		if err != nil {
			return nil, err
		}

		for _, custody := range custodies {
			result, err := uc.ReconcileCustody(ctx, custody.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile custody %s: %w", custody.ID, err)
			}
			results = append(results, result)
		}

		if len(custodies) < reconcileBatchSize {
			return results, nil
		}
	}
}

// CheckLedgerConsistency verifies that stored balances add up to budgets
// plus record effects across all custodies.
func (uc *ReconciliationUseCase) CheckLedgerConsistency(ctx context.Context) error {
	expected, recorded, err := uc.ledgerRepo.CheckConsistency(ctx)
	if err != nil {
		return err
	}

	if !expected.Equal(recorded) {
		return domain.NewInconsistencyError("", "", fmt.Sprintf(
			"stored remaining %s differs from budgets plus effects %s by %s",
			recorded.String(),
			expected.String(),
			recorded.Sub(expected).String(),
		))
	}

	return nil
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalCustodies      int                     `json:"total_custodies"`
	ReconciledCustodies int                     `json:"reconciled_custodies"`
	Discrepancies       []*ReconciliationResult `json:"discrepancies"`
	LedgerConsistent    bool                    `json:"ledger_consistent"`
	CheckedAt           time.Time               `json:"checked_at"`
}

// GenerateReconciliationReport generates a ledger-wide report, served from
// the cache when a fresh copy exists.
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	if report, ok := uc.cachedReport(ctx); ok {
		return report, nil
	}

	results, err := uc.ReconcileAllCustodies(ctx)
	if err != nil {
		return nil, err
	}

	ledgerErr := uc.CheckLedgerConsistency(ctx)
	if ledgerErr != nil {
		uc.logger.Error().Err(ledgerErr).Msg("ledger-wide consistency check failed")
	}

	report := &ReconciliationReport{
		TotalCustodies:   len(results),
		Discrepancies:    make([]*ReconciliationResult, 0),
		LedgerConsistent: ledgerErr == nil,
		CheckedAt:        time.Now().UTC(),
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledCustodies++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	uc.storeReport(ctx, report)

	return report, nil
}

// InvalidateReport drops the cached report.
func (uc *ReconciliationUseCase) InvalidateReport(ctx context.Context) error {
	if uc.cache == nil {
		return nil
	}
	return uc.cache.Delete(ctx, ReconciliationCacheKey)
}

func (uc *ReconciliationUseCase) cachedReport(ctx context.Context) (*ReconciliationReport, bool) {
	if uc.cache == nil {
		return nil, false
	}

	data, err := uc.cache.Get(ctx, ReconciliationCacheKey)
	if err != nil || data == nil {
		return nil, false
	}

	var report ReconciliationReport
	if err := json.Unmarshal(data, &report); err != nil {
		uc.logger.Warn().Err(err).Msg("discarding unreadable cached reconciliation report")
		return nil, false
	}

	return &report, true
}

func (uc *ReconciliationUseCase) storeReport(ctx context.Context, report *ReconciliationReport) {
	if uc.cache == nil || uc.cacheTTL <= 0 {
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		return
	}

	if err := uc.cache.Set(ctx, ReconciliationCacheKey, data, uc.cacheTTL); err != nil {
		uc.logger.Warn().Err(err).Msg("failed to cache reconciliation report")
	}
}

func (uc *ReconciliationUseCase) reportDrift(result *ReconciliationResult) {
	uc.logger.Error().
		Str("custody_id", result.CustodyID).
		Str("recorded_remaining", result.RecordedRemaining.String()).
		Str("expected_remaining", result.ExpectedRemaining.String()).
		Str("difference", result.Difference.String()).
		Msg("custody balance drifted from its records")

	if uc.metrics != nil {
		uc.metrics.LedgerInconsistency.WithLabelValues("reconciliation").Inc()
	}
}
