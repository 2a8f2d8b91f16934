package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iho/custodyledger/internal/adapter/http/dto"
	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/usecase"
)

// ReconciliationService defines the behavior needed by ReconciliationHandler.
type ReconciliationService interface {
	ReconcileCustody(ctx context.Context, custodyID string) (*usecase.ReconciliationResult, error)
	CheckLedgerConsistency(ctx context.Context) error
	GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error)
	InvalidateReport(ctx context.Context) error
}

// ReconciliationHandler exposes balance reconciliation checks.
type ReconciliationHandler struct {
	reconciliationUC ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconciliationUC ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliationUC: reconciliationUC}
}

// ReconcileCustody recomputes one custody balance from its records.
func (h *ReconciliationHandler) ReconcileCustody(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciliationUC.ReconcileCustody(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to reconcile custody", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromResult(result))
}

// CheckConsistency reports whether stored balances match budgets plus
// record effects across the ledger.
func (h *ReconciliationHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	err := h.reconciliationUC.CheckLedgerConsistency(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, dto.ConsistencyResponse{Consistent: true})
	case errors.Is(err, domain.ErrLedgerInconsistency):
		writeJSON(w, http.StatusOK, dto.ConsistencyResponse{Consistent: false, Message: err.Error()})
	default:
		writeDomainError(w, "failed to check ledger consistency", err)
	}
}

// Report returns the ledger-wide reconciliation report. ?refresh=true drops
// the cached copy first.
func (h *ReconciliationHandler) Report(w http.ResponseWriter, r *http.Request) {
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		if err := h.reconciliationUC.InvalidateReport(r.Context()); err != nil {
			writeDomainError(w, "failed to refresh reconciliation report", err)
			return
		}
	}

	report, err := h.reconciliationUC.GenerateReconciliationReport(r.Context())
	if err != nil {
		writeDomainError(w, "failed to generate reconciliation report", err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
