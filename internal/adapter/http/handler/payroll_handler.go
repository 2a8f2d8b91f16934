package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/custodyledger/internal/adapter/http/dto"
	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/usecase"
)

// PayrollService defines the behavior needed by PayrollHandler.
type PayrollService interface {
	ApplyPayrollRun(ctx context.Context, input usecase.ApplyPayrollRunInput) (*domain.PayrollRun, error)
}

// PayrollHandler handles payroll run requests.
type PayrollHandler struct {
	payrollUC PayrollService
}

// NewPayrollHandler creates a new PayrollHandler.
func NewPayrollHandler(payrollUC PayrollService) *PayrollHandler {
	return &PayrollHandler{payrollUC: payrollUC}
}

// Apply applies every line of a payroll run or none of them.
func (h *PayrollHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req dto.ApplyPayrollRunRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "invalid payroll run", err)
		return
	}

	run, err := h.payrollUC.ApplyPayrollRun(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to apply payroll run", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PayrollRunFromDomain(run))
}
