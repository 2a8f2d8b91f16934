package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/adapter/http/dto"
	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/usecase"
)

// CustodyService defines the behavior needed by CustodyHandler.
type CustodyService interface {
	CreateCustody(ctx context.Context, input usecase.CreateCustodyInput) (*domain.Custody, error)
	GetCustody(ctx context.Context, id string) (*domain.Custody, error)
	ListCustodies(ctx context.Context, limit, offset int) ([]*domain.Custody, error)
	TopUp(ctx context.Context, custodyID string, amount decimal.Decimal) (*domain.Custody, error)
	Activate(ctx context.Context, custodyID string) (*domain.Custody, error)
	Deactivate(ctx context.Context, custodyID string) (*domain.Custody, error)
}

// CustodyHandler handles custody-related HTTP requests.
type CustodyHandler struct {
	custodyUC CustodyService
}

// NewCustodyHandler creates a new CustodyHandler.
func NewCustodyHandler(custodyUC CustodyService) *CustodyHandler {
	return &CustodyHandler{custodyUC: custodyUC}
}

// Create creates a new custody.
func (h *CustodyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCustodyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, "invalid custody", err)
		return
	}

	custody, err := h.custodyUC.CreateCustody(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to create custody", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.CustodyFromDomain(custody))
}

// Get retrieves a custody by ID.
func (h *CustodyHandler) Get(w http.ResponseWriter, r *http.Request) {
	custody, err := h.custodyUC.GetCustody(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get custody", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CustodyFromDomain(custody))
}

// List lists custodies.
func (h *CustodyHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	custodies, err := h.custodyUC.ListCustodies(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, "failed to list custodies", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListCustodiesResponse{
		Custodies: dto.CustodiesFromDomain(custodies),
		Count:     len(custodies),
	})
}

// TopUp raises the budget and remaining of a custody.
func (h *CustodyHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	var req dto.TopUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := req.ParseAmount()
	if err != nil {
		writeDomainError(w, "invalid top-up", err)
		return
	}

	custody, err := h.custodyUC.TopUp(r.Context(), chi.URLParam(r, "id"), amount)
	if err != nil {
		writeDomainError(w, "failed to top up custody", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CustodyFromDomain(custody))
}

// Activate re-enables ledger operations on a custody.
func (h *CustodyHandler) Activate(w http.ResponseWriter, r *http.Request) {
	custody, err := h.custodyUC.Activate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to activate custody", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CustodyFromDomain(custody))
}

// Deactivate stops new records and top-ups on a custody.
func (h *CustodyHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	custody, err := h.custodyUC.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to deactivate custody", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CustodyFromDomain(custody))
}
