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

// LedgerService defines the behavior needed by TransactionHandler.
type LedgerService interface {
	Apply(ctx context.Context, input usecase.ApplyInput) (*domain.TransactionRecord, error)
	Amend(ctx context.Context, input usecase.AmendInput) (*domain.TransactionRecord, error)
	Reverse(ctx context.Context, transactionID string) error
	GetRemaining(ctx context.Context, custodyID string) (decimal.Decimal, error)
	GetTransaction(ctx context.Context, id string) (*domain.TransactionRecord, error)
	ListTransactions(ctx context.Context, input usecase.ListTransactionsInput) ([]*domain.TransactionRecord, error)
}

// TransactionHandler handles transaction record HTTP requests.
type TransactionHandler struct {
	ledgerUC LedgerService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(ledgerUC LedgerService) *TransactionHandler {
	return &TransactionHandler{ledgerUC: ledgerUC}
}

// Apply applies a new record to the custody in the path.
func (h *TransactionHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req dto.ApplyTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "invalid transaction", err)
		return
	}

	record, err := h.ledgerUC.Apply(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to apply transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(record))
}

// Amend changes the amount or details of an applied record.
func (h *TransactionHandler) Amend(w http.ResponseWriter, r *http.Request) {
	var req dto.AmendTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "invalid amendment", err)
		return
	}

	record, err := h.ledgerUC.Amend(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to amend transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(record))
}

// Reverse undoes the effect of a record and retires it.
func (h *TransactionHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	if err := h.ledgerUC.Reverse(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "failed to reverse transaction", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get retrieves an applied record by ID.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.ledgerUC.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(record))
}

// ListByCustody lists applied records of the custody in the path.
func (h *TransactionHandler) ListByCustody(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledgerUC.ListTransactions(r.Context(), usecase.ListTransactionsInput{
		CustodyID: chi.URLParam(r, "id"),
		Limit:     parseIntQuery(r, "limit", 20),
		Offset:    parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, "failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListTransactionsResponse{
		Transactions: dto.TransactionsFromDomain(records),
		Count:        len(records),
	})
}

// Remaining returns the current remaining balance of a custody.
func (h *TransactionHandler) Remaining(w http.ResponseWriter, r *http.Request) {
	custodyID := chi.URLParam(r, "id")

	remaining, err := h.ledgerUC.GetRemaining(r.Context(), custodyID)
	if err != nil {
		writeDomainError(w, "failed to get remaining", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RemainingFromDecimal(custodyID, remaining))
}
