package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/usecase"
)

// CustodyResponse represents a custody in API responses.
type CustodyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Budget    string    `json:"budget"`
	Remaining string    `json:"remaining"`
	Status    string    `json:"status"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CustodyFromDomain converts domain custody to response.
func CustodyFromDomain(c *domain.Custody) *CustodyResponse {
	return &CustodyResponse{
		ID:        c.ID,
		Name:      c.Name,
		Budget:    c.Budget.String(),
		Remaining: c.Remaining.String(),
		Status:    string(c.Status),
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// CustodiesFromDomain converts domain custodies to responses.
func CustodiesFromDomain(custodies []*domain.Custody) []*CustodyResponse {
	result := make([]*CustodyResponse, len(custodies))
	for i, c := range custodies {
		result[i] = CustodyFromDomain(c)
	}
	return result
}

// ListCustodiesResponse represents a page of custodies. Count is the page
// length, not the number of custodies in the ledger.
type ListCustodiesResponse struct {
	Custodies []*CustodyResponse `json:"custodies"`
	Count     int                `json:"count"`
}

// RemainingResponse reports the current balance of a custody.
type RemainingResponse struct {
	CustodyID string `json:"custody_id"`
	Remaining string `json:"remaining"`
}

// RemainingFromDecimal builds a RemainingResponse.
func RemainingFromDecimal(custodyID string, remaining decimal.Decimal) *RemainingResponse {
	return &RemainingResponse{CustodyID: custodyID, Remaining: remaining.String()}
}

// TransactionResponse represents a transaction record in API responses.
type TransactionResponse struct {
	ID           string         `json:"id"`
	CustodyID    string         `json:"custody_id"`
	Kind         string         `json:"kind"`
	Amount       string         `json:"amount"`
	Effect       string         `json:"effect"`
	Description  string         `json:"description,omitempty"`
	Responsible  string         `json:"responsible,omitempty"`
	OccurredOn   string         `json:"occurred_on,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	PayrollRunID *string        `json:"payroll_run_id,omitempty"`
	Status       string         `json:"status"`
	Version      int64          `json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TransactionFromDomain converts a domain record to response.
func TransactionFromDomain(r *domain.TransactionRecord) *TransactionResponse {
	resp := &TransactionResponse{
		ID:           r.ID,
		CustodyID:    r.CustodyID,
		Kind:         string(r.Kind),
		Amount:       r.Amount.String(),
		Effect:       r.Effect.String(),
		Description:  r.Description,
		Responsible:  r.Responsible,
		Metadata:     r.Metadata,
		PayrollRunID: r.PayrollRunID,
		Status:       string(r.Status),
		Version:      r.Version,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if !r.OccurredOn.IsZero() {
		resp.OccurredOn = r.OccurredOn.Format(DateLayout)
	}
	return resp
}

// TransactionsFromDomain converts domain records to responses.
func TransactionsFromDomain(records []*domain.TransactionRecord) []*TransactionResponse {
	result := make([]*TransactionResponse, len(records))
	for i, r := range records {
		result[i] = TransactionFromDomain(r)
	}
	return result
}

// ListTransactionsResponse represents a page of a custody's records. Count is
// the page length.
type ListTransactionsResponse struct {
	Transactions []*TransactionResponse `json:"transactions"`
	Count        int                    `json:"count"`
}

// PayrollRunResponse represents an applied payroll run.
type PayrollRunResponse struct {
	ID        string                 `json:"id"`
	CustodyID string                 `json:"custody_id"`
	Total     string                 `json:"total"`
	Lines     []*TransactionResponse `json:"lines"`
	CreatedAt time.Time              `json:"created_at"`
}

// PayrollRunFromDomain converts a domain payroll run to response.
func PayrollRunFromDomain(run *domain.PayrollRun) *PayrollRunResponse {
	return &PayrollRunResponse{
		ID:        run.ID,
		CustodyID: run.CustodyID,
		Total:     run.Total.String(),
		Lines:     TransactionsFromDomain(run.Lines),
		CreatedAt: run.CreatedAt,
	}
}

// ReconciliationResponse reports the outcome of reconciling one custody.
type ReconciliationResponse struct {
	CustodyID         string    `json:"custody_id"`
	Budget            string    `json:"budget"`
	RecordedRemaining string    `json:"recorded_remaining"`
	ExpectedRemaining string    `json:"expected_remaining"`
	Difference        string    `json:"difference"`
	IsReconciled      bool      `json:"is_reconciled"`
	LastChecked       time.Time `json:"last_checked"`
}

// ReconciliationFromResult converts a reconciliation result to response.
func ReconciliationFromResult(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		CustodyID:         r.CustodyID,
		Budget:            r.Budget.String(),
		RecordedRemaining: r.RecordedRemaining.String(),
		ExpectedRemaining: r.ExpectedRemaining.String(),
		Difference:        r.Difference.String(),
		IsReconciled:      r.IsReconciled,
		LastChecked:       r.LastChecked,
	}
}

// ConsistencyResponse reports the ledger-wide consistency check.
type ConsistencyResponse struct {
	Consistent bool   `json:"consistent"`
	Message    string `json:"message,omitempty"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message,omitempty"`
	Code          string `json:"code,omitempty"`
	CustodyID     string `json:"custody_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Field         string `json:"field,omitempty"`
}

// ErrorFromDomain builds an ErrorResponse from err, copying the identifiers a
// LedgerError carries.
func ErrorFromDomain(message string, err error) ErrorResponse {
	resp := ErrorResponse{
		Error:   message,
		Message: err.Error(),
		Code:    domain.Code(err),
	}
	if le, ok := domain.AsLedgerError(err); ok {
		resp.CustodyID = le.CustodyID
		resp.TransactionID = le.TransactionID
		resp.Field = le.Field
	}
	return resp
}
