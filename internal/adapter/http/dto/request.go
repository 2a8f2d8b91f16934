package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/usecase"
)

// DateLayout is the wire format of occurred_on.
const DateLayout = "2006-01-02"

// CreateCustodyRequest represents a request to create a custody.
type CreateCustodyRequest struct {
	Name   string `json:"name"`
	Budget string `json:"budget"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateCustodyRequest) ToUseCaseInput() (usecase.CreateCustodyInput, error) {
	budget, err := parseAmount("budget", r.Budget)
	if err != nil {
		return usecase.CreateCustodyInput{}, err
	}

	return usecase.CreateCustodyInput{Name: r.Name, Budget: budget}, nil
}

// TopUpRequest represents a request to raise a custody budget.
type TopUpRequest struct {
	Amount string `json:"amount"`
}

// ParseAmount returns the requested top-up amount.
func (r *TopUpRequest) ParseAmount() (decimal.Decimal, error) {
	return parseAmount("amount", r.Amount)
}

// RecordDetailsRequest holds the balance-neutral fields of a record.
type RecordDetailsRequest struct {
	Description string         `json:"description,omitempty"`
	Responsible string         `json:"responsible,omitempty"`
	OccurredOn  string         `json:"occurred_on,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (r RecordDetailsRequest) toDomain() (domain.RecordDetails, error) {
	details := domain.RecordDetails{
		Description: r.Description,
		Responsible: r.Responsible,
		Metadata:    r.Metadata,
	}

	if r.OccurredOn != "" {
		on, err := time.Parse(DateLayout, r.OccurredOn)
		if err != nil {
			return domain.RecordDetails{}, domain.NewValidationError("occurred_on", "occurred_on must be a YYYY-MM-DD date")
		}
		details.OccurredOn = &on
	}

	return details, nil
}

// ApplyTransactionRequest represents a request to apply a record to a custody.
type ApplyTransactionRequest struct {
	Kind   string `json:"kind"`
	Amount string `json:"amount"`
	RecordDetailsRequest
}

// ToUseCaseInput converts to use case input.
func (r *ApplyTransactionRequest) ToUseCaseInput(custodyID string) (usecase.ApplyInput, error) {
	kind, err := domain.ParseKind(r.Kind)
	if err != nil {
		return usecase.ApplyInput{}, err
	}

	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return usecase.ApplyInput{}, err
	}

	details, err := r.toDomain()
	if err != nil {
		return usecase.ApplyInput{}, err
	}

	return usecase.ApplyInput{
		CustodyID: custodyID,
		Kind:      kind,
		Amount:    amount,
		Details:   details,
	}, nil
}

// AmendTransactionRequest represents a request to amend an applied record.
type AmendTransactionRequest struct {
	Amount          string `json:"amount"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
	RecordDetailsRequest
}

// ToUseCaseInput converts to use case input.
func (r *AmendTransactionRequest) ToUseCaseInput(transactionID string) (usecase.AmendInput, error) {
	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return usecase.AmendInput{}, err
	}

	details, err := r.toDomain()
	if err != nil {
		return usecase.AmendInput{}, err
	}

	return usecase.AmendInput{
		TransactionID:   transactionID,
		Amount:          amount,
		ExpectedVersion: r.ExpectedVersion,
		Details:         details,
	}, nil
}

// PayrollLineRequest is one line of a payroll run.
type PayrollLineRequest struct {
	Amount string `json:"amount"`
	RecordDetailsRequest
}

// ApplyPayrollRunRequest represents a request to apply a payroll run.
type ApplyPayrollRunRequest struct {
	Lines []PayrollLineRequest `json:"lines"`
}

// ToUseCaseInput converts to use case input.
func (r *ApplyPayrollRunRequest) ToUseCaseInput(custodyID string) (usecase.ApplyPayrollRunInput, error) {
	lines := make([]usecase.PayrollLineInput, len(r.Lines))
	for i, line := range r.Lines {
		amount, err := parseAmount("lines.amount", line.Amount)
		if err != nil {
			return usecase.ApplyPayrollRunInput{}, err
		}

		details, err := line.toDomain()
		if err != nil {
			return usecase.ApplyPayrollRunInput{}, err
		}

		lines[i] = usecase.PayrollLineInput{Amount: amount, Details: details}
	}

	return usecase.ApplyPayrollRunInput{CustodyID: custodyID, Lines: lines}, nil
}

func parseAmount(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, domain.NewValidationError(field, field+" is required")
	}

	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, domain.NewValidationError(field, field+" must be a decimal number")
	}

	return amount, nil
}
