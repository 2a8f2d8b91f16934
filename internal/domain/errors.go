package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Error categories. Every error returned by the ledger matches exactly one of
// these via errors.Is.
var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrCustodyInactive     = errors.New("custody inactive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBusy                = errors.New("ledger busy")
	ErrLedgerInconsistency = errors.New("ledger inconsistency")
)

var (
	// Custody errors
	ErrCustodyNotFound = &LedgerError{Err: ErrNotFound, Field: "custody_id", Detail: "custody not found"}

	// Transaction record errors
	ErrTransactionNotFound = &LedgerError{Err: ErrNotFound, Field: "transaction_id", Detail: "transaction not found"}
	ErrInvalidAmount       = &LedgerError{Err: ErrValidation, Field: "amount", Detail: "amount must be positive"}
	ErrInvalidKind         = &LedgerError{Err: ErrValidation, Field: "kind", Detail: "unknown transaction kind"}
	ErrKindNotLedgered     = &LedgerError{Err: ErrValidation, Field: "kind", Detail: "deductions do not affect custody balances"}
	ErrEmptyPayrollRun     = &LedgerError{Err: ErrValidation, Field: "lines", Detail: "payroll run has no lines"}
)

// LedgerError carries the category of a rejection together with the custody,
// record and field it concerns.
type LedgerError struct {
	Err           error
	CustodyID     string
	TransactionID string
	Field         string
	Detail        string
}

func (e *LedgerError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	var refs []string
	if e.CustodyID != "" {
		refs = append(refs, "custody="+e.CustodyID)
	}
	if e.TransactionID != "" {
		refs = append(refs, "transaction="+e.TransactionID)
	}
	if len(refs) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(refs, " "))
		b.WriteString(")")
	}

	return b.String()
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Is matches both the category and package-level LedgerError sentinels such as
// ErrCustodyNotFound, so identifiers added with With* do not break errors.Is.
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	return t.Err == e.Err && t.Field == e.Field && t.Detail == e.Detail
}

// WithCustody returns a copy of e that names custodyID.
func (e *LedgerError) WithCustody(custodyID string) *LedgerError {
	c := *e
	c.CustodyID = custodyID
	return &c
}

// WithTransaction returns a copy of e that names transactionID.
func (e *LedgerError) WithTransaction(transactionID string) *LedgerError {
	c := *e
	c.TransactionID = transactionID
	return &c
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, detail string) *LedgerError {
	return &LedgerError{Err: ErrValidation, Field: field, Detail: detail}
}

// NewInsufficientBalanceError reports that a debit of requested does not fit in remaining.
func NewInsufficientBalanceError(custodyID, transactionID string, requested, remaining decimal.Decimal) *LedgerError {
	return &LedgerError{
		Err:           ErrInsufficientBalance,
		CustodyID:     custodyID,
		TransactionID: transactionID,
		Field:         "amount",
		Detail:        fmt.Sprintf("amount %s exceeds remaining balance of %s", requested.String(), remaining.String()),
	}
}

// NewInconsistencyError reports a broken balance invariant.
func NewInconsistencyError(custodyID, transactionID, detail string) *LedgerError {
	return &LedgerError{
		Err:           ErrLedgerInconsistency,
		CustodyID:     custodyID,
		TransactionID: transactionID,
		Detail:        detail,
	}
}

// NewBusyError reports lock contention beyond the configured wait bound.
func NewBusyError(custodyID string, cause error) *LedgerError {
	detail := "custody is locked by another operation"
	if cause != nil {
		detail += ": " + cause.Error()
	}
	return &LedgerError{Err: ErrBusy, CustodyID: custodyID, Detail: detail}
}

// AsLedgerError extracts the LedgerError from err's chain.
func AsLedgerError(err error) (*LedgerError, bool) {
	var le *LedgerError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// Code returns a stable machine-readable name for err's category.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCustodyInactive):
		return "custody_inactive"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrLedgerInconsistency):
		return "ledger_inconsistency"
	default:
		return "internal_error"
	}
}
