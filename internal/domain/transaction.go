package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the variant of a transaction record.
type Kind string

const (
	KindExpense     Kind = "expense"
	KindAdvance     Kind = "advance"
	KindBonus       Kind = "bonus"
	KindDeduction   Kind = "deduction"
	KindPayrollLine Kind = "payroll_line"
)

// Direction is the effect class of a kind on a custody balance.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionDebit
	DirectionCredit
)

var kindDirections = map[Kind]Direction{
	KindExpense:     DirectionDebit,
	KindAdvance:     DirectionDebit,
	KindPayrollLine: DirectionDebit,
	KindBonus:       DirectionCredit,
	KindDeduction:   DirectionNone,
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kindDirections[k]; !ok {
		return "", ErrInvalidKind
	}
	return k, nil
}

// Direction returns the balance effect class of k.
func (k Kind) Direction() Direction {
	return kindDirections[k]
}

// IsLedgered reports whether records of kind k move a custody balance.
func (k Kind) IsLedgered() bool {
	return k.Direction() != DirectionNone
}

// Effect returns the signed change to remaining for amount of kind k.
// This is the only place the sign convention is defined.
func (k Kind) Effect(amount decimal.Decimal) decimal.Decimal {
	switch k.Direction() {
	case DirectionDebit:
		return amount.Neg()
	case DirectionCredit:
		return amount
	default:
		return decimal.Zero
	}
}

// TransactionStatus is the lifecycle state of a record.
type TransactionStatus string

const (
	TransactionStatusApplied  TransactionStatus = "applied"
	TransactionStatusReversed TransactionStatus = "reversed"
)

// TransactionRecord is one application of a debit or credit against a custody.
type TransactionRecord struct {
	ID           string
	CustodyID    string
	Kind         Kind
	Amount       decimal.Decimal
	Effect       decimal.Decimal
	Description  string
	Responsible  string
	OccurredOn   time.Time
	Metadata     map[string]any
	PayrollRunID *string
	Status       TransactionStatus
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ReversedAt   *time.Time
}

// IsReversed reports whether the record reached its terminal state.
func (r *TransactionRecord) IsReversed() bool {
	return r.Status == TransactionStatusReversed
}

// Validate checks the fields that must hold before a record is applied.
func (r *TransactionRecord) Validate() error {
	if _, err := ParseKind(string(r.Kind)); err != nil {
		return err
	}

	if !r.Kind.IsLedgered() {
		return ErrKindNotLedgered.WithCustody(r.CustodyID)
	}

	if err := ValidateAmount(r.Amount); err != nil {
		return err
	}

	if !r.Effect.Equal(r.Kind.Effect(r.Amount)) {
		return NewInconsistencyError(r.CustodyID, r.ID, "record effect does not match its kind and amount")
	}

	return ValidateMetadata(r.Metadata)
}

// RecordDetails are the balance-neutral fields of a record.
type RecordDetails struct {
	Description string
	Responsible string
	OccurredOn  *time.Time
	Metadata    map[string]any
}

// ApplyDetails copies the non-zero fields of d onto r.
func (r *TransactionRecord) ApplyDetails(d RecordDetails) {
	if d.Description != "" {
		r.Description = d.Description
	}
	if d.Responsible != "" {
		r.Responsible = d.Responsible
	}
	if d.OccurredOn != nil {
		r.OccurredOn = *d.OccurredOn
	}
	if d.Metadata != nil {
		r.Metadata = d.Metadata
	}
}

// PayrollRun groups payroll lines applied together against one custody.
type PayrollRun struct {
	ID        string
	CustodyID string
	Total     decimal.Decimal
	Lines     []*TransactionRecord
	CreatedAt time.Time
}
