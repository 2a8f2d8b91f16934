package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustodyStatus is the lifecycle state of a custody.
type CustodyStatus string

const (
	CustodyStatusActive   CustodyStatus = "active"
	CustodyStatusInactive CustodyStatus = "inactive"
)

// IsValid reports whether s is a known status.
func (s CustodyStatus) IsValid() bool {
	return s == CustodyStatusActive || s == CustodyStatusInactive
}

// Custody is a petty-cash account with a budget ceiling and a running remaining balance.
type Custody struct {
	ID        string
	Name      string
	Budget    decimal.Decimal
	Remaining decimal.Decimal
	Status    CustodyStatus
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AdjustGuard selects which check AdjustRemaining runs on the resulting balance.
type AdjustGuard int

const (
	// GuardOverdraft rejects a debit that would take remaining below zero.
	GuardOverdraft AdjustGuard = iota
	// GuardInvariant never rejects as a business rule; a negative result means
	// the stored balance was already wrong.
	GuardInvariant
)

// IsActive reports whether ledger operations may be applied to the custody.
func (c *Custody) IsActive() bool {
	return c.Status == CustodyStatusActive
}

// EnsureActive returns a CustodyInactive error when the custody is not active.
func (c *Custody) EnsureActive() error {
	if c.IsActive() {
		return nil
	}
	return &LedgerError{
		Err:       ErrCustodyInactive,
		CustodyID: c.ID,
		Field:     "custody_id",
		Detail:    "custody " + c.ID + " is " + string(c.Status),
	}
}

// AdjustRemaining computes remaining+delta and checks it against guard.
// It does not mutate c; callers persist the result and then call Commit.
func (c *Custody) AdjustRemaining(delta decimal.Decimal, guard AdjustGuard) (decimal.Decimal, error) {
	next := c.Remaining.Add(delta)
	if !next.IsNegative() {
		return next, nil
	}

	switch guard {
	case GuardInvariant:
		return decimal.Zero, NewInconsistencyError(c.ID, "",
			"reversal would take remaining "+c.Remaining.String()+" to "+next.String())
	default:
		return decimal.Zero, NewInsufficientBalanceError(c.ID, "", delta.Neg(), c.Remaining)
	}
}

// Commit records a persisted balance change on the in-memory copy.
func (c *Custody) Commit(remaining decimal.Decimal, at time.Time) {
	c.Remaining = remaining
	c.Version++
	c.UpdatedAt = at
}
