package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxCustodyNameLength = 255
	MaxTextFieldLength   = 1024
	MaxMetadataSize      = 10240           // 10KB
	MaxAmount            = "1000000000000" // 1 trillion
	MinAmount            = "0.01"
	MaxAmountScale       = 2
	MaxPayrollLines      = 500
)

var (
	minAmount = decimal.RequireFromString(MinAmount)
	maxAmount = decimal.RequireFromString(MaxAmount)
)

// ValidateCustodyName validates a custody display name.
func ValidateCustodyName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return NewValidationError("name", "name cannot be empty")
	}

	if len(name) > MaxCustodyNameLength {
		return NewValidationError("name", fmt.Sprintf("name exceeds %d characters", MaxCustodyNameLength))
	}

	return nil
}

// ValidateAmount validates a user-entered magnitude.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if amount.LessThan(minAmount) {
		return NewValidationError("amount", "minimum amount is "+MinAmount)
	}

	if amount.GreaterThan(maxAmount) {
		return NewValidationError("amount", "maximum amount is "+MaxAmount)
	}

	if !amount.Equal(amount.Truncate(MaxAmountScale)) {
		return NewValidationError("amount", fmt.Sprintf("amount has more than %d decimal places", MaxAmountScale))
	}

	return nil
}

// ValidateBudget validates the opening budget of a custody. Zero is allowed.
func ValidateBudget(budget decimal.Decimal) error {
	if budget.IsZero() {
		return nil
	}
	if budget.IsNegative() {
		return NewValidationError("budget", "budget cannot be negative")
	}
	if err := ValidateAmount(budget); err != nil {
		le, _ := AsLedgerError(err)
		c := *le
		c.Field = "budget"
		return &c
	}
	return nil
}

// ValidateText validates a free-text record field.
func ValidateText(field, value string) error {
	if len(value) > MaxTextFieldLength {
		return NewValidationError(field, fmt.Sprintf("%s exceeds %d characters", field, MaxTextFieldLength))
	}
	return nil
}

// ValidateMetadata validates metadata size
func ValidateMetadata(metadata map[string]any) error {
	if metadata == nil {
		return nil
	}

	// Estimate size (rough approximation)
	size := 0
	for k, v := range metadata {
		size += len(k)
		size += len(fmt.Sprintf("%v", v))
	}

	if size > MaxMetadataSize {
		return NewValidationError("metadata", fmt.Sprintf("metadata size %d bytes exceeds limit of %d bytes", size, MaxMetadataSize))
	}

	return nil
}

// MaxPageOffset is the largest offset storage can address.
const MaxPageOffset = math.MaxInt32

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 100
	const DefaultPageSize = 20

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	if offset > MaxPageOffset {
		offset = MaxPageOffset
	}

	return limit, offset
}
