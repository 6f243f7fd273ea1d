package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================
// The calculation functions never return errors. These are raised only when
// building inputs or rate tables.

var (
	// ErrNegativeAmount is returned when a line item carries a negative amount.
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrInvalidRateTable is returned when a rate table fails validation.
	ErrInvalidRateTable = errors.New("invalid rate table")
)

// LineItemError carries the offending line item.
type LineItemError struct {
	Name   string
	Amount int64
}

func (e *LineItemError) Error() string {
	return fmt.Sprintf("line item %q: amount %d must not be negative", e.Name, e.Amount)
}

func (e *LineItemError) Unwrap() error {
	return ErrNegativeAmount
}

// RateTableError describes which part of a rate table is wrong.
type RateTableError struct {
	Field  string
	Reason string
}

func (e *RateTableError) Error() string {
	return fmt.Sprintf("invalid rate table: %s %s", e.Field, e.Reason)
}

func (e *RateTableError) Unwrap() error {
	return ErrInvalidRateTable
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrInvalidRateTable)
}
