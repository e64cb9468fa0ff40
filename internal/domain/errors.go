package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when the analysis configuration is
	// rejected before any customer is scored.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidPayment is returned for payments that cannot be scored.
	// Invalid data is never coerced into valid-looking zeros.
	ErrInvalidPayment = errors.New("invalid payment")
)

// ValidationError identifies the record that failed validation and why.
// Callers decide whether to skip the record or abort the batch.
type ValidationError struct {
	CustomerID string
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.CustomerID == "" {
		return fmt.Sprintf("invalid payment: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid payment for customer %s: %s: %s", e.CustomerID, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidPayment
}

// ValidatePayment checks a payment for hard input failures.
func ValidatePayment(p *Payment) error {
	if p == nil {
		return &ValidationError{Field: "payment", Reason: "is nil"}
	}
	if p.Amount < 0 {
		return &ValidationError{CustomerID: p.CustomerID, Field: "amount", Reason: "must not be negative"}
	}
	if p.Date.IsZero() {
		return &ValidationError{CustomerID: p.CustomerID, Field: "date", Reason: "is missing"}
	}
	return nil
}
