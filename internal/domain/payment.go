package domain

import (
	"time"
)

// AnonymousCustomerID groups payments that arrived without a customer
// reference. They still aggregate into a single profile.
const AnonymousCustomerID = "anonymous"

// UnknownPaymentMethod is the method recorded when the source did not
// supply one.
const UnknownPaymentMethod = "unknown"

// Payment is a single settled payment event. Immutable once recorded.
type Payment struct {
	// CustomerID ties the payment to a customer. Empty means anonymous.
	CustomerID string `json:"customerId"`

	// Tenant scoping
	TenantID string `json:"tenantId,omitempty"`

	// Financial details. Amount is in major currency units (dollars, not cents).
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`

	// Method is a free-text payment method description
	// (e.g. "card - visa ending in 4242").
	Method string `json:"method"`

	// Temporal
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// PaymentRequest is the API request payload for recording a payment.
type PaymentRequest struct {
	CustomerID string     `json:"customerId"`
	Email      string     `json:"email,omitempty"`
	Name       string     `json:"name,omitempty"`
	Amount     float64    `json:"amount"`
	Currency   string     `json:"currency,omitempty"`
	Method     string     `json:"method,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
}

// ToPayment converts a request to a Payment domain object.
// A missing date means "now"; a missing method is recorded as unknown.
func (r *PaymentRequest) ToPayment() *Payment {
	now := time.Now().UTC()

	date := now
	if r.Date != nil {
		date = r.Date.UTC()
	}

	method := r.Method
	if method == "" {
		method = UnknownPaymentMethod
	}

	customerID := r.CustomerID
	if customerID == "" {
		customerID = AnonymousCustomerID
	}

	return &Payment{
		CustomerID: customerID,
		Amount:     r.Amount,
		Currency:   r.Currency,
		Method:     method,
		Date:       date,
		CreatedAt:  now,
	}
}

// CustomerIdentity holds the display fields for a customer.
// Identity is never used in scoring.
type CustomerIdentity struct {
	CustomerID string `json:"customerId"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
}
