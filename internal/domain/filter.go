package domain

import "time"

// FilterConfig defines an outreach filter: a CEL expression over profile
// fields used to build targeted customer lists.
// Example: `engagement_score < 4.0 && total_spend > 5000.0`
type FilterConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Expression is a CEL expression that must return bool.
	Expression string `json:"expression"`

	// Whether filter is active
	Enabled bool `json:"enabled"`

	// Audit timestamps
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// FilterMatch records one profile matched by a filter.
type FilterMatch struct {
	FilterID   string  `json:"filterId"`
	CustomerID string  `json:"customerId"`
	Email      string  `json:"email,omitempty"`
	Name       string  `json:"name,omitempty"`
	TotalSpend float64 `json:"totalSpend"`
	Score      float64 `json:"engagementScore"`
	Segment    string  `json:"segment"`
}
