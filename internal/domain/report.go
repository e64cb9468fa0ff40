package domain

import (
	"time"
)

// Report is a full batch analysis snapshot: overall metrics, profiles
// grouped by display segment, and the disengagement target list.
type Report struct {
	Metadata ReportMetadata `json:"metadata"`
	Metrics  OverallMetrics `json:"metrics"`

	// Segments keys are the display labels (Stable Customers,
	// Needs Attention, Critical Follow-up).
	Segments map[string][]*CustomerProfile `json:"segments"`

	// Disengaged lists historical-but-not-recent customers,
	// sorted by total spend descending.
	Disengaged []DisengagementTarget `json:"disengaged,omitempty"`

	// DisengagementMetrics summarizes the windowed classification.
	DisengagementMetrics DisengagementMetrics `json:"disengagementMetrics"`
}

// ReportMetadata describes when and over what period a report was built.
type ReportMetadata struct {
	GeneratedAt  time.Time `json:"generatedAt"`
	ReportPeriod string    `json:"reportPeriod"` // e.g. "Past 3 months"
	PeriodMonths int       `json:"periodMonths"`
}

// OverallMetrics are the headline numbers for a batch run.
type OverallMetrics struct {
	TotalCustomers   int     `json:"totalCustomers"`
	ActiveCustomers  int     `json:"activeCustomers"`
	ActivePercentage float64 `json:"activePercentage"`
	TotalRevenue     float64 `json:"totalRevenue"`

	// AvgPaymentFrequencyDays averages only the defined per-customer
	// frequencies (customers with 2+ payments).
	AvgPaymentFrequencyDays float64 `json:"avgPaymentFrequencyDays"`

	// OverallPaymentFrequencyDays spreads the full date span across all
	// payment intervals; nil below 2 payments.
	OverallPaymentFrequencyDays *float64 `json:"overallPaymentFrequencyDays,omitempty"`
}

// DisengagementMetrics summarizes the recent/historical window split.
type DisengagementMetrics struct {
	TotalCustomers       int     `json:"totalCustomers"`
	RecentCustomers      int     `json:"recentCustomers"`
	HistoricalCustomers  int     `json:"historicalCustomers"`
	DisengagedCustomers  int     `json:"disengagedCustomers"`
	TotalDisengagedValue float64 `json:"totalDisengagedValue"`
}

// DisengagementTarget is one customer flagged for re-engagement outreach.
type DisengagementTarget struct {
	CustomerID       string     `json:"customerId"`
	Name             string     `json:"name,omitempty"`
	Email            string     `json:"email,omitempty"`
	TotalSpend       float64    `json:"totalSpend"`
	TransactionCount int        `json:"transactionCount"`
	LastPaymentDate  *time.Time `json:"lastPaymentDate,omitempty"`
	DaysInactive     int        `json:"daysInactive"`
	Reason           string     `json:"reason"`
}

// Disengagement reasons, checked in order.
const (
	ReasonLongTermInactive = "Long-term inactive"
	ReasonLowEngagement    = "Low engagement history"
	ReasonHighValueAtRisk  = "High-value customer at risk"
	ReasonStandardChurn    = "Standard churn risk"
)

// ReportSnapshot is a persisted report. Exactly one snapshot per tenant
// is current; saving a new current snapshot archives the previous one.
type ReportSnapshot struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	GeneratedAt time.Time `json:"generatedAt"`
	Current     bool      `json:"current"`
	Report      *Report   `json:"report"`
}
