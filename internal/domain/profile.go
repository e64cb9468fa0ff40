package domain

import (
	"sort"
	"time"
)

// SpendingTrend labels the direction of a customer's recent payment amounts.
type SpendingTrend string

const (
	TrendIncreasing       SpendingTrend = "increasing"
	TrendDecreasing       SpendingTrend = "decreasing"
	TrendStable           SpendingTrend = "stable"
	TrendInsufficientData SpendingTrend = "insufficient_data"
)

// HistoricalEngagement labels the cadence pattern across a customer's history.
type HistoricalEngagement string

const (
	EngagementNew        HistoricalEngagement = "new"
	EngagementConsistent HistoricalEngagement = "consistent"
	EngagementDeclining  HistoricalEngagement = "declining"
	EngagementDormant    HistoricalEngagement = "dormant"
	EngagementIrregular  HistoricalEngagement = "irregular"
)

// EngagementStatus is the final per-customer engagement classification.
type EngagementStatus string

const (
	StatusActive                EngagementStatus = "active"
	StatusInactive              EngagementStatus = "inactive"
	StatusDisengaged            EngagementStatus = "disengaged"
	StatusPotentialReengagement EngagementStatus = "potential_reengagement"
)

// RiskLevel prioritizes follow-up.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PaymentStatus describes where the customer stands against their
// predicted next payment.
type PaymentStatus string

const (
	PaymentOnTrack PaymentStatus = "on_track"
	PaymentOverdue PaymentStatus = "overdue"
	PaymentAtRisk  PaymentStatus = "at_risk"
	PaymentUnknown PaymentStatus = "unknown"
)

// Segment display labels, one-to-one with risk levels.
const (
	SegmentStable    = "Stable Customers"
	SegmentAttention = "Needs Attention"
	SegmentCritical  = "Critical Follow-up"
)

// SegmentForRisk maps a risk level to its display segment label.
func SegmentForRisk(level RiskLevel) string {
	switch level {
	case RiskLow:
		return SegmentStable
	case RiskMedium:
		return SegmentAttention
	default:
		return SegmentCritical
	}
}

// CustomerProfile is the fully derived analysis record for one customer.
// Every derived field is determined by PaymentHistory and the evaluation
// time; profiles are never mutated after construction.
type CustomerProfile struct {
	// Identity
	CustomerID string `json:"customerId"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`

	// Aggregates
	TotalSpend        float64    `json:"totalSpend"`
	TransactionCount  int        `json:"transactionCount"`
	AvgPaymentAmount  float64    `json:"avgPaymentAmount"`
	LastPaymentAmount float64    `json:"lastPaymentAmount"`
	LastPaymentDate   *time.Time `json:"lastPaymentDate,omitempty"`
	LastPaymentMethod string     `json:"lastPaymentMethod,omitempty"`
	PaymentHistory    []Payment  `json:"paymentHistory,omitempty"`

	// Cadence. PaymentFrequencyDays is nil when fewer than 2 payments
	// exist; nil is "no data", never zero.
	PaymentFrequencyDays   *float64 `json:"paymentFrequencyDays,omitempty"`
	PaymentRegularityScore float64  `json:"paymentRegularityScore"`

	// Behavior
	SpendingTrend        SpendingTrend        `json:"spendingTrend"`
	HistoricalEngagement HistoricalEngagement `json:"historicalEngagement"`

	// Scoring and classification
	EngagementScore  float64          `json:"engagementScore"`
	EngagementStatus EngagementStatus `json:"engagementStatus"`
	RiskLevel        RiskLevel        `json:"riskLevel"`

	// Prediction
	PaymentStatus        PaymentStatus `json:"paymentStatus"`
	PredictedNextPayment *time.Time    `json:"predictedNextPayment,omitempty"`
	DaysUntilNextPayment int           `json:"daysUntilNextPayment"`
	DaysSinceLastPayment int           `json:"daysSinceLastPayment"`
}

// Segment returns the display segment label for the profile's risk level.
func (p *CustomerProfile) Segment() string {
	return SegmentForRisk(p.RiskLevel)
}

// SortProfilesBySpend orders profiles by total spend descending,
// stable on ties by customer id.
func SortProfilesBySpend(profiles []*CustomerProfile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		if profiles[i].TotalSpend != profiles[j].TotalSpend {
			return profiles[i].TotalSpend > profiles[j].TotalSpend
		}
		return profiles[i].CustomerID < profiles[j].CustomerID
	})
}

// SortProfilesByScore orders profiles by engagement score descending,
// stable on ties by customer id.
func SortProfilesByScore(profiles []*CustomerProfile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		if profiles[i].EngagementScore != profiles[j].EngagementScore {
			return profiles[i].EngagementScore > profiles[j].EngagementScore
		}
		return profiles[i].CustomerID < profiles[j].CustomerID
	})
}
