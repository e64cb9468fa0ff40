// Package predict projects next-payment timing and assigns risk levels.
package predict

import (
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

const day = 24 * time.Hour

// Prediction is the next-payment projection for one customer.
type Prediction struct {
	Status        domain.PaymentStatus
	NextPayment   *time.Time
	DaysUntilNext int
}

// Next projects the next payment date from the last payment and the
// customer's mean interval, evaluated at asOf. With an undefined
// frequency or no last payment the status is unknown and no date is
// predicted. DaysUntilNext may be negative: the prediction has passed.
//
// The at-risk threshold is checked before overdue so a customer meeting
// both lands at the more severe level.
func Next(lastPayment *time.Time, freqDays *float64, daysSinceLast int, asOf time.Time) Prediction {
	if freqDays == nil || lastPayment == nil {
		return Prediction{Status: domain.PaymentUnknown}
	}

	predicted := lastPayment.Add(time.Duration(*freqDays * float64(day)))
	daysUntil := int(predicted.Sub(asOf) / day)

	status := domain.PaymentOnTrack
	switch {
	case float64(daysSinceLast) > *freqDays*2:
		status = domain.PaymentAtRisk
	case float64(daysSinceLast) > *freqDays*1.5:
		status = domain.PaymentOverdue
	}

	return Prediction{
		Status:        status,
		NextPayment:   &predicted,
		DaysUntilNext: daysUntil,
	}
}

// Risk assigns the follow-up risk level. A high engagement score is low
// risk regardless of spend or recency; below that, high-spend customers
// escalate faster than low-spend ones.
func Risk(score float64, totalSpend float64, daysSinceLast int) domain.RiskLevel {
	if score >= 7 {
		return domain.RiskLow
	}

	if totalSpend >= 5000 {
		if daysSinceLast > 90 {
			return domain.RiskHigh
		}
		return domain.RiskMedium
	}

	switch {
	case daysSinceLast > 180:
		return domain.RiskHigh
	case daysSinceLast > 90:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
