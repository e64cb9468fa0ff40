// Package trend classifies spending and cadence behavior over a
// customer's payment history.
package trend

import (
	"math"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/frequency"
)

// Spending labels the direction of recent payment amounts against the
// older baseline. The history must be sorted ascending by date.
// Fewer than 3 payments cannot establish a trend.
func Spending(history []domain.Payment) domain.SpendingTrend {
	if len(history) < 3 {
		return domain.TrendInsufficientData
	}

	recent := history[len(history)-3:]
	older := history[:len(history)-3]

	recentAvg := meanAmount(recent)

	// With no older payments the baseline is the recent average itself,
	// which forces "stable".
	olderAvg := recentAvg
	if len(older) > 0 {
		olderAvg = meanAmount(older)
	}

	switch {
	case recentAvg > olderAvg*1.2:
		return domain.TrendIncreasing
	case recentAvg < olderAvg*0.8:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

// Historical labels the cadence pattern across the history by comparing
// the mean gap of its first and second halves. overallFreq is the
// customer's mean interval (nil when undefined); daysSinceLast is
// measured at the evaluation instant.
//
// Dormancy is checked before the half comparison so a currently-dormant
// customer is never labeled "consistent" from stale early history.
func Historical(history []domain.Payment, overallFreq *float64, daysSinceLast int) domain.HistoricalEngagement {
	if len(history) < 2 {
		return domain.EngagementNew
	}

	if overallFreq != nil && float64(daysSinceLast) > *overallFreq*3 {
		return domain.EngagementDormant
	}

	mid := len(history) / 2
	firstFreq := frequency.MeanInterval(history[:mid])
	secondFreq := frequency.MeanInterval(history[mid:])

	if firstFreq != nil && secondFreq != nil {
		switch {
		case *secondFreq > *firstFreq*1.5:
			// Payments spacing out.
			return domain.EngagementDeclining
		case math.Abs(*secondFreq-*firstFreq) <= *firstFreq*0.2:
			return domain.EngagementConsistent
		}
	}

	return domain.EngagementIrregular
}

func meanAmount(payments []domain.Payment) float64 {
	var sum float64
	for _, p := range payments {
		sum += p.Amount
	}
	return sum / float64(len(payments))
}
