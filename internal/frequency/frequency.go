// Package frequency computes payment cadence statistics.
package frequency

import (
	"math"
	"sort"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

const day = 24 * time.Hour

// Gaps returns the whole-day intervals between consecutive payments.
// The history must be sorted ascending by date.
func Gaps(history []domain.Payment) []float64 {
	if len(history) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		gaps = append(gaps, float64(history[i].Date.Sub(history[i-1].Date)/day))
	}
	return gaps
}

// MeanInterval returns the mean day-gap between consecutive payments.
// With fewer than 2 payments the frequency is undefined and nil is
// returned; nil means no data, never zero.
func MeanInterval(history []domain.Payment) *float64 {
	gaps := Gaps(history)
	if len(gaps) == 0 {
		return nil
	}

	var sum float64
	for _, g := range gaps {
		sum += g
	}
	mean := sum / float64(len(gaps))
	return &mean
}

// Regularity scores how evenly spaced the payment history is, on [0, 1].
// Perfect spacing scores 1.0; erratic spacing decays toward 0. It is
// 0.0 when fewer than 3 payments exist or the mean interval is
// undefined or zero, so the division below is always safe.
func Regularity(history []domain.Payment, meanDays *float64) float64 {
	if len(history) < 3 || meanDays == nil || *meanDays == 0 {
		return 0.0
	}

	gaps := Gaps(history)
	var gapMean float64
	for _, g := range gaps {
		gapMean += g
	}
	gapMean /= float64(len(gaps))
	stdev := sampleStdev(gaps, gapMean)

	return math.Min(1.0, 1.0/(1.0+stdev/(*meanDays)))
}

// OverallInterval spreads the full date span across all payment
// intervals, regardless of customer. Returns nil below 2 payments.
func OverallInterval(dates []time.Time) *float64 {
	if len(dates) < 2 {
		return nil
	}

	sorted := append([]time.Time(nil), dates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	totalDays := float64(sorted[len(sorted)-1].Sub(sorted[0]) / day)
	interval := totalDays / float64(len(sorted)-1)
	return &interval
}

// sampleStdev is the n-1 standard deviation of xs around mean.
func sampleStdev(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}
