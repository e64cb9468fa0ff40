// Package scoring computes the composite 0-10 engagement score.
package scoring

import (
	"fmt"

	"github.com/opensource-finance/heron/internal/domain"
)

// Input carries the sub-score factors for one customer.
type Input struct {
	TransactionCount int
	TotalSpend       float64

	// DaysSinceLast is meaningless when HasPayments is false; the
	// recency sub-score is then 0.
	DaysSinceLast int
	HasPayments   bool

	// FrequencyDays is the mean payment interval; nil when undefined.
	// Only the balanced profile uses it.
	FrequencyDays *float64
}

// Scorer computes engagement scores for exactly one band profile.
// A scorer never mixes bands: the profile is fixed at construction so
// the maximum always sums to 10.
type Scorer struct {
	profile  domain.ScoringProfile
	minSpend float64
}

// New creates a scorer for the given profile. minSpend is the
// deployment's minimum spend threshold, used by the value-weighted
// monetary band's lowest tier.
func New(profile domain.ScoringProfile, minSpend float64) (*Scorer, error) {
	switch profile {
	case domain.ScoringBalanced, domain.ScoringValueWeighted:
	default:
		return nil, fmt.Errorf("%w: unknown scoring profile %q", domain.ErrInvalidConfig, profile)
	}
	if minSpend < 0 {
		return nil, fmt.Errorf("%w: minSpend must not be negative", domain.ErrInvalidConfig)
	}
	return &Scorer{profile: profile, minSpend: minSpend}, nil
}

// Profile returns the scorer's band profile.
func (s *Scorer) Profile() domain.ScoringProfile {
	return s.profile
}

// Score computes the composite engagement score on [0, 10].
func (s *Scorer) Score(in Input) float64 {
	if s.profile == domain.ScoringValueWeighted {
		return s.scoreValueWeighted(in)
	}
	return s.scoreBalanced(in)
}

// scoreBalanced: frequency 0-3, monetary 0-3, recency 0-2, interval 0-2.
func (s *Scorer) scoreBalanced(in Input) float64 {
	score := frequencyBand(in.TransactionCount)

	switch {
	case in.TotalSpend >= 5000:
		score += 3
	case in.TotalSpend >= 1000:
		score += 2
	case in.TotalSpend >= 500:
		score += 1
	}

	if in.HasPayments {
		switch {
		case in.DaysSinceLast <= 30:
			score += 2
		case in.DaysSinceLast <= 90:
			score += 1
		}
	}

	if in.FrequencyDays != nil && *in.FrequencyDays > 0 {
		switch {
		case *in.FrequencyDays <= 45:
			score += 2
		case *in.FrequencyDays <= 90:
			score += 1
		}
	}

	return score
}

// scoreValueWeighted: frequency 0-3, monetary 0-4, recency 0-3.
func (s *Scorer) scoreValueWeighted(in Input) float64 {
	score := frequencyBand(in.TransactionCount)

	switch {
	case in.TotalSpend >= 5000:
		score += 4
	case in.TotalSpend >= 1000:
		score += 3
	case in.TotalSpend >= 500:
		score += 2
	case in.TotalSpend >= s.minSpend:
		score += 1
	}

	if in.HasPayments {
		switch {
		case in.DaysSinceLast <= 30:
			score += 3
		case in.DaysSinceLast <= 60:
			score += 2
		case in.DaysSinceLast <= 90:
			score += 1
		}
	}

	return score
}

// frequencyBand is shared by both profiles.
func frequencyBand(count int) float64 {
	switch {
	case count >= 10:
		return 3
	case count >= 5:
		return 2
	case count >= 2:
		return 1
	default:
		return 0
	}
}
