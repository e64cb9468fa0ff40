// Package segment assigns engagement statuses and the windowed
// disengagement classification.
package segment

import (
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// windowMonth is the calendar approximation used for window cutoffs.
const windowMonth = 30 * 24 * time.Hour

// Status resolves the final engagement status. Rules are evaluated in
// priority order; the first match wins.
func Status(score float64, daysSinceLast int, hist domain.HistoricalEngagement) domain.EngagementStatus {
	switch {
	case hist == domain.EngagementDormant && score >= 5:
		return domain.StatusPotentialReengagement
	case score >= 7:
		return domain.StatusActive
	case score >= 4 && daysSinceLast <= 180:
		return domain.StatusActive
	case hist == domain.EngagementDeclining || hist == domain.EngagementDormant:
		return domain.StatusDisengaged
	default:
		return domain.StatusInactive
	}
}

// Windows holds the cutoff dates for the batch disengagement
// classification.
type Windows struct {
	// RecentCutoff is the start of the recent-activity window.
	RecentCutoff time.Time

	// HistoricalCutoff is the start of the historical baseline window,
	// R+H months back.
	HistoricalCutoff time.Time

	// MinSpend gates recent-by-spend and historical inclusion.
	MinSpend float64
}

// WindowsFor derives cutoffs from the analysis configuration at asOf.
// The configuration must already be validated.
func WindowsFor(asOf time.Time, cfg domain.AnalysisConfig) Windows {
	return Windows{
		RecentCutoff:     asOf.Add(-time.Duration(cfg.RecentWindowMonths) * windowMonth),
		HistoricalCutoff: asOf.Add(-time.Duration(cfg.RecentWindowMonths+cfg.HistoricalWindowMonths) * windowMonth),
		MinSpend:         cfg.MinSpendThreshold,
	}
}

// Classification splits a batch into recent/engaged, historical, and
// disengaged sets. Disengaged is the set difference historical minus
// recent, keyed by customer id: disjointness with the recent set holds
// by construction.
type Classification struct {
	Recent     []*domain.CustomerProfile
	Historical []*domain.CustomerProfile
	Disengaged []*domain.CustomerProfile
}

// Classify runs the windowed disengagement classification.
//
// A customer is recent/engaged on a high engagement score alone, or on
// recent activity combined with significant spend. A customer is
// historical when the last payment falls between the two cutoffs and
// spend clears the minimum. Membership in the recent set is a set test
// by customer id, not a score comparison.
func Classify(profiles []*domain.CustomerProfile, w Windows) Classification {
	var c Classification

	recentIDs := make(map[string]struct{})

	for _, p := range profiles {
		if isRecent(p, w) {
			c.Recent = append(c.Recent, p)
			recentIDs[p.CustomerID] = struct{}{}
		}
	}

	for _, p := range profiles {
		if !isHistorical(p, w) {
			continue
		}
		c.Historical = append(c.Historical, p)
		if _, ok := recentIDs[p.CustomerID]; !ok {
			c.Disengaged = append(c.Disengaged, p)
		}
	}

	return c
}

func isRecent(p *domain.CustomerProfile, w Windows) bool {
	if p.EngagementScore >= 7 {
		return true
	}
	if p.LastPaymentDate == nil {
		return false
	}
	return !p.LastPaymentDate.Before(w.RecentCutoff) && p.TotalSpend >= w.MinSpend*2
}

func isHistorical(p *domain.CustomerProfile, w Windows) bool {
	if p.LastPaymentDate == nil {
		return false
	}
	return p.LastPaymentDate.Before(w.RecentCutoff) &&
		!p.LastPaymentDate.Before(w.HistoricalCutoff) &&
		p.TotalSpend >= w.MinSpend
}

// DisengagementReason classifies why a customer disengaged.
// Checks run in order; the first match wins.
func DisengagementReason(p *domain.CustomerProfile, daysInactive int) string {
	switch {
	case daysInactive > 270:
		return domain.ReasonLongTermInactive
	case p.TransactionCount <= 2:
		return domain.ReasonLowEngagement
	case p.TotalSpend > 5000:
		return domain.ReasonHighValueAtRisk
	default:
		return domain.ReasonStandardChurn
	}
}
