// Package report assembles batch analysis results into engagement
// reports.
package report

import (
	"fmt"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/frequency"
	"github.com/opensource-finance/heron/internal/segment"
)

// Builder turns a set of derived profiles into a domain.Report.
type Builder struct {
	cfg domain.AnalysisConfig
}

// NewBuilder creates a report builder over a validated analysis
// configuration.
func NewBuilder(cfg domain.AnalysisConfig) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg}, nil
}

// Build assembles the full report from already-derived profiles.
// allDates carries every payment date in the batch and feeds the
// overall cross-customer frequency metric; it may be nil when the
// caller has no event-level data.
func (b *Builder) Build(profiles []*domain.CustomerProfile, allDates []time.Time, asOf time.Time) *domain.Report {
	r := &domain.Report{
		Metadata: domain.ReportMetadata{
			GeneratedAt:  asOf,
			ReportPeriod: fmt.Sprintf("Past %d months", b.cfg.RecentWindowMonths),
			PeriodMonths: b.cfg.RecentWindowMonths,
		},
		Metrics:  b.metrics(profiles, allDates),
		Segments: groupBySegment(profiles),
	}

	cls := segment.Classify(profiles, segment.WindowsFor(asOf, b.cfg))

	r.DisengagementMetrics = domain.DisengagementMetrics{
		TotalCustomers:      len(profiles),
		RecentCustomers:     len(cls.Recent),
		HistoricalCustomers: len(cls.Historical),
		DisengagedCustomers: len(cls.Disengaged),
	}

	domain.SortProfilesBySpend(cls.Disengaged)
	for _, p := range cls.Disengaged {
		daysInactive := p.DaysSinceLastPayment
		r.Disengaged = append(r.Disengaged, domain.DisengagementTarget{
			CustomerID:       p.CustomerID,
			Name:             p.Name,
			Email:            p.Email,
			TotalSpend:       p.TotalSpend,
			TransactionCount: p.TransactionCount,
			LastPaymentDate:  p.LastPaymentDate,
			DaysInactive:     daysInactive,
			Reason:           segment.DisengagementReason(p, daysInactive),
		})
		r.DisengagementMetrics.TotalDisengagedValue += p.TotalSpend
	}

	return r
}

func (b *Builder) metrics(profiles []*domain.CustomerProfile, allDates []time.Time) domain.OverallMetrics {
	m := domain.OverallMetrics{
		TotalCustomers: len(profiles),
	}

	var freqSum float64
	var freqCount int

	for _, p := range profiles {
		m.TotalRevenue += p.TotalSpend
		if p.EngagementStatus == domain.StatusActive {
			m.ActiveCustomers++
		}
		if p.PaymentFrequencyDays != nil {
			freqSum += *p.PaymentFrequencyDays
			freqCount++
		}
	}

	if m.TotalCustomers > 0 {
		m.ActivePercentage = float64(m.ActiveCustomers) / float64(m.TotalCustomers) * 100
	}
	if freqCount > 0 {
		m.AvgPaymentFrequencyDays = freqSum / float64(freqCount)
	}
	m.OverallPaymentFrequencyDays = frequency.OverallInterval(allDates)

	return m
}

// groupBySegment buckets profiles under their display segment labels.
// Every label is present even when its bucket is empty.
func groupBySegment(profiles []*domain.CustomerProfile) map[string][]*domain.CustomerProfile {
	segments := map[string][]*domain.CustomerProfile{
		domain.SegmentStable:    {},
		domain.SegmentAttention: {},
		domain.SegmentCritical:  {},
	}
	for _, p := range profiles {
		label := p.Segment()
		segments[label] = append(segments[label], p)
	}
	for _, bucket := range segments {
		domain.SortProfilesBySpend(bucket)
	}
	return segments
}
