// Package engine orchestrates the per-customer analysis pipeline:
// aggregation, cadence statistics, trend classification, scoring,
// prediction, and segmentation.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opensource-finance/heron/internal/aggregate"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/frequency"
	"github.com/opensource-finance/heron/internal/predict"
	"github.com/opensource-finance/heron/internal/scoring"
	"github.com/opensource-finance/heron/internal/segment"
	"github.com/opensource-finance/heron/internal/trend"
)

const day = 24 * time.Hour

// Engine runs the analysis pipeline over a batch of payments.
// Each customer is computed independently from its own payment slice,
// so the engine fans out across customers with a bounded worker pool.
type Engine struct {
	cfg        domain.AnalysisConfig
	scorer     *scoring.Scorer
	maxWorkers int
}

// New creates an engine. The configuration is validated here, before
// any customer is scored.
func New(cfg domain.AnalysisConfig, maxWorkers int) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	scorer, err := scoring.New(cfg.ScoringProfile, cfg.MinSpendThreshold)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:        cfg,
		scorer:     scorer,
		maxWorkers: maxWorkers,
	}, nil
}

// Config returns the engine's analysis configuration.
func (e *Engine) Config() domain.AnalysisConfig {
	return e.cfg
}

// Options control one analysis run.
type Options struct {
	// AsOf is the evaluation instant. Identical input at an identical
	// AsOf yields identical output. Zero means now.
	AsOf time.Time

	// KeepHistory retains each profile's payment history on the output.
	// Large batches may drop it to keep result records small.
	KeepHistory bool
}

// Analyze runs the full pipeline: group payments per customer, derive
// every profile field, and return profiles sorted by total spend
// descending (ties broken by customer id).
//
// The batch fails atomically on the first invalid payment; the returned
// error names the offending record.
func (e *Engine) Analyze(ctx context.Context, payments []domain.Payment, identities []domain.CustomerIdentity, opts Options) ([]*domain.CustomerProfile, error) {
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	builder := aggregate.NewBuilder()
	for _, ident := range identities {
		builder.AddIdentity(ident)
	}
	if err := builder.AddAll(payments); err != nil {
		return nil, fmt.Errorf("aggregation failed: %w", err)
	}

	profiles := builder.Build()

	// Fan out per customer; no profile reads another's state.
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for _, p := range profiles {
		wg.Add(1)
		go func(p *domain.CustomerProfile) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			e.derive(p, asOf)
			if !opts.KeepHistory {
				p.PaymentHistory = nil
			}
		}(p)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	domain.SortProfilesBySpend(profiles)
	return profiles, nil
}

// AnalyzeCustomer runs the pipeline for a single customer's payments.
func (e *Engine) AnalyzeCustomer(customerID string, payments []domain.Payment, ident *domain.CustomerIdentity, asOf time.Time) (*domain.CustomerProfile, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	if customerID == "" {
		customerID = domain.AnonymousCustomerID
	}

	builder := aggregate.NewBuilder()
	builder.AddIdentity(domain.CustomerIdentity{CustomerID: customerID})
	if ident != nil {
		builder.AddIdentity(*ident)
	}
	for _, p := range payments {
		p.CustomerID = customerID
		if err := builder.Add(p); err != nil {
			return nil, err
		}
	}

	profiles := builder.Build()
	for _, p := range profiles {
		if p.CustomerID == customerID {
			e.derive(p, asOf)
			return p, nil
		}
	}

	// Unreachable: the identity guarantees a profile.
	return nil, fmt.Errorf("no profile built for customer %s", customerID)
}

// derive fills every derived field from the sorted payment history.
// Zero-payment profiles resolve to documented neutral defaults, never
// an error.
func (e *Engine) derive(p *domain.CustomerProfile, asOf time.Time) {
	if p.TransactionCount == 0 {
		p.SpendingTrend = domain.TrendInsufficientData
		p.HistoricalEngagement = domain.EngagementNew
		p.PaymentStatus = domain.PaymentUnknown
		p.EngagementStatus = domain.StatusInactive
		p.RiskLevel = domain.RiskLow
		return
	}

	history := p.PaymentHistory

	p.DaysSinceLastPayment = int(asOf.Sub(*p.LastPaymentDate) / day)

	p.PaymentFrequencyDays = frequency.MeanInterval(history)
	p.PaymentRegularityScore = frequency.Regularity(history, p.PaymentFrequencyDays)

	p.SpendingTrend = trend.Spending(history)
	p.HistoricalEngagement = trend.Historical(history, p.PaymentFrequencyDays, p.DaysSinceLastPayment)

	p.EngagementScore = e.scorer.Score(scoring.Input{
		TransactionCount: p.TransactionCount,
		TotalSpend:       p.TotalSpend,
		DaysSinceLast:    p.DaysSinceLastPayment,
		HasPayments:      true,
		FrequencyDays:    p.PaymentFrequencyDays,
	})

	pred := predict.Next(p.LastPaymentDate, p.PaymentFrequencyDays, p.DaysSinceLastPayment, asOf)
	p.PaymentStatus = pred.Status
	p.PredictedNextPayment = pred.NextPayment
	p.DaysUntilNextPayment = pred.DaysUntilNext

	p.RiskLevel = predict.Risk(p.EngagementScore, p.TotalSpend, p.DaysSinceLastPayment)
	p.EngagementStatus = segment.Status(p.EngagementScore, p.DaysSinceLastPayment, p.HistoricalEngagement)
}

// ScoreAggregate derives the score-dependent fields for a profile built
// from aggregate data only (no payment history), as produced by the CSV
// ingest adapter. Cadence fields stay at their no-data defaults.
func (e *Engine) ScoreAggregate(p *domain.CustomerProfile, asOf time.Time) {
	p.SpendingTrend = domain.TrendInsufficientData
	p.HistoricalEngagement = domain.EngagementNew
	p.PaymentStatus = domain.PaymentUnknown

	if p.LastPaymentDate == nil {
		p.EngagementStatus = domain.StatusInactive
		p.RiskLevel = domain.RiskLow
		return
	}

	p.DaysSinceLastPayment = int(asOf.Sub(*p.LastPaymentDate) / day)

	p.EngagementScore = e.scorer.Score(scoring.Input{
		TransactionCount: p.TransactionCount,
		TotalSpend:       p.TotalSpend,
		DaysSinceLast:    p.DaysSinceLastPayment,
		HasPayments:      true,
	})

	p.RiskLevel = predict.Risk(p.EngagementScore, p.TotalSpend, p.DaysSinceLastPayment)
	p.EngagementStatus = segment.Status(p.EngagementScore, p.DaysSinceLastPayment, p.HistoricalEngagement)
}
