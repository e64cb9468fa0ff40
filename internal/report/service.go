package report

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/engine"
)

// Service generates and persists engagement reports for a tenant.
type Service struct {
	repo    domain.Repository
	bus     domain.EventBus
	engine  *engine.Engine
	builder *Builder
}

// NewService creates a report service. The bus is optional; without it
// no completion events are published.
func NewService(repo domain.Repository, bus domain.EventBus, eng *engine.Engine) (*Service, error) {
	builder, err := NewBuilder(eng.Config())
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:    repo,
		bus:     bus,
		engine:  eng,
		builder: builder,
	}, nil
}

// Generate runs a full batch analysis over the tenant's payment history,
// saves the result as the current snapshot, and returns it.
func (s *Service) Generate(ctx context.Context, tenantID string, asOf time.Time) (*domain.ReportSnapshot, error) {
	start := time.Now()

	payments, err := s.repo.GetPaymentsSince(ctx, tenantID, time.Time{})
	if err != nil {
		return nil, err
	}

	identities, err := s.repo.ListCustomerIdentities(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	profiles, err := s.engine.Analyze(ctx, payments, identities, engine.Options{AsOf: asOf})
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, len(payments))
	for i, p := range payments {
		dates[i] = p.Date
	}

	snap := &domain.ReportSnapshot{
		TenantID:    tenantID,
		GeneratedAt: asOf,
		Current:     true,
		Report:      s.builder.Build(profiles, dates, asOf),
	}

	if err := s.repo.SaveReportSnapshot(ctx, tenantID, snap); err != nil {
		return nil, err
	}

	if s.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"snapshotId":  snap.ID,
			"generatedAt": snap.GeneratedAt,
			"customers":   snap.Report.Metrics.TotalCustomers,
		})
		if err := s.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, payload); err != nil {
			slog.Error("failed to publish report completion",
				"tenant_id", tenantID,
				"error", err,
			)
		}
	}

	slog.Info("report generated",
		"tenant_id", tenantID,
		"snapshot_id", snap.ID,
		"customers", snap.Report.Metrics.TotalCustomers,
		"disengaged", snap.Report.DisengagementMetrics.DisengagedCustomers,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return snap, nil
}
