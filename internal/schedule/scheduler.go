// Package schedule runs periodic report generation.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/notify"
	"github.com/opensource-finance/heron/internal/report"
)

// jobTimeout bounds one scheduled report run.
const jobTimeout = 10 * time.Minute

// Scheduler triggers report generation on a cron expression for each
// configured tenant.
type Scheduler struct {
	cron     *cron.Cron
	service  *report.Service
	mailer   *notify.Mailer
	digestTo []string
	tenants  []string
}

// New creates a scheduler. A disabled configuration yields no
// scheduler. The mailer is optional; with one, each successful run
// emails the report digest to digestTo.
func New(cfg domain.ScheduleConfig, svc *report.Service, mailer *notify.Mailer, digestTo []string, tenants []string) (*Scheduler, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if len(tenants) == 0 {
		return nil, fmt.Errorf("schedule: at least one tenant is required")
	}

	s := &Scheduler{
		cron:     cron.New(),
		service:  svc,
		mailer:   mailer,
		digestTo: digestTo,
		tenants:  tenants,
	}

	if _, err := s.cron.AddFunc(cfg.ReportCron, s.run); err != nil {
		return nil, fmt.Errorf("schedule: invalid cron expression %q: %w", cfg.ReportCron, err)
	}

	return s, nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("report scheduler started",
		"tenant_count", len(s.tenants),
	)
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("report scheduler stopped")
}

func (s *Scheduler) run() {
	for _, tenantID := range s.tenants {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)

		snap, err := s.service.Generate(ctx, tenantID, time.Now().UTC())
		if err != nil {
			slog.Error("scheduled report failed",
				"tenant_id", tenantID,
				"error", err,
			)
			cancel()
			continue
		}

		if s.mailer != nil && len(s.digestTo) > 0 {
			if err := s.mailer.SendDigest(s.digestTo, snap.Report); err != nil {
				slog.Error("failed to send report digest",
					"tenant_id", tenantID,
					"error", err,
				)
			}
		}

		cancel()
	}
}
