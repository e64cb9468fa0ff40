// Package worker provides async profile recomputation for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/engine"
	"github.com/opensource-finance/heron/internal/notify"
	"github.com/opensource-finance/heron/internal/repository"
)

// profileTTL bounds how long a recomputed profile stays cached.
const profileTTL = 15 * time.Minute

// Worker recomputes customer profiles asynchronously from the EventBus.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	cache  domain.Cache
	engine *engine.Engine
	mailer *notify.Mailer

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = global fallback)
	TenantIDs []string
}

// NewWorker creates a new async worker. The mailer is optional; without
// it, follow-up alerts stay on the bus only.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, eng *engine.Engine, mailer *notify.Mailer) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		cache:  cache,
		engine: eng,
		mailer: mailer,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicPaymentIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicPaymentIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processPayment(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicPaymentIngested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processPayment(ctx, msg.TenantID, msg)
}

// PaymentMessage is the message payload announcing an ingested payment.
type PaymentMessage struct {
	CustomerID string  `json:"customerId"`
	TenantID   string  `json:"tenantId"`
	Amount     float64 `json:"amount"`
	Method     string  `json:"method,omitempty"`
}

// FollowUpAlert is published when a recomputed profile lands in the
// critical segment.
type FollowUpAlert struct {
	CustomerID string  `json:"customerId"`
	TenantID   string  `json:"tenantId"`
	Segment    string  `json:"segment"`
	RiskLevel  string  `json:"riskLevel"`
	Score      float64 `json:"engagementScore"`
	TotalSpend float64 `json:"totalSpend"`
}

// processPayment recomputes the paying customer's profile.
func (w *Worker) processPayment(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var pm PaymentMessage
	if err := json.Unmarshal(msg.Payload, &pm); err != nil {
		slog.Error("failed to parse payment message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if pm.TenantID != "" {
		tenantID = pm.TenantID
	}

	customerID := pm.CustomerID
	if customerID == "" {
		customerID = domain.AnonymousCustomerID
	}

	slog.Debug("recomputing customer profile",
		"customer_id", customerID,
		"tenant_id", tenantID,
	)

	// 1. Load the customer's full payment history.
	payments, err := w.repo.GetPaymentsByCustomer(ctx, tenantID, customerID, time.Time{})
	if err != nil {
		slog.Error("failed to load payments",
			"customer_id", customerID,
			"error", err,
		)
		return err
	}

	var ident *domain.CustomerIdentity
	ident, err = w.repo.GetCustomerIdentity(ctx, tenantID, customerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	// 2. Derive the profile.
	profile, err := w.engine.AnalyzeCustomer(customerID, payments, ident, time.Now().UTC())
	if err != nil {
		slog.Error("profile analysis failed",
			"customer_id", customerID,
			"error", err,
		)
		return err
	}

	// 3. Cache for API reads and bump the tenant's ingest counter.
	if w.cache != nil {
		if err := w.cache.SetProfile(ctx, tenantID, profile, profileTTL); err != nil {
			slog.Warn("failed to cache profile",
				"customer_id", customerID,
				"error", err,
			)
		}
		if _, err := w.cache.IncrementCounter(ctx, tenantID, "payments-processed", time.Hour); err != nil {
			slog.Warn("failed to increment ingest counter",
				"tenant_id", tenantID,
				"error", err,
			)
		}
	}

	// 4. Publish the result.
	resultPayload, _ := json.Marshal(profile)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, resultPayload); err != nil {
		slog.Error("failed to publish analysis result",
			"customer_id", customerID,
			"error", err,
		)
	}

	// 5. Critical segment triggers a follow-up alert.
	if profile.Segment() == domain.SegmentCritical {
		w.alertFollowUp(ctx, tenantID, profile)
	}

	slog.Info("payment processed",
		"customer_id", customerID,
		"tenant_id", tenantID,
		"score", profile.EngagementScore,
		"segment", profile.Segment(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

func (w *Worker) alertFollowUp(ctx context.Context, tenantID string, profile *domain.CustomerProfile) {
	alert := FollowUpAlert{
		CustomerID: profile.CustomerID,
		TenantID:   tenantID,
		Segment:    profile.Segment(),
		RiskLevel:  string(profile.RiskLevel),
		Score:      profile.EngagementScore,
		TotalSpend: profile.TotalSpend,
	}

	payload, _ := json.Marshal(alert)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicFollowUpAlert, payload); err != nil {
		slog.Error("failed to publish follow-up alert",
			"customer_id", profile.CustomerID,
			"error", err,
		)
	}

	if w.mailer != nil {
		if err := w.mailer.SendFollowUp(profile); err != nil {
			slog.Error("failed to send follow-up email",
				"customer_id", profile.CustomerID,
				"error", err,
			)
		}
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
