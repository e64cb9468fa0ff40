// Heron - Customer engagement analytics for payment data.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/heron/internal/api"
	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/cache"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/engine"
	"github.com/opensource-finance/heron/internal/filter"
	"github.com/opensource-finance/heron/internal/notify"
	"github.com/opensource-finance/heron/internal/report"
	"github.com/opensource-finance/heron/internal/repository"
	"github.com/opensource-finance/heron/internal/schedule"
	"github.com/opensource-finance/heron/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HERON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := loadConfig()

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"scoring_profile", cfg.Analysis.ScoringProfile,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Analysis Engine
	eng, err := engine.New(cfg.Analysis, 100)
	if err != nil {
		slog.Error("failed to initialize analysis engine", "error", err)
		os.Exit(1)
	}
	slog.Info("analysis engine initialized",
		"recent_window_months", cfg.Analysis.RecentWindowMonths,
		"min_spend_threshold", cfg.Analysis.MinSpendThreshold,
	)

	// Initialize Outreach Filter Engine
	filters, err := filter.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize filter engine", "error", err)
		os.Exit(1)
	}
	defer filters.Close()

	tenants := tenantList()

	// Load filters from database (no hardcoded defaults - configure via API)
	if err := loadFiltersFromDatabase(ctx, repo, filters, tenants); err != nil {
		slog.Error("failed to load filters", "error", err)
		os.Exit(1)
	}
	slog.Info("filter engine initialized", "filters_count", filters.FiltersCount())

	// Initialize Report Service
	reports, err := report.NewService(repo, busImpl, eng)
	if err != nil {
		slog.Error("failed to initialize report service", "error", err)
		os.Exit(1)
	}

	// Initialize Outreach Mailer (optional)
	mailer, err := notify.NewMailer(cfg.Notify)
	if err != nil {
		slog.Error("failed to initialize mailer", "error", err)
		os.Exit(1)
	}
	if mailer != nil {
		slog.Info("outreach mailer initialized", "smtp", cfg.Notify.SMTPAddr)
	}

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HERON_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, eng, mailer)

		workerCfg := worker.Config{
			TenantIDs: tenants,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenants))
		}
	}

	// Initialize report Scheduler (optional)
	scheduler, err := schedule.New(cfg.Schedule, reports, mailer, cfg.Notify.DigestTo, tenants)
	if err != nil {
		slog.Error("failed to initialize scheduler", "error", err)
		os.Exit(1)
	}
	if scheduler != nil {
		scheduler.Start()
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, eng, filters, reports, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop background work first
	if scheduler != nil {
		scheduler.Stop()
	}
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("heron shutdown complete")
}

// loadConfig resolves the configuration from file and environment.
func loadConfig() *domain.Config {
	if path := os.Getenv("HERON_CONFIG"); path != "" {
		cfg, err := domain.LoadConfig(path)
		if err != nil {
			slog.Error("failed to load config file", "path", path, "error", err)
			os.Exit(1)
		}
		slog.Info("loaded config file", "path", path)
		return cfg
	}

	if os.Getenv("HERON_TIER") == "pro" {
		slog.Info("running in Pro tier mode")
		return domain.ProConfig()
	}

	return domain.DefaultConfig()
}

// defaultTenantID is used when no tenant list is configured.
const defaultTenantID = "default"

// tenantList parses the comma-separated HERON_TENANTS variable.
func tenantList() []string {
	env := os.Getenv("HERON_TENANTS")
	if env == "" {
		return []string{defaultTenantID}
	}

	var tenants []string
	for _, t := range strings.Split(env, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tenants = append(tenants, t)
		}
	}
	return tenants
}

// loadFiltersFromDatabase loads outreach filters into the engine.
// All filters must be configured via POST /filters API - no hardcoded defaults.
func loadFiltersFromDatabase(ctx context.Context, repo domain.Repository, filters *filter.Engine, tenants []string) error {
	var total int
	for _, tenantID := range tenants {
		configs, err := repo.ListFilterConfigs(ctx, tenantID)
		if err != nil {
			slog.Warn("failed to list filters from database",
				"tenant_id", tenantID,
				"error", err,
			)
			continue // Start with empty filters - they can be added via API
		}
		if err := filters.LoadFilters(configs); err != nil {
			return err
		}
		total += len(configs)
	}

	if total == 0 {
		slog.Info("no filters in database - configure via POST /filters API")
	}
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 HERON                    ║")
	fmt.Println("  ║     Customer Engagement Analytics         ║")
	fmt.Println("  ║      Know who is drifting away.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /payments             - Record a payment")
	fmt.Println("    POST /payments/batch       - Record a payment batch")
	fmt.Println("    POST /analyze              - Generate an engagement report")
	fmt.Println("    GET  /customers            - List customer profiles")
	fmt.Println("    GET  /customers/{id}       - Get a customer profile")
	fmt.Println("    GET  /reports/current      - Get the current report")
	fmt.Println("    GET  /reports/{id}         - Get a report snapshot")
	fmt.Println("    GET  /filters              - List outreach filters")
	fmt.Println("    POST /filters              - Create an outreach filter")
	fmt.Println("    POST /filters/reload       - Hot-reload filters from database")
	fmt.Println("    GET  /filters/{id}/matches - Preview filter matches")
	fmt.Println("    GET  /health               - Health check")
	fmt.Println()
}
