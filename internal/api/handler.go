package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/engine"
	"github.com/opensource-finance/heron/internal/filter"
	"github.com/opensource-finance/heron/internal/report"
	"github.com/opensource-finance/heron/internal/repository"
)

// profileCacheTTL bounds how long an on-demand profile stays cached.
const profileCacheTTL = 15 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  *engine.Engine
	filters *filter.Engine
	reports *report.Service
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, filters *filter.Engine, reports *report.Service, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engine:  eng,
		filters: filters,
		reports: reports,
		version: version,
	}
}

// RecordPaymentResponse is the response for POST /payments.
type RecordPaymentResponse struct {
	CustomerID string    `json:"customerId"`
	Amount     float64   `json:"amount"`
	Date       time.Time `json:"date"`
	Recorded   bool      `json:"recorded"`
}

// RecordPayment handles POST /payments requests.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req domain.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Amount < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must not be negative",
		})
		return
	}

	p := req.ToPayment()
	p.TenantID = tenantID

	if err := h.repo.SavePayment(ctx, tenantID, p); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": verr.Error(),
			})
			return
		}
		slog.Error("failed to save payment", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save payment",
		})
		return
	}

	// Display fields ride along with the payment when present.
	if req.Email != "" || req.Name != "" {
		ident := &domain.CustomerIdentity{
			CustomerID: p.CustomerID,
			Email:      req.Email,
			Name:       req.Name,
		}
		if err := h.repo.SaveCustomerIdentity(ctx, tenantID, ident); err != nil {
			slog.Error("failed to save customer identity",
				"customer_id", p.CustomerID,
				"error", err,
			)
		}
	}

	// Drop the stale cached profile; the worker recomputes it.
	if h.cache != nil {
		_ = h.cache.Delete(ctx, tenantID, "profile:"+p.CustomerID)
	}

	h.publishIngested(r, tenantID, p)

	writeJSON(w, http.StatusAccepted, RecordPaymentResponse{
		CustomerID: p.CustomerID,
		Amount:     p.Amount,
		Date:       p.Date,
		Recorded:   true,
	})
}

// BatchRequest is the request body for POST /payments/batch.
type BatchRequest struct {
	Payments []domain.PaymentRequest `json:"payments"`
}

// RecordPaymentBatch handles POST /payments/batch requests.
// The batch is all-or-nothing.
func (h *Handler) RecordPaymentBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Payments) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "payments must not be empty",
		})
		return
	}

	payments := make([]domain.Payment, 0, len(req.Payments))
	for i := range req.Payments {
		p := req.Payments[i].ToPayment()
		p.TenantID = tenantID
		payments = append(payments, *p)
	}

	if err := h.repo.SavePayments(ctx, tenantID, payments); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": verr.Error(),
			})
			return
		}
		slog.Error("failed to save payment batch", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save payments",
		})
		return
	}

	for i := range req.Payments {
		if req.Payments[i].Email == "" && req.Payments[i].Name == "" {
			continue
		}
		ident := &domain.CustomerIdentity{
			CustomerID: payments[i].CustomerID,
			Email:      req.Payments[i].Email,
			Name:       req.Payments[i].Name,
		}
		if err := h.repo.SaveCustomerIdentity(ctx, tenantID, ident); err != nil {
			slog.Error("failed to save customer identity",
				"customer_id", ident.CustomerID,
				"error", err,
			)
		}
	}

	for i := range payments {
		if h.cache != nil {
			_ = h.cache.Delete(ctx, tenantID, "profile:"+payments[i].CustomerID)
		}
		h.publishIngested(r, tenantID, &payments[i])
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"recorded": len(payments),
	})
}

func (h *Handler) publishIngested(r *http.Request, tenantID string, p *domain.Payment) {
	if h.bus == nil {
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"customerId": p.CustomerID,
		"tenantId":   tenantID,
		"amount":     p.Amount,
		"method":     p.Method,
	})

	if err := h.bus.Publish(r.Context(), tenantID, domain.TopicPaymentIngested, payload); err != nil {
		slog.Error("failed to publish payment event",
			"customer_id", p.CustomerID,
			"error", err,
		)
	}
}

// Analyze handles POST /analyze: it runs a full batch analysis and
// saves the result as the current report snapshot.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	snap, err := h.reports.Generate(ctx, tenantID, time.Now().UTC())
	if err != nil {
		slog.Error("analysis failed", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "analysis failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// ListCustomers handles GET /customers: it derives fresh profiles for
// every customer of the tenant, ranked by total spend.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	profiles, err := h.analyzeAll(r)
	if err != nil {
		slog.Error("failed to analyze customers", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "analysis failed",
		})
		return
	}

	if r.URL.Query().Get("sort") == "score" {
		domain.SortProfilesByScore(profiles)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"customers": profiles,
		"count":     len(profiles),
	})
}

// GetCustomer handles GET /customers/{id}. Cached profiles are served
// when fresh; otherwise the profile is derived from the stored history
// and cached.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	customerID := chi.URLParam(r, "id")

	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customer id is required",
		})
		return
	}

	if h.cache != nil {
		if profile, err := h.cache.GetProfile(ctx, tenantID, customerID); err == nil && profile != nil {
			writeJSON(w, http.StatusOK, profile)
			return
		}
	}

	payments, err := h.repo.GetPaymentsByCustomer(ctx, tenantID, customerID, time.Time{})
	if err != nil {
		slog.Error("failed to load payments", "customer_id", customerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load payments",
		})
		return
	}

	ident, err := h.repo.GetCustomerIdentity(ctx, tenantID, customerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load customer",
		})
		return
	}

	if len(payments) == 0 && ident == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "customer not found",
		})
		return
	}

	profile, err := h.engine.AnalyzeCustomer(customerID, payments, ident, time.Now().UTC())
	if err != nil {
		slog.Error("profile analysis failed", "customer_id", customerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "analysis failed",
		})
		return
	}

	if h.cache != nil {
		_ = h.cache.SetProfile(ctx, tenantID, profile, profileCacheTTL)
	}

	writeJSON(w, http.StatusOK, profile)
}

// ListReports handles GET /reports.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	snaps, err := h.repo.ListReportSnapshots(ctx, tenantID, limit)
	if err != nil {
		slog.Error("failed to list reports", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list reports",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reports": snaps,
		"count":   len(snaps),
	})
}

// GetCurrentReport handles GET /reports/current.
func (h *Handler) GetCurrentReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	snap, err := h.repo.GetCurrentReport(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no current report, run POST /analyze first",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get current report", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get report",
		})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// GetReport handles GET /reports/{id}.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	snapID := chi.URLParam(r, "id")

	snap, err := h.repo.GetReportSnapshot(ctx, tenantID, snapID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "report not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get report", "id", snapID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get report",
		})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// ListFilters returns all loaded outreach filters.
func (h *Handler) ListFilters(w http.ResponseWriter, r *http.Request) {
	loaded := h.filters.GetLoadedFilters()

	writeJSON(w, http.StatusOK, map[string]any{
		"filters": loaded,
		"count":   len(loaded),
		"source":  "database",
	})
}

// GetFilter retrieves an outreach filter by ID.
func (h *Handler) GetFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	filterID := chi.URLParam(r, "id")

	cfg, err := h.repo.GetFilterConfig(ctx, tenantID, filterID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "filter not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get filter", "id", filterID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get filter",
		})
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// CreateFilterRequest is the request body for creating an outreach filter.
type CreateFilterRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Enabled     bool   `json:"enabled"`
}

// CreateFilter creates an outreach filter and saves it to the database.
func (h *Handler) CreateFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateFilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name and expression are required",
		})
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	cfg := &domain.FilterConfig{
		ID:          req.ID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Enabled:     req.Enabled,
	}

	// Compile before persisting so bad expressions never reach the DB.
	if err := h.filters.ValidateFilter(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid filter expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveFilterConfig(ctx, tenantID, cfg); err != nil {
		slog.Error("failed to save filter", "id", cfg.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save filter",
		})
		return
	}

	if cfg.Enabled {
		if err := h.filters.LoadFilter(cfg); err != nil {
			slog.Error("failed to load filter", "id", cfg.ID, "error", err)
		}
	}

	slog.Info("filter created", "id", cfg.ID, "name", cfg.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"filter": cfg,
	})
}

// DeleteFilter removes an outreach filter and reloads the engine.
func (h *Handler) DeleteFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	filterID := chi.URLParam(r, "id")

	if err := h.repo.DeleteFilterConfig(ctx, tenantID, filterID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "filter not found",
			})
			return
		}
		slog.Error("failed to delete filter", "id", filterID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete filter",
		})
		return
	}

	configs, err := h.repo.ListFilterConfigs(ctx, tenantID)
	if err != nil {
		slog.Error("failed to reload filters after delete", "error", err)
	} else if err := h.filters.ReloadFilters(configs); err != nil {
		slog.Error("failed to reload filters after delete", "error", err)
	}

	slog.Info("filter deleted", "id", filterID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "filter deleted and engine reloaded",
	})
}

// ReloadFilters reloads all filters from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadFilters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	configs, err := h.repo.ListFilterConfigs(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list filters from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load filters from database",
		})
		return
	}

	if err := h.filters.ReloadFilters(configs); err != nil {
		slog.Error("failed to reload filters into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload filters: " + err.Error(),
		})
		return
	}

	slog.Info("filters reloaded from database", "count", h.filters.FiltersCount())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "filters reloaded successfully",
		"count":   h.filters.FiltersCount(),
	})
}

// MatchFilter handles GET /filters/{id}/matches: it derives fresh
// profiles and returns the customers the filter selects.
func (h *Handler) MatchFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	filterID := chi.URLParam(r, "id")

	profiles, err := h.analyzeAll(r)
	if err != nil {
		slog.Error("failed to analyze customers", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "analysis failed",
		})
		return
	}

	matches, err := h.filters.MatchAll(ctx, filterID, profiles)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filterId": filterID,
		"matches":  matches,
		"count":    len(matches),
	})
}

// analyzeAll derives fresh profiles for every customer of the request's
// tenant.
func (h *Handler) analyzeAll(r *http.Request) ([]*domain.CustomerProfile, error) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	payments, err := h.repo.GetPaymentsSince(ctx, tenantID, time.Time{})
	if err != nil {
		return nil, err
	}

	identities, err := h.repo.ListCustomerIdentities(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return h.engine.Analyze(ctx, payments, identities, engine.Options{AsOf: time.Now().UTC()})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
