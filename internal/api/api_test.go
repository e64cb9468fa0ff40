package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/cache"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/engine"
	"github.com/opensource-finance/heron/internal/filter"
	"github.com/opensource-finance/heron/internal/report"
	"github.com/opensource-finance/heron/internal/repository"
)

// createTestServer wires a server over a temp SQLite database, an
// in-process cache, and a channel bus.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "heron-api-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	eng, err := engine.New(domain.AnalysisConfig{
		RecentWindowMonths:     3,
		HistoricalWindowMonths: 9,
		MinSpendThreshold:      100,
		ScoringProfile:         domain.ScoringBalanced,
	}, 4)
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}

	filters, err := filter.NewEngine(4)
	if err != nil {
		t.Fatalf("filter.NewEngine failed: %v", err)
	}

	reports, err := report.NewService(repo, eventBus, eng)
	if err != nil {
		t.Fatalf("report.NewService failed: %v", err)
	}

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	return NewServer(cfg, repo, cache.NewLRUCache(100), eventBus, eng, filters, reports, "test-v1")
}

func doRequest(server *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestPaymentEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("RecordPayment", func(t *testing.T) {
		date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
		rr := doRequest(server, http.MethodPost, "/payments", domain.PaymentRequest{
			CustomerID: "cust-001",
			Email:      "c1@example.com",
			Name:       "Customer One",
			Amount:     250.50,
			Method:     "card - visa ending in 4242",
			Date:       &date,
		})

		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp RecordPaymentResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.CustomerID != "cust-001" || !resp.Recorded {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("RecordPaymentEmptyCustomer", func(t *testing.T) {
		rr := doRequest(server, http.MethodPost, "/payments", domain.PaymentRequest{Amount: 10})

		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d", rr.Code)
		}

		var resp RecordPaymentResponse
		_ = json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.CustomerID != domain.AnonymousCustomerID {
			t.Errorf("expected anonymous customer, got %q", resp.CustomerID)
		}
	})

	t.Run("NegativeAmount", func(t *testing.T) {
		rr := doRequest(server, http.MethodPost, "/payments", domain.PaymentRequest{
			CustomerID: "cust-001",
			Amount:     -5,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBufferString("not-json"))
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		// No X-Tenant-ID header

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("Batch", func(t *testing.T) {
		date1 := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
		date2 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
		rr := doRequest(server, http.MethodPost, "/payments/batch", BatchRequest{
			Payments: []domain.PaymentRequest{
				{CustomerID: "batch-cust", Amount: 100, Date: &date1},
				{CustomerID: "batch-cust", Amount: 120, Date: &date2},
			},
		})

		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp map[string]any
		_ = json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["recorded"] != float64(2) {
			t.Errorf("expected 2 recorded, got %v", resp["recorded"])
		}
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		rr := doRequest(server, http.MethodPost, "/payments/batch", BatchRequest{})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestCustomerEndpoints(t *testing.T) {
	server := createTestServer(t)

	// Seed a customer with regular history.
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		date := now.AddDate(0, 0, -60+i*30)
		rr := doRequest(server, http.MethodPost, "/payments", domain.PaymentRequest{
			CustomerID: "cust-001",
			Email:      "c1@example.com",
			Amount:     400,
			Date:       &date,
		})
		if rr.Code != http.StatusAccepted {
			t.Fatalf("seed payment failed: %d", rr.Code)
		}
	}

	t.Run("GetCustomer", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/customers/cust-001", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var profile domain.CustomerProfile
		if err := json.Unmarshal(rr.Body.Bytes(), &profile); err != nil {
			t.Fatalf("failed to parse profile: %v", err)
		}
		if profile.TotalSpend != 1200 {
			t.Errorf("expected total 1200, got %v", profile.TotalSpend)
		}
		if profile.TransactionCount != 3 {
			t.Errorf("expected 3 transactions, got %d", profile.TransactionCount)
		}
		if profile.Email != "c1@example.com" {
			t.Errorf("expected identity email, got %q", profile.Email)
		}
	})

	t.Run("GetCustomerNotFound", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/customers/nobody", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("ListCustomers", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/customers", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Customers []*domain.CustomerProfile `json:"customers"`
			Count     int                       `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count != 1 {
			t.Errorf("expected 1 customer, got %d", resp.Count)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/customers/cust-001", nil)
		req.Header.Set("X-Tenant-ID", "tenant-other")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404 for other tenant, got %d", rr.Code)
		}
	})
}

func TestAnalyzeAndReportEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("NoCurrentReport", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/reports/current", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	now := time.Now().UTC()
	for i := 0; i < 4; i++ {
		date := now.AddDate(0, 0, -90+i*30)
		doRequest(server, http.MethodPost, "/payments", domain.PaymentRequest{
			CustomerID: "cust-001",
			Amount:     300,
			Date:       &date,
		})
	}

	var snapID string

	t.Run("Analyze", func(t *testing.T) {
		rr := doRequest(server, http.MethodPost, "/analyze", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var snap domain.ReportSnapshot
		if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
			t.Fatalf("failed to parse snapshot: %v", err)
		}
		if !snap.Current {
			t.Error("expected snapshot marked current")
		}
		if snap.Report == nil || snap.Report.Metrics.TotalCustomers != 1 {
			t.Errorf("unexpected report: %+v", snap.Report)
		}
		snapID = snap.ID
	})

	t.Run("GetCurrentReport", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/reports/current", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var snap domain.ReportSnapshot
		_ = json.Unmarshal(rr.Body.Bytes(), &snap)
		if snap.ID != snapID {
			t.Errorf("expected snapshot %s, got %s", snapID, snap.ID)
		}
	})

	t.Run("GetReportByID", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/reports/"+snapID, nil)
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("ListReports", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/reports", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Reports []*domain.ReportSnapshot `json:"reports"`
			Count   int                      `json:"count"`
		}
		_ = json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 report, got %d", resp.Count)
		}
	})

	t.Run("ListReportsBadLimit", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/reports?limit=zero", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ReportNotFound", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/reports/no-such-id", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestFilterEndpoints(t *testing.T) {
	server := createTestServer(t)

	// Seed a disengaged high spender and a small recent customer.
	staleDate := time.Now().UTC().AddDate(0, 0, -200)
	doRequest(server, http.MethodPost, "/payments", domain.PaymentRequest{
		CustomerID: "cust-stale",
		Amount:     6000,
		Date:       &staleDate,
	})
	freshDate := time.Now().UTC().AddDate(0, 0, -5)
	doRequest(server, http.MethodPost, "/payments", domain.PaymentRequest{
		CustomerID: "cust-fresh",
		Amount:     40,
		Date:       &freshDate,
	})

	t.Run("CreateFilter", func(t *testing.T) {
		rr := doRequest(server, http.MethodPost, "/filters", CreateFilterRequest{
			ID:         "big-lapsed",
			Name:       "Big lapsed spenders",
			Expression: `total_spend > 5000.0 && days_since_last > 90`,
			Enabled:    true,
		})

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("CreateFilterInvalidExpression", func(t *testing.T) {
		rr := doRequest(server, http.MethodPost, "/filters", CreateFilterRequest{
			Name:       "Broken",
			Expression: `total_spend +`,
			Enabled:    true,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("CreateFilterMissingFields", func(t *testing.T) {
		rr := doRequest(server, http.MethodPost, "/filters", CreateFilterRequest{Name: "No expression"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("GetFilter", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/filters/big-lapsed", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var cfg domain.FilterConfig
		_ = json.Unmarshal(rr.Body.Bytes(), &cfg)
		if cfg.ID != "big-lapsed" || !cfg.Enabled {
			t.Errorf("unexpected filter: %+v", cfg)
		}
	})

	t.Run("ListFilters", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/filters", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Filters []*domain.FilterConfig `json:"filters"`
			Count   int                    `json:"count"`
		}
		_ = json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 loaded filter, got %d", resp.Count)
		}
	})

	t.Run("MatchFilter", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/filters/big-lapsed/matches", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			FilterID string               `json:"filterId"`
			Matches  []domain.FilterMatch `json:"matches"`
			Count    int                  `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count != 1 {
			t.Fatalf("expected 1 match, got %d", resp.Count)
		}
		if resp.Matches[0].CustomerID != "cust-stale" {
			t.Errorf("expected cust-stale, got %s", resp.Matches[0].CustomerID)
		}
	})

	t.Run("MatchUnknownFilter", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/filters/no-such/matches", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ReloadFilters", func(t *testing.T) {
		rr := doRequest(server, http.MethodPost, "/filters/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]any
		_ = json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["count"] != float64(1) {
			t.Errorf("expected 1 filter after reload, got %v", resp["count"])
		}
	})

	t.Run("DeleteFilter", func(t *testing.T) {
		rr := doRequest(server, http.MethodDelete, "/filters/big-lapsed", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		rr = doRequest(server, http.MethodDelete, "/filters/big-lapsed", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404 on second delete, got %d", rr.Code)
		}

		// Engine reloaded without the deleted filter.
		rr = doRequest(server, http.MethodGet, "/filters", nil)
		var resp map[string]any
		_ = json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["count"] != float64(0) {
			t.Errorf("expected 0 filters after delete, got %v", resp["count"])
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("Health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		_ = json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["status"] != "healthy" {
			t.Errorf("expected healthy, got %q", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version test-v1, got %q", resp["version"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestCustomerSortByScore(t *testing.T) {
	server := createTestServer(t)

	now := time.Now().UTC()

	// High scorer: regular monthly history.
	for i := 0; i < 6; i++ {
		date := now.AddDate(0, 0, -150+i*30)
		doRequest(server, http.MethodPost, "/payments", domain.PaymentRequest{
			CustomerID: "engaged",
			Amount:     1200,
			Date:       &date,
		})
	}
	// Low scorer with higher total spend.
	staleDate := now.AddDate(0, 0, -300)
	doRequest(server, http.MethodPost, "/payments", domain.PaymentRequest{
		CustomerID: "lapsed-whale",
		Amount:     9000,
		Date:       &staleDate,
	})

	rr := doRequest(server, http.MethodGet, "/customers?sort=score", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp struct {
		Customers []*domain.CustomerProfile `json:"customers"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Customers) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(resp.Customers))
	}
	if resp.Customers[0].CustomerID != "engaged" {
		t.Errorf("expected engaged first by score, got %s", resp.Customers[0].CustomerID)
	}

	// Default order ranks by spend instead.
	rr = doRequest(server, http.MethodGet, "/customers", nil)
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Customers[0].CustomerID != "lapsed-whale" {
		t.Errorf("expected lapsed-whale first by spend, got %s", resp.Customers[0].CustomerID)
	}
}
