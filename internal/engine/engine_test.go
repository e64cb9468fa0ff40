package engine

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

func testConfig() domain.AnalysisConfig {
	return domain.AnalysisConfig{
		RecentWindowMonths:     3,
		HistoricalWindowMonths: 9,
		MinSpendThreshold:      100,
		ScoringProfile:         domain.ScoringBalanced,
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := New(testConfig(), 4)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return eng
}

func TestNew(t *testing.T) {
	t.Run("RejectsInvalidConfig", func(t *testing.T) {
		cfg := testConfig()
		cfg.RecentWindowMonths = 0
		if _, err := New(cfg, 4); err == nil {
			t.Error("expected error for invalid config")
		}
	})

	t.Run("RejectsUnknownScoringProfile", func(t *testing.T) {
		cfg := testConfig()
		cfg.ScoringProfile = "mystery"
		if _, err := New(cfg, 4); err == nil {
			t.Error("expected error for unknown scoring profile")
		}
	})
}

func TestAnalyzeSingleSmallPayment(t *testing.T) {
	eng := newTestEngine(t)
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	payments := []domain.Payment{
		{CustomerID: "cust-001", Amount: 50, Date: asOf.AddDate(0, 0, -10)},
	}

	profiles, err := eng.Analyze(context.Background(), payments, nil, Options{AsOf: asOf})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}

	p := profiles[0]
	if p.PaymentFrequencyDays != nil {
		t.Error("expected undefined frequency for a single payment")
	}
	if p.PaymentRegularityScore != 0 {
		t.Errorf("expected 0 regularity, got %v", p.PaymentRegularityScore)
	}
	if p.SpendingTrend != domain.TrendInsufficientData {
		t.Errorf("expected insufficient_data trend, got %q", p.SpendingTrend)
	}
	if p.HistoricalEngagement != domain.EngagementNew {
		t.Errorf("expected new engagement, got %q", p.HistoricalEngagement)
	}
	if p.PaymentStatus != domain.PaymentUnknown {
		t.Errorf("expected unknown payment status, got %q", p.PaymentStatus)
	}
	if p.EngagementScore != 2 {
		t.Errorf("expected score 2 (recency only), got %v", p.EngagementScore)
	}
	if p.RiskLevel != domain.RiskLow {
		t.Errorf("expected low risk, got %q", p.RiskLevel)
	}
	if p.DaysSinceLastPayment != 10 {
		t.Errorf("expected 10 days since last, got %d", p.DaysSinceLastPayment)
	}
}

func TestAnalyzeRegularMonthlyCustomer(t *testing.T) {
	eng := newTestEngine(t)
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// 12 payments exactly 30 days apart, the last one 15 days ago.
	var payments []domain.Payment
	for i := 0; i < 12; i++ {
		payments = append(payments, domain.Payment{
			CustomerID: "regular",
			Amount:     500,
			Date:       asOf.AddDate(0, 0, -15-30*(11-i)),
		})
	}

	profiles, err := eng.Analyze(context.Background(), payments, nil, Options{AsOf: asOf})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	p := profiles[0]
	if p.PaymentFrequencyDays == nil || *p.PaymentFrequencyDays != 30 {
		t.Fatalf("expected 30-day frequency, got %v", p.PaymentFrequencyDays)
	}
	if p.PaymentRegularityScore != 1.0 {
		t.Errorf("expected regularity 1.0 for even spacing, got %v", p.PaymentRegularityScore)
	}
	if p.HistoricalEngagement != domain.EngagementConsistent {
		t.Errorf("expected consistent engagement, got %q", p.HistoricalEngagement)
	}
	if p.PaymentStatus != domain.PaymentOnTrack {
		t.Errorf("expected on_track, got %q", p.PaymentStatus)
	}
	if p.EngagementStatus != domain.StatusActive {
		t.Errorf("expected active status, got %q", p.EngagementStatus)
	}
	if p.PredictedNextPayment == nil {
		t.Fatal("expected a predicted next payment")
	}
	if p.DaysUntilNextPayment != 15 {
		t.Errorf("expected 15 days until next payment, got %d", p.DaysUntilNextPayment)
	}
}

func TestAnalyzeZeroPaymentProfile(t *testing.T) {
	eng := newTestEngine(t)
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	identities := []domain.CustomerIdentity{
		{CustomerID: "ghost", Email: "ghost@example.com"},
	}

	profiles, err := eng.Analyze(context.Background(), nil, identities, Options{AsOf: asOf})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}

	p := profiles[0]
	if p.EngagementScore != 0 {
		t.Errorf("expected score 0, got %v", p.EngagementScore)
	}
	if p.EngagementStatus != domain.StatusInactive {
		t.Errorf("expected inactive, got %q", p.EngagementStatus)
	}
	if p.RiskLevel != domain.RiskLow {
		t.Errorf("expected low risk, got %q", p.RiskLevel)
	}
	if p.PaymentStatus != domain.PaymentUnknown {
		t.Errorf("expected unknown payment status, got %q", p.PaymentStatus)
	}
}

func TestAnalyzeSortsBySpendDescending(t *testing.T) {
	eng := newTestEngine(t)
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	payments := []domain.Payment{
		{CustomerID: "small", Amount: 10, Date: asOf.AddDate(0, 0, -5)},
		{CustomerID: "big", Amount: 5000, Date: asOf.AddDate(0, 0, -5)},
		{CustomerID: "medium", Amount: 700, Date: asOf.AddDate(0, 0, -5)},
	}

	profiles, err := eng.Analyze(context.Background(), payments, nil, Options{AsOf: asOf})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	want := []string{"big", "medium", "small"}
	for i, id := range want {
		if profiles[i].CustomerID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, profiles[i].CustomerID)
		}
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	eng := newTestEngine(t)
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	var payments []domain.Payment
	for i := 0; i < 8; i++ {
		payments = append(payments, domain.Payment{
			CustomerID: "cust-a",
			Amount:     float64(100 + i*10),
			Date:       asOf.AddDate(0, 0, -300+i*35),
		})
		payments = append(payments, domain.Payment{
			CustomerID: "cust-b",
			Amount:     float64(50 + i*5),
			Date:       asOf.AddDate(0, 0, -200+i*20),
		})
	}

	first, err := eng.Analyze(context.Background(), payments, nil, Options{AsOf: asOf})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	second, err := eng.Analyze(context.Background(), payments, nil, Options{AsOf: asOf})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("identical input at an identical AsOf produced different output")
	}
}

func TestAnalyzeInvalidPaymentFailsBatch(t *testing.T) {
	eng := newTestEngine(t)
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	payments := []domain.Payment{
		{CustomerID: "ok", Amount: 10, Date: asOf.AddDate(0, 0, -5)},
		{CustomerID: "bad", Amount: -10, Date: asOf.AddDate(0, 0, -5)},
	}

	if _, err := eng.Analyze(context.Background(), payments, nil, Options{AsOf: asOf}); err == nil {
		t.Error("expected batch to fail on the invalid payment")
	}
}

func TestAnalyzeKeepHistory(t *testing.T) {
	eng := newTestEngine(t)
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	payments := []domain.Payment{
		{CustomerID: "c", Amount: 10, Date: asOf.AddDate(0, 0, -5)},
	}

	dropped, _ := eng.Analyze(context.Background(), payments, nil, Options{AsOf: asOf})
	if dropped[0].PaymentHistory != nil {
		t.Error("expected history dropped by default")
	}

	kept, _ := eng.Analyze(context.Background(), payments, nil, Options{AsOf: asOf, KeepHistory: true})
	if len(kept[0].PaymentHistory) != 1 {
		t.Error("expected history kept with KeepHistory")
	}
}

func TestAnalyzeCustomer(t *testing.T) {
	eng := newTestEngine(t)
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("AttachesIdentity", func(t *testing.T) {
		payments := []domain.Payment{
			{CustomerID: "cust-001", Amount: 200, Date: asOf.AddDate(0, 0, -20)},
		}
		ident := &domain.CustomerIdentity{CustomerID: "cust-001", Email: "c@example.com", Name: "Casey"}

		p, err := eng.AnalyzeCustomer("cust-001", payments, ident, asOf)
		if err != nil {
			t.Fatalf("AnalyzeCustomer failed: %v", err)
		}
		if p.Email != "c@example.com" || p.Name != "Casey" {
			t.Errorf("expected identity fields, got %q / %q", p.Email, p.Name)
		}
	})

	t.Run("EmptyIDBecomesAnonymous", func(t *testing.T) {
		payments := []domain.Payment{
			{Amount: 10, Date: asOf.AddDate(0, 0, -3)},
		}
		p, err := eng.AnalyzeCustomer("", payments, nil, asOf)
		if err != nil {
			t.Fatalf("AnalyzeCustomer failed: %v", err)
		}
		if p.CustomerID != domain.AnonymousCustomerID {
			t.Errorf("expected anonymous customer, got %q", p.CustomerID)
		}
	})

	t.Run("NoPayments", func(t *testing.T) {
		p, err := eng.AnalyzeCustomer("cust-empty", nil, nil, asOf)
		if err != nil {
			t.Fatalf("AnalyzeCustomer failed: %v", err)
		}
		if p.EngagementStatus != domain.StatusInactive {
			t.Errorf("expected inactive, got %q", p.EngagementStatus)
		}
	})
}

func TestScoreAggregate(t *testing.T) {
	eng := newTestEngine(t)
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("NoLastPaymentDate", func(t *testing.T) {
		p := &domain.CustomerProfile{CustomerID: "c", TotalSpend: 900, TransactionCount: 3}
		eng.ScoreAggregate(p, asOf)

		if p.EngagementScore != 0 {
			t.Errorf("expected score 0 without a last payment date, got %v", p.EngagementScore)
		}
		if p.EngagementStatus != domain.StatusInactive {
			t.Errorf("expected inactive, got %q", p.EngagementStatus)
		}
	})

	t.Run("ScoresFromAggregates", func(t *testing.T) {
		last := asOf.AddDate(0, 0, -20)
		p := &domain.CustomerProfile{
			CustomerID:       "c",
			TotalSpend:       6000,
			TransactionCount: 12,
			LastPaymentDate:  &last,
		}
		eng.ScoreAggregate(p, asOf)

		// frequency 3 + monetary 3 + recency 2, no interval data.
		if p.EngagementScore != 8 {
			t.Errorf("expected score 8, got %v", p.EngagementScore)
		}
		if p.DaysSinceLastPayment != 20 {
			t.Errorf("expected 20 days since last, got %d", p.DaysSinceLastPayment)
		}
		if p.SpendingTrend != domain.TrendInsufficientData {
			t.Errorf("expected insufficient_data trend, got %q", p.SpendingTrend)
		}
		if p.EngagementStatus != domain.StatusActive {
			t.Errorf("expected active status, got %q", p.EngagementStatus)
		}
	})
}
