package predict

import (
	"testing"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

func freq(v float64) *float64 { return &v }

func TestNext(t *testing.T) {
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("UnknownWithoutFrequency", func(t *testing.T) {
		last := asOf.AddDate(0, 0, -10)
		pred := Next(&last, nil, 10, asOf)
		if pred.Status != domain.PaymentUnknown {
			t.Errorf("expected unknown, got %q", pred.Status)
		}
		if pred.NextPayment != nil {
			t.Error("expected no predicted date")
		}
	})

	t.Run("UnknownWithoutLastPayment", func(t *testing.T) {
		pred := Next(nil, freq(30), 0, asOf)
		if pred.Status != domain.PaymentUnknown {
			t.Errorf("expected unknown, got %q", pred.Status)
		}
	})

	t.Run("OnTrack", func(t *testing.T) {
		last := asOf.AddDate(0, 0, -10)
		pred := Next(&last, freq(30), 10, asOf)

		if pred.Status != domain.PaymentOnTrack {
			t.Errorf("expected on_track, got %q", pred.Status)
		}
		want := last.AddDate(0, 0, 30)
		if pred.NextPayment == nil || !pred.NextPayment.Equal(want) {
			t.Errorf("expected next payment %v, got %v", want, pred.NextPayment)
		}
		if pred.DaysUntilNext != 20 {
			t.Errorf("expected 20 days until next, got %d", pred.DaysUntilNext)
		}
	})

	t.Run("Overdue", func(t *testing.T) {
		last := asOf.AddDate(0, 0, -50)
		pred := Next(&last, freq(30), 50, asOf)
		if pred.Status != domain.PaymentOverdue {
			t.Errorf("expected overdue, got %q", pred.Status)
		}
		if pred.DaysUntilNext >= 0 {
			t.Errorf("expected negative days until next, got %d", pred.DaysUntilNext)
		}
	})

	t.Run("AtRiskBeatsOverdue", func(t *testing.T) {
		// 70 days on a 30-day cadence clears both thresholds; the more
		// severe level wins.
		last := asOf.AddDate(0, 0, -70)
		pred := Next(&last, freq(30), 70, asOf)
		if pred.Status != domain.PaymentAtRisk {
			t.Errorf("expected at_risk, got %q", pred.Status)
		}
	})

	t.Run("ExactlyDoubleIsNotAtRisk", func(t *testing.T) {
		last := asOf.AddDate(0, 0, -60)
		pred := Next(&last, freq(30), 60, asOf)
		if pred.Status != domain.PaymentOverdue {
			t.Errorf("expected overdue at exactly 2x, got %q", pred.Status)
		}
	})
}

func TestRisk(t *testing.T) {
	tests := []struct {
		name          string
		score         float64
		totalSpend    float64
		daysSinceLast int
		expected      domain.RiskLevel
	}{
		{"HighScoreAlwaysLow", 7, 10000, 400, domain.RiskLow},
		{"HighSpendRecentIsMedium", 3, 6000, 30, domain.RiskMedium},
		{"HighSpendStaleIsHigh", 3, 6000, 120, domain.RiskHigh},
		{"HighSpendAt90IsMedium", 3, 6000, 90, domain.RiskMedium},
		{"LowSpendRecentIsLow", 3, 200, 30, domain.RiskLow},
		{"LowSpendAgingIsMedium", 3, 200, 120, domain.RiskMedium},
		{"LowSpendStaleIsHigh", 3, 200, 200, domain.RiskHigh},
		{"At180IsMedium", 3, 200, 180, domain.RiskMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Risk(tt.score, tt.totalSpend, tt.daysSinceLast)
			if got != tt.expected {
				t.Errorf("Risk(%v, %v, %d) = %q, want %q",
					tt.score, tt.totalSpend, tt.daysSinceLast, got, tt.expected)
			}
		})
	}
}
