package scoring

import (
	"testing"

	"github.com/opensource-finance/heron/internal/domain"
)

func freq(v float64) *float64 { return &v }

func TestNew(t *testing.T) {
	t.Run("KnownProfiles", func(t *testing.T) {
		for _, p := range []domain.ScoringProfile{domain.ScoringBalanced, domain.ScoringValueWeighted} {
			if _, err := New(p, 100); err != nil {
				t.Errorf("New(%q) failed: %v", p, err)
			}
		}
	})

	t.Run("UnknownProfile", func(t *testing.T) {
		if _, err := New("vip", 100); err == nil {
			t.Error("expected error for unknown profile")
		}
	})

	t.Run("NegativeMinSpend", func(t *testing.T) {
		if _, err := New(domain.ScoringBalanced, -1); err == nil {
			t.Error("expected error for negative minSpend")
		}
	})
}

func TestScoreBalanced(t *testing.T) {
	scorer, err := New(domain.ScoringBalanced, 100)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		name     string
		in       Input
		expected float64
	}{
		{"NoPayments", Input{}, 0},
		{"SingleRecentSmallPayment", Input{
			TransactionCount: 1, TotalSpend: 50, DaysSinceLast: 10, HasPayments: true,
		}, 2}, // frequency 0, monetary 0, recency 2, interval 0
		{"MaxEverything", Input{
			TransactionCount: 12, TotalSpend: 8000, DaysSinceLast: 5,
			HasPayments: true, FrequencyDays: freq(30),
		}, 10},
		{"MidTier", Input{
			TransactionCount: 6, TotalSpend: 1200, DaysSinceLast: 60,
			HasPayments: true, FrequencyDays: freq(60),
		}, 6}, // 2 + 2 + 1 + 1
		{"SpendAt500Boundary", Input{
			TransactionCount: 2, TotalSpend: 500, DaysSinceLast: 200, HasPayments: true,
		}, 2}, // 1 + 1 + 0 + 0
		{"NilFrequencyNoIntervalPoints", Input{
			TransactionCount: 10, TotalSpend: 5000, DaysSinceLast: 30, HasPayments: true,
		}, 8}, // 3 + 3 + 2 + 0
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scorer.Score(tt.in); got != tt.expected {
				t.Errorf("Score() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestScoreValueWeighted(t *testing.T) {
	scorer, err := New(domain.ScoringValueWeighted, 100)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		name     string
		in       Input
		expected float64
	}{
		{"NoPayments", Input{}, 0},
		{"MaxEverything", Input{
			TransactionCount: 15, TotalSpend: 10000, DaysSinceLast: 10, HasPayments: true,
		}, 10}, // 3 + 4 + 3
		{"LowestMonetaryTierUsesMinSpend", Input{
			TransactionCount: 1, TotalSpend: 150, DaysSinceLast: 400, HasPayments: true,
		}, 1}, // 0 + 1 + 0
		{"BelowMinSpendNoMonetaryPoints", Input{
			TransactionCount: 1, TotalSpend: 50, DaysSinceLast: 400, HasPayments: true,
		}, 0},
		{"SixtyDayRecencyTier", Input{
			TransactionCount: 5, TotalSpend: 2000, DaysSinceLast: 45, HasPayments: true,
		}, 7}, // 2 + 3 + 2
		{"FrequencyIgnored", Input{
			TransactionCount: 5, TotalSpend: 2000, DaysSinceLast: 45,
			HasPayments: true, FrequencyDays: freq(10),
		}, 7}, // same as above; no interval band
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scorer.Score(tt.in); got != tt.expected {
				t.Errorf("Score() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestScoreBounds(t *testing.T) {
	counts := []int{0, 1, 2, 5, 10, 50}
	spends := []float64{0, 99, 100, 500, 1000, 5000, 100000}
	days := []int{0, 30, 31, 60, 61, 90, 91, 180, 365}
	freqs := []*float64{nil, freq(10), freq(45), freq(46), freq(90), freq(91)}

	for _, profile := range []domain.ScoringProfile{domain.ScoringBalanced, domain.ScoringValueWeighted} {
		scorer, err := New(profile, 100)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", profile, err)
		}

		for _, c := range counts {
			for _, s := range spends {
				for _, d := range days {
					for _, f := range freqs {
						in := Input{
							TransactionCount: c,
							TotalSpend:       s,
							DaysSinceLast:    d,
							HasPayments:      c > 0,
							FrequencyDays:    f,
						}
						got := scorer.Score(in)
						if got < 0 || got > 10 {
							t.Fatalf("%s: score out of [0,10]: %v for %+v", profile, got, in)
						}
					}
				}
			}
		}
	}
}
