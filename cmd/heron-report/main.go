// Heron - Customer engagement analytics for payment data.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

// One-shot report tool for analyzing exported payment data.
//
// Usage:
//   go run cmd/heron-report/main.go -csv /path/to/export.csv
//
// This tool:
//   1. Reads a payment export CSV (summary section + CUSTOMER DETAILS)
//   2. Scores each customer from the exported aggregates
//   3. Classifies customers into engagement segments
//   4. Writes the full engagement report as JSON
//
// Exports carry aggregates only, so cadence metrics (payment frequency,
// regularity, spending trend) are not available in this mode. Run the
// server against event-level payment data for the full report.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/engine"
	"github.com/opensource-finance/heron/internal/ingest"
	"github.com/opensource-finance/heron/internal/report"
)

func main() {
	csvPath := flag.String("csv", "", "Path to payment export CSV")
	outPath := flag.String("out", "", "Write report JSON to file (default stdout)")
	months := flag.Int("months", 3, "Recent activity window in months")
	history := flag.Int("history", 9, "Historical baseline window in months")
	minSpend := flag.Float64("min-spend", 100, "Minimum spend threshold")
	profile := flag.String("profile", "balanced", "Scoring profile: balanced or value_weighted")
	asOfFlag := flag.String("as-of", "", "Evaluation date as YYYY-MM-DD (default today)")
	compact := flag.Bool("compact", false, "Emit compact JSON instead of indented")
	quiet := flag.Bool("quiet", false, "Suppress the summary printed to stderr")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: heron-report -csv /path/to/export.csv [-out report.json]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	asOf := time.Now().UTC()
	if *asOfFlag != "" {
		t, err := time.Parse("2006-01-02", *asOfFlag)
		if err != nil {
			fatalf("invalid -as-of date %q: %v", *asOfFlag, err)
		}
		asOf = t
	}

	cfg := domain.AnalysisConfig{
		RecentWindowMonths:     *months,
		HistoricalWindowMonths: *history,
		MinSpendThreshold:      *minSpend,
		ScoringProfile:         domain.ScoringProfile(*profile),
	}

	eng, err := engine.New(cfg, 0)
	if err != nil {
		fatalf("invalid analysis parameters: %v", err)
	}
	builder, err := report.NewBuilder(cfg)
	if err != nil {
		fatalf("invalid analysis parameters: %v", err)
	}

	file, err := os.Open(*csvPath)
	if err != nil {
		fatalf("failed to open %s: %v", *csvPath, err)
	}
	records, err := ingest.ParseCSV(file)
	file.Close()
	if err != nil {
		fatalf("failed to parse %s: %v", *csvPath, err)
	}

	profiles := make([]*domain.CustomerProfile, 0, len(records))
	for _, rec := range records {
		p := rec.ToProfile()
		eng.ScoreAggregate(p, asOf)
		profiles = append(profiles, p)
	}
	domain.SortProfilesBySpend(profiles)

	r := builder.Build(profiles, nil, asOf)

	out := os.Stdout
	if *outPath != "" {
		out, err = os.Create(*outPath)
		if err != nil {
			fatalf("failed to create %s: %v", *outPath, err)
		}
		defer out.Close()
	}

	enc := json.NewEncoder(out)
	if !*compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(r); err != nil {
		fatalf("failed to write report: %v", err)
	}

	if !*quiet {
		printSummary(r, *csvPath)
	}
}

func printSummary(r *domain.Report, source string) {
	fmt.Fprintf(os.Stderr, "\nHeron engagement report (%s)\n", source)
	fmt.Fprintf(os.Stderr, "  Period:           %s\n", r.Metadata.ReportPeriod)
	fmt.Fprintf(os.Stderr, "  Customers:        %d\n", r.Metrics.TotalCustomers)
	fmt.Fprintf(os.Stderr, "  Total Revenue:    $%.2f\n", r.Metrics.TotalRevenue)
	fmt.Fprintf(os.Stderr, "  Active:           %d (%.1f%%)\n", r.Metrics.ActiveCustomers, r.Metrics.ActivePercentage)

	for _, label := range []string{domain.SegmentStable, domain.SegmentAttention, domain.SegmentCritical} {
		fmt.Fprintf(os.Stderr, "  %-18s%d\n", label+":", len(r.Segments[label]))
	}

	dm := r.DisengagementMetrics
	fmt.Fprintf(os.Stderr, "  Disengaged:       %d ($%.2f at risk)\n", dm.DisengagedCustomers, dm.TotalDisengagedValue)
	fmt.Fprintln(os.Stderr)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "heron-report: "+format+"\n", args...)
	os.Exit(1)
}
