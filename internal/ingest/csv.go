// Package ingest parses exported customer payment data into analyzable
// records.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// detailsMarker opens the per-customer section of a payment export.
// Everything above it is summary statistics and is skipped.
const detailsMarker = "CUSTOMER DETAILS"

// dateLayout is the export's last-payment date format.
const dateLayout = "2006-01-02"

// Record is one customer row from a payment export. It carries
// aggregates only; no event-level history survives the export.
type Record struct {
	Rank              int
	CustomerID        string
	Email             string
	Name              string
	TotalSpend        float64
	TransactionCount  int
	LastPaymentAmount float64
	LastPaymentDate   *time.Time
	LastPaymentMethod string
}

// ParseCSV reads a payment export and returns its customer records.
// The export begins with summary statistics; rows are only read after
// the CUSTOMER DETAILS marker and its header line. A reader without
// the marker is rejected.
func ParseCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	// Scan past the summary section to the marker.
	found := false
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read export: %w", err)
		}
		if len(row) > 0 && strings.TrimSpace(row[0]) == detailsMarker {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("export is missing the %s section", detailsMarker)
	}

	// Header row follows the marker.
	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("export has no customer header row: %w", err)
	}

	var records []Record
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read export: %w", err)
		}
		line++

		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("customer row %d: %w", line, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseRow(row []string) (Record, error) {
	if len(row) < 9 {
		return Record{}, fmt.Errorf("expected 9 columns, got %d", len(row))
	}

	rank, err := strconv.Atoi(strings.TrimSpace(row[0]))
	if err != nil {
		return Record{}, fmt.Errorf("invalid rank %q", row[0])
	}

	total, err := parseAmount(row[4])
	if err != nil {
		return Record{}, fmt.Errorf("invalid total spend %q", row[4])
	}

	count, err := strconv.Atoi(strings.TrimSpace(row[5]))
	if err != nil {
		return Record{}, fmt.Errorf("invalid transaction count %q", row[5])
	}

	lastAmount, err := parseAmount(row[6])
	if err != nil {
		return Record{}, fmt.Errorf("invalid last payment amount %q", row[6])
	}

	rec := Record{
		Rank:              rank,
		CustomerID:        strings.TrimSpace(row[1]),
		Email:             strings.TrimSpace(row[2]),
		Name:              strings.TrimSpace(row[3]),
		TotalSpend:        total,
		TransactionCount:  count,
		LastPaymentAmount: lastAmount,
		LastPaymentMethod: strings.TrimSpace(row[8]),
	}
	if rec.CustomerID == "" {
		rec.CustomerID = domain.AnonymousCustomerID
	}

	if d := strings.TrimSpace(row[7]); d != "" && d != "N/A" {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			return Record{}, fmt.Errorf("invalid last payment date %q", row[7])
		}
		rec.LastPaymentDate = &t
	}

	return rec, nil
}

// parseAmount strips currency formatting ($ and thousands separators)
// from an export amount.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "N/A" {
		return 0, nil
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		// A blank cell is missing data, not zero spend.
		return 0, fmt.Errorf("empty amount")
	}
	return strconv.ParseFloat(s, 64)
}

// ToProfile lifts an export record into an aggregate-only customer
// profile. Cadence fields stay at their no-data defaults; the caller
// scores the profile from aggregates.
func (r Record) ToProfile() *domain.CustomerProfile {
	p := &domain.CustomerProfile{
		CustomerID:        r.CustomerID,
		Email:             r.Email,
		Name:              r.Name,
		TotalSpend:        r.TotalSpend,
		TransactionCount:  r.TransactionCount,
		LastPaymentAmount: r.LastPaymentAmount,
		LastPaymentDate:   r.LastPaymentDate,
		LastPaymentMethod: r.LastPaymentMethod,
	}
	if r.TransactionCount > 0 {
		p.AvgPaymentAmount = r.TotalSpend / float64(r.TransactionCount)
	}
	return p
}
