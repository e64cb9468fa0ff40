// Package aggregate groups raw payment events into per-customer profiles.
package aggregate

import (
	"sort"

	"github.com/opensource-finance/heron/internal/domain"
)

// Builder accumulates payments and identities and produces profile
// skeletons: sorted history plus aggregate totals, with the derived
// analytics left unset. Builders start empty; there is no shared state
// between builds.
type Builder struct {
	identities map[string]domain.CustomerIdentity
	payments   map[string][]domain.Payment
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		identities: make(map[string]domain.CustomerIdentity),
		payments:   make(map[string][]domain.Payment),
	}
}

// AddIdentity registers a customer's display fields. Customers with an
// identity but no payments still get a profile.
func (b *Builder) AddIdentity(id domain.CustomerIdentity) {
	if id.CustomerID == "" {
		return
	}
	b.identities[id.CustomerID] = id
}

// Add validates and records one payment. Payments without a customer id
// aggregate under the anonymous customer. Duplicates are preserved
// verbatim; nothing is merged.
func (b *Builder) Add(p domain.Payment) error {
	if p.CustomerID == "" {
		p.CustomerID = domain.AnonymousCustomerID
	}
	if err := domain.ValidatePayment(&p); err != nil {
		return err
	}
	b.payments[p.CustomerID] = append(b.payments[p.CustomerID], p)
	return nil
}

// AddAll records a batch of payments. The first invalid payment aborts
// the batch; no partial state from a failed batch is observable because
// the caller discards the builder on error.
func (b *Builder) AddAll(payments []domain.Payment) error {
	for _, p := range payments {
		if err := b.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// Build produces one profile per distinct customer. Payment histories
// are sorted ascending by date; totals and last-payment fields come
// from the sorted history.
func (b *Builder) Build() []*domain.CustomerProfile {
	ids := make(map[string]struct{}, len(b.payments)+len(b.identities))
	for id := range b.payments {
		ids[id] = struct{}{}
	}
	for id := range b.identities {
		ids[id] = struct{}{}
	}

	profiles := make([]*domain.CustomerProfile, 0, len(ids))
	for id := range ids {
		profiles = append(profiles, b.buildOne(id))
	}

	// Deterministic order regardless of map iteration.
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].CustomerID < profiles[j].CustomerID
	})

	return profiles
}

func (b *Builder) buildOne(customerID string) *domain.CustomerProfile {
	profile := &domain.CustomerProfile{
		CustomerID: customerID,
	}

	if ident, ok := b.identities[customerID]; ok {
		profile.Email = ident.Email
		profile.Name = ident.Name
	}

	history := append([]domain.Payment(nil), b.payments[customerID]...)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Date.Before(history[j].Date)
	})

	profile.PaymentHistory = history
	profile.TransactionCount = len(history)

	if len(history) == 0 {
		return profile
	}

	var total float64
	for _, p := range history {
		total += p.Amount
	}

	last := history[len(history)-1]
	lastDate := last.Date

	profile.TotalSpend = total
	profile.AvgPaymentAmount = total / float64(len(history))
	profile.LastPaymentAmount = last.Amount
	profile.LastPaymentDate = &lastDate
	profile.LastPaymentMethod = last.Method

	return profile
}
