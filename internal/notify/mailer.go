// Package notify sends follow-up and digest emails for at-risk
// customers.
package notify

import (
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/opensource-finance/heron/internal/domain"
)

// Mailer sends outreach emails via SMTP.
type Mailer struct {
	cfg  domain.NotifyConfig
	host string
}

// NewMailer creates a mailer from configuration. A disabled or
// address-less configuration yields no mailer.
func NewMailer(cfg domain.NotifyConfig) (*Mailer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.SMTPAddr == "" {
		return nil, fmt.Errorf("notify: smtp address is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("notify: from address is required")
	}

	host, _, err := net.SplitHostPort(cfg.SMTPAddr)
	if err != nil {
		return nil, fmt.Errorf("notify: invalid smtp address %q: %w", cfg.SMTPAddr, err)
	}

	return &Mailer{cfg: cfg, host: host}, nil
}

// SendFollowUp emails the account team about a critical-segment
// customer. Customers without an email on file are skipped.
func (m *Mailer) SendFollowUp(p *domain.CustomerProfile) error {
	if p.Email == "" {
		slog.Debug("skipping follow-up email, no address on file",
			"customer_id", p.CustomerID,
		)
		return nil
	}

	name := p.Name
	if name == "" {
		name = p.CustomerID
	}

	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{p.Email}
	e.Subject = "We'd love to hear from you"

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"It has been %d days since your last payment with us. "+
			"We value your business and want to make sure everything is working for you.\n\n"+
			"If there is anything we can help with, just reply to this email.\n",
		name, p.DaysSinceLastPayment,
	)
	body += "\nBest regards,\nThe Heron Team"
	e.Text = []byte(body)

	if err := m.send(e); err != nil {
		return fmt.Errorf("failed to send follow-up email: %w", err)
	}

	slog.Info("follow-up email sent",
		"customer_id", p.CustomerID,
		"to", p.Email,
	)
	return nil
}

// SendDigest emails a report summary to the given recipients.
func (m *Mailer) SendDigest(to []string, r *domain.Report) error {
	if len(to) == 0 {
		return nil
	}

	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = to
	e.Subject = fmt.Sprintf("Engagement report, %s", r.Metadata.GeneratedAt.Format("2006-01-02"))

	var b strings.Builder
	fmt.Fprintf(&b, "Engagement report for the %s period.\n\n", strings.ToLower(r.Metadata.ReportPeriod))
	fmt.Fprintf(&b, "Total customers:  %d\n", r.Metrics.TotalCustomers)
	fmt.Fprintf(&b, "Active customers: %d (%.1f%%)\n", r.Metrics.ActiveCustomers, r.Metrics.ActivePercentage)
	fmt.Fprintf(&b, "Total revenue:    $%.2f\n\n", r.Metrics.TotalRevenue)

	for _, label := range []string{domain.SegmentStable, domain.SegmentAttention, domain.SegmentCritical} {
		fmt.Fprintf(&b, "%-20s %d customers\n", label+":", len(r.Segments[label]))
	}

	if n := len(r.Disengaged); n > 0 {
		fmt.Fprintf(&b, "\n%d customers need re-engagement outreach ($%.2f at stake).\n",
			n, r.DisengagementMetrics.TotalDisengagedValue)
	}

	b.WriteString("\nBest regards,\nThe Heron Team")
	e.Text = []byte(b.String())

	if err := m.send(e); err != nil {
		return fmt.Errorf("failed to send digest email: %w", err)
	}

	slog.Info("digest email sent",
		"recipients", len(to),
	)
	return nil
}

func (m *Mailer) send(e *email.Email) error {
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPassword, m.host)
	}
	return e.Send(m.cfg.SMTPAddr, auth)
}
