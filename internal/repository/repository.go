// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/heron/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SavePayment stores a payment with tenant isolation.
func (r *SQLRepository) SavePayment(ctx context.Context, tenantID string, p *domain.Payment) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if err := domain.ValidatePayment(p); err != nil {
		return err
	}

	query := `
		INSERT INTO payments (
			id, tenant_id, customer_id, amount, currency, method, paid_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		uuid.NewString(), tenantID, p.CustomerID,
		p.Amount, p.Currency, p.Method,
		p.Date, createdAt,
	)
	return err
}

// SavePayments stores a batch of payments in a single transaction.
// The batch is all-or-nothing: one invalid payment rolls back the rest.
func (r *SQLRepository) SavePayments(ctx context.Context, tenantID string, payments []domain.Payment) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := r.rebind(`
		INSERT INTO payments (
			id, tenant_id, customer_id, amount, currency, method, paid_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range payments {
		p := &payments[i]
		if err := domain.ValidatePayment(p); err != nil {
			return err
		}

		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(), tenantID, p.CustomerID,
			p.Amount, p.Currency, p.Method,
			p.Date, createdAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetPaymentsByCustomer retrieves a customer's payments since a cutoff,
// oldest first.
func (r *SQLRepository) GetPaymentsByCustomer(ctx context.Context, tenantID string, customerID string, since time.Time) ([]domain.Payment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT customer_id, tenant_id, amount, currency, method, paid_at, created_at
		FROM payments
		WHERE tenant_id = ? AND customer_id = ? AND paid_at >= ?
		ORDER BY paid_at ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, customerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPayments(rows)
}

// GetPaymentsSince retrieves every tenant payment since a cutoff,
// oldest first.
func (r *SQLRepository) GetPaymentsSince(ctx context.Context, tenantID string, since time.Time) ([]domain.Payment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT customer_id, tenant_id, amount, currency, method, paid_at, created_at
		FROM payments
		WHERE tenant_id = ? AND paid_at >= ?
		ORDER BY paid_at ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPayments(rows)
}

func scanPayments(rows *sql.Rows) ([]domain.Payment, error) {
	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		var currency sql.NullString

		if err := rows.Scan(
			&p.CustomerID, &p.TenantID,
			&p.Amount, &currency, &p.Method,
			&p.Date, &p.CreatedAt,
		); err != nil {
			return nil, err
		}

		p.Currency = currency.String
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// SaveCustomerIdentity upserts a customer's display fields.
func (r *SQLRepository) SaveCustomerIdentity(ctx context.Context, tenantID string, id *domain.CustomerIdentity) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if id == nil || id.CustomerID == "" {
		return fmt.Errorf("%w: customerID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO customers (customer_id, tenant_id, email, name, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(customer_id, tenant_id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		id.CustomerID, tenantID, id.Email, id.Name, time.Now().UTC(),
	)
	return err
}

// GetCustomerIdentity retrieves a customer's display fields.
func (r *SQLRepository) GetCustomerIdentity(ctx context.Context, tenantID string, customerID string) (*domain.CustomerIdentity, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT customer_id, email, name
		FROM customers
		WHERE tenant_id = ? AND customer_id = ?
	`

	var id domain.CustomerIdentity
	var email, name sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, customerID).Scan(
		&id.CustomerID, &email, &name,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	id.Email = email.String
	id.Name = name.String

	return &id, nil
}

// ListCustomerIdentities retrieves all customer identities for a tenant.
func (r *SQLRepository) ListCustomerIdentities(ctx context.Context, tenantID string) ([]domain.CustomerIdentity, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT customer_id, email, name
		FROM customers
		WHERE tenant_id = ?
		ORDER BY customer_id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []domain.CustomerIdentity
	for rows.Next() {
		var id domain.CustomerIdentity
		var email, name sql.NullString

		if err := rows.Scan(&id.CustomerID, &email, &name); err != nil {
			return nil, err
		}

		id.Email = email.String
		id.Name = name.String
		identities = append(identities, id)
	}

	return identities, rows.Err()
}

// SaveFilterConfig upserts an outreach filter with tenant isolation.
func (r *SQLRepository) SaveFilterConfig(ctx context.Context, tenantID string, filter *domain.FilterConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if filter == nil || filter.ID == "" {
		return fmt.Errorf("%w: filter id is required", ErrInvalidInput)
	}

	enabled := 0
	if filter.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()
	createdAt := filter.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO filter_configs (
			id, tenant_id, name, description, expression, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		filter.ID, tenantID, filter.Name, filter.Description,
		filter.Expression, enabled, createdAt, now,
	)
	return err
}

// GetFilterConfig retrieves an outreach filter with tenant isolation.
func (r *SQLRepository) GetFilterConfig(ctx context.Context, tenantID string, filterID string) (*domain.FilterConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, expression, enabled, created_at, updated_at
		FROM filter_configs
		WHERE tenant_id = ? AND id = ?
	`

	var cfg domain.FilterConfig
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, filterID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Expression, &enabled, &cfg.CreatedAt, &cfg.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1

	return &cfg, nil
}

// ListFilterConfigs retrieves all outreach filters for a tenant.
func (r *SQLRepository) ListFilterConfigs(ctx context.Context, tenantID string) ([]*domain.FilterConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, expression, enabled, created_at, updated_at
		FROM filter_configs
		WHERE tenant_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.FilterConfig
	for rows.Next() {
		var cfg domain.FilterConfig
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Expression, &enabled, &cfg.CreatedAt, &cfg.UpdatedAt,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// DeleteFilterConfig removes an outreach filter.
func (r *SQLRepository) DeleteFilterConfig(ctx context.Context, tenantID string, filterID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		DELETE FROM filter_configs
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, filterID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveReportSnapshot stores a report snapshot. When the snapshot is
// current, the previous current snapshot for the tenant is archived in
// the same transaction.
func (r *SQLRepository) SaveReportSnapshot(ctx context.Context, tenantID string, snap *domain.ReportSnapshot) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if snap == nil || snap.Report == nil {
		return fmt.Errorf("%w: snapshot report is required", ErrInvalidInput)
	}

	report, err := json.Marshal(snap.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	id := snap.ID
	if id == "" {
		id = uuid.NewString()
		snap.ID = id
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if snap.Current {
		archive := `
			UPDATE report_snapshots
			SET is_current = 0
			WHERE tenant_id = ? AND is_current = 1
		`
		if _, err := tx.ExecContext(ctx, r.rebind(archive), tenantID); err != nil {
			return err
		}
	}

	current := 0
	if snap.Current {
		current = 1
	}

	insert := `
		INSERT INTO report_snapshots (id, tenant_id, generated_at, is_current, report)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, r.rebind(insert),
		id, tenantID, snap.GeneratedAt, current, string(report),
	); err != nil {
		return err
	}

	return tx.Commit()
}

// GetReportSnapshot retrieves a report snapshot by ID.
func (r *SQLRepository) GetReportSnapshot(ctx context.Context, tenantID string, snapID string) (*domain.ReportSnapshot, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, generated_at, is_current, report
		FROM report_snapshots
		WHERE tenant_id = ? AND id = ?
	`

	return r.scanSnapshot(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, snapID))
}

// GetCurrentReport retrieves the tenant's current report snapshot.
func (r *SQLRepository) GetCurrentReport(ctx context.Context, tenantID string) (*domain.ReportSnapshot, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, generated_at, is_current, report
		FROM report_snapshots
		WHERE tenant_id = ? AND is_current = 1
	`

	return r.scanSnapshot(r.db.QueryRowContext(ctx, r.rebind(query), tenantID))
}

// ListReportSnapshots retrieves snapshot history, newest first.
func (r *SQLRepository) ListReportSnapshots(ctx context.Context, tenantID string, limit int) ([]*domain.ReportSnapshot, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, tenant_id, generated_at, is_current, report
		FROM report_snapshots
		WHERE tenant_id = ?
		ORDER BY generated_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*domain.ReportSnapshot
	for rows.Next() {
		var snap domain.ReportSnapshot
		var current int
		var report string

		if err := rows.Scan(
			&snap.ID, &snap.TenantID, &snap.GeneratedAt, &current, &report,
		); err != nil {
			return nil, err
		}

		snap.Current = current == 1
		if err := json.Unmarshal([]byte(report), &snap.Report); err != nil {
			return nil, fmt.Errorf("failed to parse report %s: %w", snap.ID, err)
		}
		snaps = append(snaps, &snap)
	}

	return snaps, rows.Err()
}

func (r *SQLRepository) scanSnapshot(row *sql.Row) (*domain.ReportSnapshot, error) {
	var snap domain.ReportSnapshot
	var current int
	var report string

	err := row.Scan(&snap.ID, &snap.TenantID, &snap.GeneratedAt, &current, &report)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	snap.Current = current == 1
	if err := json.Unmarshal([]byte(report), &snap.Report); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", snap.ID, err)
	}

	return &snap, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
