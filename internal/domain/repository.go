// Package domain defines the core types and interfaces for Heron.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Payment operations
	SavePayment(ctx context.Context, tenantID string, p *Payment) error
	SavePayments(ctx context.Context, tenantID string, payments []Payment) error
	GetPaymentsByCustomer(ctx context.Context, tenantID string, customerID string, since time.Time) ([]Payment, error)
	GetPaymentsSince(ctx context.Context, tenantID string, since time.Time) ([]Payment, error)

	// Customer identity operations
	SaveCustomerIdentity(ctx context.Context, tenantID string, id *CustomerIdentity) error
	GetCustomerIdentity(ctx context.Context, tenantID string, customerID string) (*CustomerIdentity, error)
	ListCustomerIdentities(ctx context.Context, tenantID string) ([]CustomerIdentity, error)

	// Outreach filter operations
	SaveFilterConfig(ctx context.Context, tenantID string, filter *FilterConfig) error
	GetFilterConfig(ctx context.Context, tenantID string, filterID string) (*FilterConfig, error)
	ListFilterConfigs(ctx context.Context, tenantID string) ([]*FilterConfig, error)
	DeleteFilterConfig(ctx context.Context, tenantID string, filterID string) error

	// Report snapshots. Saving a snapshot with Current set flips the
	// previous current snapshot into the archive.
	SaveReportSnapshot(ctx context.Context, tenantID string, snap *ReportSnapshot) error
	GetReportSnapshot(ctx context.Context, tenantID string, snapID string) (*ReportSnapshot, error)
	GetCurrentReport(ctx context.Context, tenantID string) (*ReportSnapshot, error)
	ListReportSnapshots(ctx context.Context, tenantID string, limit int) ([]*ReportSnapshot, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `json:"driver" yaml:"driver"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath" yaml:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost" yaml:"postgresHost"`
	PostgresPort     int    `json:"postgresPort" yaml:"postgresPort"`
	PostgresUser     string `json:"postgresUser" yaml:"postgresUser"`
	PostgresPassword string `json:"postgresPassword" yaml:"postgresPassword"`
	PostgresDB       string `json:"postgresDb" yaml:"postgresDb"`
	PostgresSSLMode  string `json:"postgresSslMode" yaml:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
}
