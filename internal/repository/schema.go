package repository

// Schema definitions for the Heron database.
// Compatible with both SQLite and PostgreSQL.

const schemaPayments = `
CREATE TABLE IF NOT EXISTS payments (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT,
    method TEXT NOT NULL,
    paid_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payments_tenant ON payments(tenant_id);
CREATE INDEX IF NOT EXISTS idx_payments_customer ON payments(tenant_id, customer_id);
CREATE INDEX IF NOT EXISTS idx_payments_paid_at ON payments(tenant_id, paid_at);
`

const schemaCustomers = `
CREATE TABLE IF NOT EXISTS customers (
    customer_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    email TEXT,
    name TEXT,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (customer_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_customers_tenant ON customers(tenant_id);
`

const schemaFilterConfigs = `
CREATE TABLE IF NOT EXISTS filter_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_filter_configs_tenant ON filter_configs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_filter_configs_enabled ON filter_configs(tenant_id, enabled);
`

// schemaReportSnapshots stores full reports as JSON blobs. At most one
// snapshot per tenant carries is_current = 1.
const schemaReportSnapshots = `
CREATE TABLE IF NOT EXISTS report_snapshots (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    generated_at TIMESTAMP NOT NULL,
    is_current INTEGER NOT NULL DEFAULT 0,
    report TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_report_snapshots_tenant ON report_snapshots(tenant_id);
CREATE INDEX IF NOT EXISTS idx_report_snapshots_current ON report_snapshots(tenant_id, is_current);
CREATE INDEX IF NOT EXISTS idx_report_snapshots_generated ON report_snapshots(tenant_id, generated_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaPayments,
		schemaCustomers,
		schemaFilterConfigs,
		schemaReportSnapshots,
	}
}
