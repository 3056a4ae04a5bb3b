package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaBatches = `
CREATE TABLE IF NOT EXISTS batches (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    report TEXT NOT NULL,
    rendered_report TEXT NOT NULL,
    approved INTEGER NOT NULL,
    audited INTEGER NOT NULL,
    elapsed_ms INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_batches_tenant ON batches(tenant_id);
CREATE INDEX IF NOT EXISTS idx_batches_created ON batches(tenant_id, created_at);
`

const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    batch_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    claim_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    provider_id TEXT NOT NULL,
    procedure_code TEXT NOT NULL,
    diagnosis_code TEXT NOT NULL,
    cost INTEGER NOT NULL,
    date_of_service TEXT NOT NULL,
    claim_type TEXT NOT NULL,
    category TEXT NOT NULL,
    intake_status TEXT NOT NULL,
    intake_reason TEXT,
    validation_status TEXT NOT NULL,
    validation_reason TEXT,
    anomaly_score INTEGER NOT NULL,
    anomaly_reasons TEXT,
    anomaly_explanation TEXT,
    final_routing TEXT NOT NULL,
    PRIMARY KEY (batch_id, tenant_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_claims_tenant ON claims(tenant_id);
CREATE INDEX IF NOT EXISTS idx_claims_claim ON claims(tenant_id, claim_id);
CREATE INDEX IF NOT EXISTS idx_claims_provider ON claims(tenant_id, provider_id);
CREATE INDEX IF NOT EXISTS idx_claims_routing ON claims(tenant_id, final_routing);
`

const schemaFlagRules = `
CREATE TABLE IF NOT EXISTS flag_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    tag TEXT NOT NULL,
    severity INTEGER NOT NULL,
    fragment TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_flag_rules_tenant ON flag_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_flag_rules_enabled ON flag_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaBatches,
		schemaClaims,
		schemaFlagRules,
	}
}
