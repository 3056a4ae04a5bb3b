// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-health/harrier/internal/domain"
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

// SaveBatchResult stores a finished batch and its claims with tenant
// isolation. The claims keep their submission order via the seq column.
func (r *SQLRepository) SaveBatchResult(ctx context.Context, tenantID string, result *domain.BatchResult) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if result.BatchID == "" {
		return fmt.Errorf("%w: batch ID is required", ErrInvalidInput)
	}

	report, _ := json.Marshal(result.Report)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	batchQuery := `
		INSERT INTO batches (
			id, tenant_id, report, rendered_report, approved, audited, elapsed_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, r.rebind(batchQuery),
		result.BatchID, tenantID, string(report), result.Rendered,
		result.Approved, result.Audited, result.ElapsedMs, time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	claimQuery := `
		INSERT INTO claims (
			batch_id, tenant_id, seq, claim_id, member_id, provider_id,
			procedure_code, diagnosis_code, cost, date_of_service, claim_type,
			category, intake_status, intake_reason,
			validation_status, validation_reason,
			anomaly_score, anomaly_reasons, anomaly_explanation, final_routing
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for seq, c := range result.Claims {
		reasons, _ := json.Marshal(c.AnomalyReasons)
		_, err = tx.ExecContext(ctx, r.rebind(claimQuery),
			result.BatchID, tenantID, seq,
			c.ClaimID, c.MemberID, c.ProviderID,
			c.ProcedureCode, c.DiagnosisCode, c.Cost, c.DateOfService, c.ClaimType,
			c.Category, c.IntakeStatus, c.IntakeReason,
			c.ValidationStatus, c.ValidationReason,
			c.AnomalyScore, string(reasons), c.AnomalyExplanation, c.FinalRouting,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetBatchResult retrieves a stored batch with its claims in
// submission order.
func (r *SQLRepository) GetBatchResult(ctx context.Context, tenantID string, batchID string) (*domain.BatchResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	batchQuery := `
		SELECT id, tenant_id, report, rendered_report, approved, audited, elapsed_ms
		FROM batches
		WHERE tenant_id = ? AND id = ?
	`

	var result domain.BatchResult
	var report string

	err := r.db.QueryRowContext(ctx, r.rebind(batchQuery), tenantID, batchID).Scan(
		&result.BatchID, &result.TenantID, &report, &result.Rendered,
		&result.Approved, &result.Audited, &result.ElapsedMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(report), &result.Report); err != nil {
		return nil, fmt.Errorf("failed to parse stored report: %w", err)
	}

	claimsQuery := `
		SELECT ` + claimColumns + `
		FROM claims
		WHERE tenant_id = ? AND batch_id = ?
		ORDER BY seq
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(claimsQuery), tenantID, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		result.Claims = append(result.Claims, *c)
	}

	return &result, rows.Err()
}

// GetClaim retrieves the most recently stored copy of a claim.
func (r *SQLRepository) GetClaim(ctx context.Context, tenantID string, claimID string) (*domain.Claim, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT ` + qualifiedClaimColumns + `
		FROM claims
		JOIN batches ON batches.id = claims.batch_id AND batches.tenant_id = claims.tenant_id
		WHERE claims.tenant_id = ? AND claims.claim_id = ?
		ORDER BY batches.created_at DESC, claims.seq DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, claimID)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetClaimsByProvider retrieves all stored claims for a provider.
func (r *SQLRepository) GetClaimsByProvider(ctx context.Context, tenantID string, providerID string) ([]*domain.Claim, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT ` + claimColumns + `
		FROM claims
		WHERE tenant_id = ? AND provider_id = ?
		ORDER BY batch_id, seq
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*domain.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}

	return claims, rows.Err()
}

// SaveFlagRule stores a flag rule with tenant isolation.
func (r *SQLRepository) SaveFlagRule(ctx context.Context, tenantID string, rule *domain.FlagRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO flag_rules (
			id, tenant_id, name, description, expression, tag, severity, fragment, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			tag = excluded.tag,
			severity = excluded.severity,
			fragment = excluded.fragment,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Expression, rule.Tag, rule.Severity, rule.Fragment, enabled,
		now, now,
	)
	return err
}

// GetFlagRule retrieves a flag rule with tenant isolation.
func (r *SQLRepository) GetFlagRule(ctx context.Context, tenantID string, ruleID string) (*domain.FlagRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, expression, tag, severity, fragment, enabled
		FROM flag_rules
		WHERE tenant_id = ? AND id = ?
	`

	var rule domain.FlagRule
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
		&rule.Expression, &rule.Tag, &rule.Severity, &rule.Fragment, &enabled,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	return &rule, nil
}

// ListFlagRules retrieves all enabled flag rules for a tenant.
func (r *SQLRepository) ListFlagRules(ctx context.Context, tenantID string) ([]*domain.FlagRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, expression, tag, severity, fragment, enabled
		FROM flag_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.FlagRule
	for rows.Next() {
		var rule domain.FlagRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
			&rule.Expression, &rule.Tag, &rule.Severity, &rule.Fragment, &enabled,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

const claimColumns = `claim_id, member_id, provider_id,
		   procedure_code, diagnosis_code, cost, date_of_service, claim_type,
		   category, intake_status, intake_reason,
		   validation_status, validation_reason,
		   anomaly_score, anomaly_reasons, anomaly_explanation, final_routing`

const qualifiedClaimColumns = `claims.claim_id, claims.member_id, claims.provider_id,
		   claims.procedure_code, claims.diagnosis_code, claims.cost, claims.date_of_service, claims.claim_type,
		   claims.category, claims.intake_status, claims.intake_reason,
		   claims.validation_status, claims.validation_reason,
		   claims.anomaly_score, claims.anomaly_reasons, claims.anomaly_explanation, claims.final_routing`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanClaim(s scanner) (*domain.Claim, error) {
	var c domain.Claim
	var reasons string

	err := s.Scan(
		&c.ClaimID, &c.MemberID, &c.ProviderID,
		&c.ProcedureCode, &c.DiagnosisCode, &c.Cost, &c.DateOfService, &c.ClaimType,
		&c.Category, &c.IntakeStatus, &c.IntakeReason,
		&c.ValidationStatus, &c.ValidationReason,
		&c.AnomalyScore, &reasons, &c.AnomalyExplanation, &c.FinalRouting,
	)
	if err != nil {
		return nil, err
	}

	if reasons != "" {
		json.Unmarshal([]byte(reasons), &c.AnomalyReasons)
	}

	return &c, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

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
