// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence. The triage
// pipeline itself keeps no state between batches; the repository is
// the boundary where finished batches and their claims are stored.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Batch results
	SaveBatchResult(ctx context.Context, tenantID string, result *BatchResult) error
	GetBatchResult(ctx context.Context, tenantID string, batchID string) (*BatchResult, error)

	// Individual claims from stored batches
	GetClaim(ctx context.Context, tenantID string, claimID string) (*Claim, error)
	GetClaimsByProvider(ctx context.Context, tenantID string, providerID string) ([]*Claim, error)

	// Flag rule configuration
	SaveFlagRule(ctx context.Context, tenantID string, rule *FlagRule) error
	GetFlagRule(ctx context.Context, tenantID string, ruleID string) (*FlagRule, error)
	ListFlagRules(ctx context.Context, tenantID string) ([]*FlagRule, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `yaml:"driver"`

	// SQLite specific
	SQLitePath string `yaml:"sqlitePath"`

	// PostgreSQL specific. PostgresDSN, when set, wins over the
	// individual fields.
	PostgresDSN      string `yaml:"postgresDsn"`
	PostgresHost     string `yaml:"postgresHost"`
	PostgresPort     int    `yaml:"postgresPort"`
	PostgresUser     string `yaml:"postgresUser"`
	PostgresPassword string `yaml:"postgresPassword"`
	PostgresDB       string `yaml:"postgresDb"`
	PostgresSSLMode  string `yaml:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}
