package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations. Harrier uses
// it to memoize reference-data lookups and to hold rendered audit
// reports for fast re-delivery. Supports two-phase caching: local
// LRU (Community) + Redis (Pro). All methods require tenantID for
// strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetReport retrieves a cached rendered audit report.
	GetReport(ctx context.Context, tenantID string, batchID string) (string, error)

	// SetReport caches a rendered audit report for a batch.
	SetReport(ctx context.Context, tenantID string, batchID string, rendered string, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `yaml:"type"`

	// Local LRU cache settings (Community tier)
	LocalMaxSize int `yaml:"localMaxSize"`
	LocalTTL     int `yaml:"localTtl"` // seconds

	// Redis settings (Pro tier)
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDb"`

	// Two-phase settings
	EnableTwoPhase bool `yaml:"enableTwoPhase"` // If true, check local first, then Redis
}
