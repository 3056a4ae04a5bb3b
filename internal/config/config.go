// Package config loads the Harrier configuration from defaults, an
// optional YAML file and environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/opensource-health/harrier/internal/domain"
)

const (
	configPathEnv  = "HARRIER_CONFIG"
	tierEnv        = "HARRIER_TIER"
	portEnv        = "HARRIER_PORT"
	debugEnv       = "HARRIER_DEBUG"
	sqlitePathEnv  = "HARRIER_SQLITE_PATH"
	postgresDSNEnv = "HARRIER_POSTGRES_DSN"
	redisAddrEnv   = "HARRIER_REDIS_ADDR"
	natsURLEnv     = "HARRIER_NATS_URL"
	referenceEnv   = "HARRIER_REFERENCE_FILE"
	llmAPIKeyEnv   = "HARRIER_LLM_API_KEY"
	llmModelEnv    = "HARRIER_LLM_MODEL"
	llmEndpointEnv = "HARRIER_LLM_ENDPOINT"
)

// Load builds the effective configuration. Tier selection happens
// first so the file and environment override the right baseline.
func Load() (*domain.Config, error) {
	cfg := domain.DefaultConfig()
	if os.Getenv(tierEnv) == string(domain.TierPro) {
		cfg = domain.ProConfig()
	}

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv(portEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if os.Getenv(debugEnv) == "true" {
		cfg.Logging.Level = "debug"
	}
	if v := os.Getenv(sqlitePathEnv); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv(postgresDSNEnv); v != "" {
		cfg.Repository.PostgresDSN = v
	}
	if v := os.Getenv(redisAddrEnv); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv(natsURLEnv); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv(referenceEnv); v != "" {
		cfg.Reference.File = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		cfg.Explainer.APIKey = v
		cfg.Explainer.Enabled = true
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		cfg.Explainer.Model = v
	}
	if v := os.Getenv(llmEndpointEnv); v != "" {
		cfg.Explainer.Endpoint = v
	}
}

func validate(cfg *domain.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Triage.CostOutlierMultiplier <= 0 {
		cfg.Triage.CostOutlierMultiplier = domain.DefaultTriageConfig().CostOutlierMultiplier
	}
	if cfg.Triage.DuplicateWindowDays <= 0 {
		cfg.Triage.DuplicateWindowDays = domain.DefaultTriageConfig().DuplicateWindowDays
	}
	if cfg.Triage.HighFrequencyThreshold <= 0 {
		cfg.Triage.HighFrequencyThreshold = domain.DefaultTriageConfig().HighFrequencyThreshold
	}
	for i, r := range cfg.FlagRules {
		if r.ID == "" {
			return fmt.Errorf("flag rule %d has no id", i)
		}
		if r.Expression == "" {
			return fmt.Errorf("flag rule %s has no expression", r.ID)
		}
	}
	return nil
}
