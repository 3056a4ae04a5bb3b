package domain

// Config holds the complete Harrier configuration.
type Config struct {
	// Server settings
	Server ServerConfig `yaml:"server"`

	// Tier determines which backing services are used
	Tier Tier `yaml:"tier"`

	// Triage holds the rule thresholds for the claims pipeline
	Triage TriageConfig `yaml:"triage"`

	// Component configurations
	Repository RepositoryConfig `yaml:"repository"`
	Cache      CacheConfig      `yaml:"cache"`
	EventBus   EventBusConfig   `yaml:"eventBus"`
	Reference  ReferenceConfig  `yaml:"reference"`
	Explainer  ExplainerConfig  `yaml:"explainer"`

	// FlagRules are optional CEL rules loaded at startup
	FlagRules []FlagRule `yaml:"flagRules"`

	// Observability
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// TriageConfig holds the thresholds recognized by the anomaly
// detector. All three affect only the anomaly stage.
type TriageConfig struct {
	// CostOutlierMultiplier flags a claim whose cost exceeds
	// multiplier x the procedure's average cost.
	CostOutlierMultiplier float64 `yaml:"costOutlierMultiplier"`

	// DuplicateWindowDays is the inclusive calendar-day window for
	// duplicate detection.
	DuplicateWindowDays int `yaml:"duplicateWindowDays"`

	// HighFrequencyThreshold is the per-provider claim count above
	// which the provider's claims in the batch are flagged.
	HighFrequencyThreshold int `yaml:"highFrequencyThreshold"`
}

// DefaultTriageConfig returns the reference thresholds.
func DefaultTriageConfig() TriageConfig {
	return TriageConfig{
		CostOutlierMultiplier:  2.5,
		DuplicateWindowDays:    3,
		HighFrequencyThreshold: 3,
	}
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`  // seconds
	WriteTimeout int    `yaml:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
	Endpoint    string `yaml:"endpoint"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + in-process cache + channel bus
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + Redis + NATS
	TierPro Tier = "pro"
)

// DefaultConfig returns a Community tier configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:   TierCommunity,
		Triage: DefaultTriageConfig(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // seconds
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// ProConfig returns a Pro tier configuration.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
