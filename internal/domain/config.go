package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the complete Heron configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Tier determines infrastructure choices
	Tier Tier `json:"tier" yaml:"tier"`

	// Analysis holds the engagement analysis parameters
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`

	// Outreach
	Notify   NotifyConfig   `json:"notify" yaml:"notify"`
	Schedule ScheduleConfig `json:"schedule" yaml:"schedule"`
}

// AnalysisConfig holds the caller-supplied engagement analysis parameters.
type AnalysisConfig struct {
	// RecentWindowMonths defines the recent-activity window (R).
	RecentWindowMonths int `json:"recentWindowMonths" yaml:"recentWindowMonths"`

	// HistoricalWindowMonths defines the preceding baseline window (H).
	// The historical cutoff sits R+H months back.
	HistoricalWindowMonths int `json:"historicalWindowMonths" yaml:"historicalWindowMonths"`

	// MinSpendThreshold gates both the recent-by-spend test and
	// historical-window inclusion.
	MinSpendThreshold float64 `json:"minSpendThreshold" yaml:"minSpendThreshold"`

	// ScoringProfile selects the band configuration. Exactly one profile
	// is in effect per run so the maximum score always sums to 10.
	ScoringProfile ScoringProfile `json:"scoringProfile" yaml:"scoringProfile"`
}

// ScoringProfile tags a self-consistent engagement score band configuration.
type ScoringProfile string

const (
	// ScoringBalanced: frequency 0-3, monetary 3-tier 0-3,
	// recency 2-tier 0-2, payment-interval 0-2.
	ScoringBalanced ScoringProfile = "balanced"

	// ScoringValueWeighted: frequency 0-3, monetary 4-tier 0-4,
	// recency 3-tier 0-3, no interval band.
	ScoringValueWeighted ScoringProfile = "value_weighted"
)

// Validate rejects inconsistent analysis parameters before any customer
// is scored.
func (c *AnalysisConfig) Validate() error {
	if c.RecentWindowMonths <= 0 {
		return fmt.Errorf("%w: recentWindowMonths must be positive, got %d", ErrInvalidConfig, c.RecentWindowMonths)
	}
	if c.HistoricalWindowMonths <= 0 {
		return fmt.Errorf("%w: historicalWindowMonths must be positive, got %d", ErrInvalidConfig, c.HistoricalWindowMonths)
	}
	if c.MinSpendThreshold < 0 {
		return fmt.Errorf("%w: minSpendThreshold must not be negative, got %v", ErrInvalidConfig, c.MinSpendThreshold)
	}
	switch c.ScoringProfile {
	case ScoringBalanced, ScoringValueWeighted:
	default:
		return fmt.Errorf("%w: unknown scoring profile %q", ErrInvalidConfig, c.ScoringProfile)
	}
	return nil
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"readTimeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
}

// NotifyConfig holds outreach mailer settings.
type NotifyConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	SMTPAddr     string `json:"smtpAddr" yaml:"smtpAddr"` // host:port
	SMTPUser     string `json:"smtpUser" yaml:"smtpUser"`
	SMTPPassword string `json:"smtpPassword" yaml:"smtpPassword"`
	From         string `json:"from" yaml:"from"`

	// DigestTo receives the report digest after each scheduled run.
	DigestTo []string `json:"digestTo" yaml:"digestTo"`
}

// ScheduleConfig holds the scheduled report generation settings.
type ScheduleConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// ReportCron is a cron expression, e.g. "0 6 * * *" for daily 06:00.
	ReportCron string `json:"reportCron" yaml:"reportCron"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + channels + in-process LRU.
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis.
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Analysis: AnalysisConfig{
			RecentWindowMonths:     3,
			HistoricalWindowMonths: 9,
			MinSpendThreshold:      100,
			ScoringProfile:         ScoringBalanced,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./heron.db",
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
			ServiceName: "heron",
		},
		Schedule: ScheduleConfig{
			Enabled:    false,
			ReportCron: "0 6 * * *",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "heron",
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

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Analysis.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
