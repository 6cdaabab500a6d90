package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the complete Kestrel configuration.
type Config struct {
	// Screening pipeline tuning
	Screening ScreeningConfig `yaml:"screening"`

	// Ingest filtering
	Ingest IngestConfig `yaml:"ingest"`

	// Component configurations
	Archive  ArchiveConfig  `yaml:"archive"`
	Cache    CacheConfig    `yaml:"cache"`
	EventBus EventBusConfig `yaml:"event_bus"`

	// Operational HTTP endpoint
	Ops OpsConfig `yaml:"ops"`

	// Observability
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ScreeningConfig tunes the screening pipeline.
type ScreeningConfig struct {
	// MaxWorkers bounds the typology detector pool. Zero or negative
	// means one worker per detector.
	MaxWorkers int `yaml:"max_workers"`

	// TimeoutSeconds caps a run when the caller's context carries no
	// deadline. Zero disables the cap.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// ReportCacheTTLSeconds controls how long finished reports stay
	// cached under their input digest. Zero disables report caching.
	ReportCacheTTLSeconds int `yaml:"report_cache_ttl_seconds"`

	// CaseWorkers bounds concurrent case screenings in the batch
	// worker.
	CaseWorkers int `yaml:"case_workers"`
}

// IngestConfig tunes normalization.
type IngestConfig struct {
	// Filter is an optional CEL expression evaluated against each
	// record that survives normalization. Records where it yields
	// false are dropped before screening. Empty keeps everything.
	Filter string `yaml:"filter"`
}

// OpsConfig holds the operational HTTP server settings.
type OpsConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Profile selects a deployment shape.
type Profile string

const (
	// ProfileStandalone runs on SQLite, an in-process cache, and Go
	// channels. Single binary, no external services.
	ProfileStandalone Profile = "standalone"

	// ProfileDistributed runs on PostgreSQL, Redis, and NATS.
	ProfileDistributed Profile = "distributed"
)

// DefaultConfig returns the standalone configuration.
func DefaultConfig() *Config {
	return &Config{
		Screening: ScreeningConfig{
			MaxWorkers:            4,
			ReportCacheTTLSeconds: 3600,
			CaseWorkers:           4,
		},
		Archive: ArchiveConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Ops: OpsConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// DistributedConfig returns a configuration wired for PostgreSQL,
// Redis, and NATS. Set KESTREL_PROFILE=distributed to select it.
func DistributedConfig() *Config {
	cfg := DefaultConfig()
	cfg.Archive = ArchiveConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       60,
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

// ConfigForProfile returns the base configuration for a profile name.
// Unknown names fall back to standalone.
func ConfigForProfile(profile string) *Config {
	if Profile(profile) == ProfileDistributed {
		return DistributedConfig()
	}
	return DefaultConfig()
}

// LoadConfig reads a YAML configuration file, expanding ${VAR}
// references against the environment before parsing. The file is
// applied on top of the profile base selected by KESTREL_PROFILE.
// An empty path returns the profile base unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := ConfigForProfile(os.Getenv("KESTREL_PROFILE"))
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
