package config

import "time"

// Config represents the complete application configuration.
// Values resolve in order: built-in defaults, config file, LOGGATE_*
// environment variables, runtime overrides.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Quota   QuotaConfig   `mapstructure:"quota"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
	Debug   DebugConfig   `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// QuotaConfig seeds the escalation quota the first time a record is
// created. Later runs use the persisted record.
type QuotaConfig struct {
	// Name selects the persisted record; several hosts may share one store.
	Name string `mapstructure:"name"`

	// Limit is the maximum number of escalations per window.
	Limit int `mapstructure:"limit"`

	// WindowUnit is one of minute, hour, day.
	WindowUnit string `mapstructure:"window_unit"`

	// RemoteEnabled is the initial escalation master switch.
	RemoteEnabled bool `mapstructure:"remote_enabled"`

	// Backend is one of store (libsql), file (YAML under Dir), memory.
	Backend string `mapstructure:"backend"`

	// Dir holds quota files for the file backend.
	Dir string `mapstructure:"dir"`
}

// RemoteConfig configures the telemetry backend errors are escalated to.
type RemoteConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	DSN         string        `mapstructure:"dsn"`
	Environment string        `mapstructure:"environment"`
	Release     string        `mapstructure:"release"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Breaker     BreakerConfig `mapstructure:"breaker"`

	// RatePerSecond paces deliveries to the backend; 0 disables pacing.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
}

// BreakerConfig tunes the circuit breaker in front of the remote sink.
type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	MinRequests      uint32        `mapstructure:"min_requests"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
