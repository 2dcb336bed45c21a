// Package config provides centralized configuration management for loggate.
package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/loggate/loggate/internal/appid"
	"github.com/loggate/loggate/internal/core"
)

// Quota backends
const (
	BackendStore  = "store"
	BackendFile   = "file"
	BackendMemory = "memory"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex

	configFile string
	usedFile   string
)

// SetConfigFile pins the config file used by Load. An empty path restores
// discovery under the XDG config directory and ./config.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = strings.TrimSpace(path)
}

// Load resolves configuration from defaults, an optional YAML config file,
// environment variables and runtime overrides. Override keys are dotted
// paths such as "quota.limit".
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	identity, err := appid.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load app identity: %w", err)
	}

	v := viper.New()
	SetDefaults(v)

	configMu.RLock()
	explicit := configFile
	configMu.RUnlock()

	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		if dir := gfconfig.GetAppConfigDir(identity.ConfigName); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(strings.TrimSuffix(identity.EnvPrefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for _, overrides := range runtimeOverrides {
		for key, value := range overrides {
			v.Set(key, value)
		}
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	if strings.TrimSpace(cfg.Quota.Dir) == "" {
		cfg.Quota.Dir = DefaultQuotaDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = cfg
	usedFile = v.ConfigFileUsed()
	configMu.Unlock()

	return cfg, nil
}

// SetDefaults registers every configuration key with its default value.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Quota defaults (first-time initialization only)
	v.SetDefault("quota.name", core.DefaultQuotaName)
	v.SetDefault("quota.limit", 20)
	v.SetDefault("quota.window_unit", string(core.WindowDay))
	v.SetDefault("quota.remote_enabled", true)
	v.SetDefault("quota.backend", BackendStore)
	v.SetDefault("quota.dir", "")

	// Remote telemetry defaults
	v.SetDefault("remote.endpoint", "")
	v.SetDefault("remote.dsn", "")
	v.SetDefault("remote.environment", "production")
	v.SetDefault("remote.release", "")
	v.SetDefault("remote.timeout", "5s")
	v.SetDefault("remote.breaker.max_requests", 1)
	v.SetDefault("remote.breaker.interval", "60s")
	v.SetDefault("remote.breaker.timeout", "60s")
	v.SetDefault("remote.breaker.failure_threshold", 0.6)
	v.SetDefault("remote.breaker.min_requests", 5)
	v.SetDefault("remote.rate_per_second", 0)
	v.SetDefault("remote.burst", 5)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Debug defaults
	v.SetDefault("debug.enabled", false)
}

// Validate rejects configuration the gateway cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}
	if c.Quota.Limit <= 0 {
		return fmt.Errorf("quota.limit must be positive, got %d", c.Quota.Limit)
	}
	if _, err := core.ParseWindowUnit(c.Quota.WindowUnit); err != nil {
		return fmt.Errorf("quota.window_unit: %w", err)
	}
	switch c.Quota.Backend {
	case BackendStore, BackendFile, BackendMemory:
	default:
		return fmt.Errorf("quota.backend must be one of store, file, memory, got %q", c.Quota.Backend)
	}
	if strings.TrimSpace(c.Quota.Name) == "" {
		return errors.New("quota.name is required")
	}
	if c.Remote.RatePerSecond < 0 {
		return fmt.Errorf("remote.rate_per_second must not be negative, got %v", c.Remote.RatePerSecond)
	}
	if c.Remote.Breaker.FailureThreshold < 0 || c.Remote.Breaker.FailureThreshold > 1 {
		return fmt.Errorf("remote.breaker.failure_threshold must be within [0,1], got %v", c.Remote.Breaker.FailureThreshold)
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// ConfigFileUsed returns the config file read by the last Load, or "" when
// only defaults and environment were used.
func ConfigFileUsed() string {
	configMu.RLock()
	defer configMu.RUnlock()
	return usedFile
}

// DefaultStorePath returns the default libsql database location.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(appid.ConfigName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + appid.BinaryName + ".db"
	}
	return filepath.Join(dataDir, appid.BinaryName+".db")
}

// DefaultQuotaDir returns the default directory for the file backend.
func DefaultQuotaDir() string {
	dataDir := gfconfig.GetAppDataDir(appid.ConfigName)
	if strings.TrimSpace(dataDir) == "" {
		return "./quota"
	}
	return filepath.Join(dataDir, "quota")
}
