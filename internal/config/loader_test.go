package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps user config and data directories out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	SetConfigFile("")
	t.Cleanup(func() { SetConfigFile("") })
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		isolate(t)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify server defaults
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		// Verify store defaults
		assert.Equal(t, "libsql", cfg.Store.Driver)
		expectedStorePath := filepath.Join(gfconfig.GetAppDataDir("loggate"), "loggate.db")
		assert.Equal(t, expectedStorePath, cfg.Store.Path)

		// Verify quota defaults
		assert.Equal(t, "default", cfg.Quota.Name)
		assert.Equal(t, 20, cfg.Quota.Limit)
		assert.Equal(t, "day", cfg.Quota.WindowUnit)
		assert.True(t, cfg.Quota.RemoteEnabled)
		assert.Equal(t, BackendStore, cfg.Quota.Backend)
		assert.NotEmpty(t, cfg.Quota.Dir)

		// Verify remote defaults
		assert.Equal(t, "", cfg.Remote.Endpoint)
		assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
		assert.Equal(t, uint32(5), cfg.Remote.Breaker.MinRequests)
		assert.InDelta(t, 0.6, cfg.Remote.Breaker.FailureThreshold, 0.0001)

		assert.Same(t, cfg, GetConfig())
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		isolate(t)
		t.Setenv("LOGGATE_QUOTA_LIMIT", "7")
		t.Setenv("LOGGATE_QUOTA_WINDOW_UNIT", "hour")
		t.Setenv("LOGGATE_QUOTA_REMOTE_ENABLED", "false")
		t.Setenv("LOGGATE_REMOTE_ENDPOINT", "https://telemetry.example/ingest")
		t.Setenv("LOGGATE_REMOTE_TIMEOUT", "2s")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Quota.Limit)
		assert.Equal(t, "hour", cfg.Quota.WindowUnit)
		assert.False(t, cfg.Quota.RemoteEnabled)
		assert.Equal(t, "https://telemetry.example/ingest", cfg.Remote.Endpoint)
		assert.Equal(t, 2*time.Second, cfg.Remote.Timeout)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		isolate(t)

		path := filepath.Join(t.TempDir(), "loggate.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
quota:
  limit: 3
  window_unit: minute
  backend: file
  dir: /tmp/loggate-quota
remote:
  endpoint: http://localhost:9999/events
  breaker:
    min_requests: 2
`), 0600))
		SetConfigFile(path)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Quota.Limit)
		assert.Equal(t, "minute", cfg.Quota.WindowUnit)
		assert.Equal(t, BackendFile, cfg.Quota.Backend)
		assert.Equal(t, "/tmp/loggate-quota", cfg.Quota.Dir)
		assert.Equal(t, uint32(2), cfg.Remote.Breaker.MinRequests)
		assert.Equal(t, uint32(1), cfg.Remote.Breaker.MaxRequests)
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		isolate(t)
		SetConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))

		_, err := Load(ctx)
		require.Error(t, err)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolate(t)

		cfg, err := Load(ctx, map[string]any{"quota.limit": 11, "quota.backend": BackendMemory})
		require.NoError(t, err)
		assert.Equal(t, 11, cfg.Quota.Limit)
		assert.Equal(t, BackendMemory, cfg.Quota.Backend)
	})

	t.Run("InvalidWindowUnit", func(t *testing.T) {
		isolate(t)
		t.Setenv("LOGGATE_QUOTA_WINDOW_UNIT", "week")

		_, err := Load(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota.window_unit")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Quota: QuotaConfig{Name: "default", Limit: 1, WindowUnit: "day", Backend: BackendStore}}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Quota.Limit = 0
	require.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Quota.Backend = "s3"
	require.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Quota.Name = " "
	require.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Remote.Breaker.FailureThreshold = 1.5
	require.Error(t, cfg.Validate())

	var nilCfg *Config
	require.Error(t, nilCfg.Validate())
}
