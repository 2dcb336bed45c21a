package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggate/loggate/internal/config"
	"github.com/loggate/loggate/internal/core"
	"github.com/loggate/loggate/internal/core/quota"
	"github.com/loggate/loggate/internal/gateway"
)

func testConfig(backend string) *config.Config {
	return &config.Config{
		Quota: config.QuotaConfig{
			Name:          "cli-test",
			Limit:         3,
			WindowUnit:    "hour",
			RemoteEnabled: true,
			Backend:       backend,
		},
		Remote: config.RemoteConfig{Timeout: time.Second},
	}
}

func TestQuotaDefaults(t *testing.T) {
	defaults, err := quotaDefaults(testConfig(config.BackendMemory))
	require.NoError(t, err)
	assert.Equal(t, quota.Defaults{Limit: 3, WindowUnit: core.WindowHour, RemoteEnabled: true}, defaults)

	cfg := testConfig(config.BackendMemory)
	cfg.Quota.WindowUnit = "fortnight"
	_, err = quotaDefaults(cfg)
	assert.ErrorIs(t, err, core.ErrInvalidWindowUnit)

	cfg = testConfig(config.BackendMemory)
	cfg.Quota.Limit = 0
	_, err = quotaDefaults(cfg)
	assert.Error(t, err)
}

func TestNewQuotaBackend(t *testing.T) {
	ctx := context.Background()

	backend, db, err := newQuotaBackend(ctx, testConfig(config.BackendMemory))
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.IsType(t, &quota.MemoryBackend{}, backend)

	cfg := testConfig(config.BackendFile)
	cfg.Quota.Dir = t.TempDir()
	backend, db, err = newQuotaBackend(ctx, cfg)
	require.NoError(t, err)
	assert.Nil(t, db)
	require.IsType(t, &quota.FileBackend{}, backend)
	assert.Equal(t, cfg.Quota.Dir, backend.(*quota.FileBackend).Dir)

	_, _, err = newQuotaBackend(ctx, testConfig("s3"))
	assert.Error(t, err)
}

func TestRemoteConfigReleaseFallback(t *testing.T) {
	saved := versionInfo.Version
	t.Cleanup(func() { versionInfo.Version = saved })
	versionInfo.Version = "1.2.3"

	cfg := testConfig(config.BackendMemory)
	assert.Equal(t, "1.2.3", remoteConfig(cfg).Release)

	cfg.Remote.Release = "pinned"
	assert.Equal(t, "pinned", remoteConfig(cfg).Release)
}

func TestBuildWiringWithoutEndpoint(t *testing.T) {
	w, err := buildWiring(context.Background(), testConfig(config.BackendMemory), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, "cli-test", w.Name)
	assert.Nil(t, w.DB)

	state := w.Gateway.Snapshot()
	assert.Equal(t, 3, state.Limit)
	assert.Equal(t, core.WindowHour, state.WindowUnit)

	// No endpoint means every event stays local and the quota is untouched.
	assert.Equal(t, gateway.LocalOnly, w.Gateway.Write(context.Background(), core.SeverityError, "boom"))
	assert.Equal(t, 0, w.Gateway.Snapshot().EventCount)
}
