package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/loggate/loggate/internal/config"
	"github.com/loggate/loggate/internal/core"
	"github.com/loggate/loggate/internal/core/quota"
	"github.com/loggate/loggate/internal/core/store"
	"github.com/loggate/loggate/internal/gateway"
	"github.com/loggate/loggate/internal/sink"
)

// wiring bundles a wired gateway with the resources it holds open.
type wiring struct {
	Gateway *gateway.Gateway
	Remote  *sink.HTTPRemote
	DB      *store.Store
	Name    string
}

func (r *wiring) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// newQuotaBackend selects the quota backend named by quota.backend. The
// returned store is non-nil only for the libsql backend.
func newQuotaBackend(ctx context.Context, cfg *config.Config) (quota.Backend, *store.Store, error) {
	switch cfg.Quota.Backend {
	case config.BackendMemory:
		return &quota.MemoryBackend{}, nil, nil
	case config.BackendFile:
		return &quota.FileBackend{Dir: cfg.Quota.Dir}, nil, nil
	case config.BackendStore, "":
		db, err := openStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	default:
		return nil, nil, fmt.Errorf("unsupported quota backend: %s", cfg.Quota.Backend)
	}
}

func quotaDefaults(cfg *config.Config) (quota.Defaults, error) {
	unit, err := core.ParseWindowUnit(cfg.Quota.WindowUnit)
	if err != nil {
		return quota.Defaults{}, err
	}
	defaults := quota.Defaults{
		Limit:         cfg.Quota.Limit,
		WindowUnit:    unit,
		RemoteEnabled: cfg.Quota.RemoteEnabled,
	}
	return defaults, defaults.Validate()
}

func remoteConfig(cfg *config.Config) sink.RemoteConfig {
	release := cfg.Remote.Release
	if strings.TrimSpace(release) == "" {
		release = versionInfo.Version
	}
	return sink.RemoteConfig{
		Endpoint:    cfg.Remote.Endpoint,
		DSN:         cfg.Remote.DSN,
		Environment: cfg.Remote.Environment,
		Release:     release,
		Timeout:     cfg.Remote.Timeout,
		Breaker: sink.BreakerConfig{
			MaxRequests:      cfg.Remote.Breaker.MaxRequests,
			Interval:         cfg.Remote.Breaker.Interval,
			Timeout:          cfg.Remote.Breaker.Timeout,
			FailureThreshold: cfg.Remote.Breaker.FailureThreshold,
			MinRequests:      cfg.Remote.Breaker.MinRequests,
		},
		RatePerSecond: cfg.Remote.RatePerSecond,
		Burst:         cfg.Remote.Burst,
	}
}

// buildWiring performs the explicit gateway initialization: open the quota
// backend, load or seed the record, and attach the sinks.
func buildWiring(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*wiring, error) {
	defaults, err := quotaDefaults(cfg)
	if err != nil {
		return nil, fmt.Errorf("quota defaults: %w", err)
	}

	backend, db, err := newQuotaBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	local := sink.NewLocal(logger, zap.String("quota", cfg.Quota.Name))
	remote := sink.NewHTTPRemote(remoteConfig(cfg), logger)

	gw, err := gateway.New(ctx, gateway.Options{
		Local:  local,
		Remote: remote,
		Store: &quota.Store{
			Backend:  backend,
			Name:     cfg.Quota.Name,
			Defaults: defaults,
			Local:    local,
		},
	})
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}

	return &wiring{Gateway: gw, Remote: remote, DB: db, Name: gw.Name()}, nil
}
