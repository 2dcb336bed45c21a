package cmd

import (
	"context"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/loggate/loggate/internal/errors"
	"github.com/loggate/loggate/internal/observability"
	"github.com/loggate/loggate/internal/server"
	"github.com/loggate/loggate/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

type remoteStatus interface {
	Configured() bool
	IsEnabled() bool
	BreakerState() string
}

// remoteHealthChecker degrades health while the remote circuit is open. A
// local-only setup with no endpoint is healthy.
type remoteHealthChecker struct {
	remote remoteStatus
}

func (r remoteHealthChecker) CheckHealth(ctx context.Context) error {
	if r.remote == nil || !r.remote.Configured() || r.remote.IsEnabled() {
		return nil
	}
	return &handlers.DegradedError{Reason: "remote telemetry circuit " + r.remote.BreakerState()}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the logging gateway as an HTTP service",
	Long: `Run the logging gateway as an HTTP service.

Routes:
  POST /v1/logs          write one event ({"severity": "...", "message": "..."})
  GET  /v1/quota         show the quota record
  POST /v1/quota/reset   start a fresh window
  PUT  /v1/quota/remote  enable or disable escalation ({"enabled": bool})

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		overrides := map[string]any{}
		if cmd.Flags().Changed("host") {
			overrides["server.host"] = serverHost
		}
		if cmd.Flags().Changed("port") {
			overrides["server.port"] = serverPort
		}

		cfg, err := loadConfig(ctx, overrides)
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "configuration invalid")
		}

		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		logLevel := cfg.Logging.Level
		if verbose {
			logLevel = "debug"
		}
		observability.InitServerLogger(observability.ServerLoggerOptions{
			Service:     identity.BinaryName,
			Level:       logLevel,
			Profile:     cfg.Logging.Profile,
			Environment: cfg.Remote.Environment,
			Namespace:   namespace,
		})
		logger := observability.ServerLogger

		hm := handlers.NewHealthManager(versionInfo.Version)
		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}

		w, err := buildWiring(ctx, cfg, logger)
		if err != nil {
			return errwrap.WrapDatabaseError(ctx, err, "gateway initialization failed")
		}
		if w.DB != nil {
			hm.RegisterChecker("store", w.DB)
		}
		hm.RegisterChecker("remote", remoteHealthChecker{remote: w.Remote})

		state := w.Gateway.Snapshot()
		logger.Info("Gateway initialized",
			zap.String("quota", w.Name),
			zap.String("backend", cfg.Quota.Backend),
			zap.Int("event_count", state.EventCount),
			zap.Int("limit", state.Limit),
			zap.String("window_unit", string(state.WindowUnit)),
			zap.Bool("remote_enabled", state.RemoteEnabled),
			zap.Bool("remote_configured", w.Remote.Configured()))

		handlers.SetAppIdentity(identity)
		srv := server.New(server.Options{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			IdleTimeout:     cfg.Server.IdleTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			Gateway:         w.Gateway,
			QuotaName:       w.Name,
			Health:          hm,
			AdminToken:      os.Getenv(identity.EnvPrefix + "ADMIN_TOKEN"),
		})

		// Shutdown handlers run LIFO: server, store, metrics, then logger flush.
		signals.OnShutdown(func(ctx context.Context) error {
			if err := logger.Sync(); err != nil {
				logger.Debug("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})
		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.StopMetrics(); err != nil {
				logger.Warn("Metrics exporter stop failed", zap.Error(err))
			}
			return nil
		})
		signals.OnShutdown(func(ctx context.Context) error {
			if err := w.Close(); err != nil {
				return errwrap.WrapDatabaseError(ctx, err, "store close failed")
			}
			return nil
		})
		signals.OnShutdown(func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}
			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 2)
		go func() {
			errChan <- srv.Start()
		}()
		go func() {
			if err := signals.Listen(ctx); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(ctx, err, "server error")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
}
