package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loggate/loggate/internal/config"
	"github.com/loggate/loggate/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, quota and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		version := crucible.GetVersion()

		logger.Info("=== loggate Environment Information ===")
		logger.Info("")

		identity := GetAppIdentity()
		logger.Info("Application:")
		logger.Info("  Name:       " + identity.BinaryName)
		logger.Info("  Version:    " + versionInfo.Version)
		logger.Info("  Commit:     " + versionInfo.Commit)
		logger.Info("  Built:      " + versionInfo.BuildDate)
		logger.Info("")

		logger.Info("SSOT:")
		logger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		logger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		logger.Info("")

		logger.Info("Runtime:")
		logger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		logger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		logger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		logger.Info("")

		cfg, err := loadConfig(cmd.Context(), nil)
		if err != nil {
			logger.Warn("Config load failed", zap.Error(err))
			return
		}

		configFile := config.ConfigFileUsed()
		if configFile == "" {
			configFile = "(none, defaults + environment)"
		}

		logger.Info("Configuration:")
		logger.Info("  Config File:    " + configFile)
		logger.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		logger.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		logger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		logger.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		logger.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		logger.Info("")

		logger.Info("Quota:")
		logger.Info("  Record:         "+cfg.Quota.Name, zap.String("quota_name", cfg.Quota.Name))
		logger.Info(fmt.Sprintf("  Limit:          %d per %s", cfg.Quota.Limit, cfg.Quota.WindowUnit))
		logger.Info(fmt.Sprintf("  Remote Enabled: %t", cfg.Quota.RemoteEnabled))
		logger.Info("  Backend:        "+cfg.Quota.Backend, zap.String("backend", cfg.Quota.Backend))
		switch cfg.Quota.Backend {
		case config.BackendStore:
			logger.Info("  DB Driver:      " + cfg.Store.Driver)
			if strings.TrimSpace(cfg.Store.URL) != "" {
				logger.Info("  DB URL:         " + cfg.Store.URL)
			} else {
				logger.Info("  DB Path:        " + cfg.Store.Path)
			}
		case config.BackendFile:
			logger.Info("  Quota Dir:      " + cfg.Quota.Dir)
		}
		logger.Info("")

		logger.Info("Remote:")
		if strings.TrimSpace(cfg.Remote.Endpoint) == "" {
			logger.Info("  Endpoint:       (not configured)")
		} else {
			logger.Info("  Endpoint:       " + cfg.Remote.Endpoint)
		}
		if strings.TrimSpace(cfg.Remote.DSN) != "" {
			logger.Info("  DSN:            (set)")
		} else {
			logger.Info("  DSN:            (not set)")
		}
		logger.Info("  Environment:    " + cfg.Remote.Environment)
		logger.Info("  Timeout:        " + cfg.Remote.Timeout.String())
		logger.Info(fmt.Sprintf("  Breaker:        trips at %.0f%% failures after %d requests, open for %s",
			cfg.Remote.Breaker.FailureThreshold*100, cfg.Remote.Breaker.MinRequests, cfg.Remote.Breaker.Timeout))
		logger.Info("")

		logger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
