package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loggate/loggate/internal/config"
	errwrap "github.com/loggate/loggate/internal/errors"
	"github.com/loggate/loggate/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify that version info, configuration and the quota backend are usable.",
	Run: func(cmd *cobra.Command, args []string) {
		if observability.CLILogger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		logger := observability.CLILogger
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		logger.Info("✅ Version information available")

		cfg, err := loadConfig(cmd.Context(), nil)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		logger.Info("✅ Configuration loaded",
			zap.String("quota", cfg.Quota.Name),
			zap.String("backend", cfg.Quota.Backend))

		if cfg.Quota.Backend == config.BackendStore {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			db, err := openStore(ctx, cfg)
			if err != nil {
				ExitWithCode(logger, foundry.ExitFileNotFound, "Quota store unavailable", err)
				return
			}
			err = db.CheckHealth(ctx)
			if err != nil {
				_ = db.Close()
				ExitWithCode(logger, foundry.ExitFileNotFound, "Quota store unavailable", err)
				return
			}
			version, err := db.SchemaVersion(ctx)
			_ = db.Close()
			if err != nil {
				ExitWithCode(logger, foundry.ExitFailure, "Quota store schema unreadable", err)
				return
			}
			logger.Info("✅ Quota store reachable",
				zap.String("driver", db.Driver()),
				zap.Int("schema_version", version))
		}

		if cfg.Remote.Endpoint == "" {
			logger.Info("ℹ️  No remote endpoint configured; errors are logged locally only")
		} else {
			logger.Info("✅ Remote endpoint configured", zap.String("endpoint", cfg.Remote.Endpoint))
		}

		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
