package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loggate/loggate/internal/appid"
	"github.com/loggate/loggate/internal/config"
	"github.com/loggate/loggate/internal/observability"
	"github.com/loggate/loggate/internal/server/handlers"
)

var (
	cfgFile   string
	verbose   bool
	quotaName string
	ephemeral bool

	appIdentity *appidentity.Identity

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	handlers.SetVersionInfo(version, commit, buildDate)
}

// GetAppIdentity returns the loaded app identity (only valid after initConfig)
func GetAppIdentity() *appidentity.Identity {
	return appIdentity
}

var rootCmd = &cobra.Command{
	Use:           filepath.Base(os.Args[0]),
	Short:         appid.Description,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Keep config loading from emitting metrics to stdout; serve installs
	// the real telemetry system.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	if identity, err := appid.Get(context.Background()); err == nil && identity != nil {
		applyIdentity(identity)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/loggate/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&quotaName, "name", "", "quota record name (default from quota.name)")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep quota state in memory only")
}

func applyIdentity(identity *appidentity.Identity) {
	appIdentity = identity
	if identity.BinaryName != "" {
		rootCmd.Use = identity.BinaryName
	}
	if identity.Description != "" {
		rootCmd.Short = identity.Description
		rootCmd.Long = fmt.Sprintf("%s - %s\n\nEvents are always logged locally. Error events are escalated to the\nremote telemetry backend until the persisted quota for the current\nwindow is spent.", identity.BinaryName, identity.Description)
	}
	if f := rootCmd.PersistentFlags().Lookup("config"); f != nil && identity.ConfigName != "" {
		f.Usage = fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName)
	}
}

func initConfig() {
	identity, err := appid.Get(context.Background())
	if err != nil {
		ExitWithCodeStderr(foundry.ExitFileNotFound, "Failed to load app identity", err)
	}
	applyIdentity(identity)

	observability.InitCLILogger(identity.BinaryName, verbose)
	config.SetConfigFile(cfgFile)
	if cfgFile != "" {
		observability.CLILogger.Debug("Using config file", zap.String("path", cfgFile))
	}
}

// loadConfig resolves configuration with the global flags applied on top.
func loadConfig(ctx context.Context, extra map[string]any) (*config.Config, error) {
	overrides := map[string]any{}
	if quotaName != "" {
		overrides["quota.name"] = quotaName
	}
	if ephemeral {
		overrides["quota.backend"] = config.BackendMemory
	}
	for key, value := range extra {
		overrides[key] = value
	}

	cfg, err := config.Load(ctx, overrides)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
