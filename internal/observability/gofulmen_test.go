package observability

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitCLILogger(t *testing.T) {
	InitCLILogger("loggate-test", false)
	require.NotNil(t, CLILogger)
	CLILogger.Info("cli logger ready", zap.String("test", "value"))

	InitCLILogger("loggate-test", true)
	require.NotNil(t, CLILogger)
	CLILogger.Debug("verbose logger ready")
}

func TestNewServerLogger(t *testing.T) {
	tests := []struct {
		name string
		opts ServerLoggerOptions
	}{
		{"structured", ServerLoggerOptions{Service: "loggate-test", Level: "info", Profile: "structured"}},
		{"simple", ServerLoggerOptions{Service: "loggate-test", Level: "debug", Profile: "SIMPLE"}},
		{"namespace", ServerLoggerOptions{Service: "loggate-test", Level: "warn", Namespace: "acme", Environment: "test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewServerLogger(tt.opts)
			require.NoError(t, err)
			require.NotNil(t, logger)
			logger.Info("server logger ready", zap.String("component", "test"), zap.Int("request_id", 123))
		})
	}
}

func TestInitServerLogger(t *testing.T) {
	InitServerLogger(ServerLoggerOptions{Service: "loggate-test", Level: "info"})
	require.NotNil(t, ServerLogger)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "TRACE", parseLogLevel("trace"))
	assert.Equal(t, "DEBUG", parseLogLevel(" Debug "))
	assert.Equal(t, "WARN", parseLogLevel("warning"))
	assert.Equal(t, "ERROR", parseLogLevel("error"))
	assert.Equal(t, "INFO", parseLogLevel(""))
	assert.Equal(t, "INFO", parseLogLevel("loud"))
}

func TestEmbeddedCrucible(t *testing.T) {
	version := crucible.GetVersion()
	assert.NotEmpty(t, version.Gofulmen)
	assert.NotEmpty(t, version.Crucible)
	assert.NotEmpty(t, crucible.GetVersionString())
	require.NotNil(t, crucible.SchemaRegistry)
}

func TestInitMetrics(t *testing.T) {
	require.NoError(t, InitMetrics("loggate-test", 0))
	t.Cleanup(func() { _ = StopMetrics() })
	require.NotNil(t, TelemetrySystem)
	require.NotNil(t, PrometheusExporter)
	assert.Greater(t, GetMetricsPort(), 0)

	require.NoError(t, StopMetrics())
	assert.Nil(t, TelemetrySystem)
	assert.Nil(t, PrometheusExporter)
	assert.Zero(t, GetMetricsPort())
}
