package sink

import (
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/loggate/loggate/internal/core"
)

// Local writes gateway events to the process logger.
type Local struct {
	logger *logging.Logger
	fields []zap.Field
}

// NewLocal returns a local sink over logger. Extra fields are attached to
// every line. A nil logger discards events.
func NewLocal(logger *logging.Logger, fields ...zap.Field) *Local {
	return &Local{logger: logger, fields: fields}
}

// Write logs message at the level matching severity. Unknown severities are
// logged at info.
func (l *Local) Write(severity core.Severity, message string) {
	if l == nil || l.logger == nil {
		return
	}

	fields := append([]zap.Field{zap.String("severity", string(severity))}, l.fields...)
	switch severity {
	case core.SeverityDebug:
		l.logger.Debug(message, fields...)
	case core.SeverityWarning:
		l.logger.Warn(message, fields...)
	case core.SeverityError:
		l.logger.Error(message, fields...)
	default:
		l.logger.Info(message, fields...)
	}
}
