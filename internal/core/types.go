package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Severity identifies the level of a log event.
type Severity string

const (
	SeverityDebug       Severity = "debug"
	SeverityInformation Severity = "information"
	SeverityWarning     Severity = "warning"
	SeverityError       Severity = "error"
)

// WindowUnit is the length of one quota window.
type WindowUnit string

const (
	WindowMinute WindowUnit = "minute"
	WindowHour   WindowUnit = "hour"
	WindowDay    WindowUnit = "day"
)

var (
	// ErrInvalidWindowUnit reports a window unit outside minute/hour/day.
	ErrInvalidWindowUnit = errors.New("invalid window unit")

	// ErrInvalidSeverity reports an unrecognised severity string.
	ErrInvalidSeverity = errors.New("invalid severity")
)

// DefaultQuotaName is the record name used when none is configured.
const DefaultQuotaName = "default"

// QuotaState is the persisted escalation quota for one gateway.
type QuotaState struct {
	EventCount       int        `json:"event_count" yaml:"event_count"`
	WindowStart      time.Time  `json:"window_start" yaml:"window_start"`
	Limit            int        `json:"limit" yaml:"limit"`
	WindowUnit       WindowUnit `json:"window_unit" yaml:"window_unit"`
	RemoteEnabled    bool       `json:"remote_enabled" yaml:"remote_enabled"`
	ExceededNotified bool       `json:"exceeded_notified" yaml:"exceeded_notified"`
}

// ParseSeverity normalizes a severity string. Common aliases are accepted.
func ParseSeverity(value string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug", "trace":
		return SeverityDebug, nil
	case "information", "info":
		return SeverityInformation, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "error", "err", "fatal":
		return SeverityError, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, value)
	}
}

// ParseWindowUnit normalizes a window unit string.
func ParseWindowUnit(value string) (WindowUnit, error) {
	unit := WindowUnit(strings.ToLower(strings.TrimSpace(value)))
	if err := unit.Validate(); err != nil {
		return "", err
	}
	return unit, nil
}

// Validate reports ErrInvalidWindowUnit for unknown units.
func (u WindowUnit) Validate() error {
	switch u {
	case WindowMinute, WindowHour, WindowDay:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidWindowUnit, string(u))
	}
}

// Duration returns the length of one window.
func (u WindowUnit) Duration() (time.Duration, error) {
	switch u {
	case WindowMinute:
		return time.Minute, nil
	case WindowHour:
		return time.Hour, nil
	case WindowDay:
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidWindowUnit, string(u))
	}
}
