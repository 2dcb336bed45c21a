// Package output renders quota records for the CLI.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/loggate/loggate/internal/core/quota"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders quota records.
type Formatter interface {
	FormatQuotas(views []quota.View) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Extension is the file suffix used when output is written to a directory.
func Extension(format Format) string {
	switch format {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func windowEnd(view quota.View) string {
	if view.WindowEnd == nil {
		return "-"
	}
	return formatTime(*view.WindowEnd)
}

func remoteLabel(view quota.View) string {
	switch {
	case !view.RemoteEnabled:
		return "disabled"
	case view.ExceededNotified:
		return "exhausted"
	case view.Remaining == 0:
		return "full"
	default:
		return "enabled"
	}
}
