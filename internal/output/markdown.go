package output

import (
	"fmt"
	"strings"

	"github.com/loggate/loggate/internal/core/quota"
)

// MarkdownFormatter renders records as a markdown table.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) FormatQuotas(views []quota.View) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Escalation quotas\n\n")
	if len(views) == 0 {
		sb.WriteString("_No stored quota records._\n")
		return sb.String(), nil
	}

	sb.WriteString("| Name | Used | Window | Started | Resets | Remote |\n")
	sb.WriteString("|------|------|--------|---------|--------|--------|\n")
	for _, v := range views {
		sb.WriteString(fmt.Sprintf("| %s | %d/%d | %s | %s | %s | %s |\n",
			escapeMarkdownCell(v.Name),
			v.EventCount, v.Limit,
			escapeMarkdownCell(string(v.WindowUnit)),
			formatTime(v.WindowStart),
			windowEnd(v),
			remoteLabel(v),
		))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
