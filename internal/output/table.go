package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/loggate/loggate/internal/core/quota"
)

// TableFormatter renders records as an ASCII table.
type TableFormatter struct{}

func (f *TableFormatter) FormatQuotas(views []quota.View) (string, error) {
	if len(views) == 0 {
		return "(no stored quota records)", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Name", "Used", "Window", "Started", "Resets", "Remote"})

	used := 0
	for _, v := range views {
		t.AppendRow(table.Row{
			v.Name,
			fmt.Sprintf("%d/%d", v.EventCount, v.Limit),
			string(v.WindowUnit),
			formatTime(v.WindowStart),
			windowEnd(v),
			remoteLabel(v),
		})
		used += v.EventCount
	}

	if len(views) > 1 {
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d total", used), "", "", "", ""})
	}

	return t.Render(), nil
}
