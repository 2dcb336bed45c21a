package output

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// EventTable writes gateway results as borderless table rows, one render per
// row so results appear as they happen. Fixed column widths keep the rows
// aligned; the header goes out with the first row.
type EventTable struct {
	w       io.Writer
	started bool
}

// NewEventTable returns an EventTable writing to w.
func NewEventTable(w io.Writer) *EventTable {
	return &EventTable{w: w}
}

// Append renders one result row.
func (e *EventTable) Append(severity, escalation, message string) error {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.DrawBorder = false
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: len("information"), WidthMax: len("information")},
		{Number: 2, WidthMin: len("local_only"), WidthMax: len("local_only")},
	})
	if !e.started {
		t.AppendHeader(table.Row{"Severity", "Escalation", "Message"})
	}
	t.AppendRow(table.Row{severity, escalation, message})

	if _, err := fmt.Fprintln(e.w, t.Render()); err != nil {
		return err
	}
	e.started = true
	return nil
}
