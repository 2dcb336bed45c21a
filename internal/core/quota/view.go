package quota

import (
	"time"

	"github.com/loggate/loggate/internal/core"
	"github.com/loggate/loggate/internal/core/engine"
)

// View is the rendering of a quota record shared by the HTTP API and CLI.
type View struct {
	Name             string          `json:"name"`
	EventCount       int             `json:"event_count"`
	Limit            int             `json:"limit"`
	Remaining        int             `json:"remaining"`
	WindowUnit       core.WindowUnit `json:"window_unit"`
	WindowStart      time.Time       `json:"window_start"`
	WindowEnd        *time.Time      `json:"window_end,omitempty"`
	RemoteEnabled    bool            `json:"remote_enabled"`
	ExceededNotified bool            `json:"exceeded_notified"`
}

// NewView renders state. WindowEnd is omitted when the unit is invalid.
func NewView(name string, state core.QuotaState) View {
	view := View{
		Name:             name,
		EventCount:       state.EventCount,
		Limit:            state.Limit,
		Remaining:        state.Limit - state.EventCount,
		WindowUnit:       state.WindowUnit,
		WindowStart:      state.WindowStart,
		RemoteEnabled:    state.RemoteEnabled,
		ExceededNotified: state.ExceededNotified,
	}
	if view.Remaining < 0 {
		view.Remaining = 0
	}
	if end, err := engine.WindowEnd(state); err == nil {
		view.WindowEnd = &end
	}
	return view
}
