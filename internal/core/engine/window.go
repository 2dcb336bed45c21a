package engine

import (
	"fmt"
	"time"

	"github.com/loggate/loggate/internal/core"
)

// Outcome is the result of evaluating a quota window.
type Outcome int

const (
	// Continue means the window is live and quota remains.
	Continue Outcome = iota
	// Reset means at least one full window has elapsed; Decision.State is fresh.
	Reset
	// Exceeded means the window is live and the quota is spent.
	Exceeded
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Reset:
		return "reset"
	case Exceeded:
		return "exceeded"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision carries the outcome and the state the caller should adopt.
type Decision struct {
	Outcome Outcome
	State   core.QuotaState
}

// WindowPolicy decides whether a quota window resets and whether an event
// may be escalated. It holds no state besides the clock.
type WindowPolicy struct {
	Clock func() time.Time
}

// Now returns the policy clock in UTC.
func (p *WindowPolicy) Now() time.Time {
	if p != nil && p.Clock != nil {
		return p.Clock().UTC()
	}
	return time.Now().UTC()
}

// Evaluate applies the window rules to state at now. Reset is checked
// before the quota so an expired, exhausted window yields a fresh quota.
func (p *WindowPolicy) Evaluate(state core.QuotaState, now time.Time) (Decision, error) {
	elapsed, err := ElapsedWindows(state, now)
	if err != nil {
		return Decision{}, err
	}

	if elapsed >= 1.0 {
		fresh := state
		fresh.EventCount = 0
		fresh.WindowStart = now.UTC()
		fresh.ExceededNotified = false
		return Decision{Outcome: Reset, State: fresh}, nil
	}

	if state.EventCount >= state.Limit {
		return Decision{Outcome: Exceeded, State: state}, nil
	}

	return Decision{Outcome: Continue, State: state}, nil
}

// ElapsedWindows returns now-WindowStart expressed in the state's window unit.
func ElapsedWindows(state core.QuotaState, now time.Time) (float64, error) {
	elapsed := now.Sub(state.WindowStart)
	switch state.WindowUnit {
	case core.WindowMinute:
		return elapsed.Minutes(), nil
	case core.WindowHour:
		return elapsed.Hours(), nil
	case core.WindowDay:
		return elapsed.Hours() / 24, nil
	default:
		return 0, fmt.Errorf("evaluate quota window: %w: %q", core.ErrInvalidWindowUnit, string(state.WindowUnit))
	}
}

// WindowEnd returns the instant the current window expires.
func WindowEnd(state core.QuotaState) (time.Time, error) {
	d, err := state.WindowUnit.Duration()
	if err != nil {
		return time.Time{}, err
	}
	return state.WindowStart.Add(d), nil
}
