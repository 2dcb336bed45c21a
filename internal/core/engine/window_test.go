package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loggate/loggate/internal/core"
)

func baseState(start time.Time) core.QuotaState {
	return core.QuotaState{
		EventCount:    0,
		WindowStart:   start,
		Limit:         5,
		WindowUnit:    core.WindowDay,
		RemoteEnabled: true,
	}
}

func TestWindowPolicyEvaluate(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	policy := &WindowPolicy{}

	t.Run("ContinueWithinWindow", func(t *testing.T) {
		state := baseState(start)
		state.EventCount = 4

		decision, err := policy.Evaluate(state, start.Add(23*time.Hour))
		require.NoError(t, err)
		require.Equal(t, Continue, decision.Outcome)
		require.Equal(t, state, decision.State)
	})

	t.Run("ExceededWithinWindow", func(t *testing.T) {
		state := baseState(start)
		state.EventCount = 5

		decision, err := policy.Evaluate(state, start.Add(time.Hour))
		require.NoError(t, err)
		require.Equal(t, Exceeded, decision.Outcome)
		require.Equal(t, 5, decision.State.EventCount)
	})

	t.Run("ResetAfterFullWindow", func(t *testing.T) {
		state := baseState(start)
		state.EventCount = 3
		now := start.Add(24 * time.Hour)

		decision, err := policy.Evaluate(state, now)
		require.NoError(t, err)
		require.Equal(t, Reset, decision.Outcome)
		require.Equal(t, 0, decision.State.EventCount)
		require.Equal(t, now, decision.State.WindowStart)
		require.Equal(t, state.Limit, decision.State.Limit)
		require.Equal(t, state.WindowUnit, decision.State.WindowUnit)
		require.True(t, decision.State.RemoteEnabled)
	})

	t.Run("ResetBeatsExceeded", func(t *testing.T) {
		state := baseState(start)
		state.EventCount = 5
		state.ExceededNotified = true

		decision, err := policy.Evaluate(state, start.Add(48*time.Hour))
		require.NoError(t, err)
		require.Equal(t, Reset, decision.Outcome)
		require.Equal(t, 0, decision.State.EventCount)
		require.False(t, decision.State.ExceededNotified)
	})

	t.Run("Units", func(t *testing.T) {
		cases := []struct {
			unit    core.WindowUnit
			elapsed time.Duration
			want    Outcome
		}{
			{core.WindowMinute, 59 * time.Second, Continue},
			{core.WindowMinute, time.Minute, Reset},
			{core.WindowHour, 59 * time.Minute, Continue},
			{core.WindowHour, time.Hour, Reset},
			{core.WindowDay, 23*time.Hour + 59*time.Minute, Continue},
			{core.WindowDay, 25 * time.Hour, Reset},
		}
		for _, tc := range cases {
			state := baseState(start)
			state.WindowUnit = tc.unit

			decision, err := policy.Evaluate(state, start.Add(tc.elapsed))
			require.NoError(t, err)
			require.Equal(t, tc.want, decision.Outcome, "%s after %s", tc.unit, tc.elapsed)
		}
	})

	t.Run("InvalidUnit", func(t *testing.T) {
		state := baseState(start)
		state.WindowUnit = "week"

		_, err := policy.Evaluate(state, start)
		require.ErrorIs(t, err, core.ErrInvalidWindowUnit)
	})

	t.Run("ClockInUTC", func(t *testing.T) {
		local := time.FixedZone("X", 3600)
		clocked := &WindowPolicy{Clock: func() time.Time { return time.Date(2025, 1, 1, 1, 0, 0, 0, local) }}
		require.Equal(t, start, clocked.Now())
	})
}

func TestWindowEnd(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	state := baseState(start)
	state.WindowUnit = core.WindowHour

	end, err := WindowEnd(state)
	require.NoError(t, err)
	require.Equal(t, start.Add(time.Hour), end)
}
