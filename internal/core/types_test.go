package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	cases := map[string]Severity{
		"debug":       SeverityDebug,
		"INFO":        SeverityInformation,
		"information": SeverityInformation,
		" warn ":      SeverityWarning,
		"Error":       SeverityError,
	}
	for input, want := range cases {
		got, err := ParseSeverity(input)
		require.NoError(t, err, input)
		require.Equal(t, want, got, input)
	}

	_, err := ParseSeverity("loud")
	require.True(t, errors.Is(err, ErrInvalidSeverity))
}

func TestWindowUnit(t *testing.T) {
	t.Run("Parse", func(t *testing.T) {
		unit, err := ParseWindowUnit(" Hour ")
		require.NoError(t, err)
		require.Equal(t, WindowHour, unit)

		_, err = ParseWindowUnit("week")
		require.ErrorIs(t, err, ErrInvalidWindowUnit)
	})

	t.Run("Duration", func(t *testing.T) {
		d, err := WindowDay.Duration()
		require.NoError(t, err)
		require.Equal(t, 24*time.Hour, d)

		_, err = WindowUnit("fortnight").Duration()
		require.ErrorIs(t, err, ErrInvalidWindowUnit)
	})
}
