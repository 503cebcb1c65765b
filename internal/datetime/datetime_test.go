package datetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPrevious(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		next     string
		previous string
	}{
		{"mid month", "2025-01-15", "2025-01-16", "2025-01-14"},
		{"month boundary", "2025-01-31", "2025-02-01", "2025-01-30"},
		{"year boundary", "2025-01-01", "2025-01-02", "2024-12-31"},
		{"leap day", "2024-02-29", "2024-03-01", "2024-02-28"},
		{"non leap february", "2025-03-01", "2025-03-02", "2025-02-28"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Next(tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.next, next)

			prev, err := Previous(tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.previous, prev)
		})
	}
}

func TestNextInvalid(t *testing.T) {
	for _, date := range []string{"", "15-01-2025", "2025-13-01", "tomorrow"} {
		_, err := Next(date)
		assert.ErrorIs(t, err, ErrInvalidDate, "date: %q", date)

		_, err = Previous(date)
		assert.ErrorIs(t, err, ErrInvalidDate, "date: %q", date)
		assert.False(t, Valid(date))
	}
}

func TestToday(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	// 02:00 UTC is still the previous evening five hours west.
	now := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC).In(loc)

	assert.Equal(t, "2025-03-09", Today(Fixed(now)))
	assert.Equal(t, "2025-03-10", Today(Fixed(now.UTC())))
}

func TestSystemClockLocation(t *testing.T) {
	loc := time.FixedZone("Test", 3*60*60)
	got := SystemClock(loc)()
	assert.Equal(t, loc, got.Location())
	assert.True(t, Valid(Today(SystemClock(nil))))
}
