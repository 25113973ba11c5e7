package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  int
		expectErr bool
	}{
		{name: "Noon", raw: "12:00", expected: 720},
		{name: "Single digit hour", raw: "9:30", expected: 570},
		{name: "Surrounding spaces", raw: " 15:45 ", expected: 945},
		{name: "End of day", raw: "24:00", expected: MinutesPerDay},
		{name: "Past end of day", raw: "24:30", expectErr: true},
		{name: "Bad minutes", raw: "12:60", expectErr: true},
		{name: "No separator", raw: "1200", expectErr: true},
		{name: "Empty", raw: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseClock(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "09:05", FormatClock(545))
	assert.Equal(t, "24:00", FormatClock(MinutesPerDay))
}

func TestParseWeekdays(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  []time.Weekday
		expectErr bool
	}{
		{name: "BYDAY codes", raw: "TU,WE,TH", expected: []time.Weekday{time.Tuesday, time.Wednesday, time.Thursday}},
		{name: "Short names mixed case", raw: "thu, Tue", expected: []time.Weekday{time.Tuesday, time.Thursday}},
		{name: "Full names with duplicates", raw: "monday monday sunday", expected: []time.Weekday{time.Sunday, time.Monday}},
		{name: "Unknown day", raw: "TU,XX", expectErr: true},
		{name: "Empty", raw: " , ", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseWeekdays(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestNormalizeWeekdays(t *testing.T) {
	got, err := NormalizeWeekdays("thursday tue wed")
	require.NoError(t, err)
	assert.Equal(t, "TU,WE,TH", got)
}

func TestParseRange(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	t.Run("Single date covers the whole local day", func(t *testing.T) {
		start, end, err := ParseRange("2025-03-04", "", loc)
		require.NoError(t, err)
		assert.True(t, start.Equal(time.Date(2025, 3, 4, 0, 0, 0, 0, loc)))
		assert.True(t, end.Equal(time.Date(2025, 3, 5, 0, 0, 0, 0, loc)))
	})

	t.Run("Date upper bound is inclusive", func(t *testing.T) {
		start, end, err := ParseRange("2025-03-04", "2025-03-06", loc)
		require.NoError(t, err)
		assert.Equal(t, 72*time.Hour, end.Sub(start))
	})

	t.Run("RFC 3339 bounds are taken as is", func(t *testing.T) {
		start, end, err := ParseRange("2025-03-04T17:00:00Z", "2025-03-04T18:00:00-05:00", loc)
		require.NoError(t, err)
		assert.Equal(t, 6*time.Hour, end.Sub(start))
	})

	t.Run("Inverted range", func(t *testing.T) {
		_, _, err := ParseRange("2025-03-06T00:00:00Z", "2025-03-04T00:00:00Z", loc)
		assert.Error(t, err)
	})

	t.Run("Timestamp without offset", func(t *testing.T) {
		_, _, err := ParseRange("2025-03-04T12:00:00", "", loc)
		assert.Error(t, err)
	})
}
