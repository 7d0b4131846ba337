package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDayTime(t *testing.T) {
	testCases := []struct {
		input    string
		expected int
		valid    bool
	}{
		{"00:00", 0, true},
		{"10:30", 10*3600 + 30*60, true},
		{"23:59:59", 23*3600 + 59*60 + 59, true},
		{"24:00", 24 * 3600, true},
		{"24:01", 0, false},
		{"25:00", 0, false},
		{"10:60", 0, false},
		{"10", 0, false},
		{"", 0, false},
		{"noon", 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			dt, err := ParseDayTime(tc.input)
			if !tc.valid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DayTime(tc.expected), dt)
		})
	}
}

func TestDayTimeJSON(t *testing.T) {
	dt, err := ParseDayTime("06:30")
	require.NoError(t, err)

	b, err := json.Marshal(dt)
	require.NoError(t, err)
	assert.Equal(t, `"06:30:00"`, string(b))

	var parsed DayTime
	require.NoError(t, json.Unmarshal([]byte(`"18:00"`), &parsed))
	assert.Equal(t, 0.75, parsed.DayFraction())

	assert.Error(t, json.Unmarshal([]byte(`1800`), &parsed))
}

func TestWeekdaySet(t *testing.T) {
	s := WeekdaySetOf(1, 3, 7)
	assert.Equal(t, []int{1, 3, 7}, s.Days())
	assert.True(t, s.Contains(3))
	assert.False(t, s.Contains(2))
	assert.False(t, s.Contains(0))
	assert.False(t, s.Contains(8))
	assert.False(t, s.Empty())

	assert.True(t, WeekdaySetOf().Empty())
	// Out-of-range days are ignored rather than corrupting the mask.
	assert.True(t, WeekdaySetOf(0, 8).Empty())

	// Duplicates collapse.
	assert.Equal(t, WeekdaySetOf(5), WeekdaySetOf(5, 5))
}
