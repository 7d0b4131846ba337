package schedule

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"makerspace-reservation-backend/internal/model"
)

func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

func TestHoursOverlapInside(t *testing.T) {
	testCases := []struct {
		name     string
		arc1     [2]float64
		arc2     [2]float64
		expected float64
	}{
		{"second arc inside first", [2]float64{1.25, 1.5}, [2]float64{1.25, 1.4}, 3.6},
		{"wrapping arc contains plain arc", [2]float64{7, 2}, [2]float64{1, 2}, 24},
		{"wrapping arc contains wrapping arc", [2]float64{7, 2}, [2]float64{7, 1}, 24},
		{"both wrap with offset", [2]float64{7, 2}, [2]float64{7.4, 1.6}, 28.8},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, roundHours(HoursOverlap(tc.arc1[0], tc.arc1[1], tc.arc2[0], tc.arc2[1])))
		})
	}
}

func TestHoursOverlapOutside(t *testing.T) {
	testCases := []struct {
		name string
		arc1 [2]float64
		arc2 [2]float64
	}{
		{"arcs touch at first's start", [2]float64{1.2, 1.4}, [2]float64{1, 1.2}},
		{"arcs touch at first's end", [2]float64{1.2, 1.4}, [2]float64{1.4, 1.8}},
		{"disjoint from wrapping arc", [2]float64{7, 2}, [2]float64{3, 4}},
		{"disjoint, second wraps", [2]float64{2, 3}, [2]float64{7, 2}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Zero(t, HoursOverlap(tc.arc1[0], tc.arc1[1], tc.arc2[0], tc.arc2[1]))
		})
	}
}

func TestHoursOverlapBordersCrossed(t *testing.T) {
	testCases := []struct {
		name     string
		arc1     [2]float64
		arc2     [2]float64
		expected float64
	}{
		{"partial overlap at start", [2]float64{1.2, 1.4}, [2]float64{1.1, 1.35}, 3.6},
		{"partial overlap at end", [2]float64{1.2, 1.4}, [2]float64{1.25, 2.6}, 3.6},
		{"second arc wraps over first", [2]float64{1.2, 1.4}, [2]float64{7, 3}, 4.8},
		{"first wraps into second", [2]float64{7, 2}, [2]float64{1.1, 1.35}, 6},
		{"overlap across the week boundary", [2]float64{7, 2}, [2]float64{6.25, 7.25}, 6},
		{"both wrap", [2]float64{7, 2}, [2]float64{6.25, 2.25}, 48},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, roundHours(HoursOverlap(tc.arc1[0], tc.arc1[1], tc.arc2[0], tc.arc2[1])))
		})
	}
}

func TestHoursOverlapProperties(t *testing.T) {
	arcs := [][2]float64{{0, 1}, {1.5, 3.25}, {6, 1}, {2.2, 2.9}, {0, 6.99}}

	for _, a := range arcs {
		length := mod7(a[1] - a[0])
		assert.InDelta(t, length*24, HoursOverlap(a[0], a[1], a[0], a[1]), 1e-9,
			"an arc's overlap with itself is its own length")
	}

	for _, a := range arcs {
		for _, b := range arcs {
			ab := HoursOverlap(a[0], a[1], b[0], b[1])
			ba := HoursOverlap(b[0], b[1], a[0], a[1])
			assert.InDelta(t, ab, ba, 1e-9, "overlap is symmetric")
			assert.LessOrEqual(t, ab, 7*24.0)
		}
	}
}

func mustDayTime(t *testing.T, s string) model.DayTime {
	parsed, err := model.ParseDayTime(s)
	assert.NoError(t, err)
	return parsed
}

func TestPeriodsOf(t *testing.T) {
	rule := &model.ReservationRule{
		StartTime:   mustDayTime(t, "10:00"),
		EndTime:     mustDayTime(t, "06:00"),
		DaysChanged: 1,
		StartDays:   model.WeekdaySetOf(1, 3, 5, 6),
	}

	periods := PeriodsOf(rule)
	assert.Len(t, periods, 4)

	expectedStarts := []float64{0 + 10.0/24, 2 + 10.0/24, 4 + 10.0/24, 5 + 10.0/24}
	for i, p := range periods {
		assert.InDelta(t, expectedStarts[i], p.Start, 1e-9)
		assert.InDelta(t, p.Start+20.0/24, p.End, 1e-9, "each period lasts 20 hours")
		assert.Same(t, rule, p.Rule)
	}
}

func TestPeriodOverlap(t *testing.T) {
	period := func(day int, start, end string) Period {
		rule := &model.ReservationRule{
			StartTime: mustDayTime(t, start),
			EndTime:   mustDayTime(t, end),
			StartDays: model.WeekdaySetOf(day),
		}
		return PeriodsOf(rule)[0]
	}

	p1 := period(1, "10:00", "14:00")
	assert.True(t, p1.Overlaps(p1), "a period overlaps itself")

	p2 := period(1, "08:00", "10:00")
	assert.False(t, p1.Overlaps(p2), "a period that ends at another's start does not overlap it")
	assert.False(t, p2.Overlaps(p1))

	p3 := period(1, "09:00", "11:00")
	assert.True(t, p1.Overlaps(p3))
	assert.True(t, p3.Overlaps(p1))

	p4 := period(2, "08:00", "12:00")
	assert.False(t, p1.Overlaps(p4), "periods on distinct days do not overlap")
	assert.False(t, p4.Overlaps(p1))
}

func TestToCircle(t *testing.T) {
	oslo, err := time.LoadLocation("Europe/Oslo")
	assert.NoError(t, err)

	// 2025-01-06 is a Monday.
	monMidnight := time.Date(2025, 1, 6, 0, 0, 0, 0, oslo)
	assert.InDelta(t, 0, ToCircle(monMidnight, oslo), 1e-9)

	wedNoon := time.Date(2025, 1, 8, 12, 0, 0, 0, oslo)
	assert.InDelta(t, 2.5, ToCircle(wedNoon, oslo), 1e-9)

	// UTC instants are projected in the configured location (CET = UTC+1).
	sun23utc := time.Date(2025, 1, 5, 23, 30, 0, 0, time.UTC)
	assert.InDelta(t, 0.5/24, ToCircle(sun23utc, oslo), 1e-9,
		"Sunday 23:30 UTC is Monday 00:30 in Oslo")
}
