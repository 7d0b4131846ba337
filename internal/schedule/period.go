// Package schedule implements the weekly circular-timeline arithmetic behind
// reservation rules. A point in time is projected onto [0, 7) day-fraction
// units, Monday 00:00 being 0, and rule periods are half-open arcs on that
// circle.
package schedule

import (
	"math"
	"time"

	"makerspace-reservation-backend/internal/model"
)

// Period is one single-week materialization of a rule, starting on a
// specific weekday. Start is in [0, 7); End may exceed 7 and is interpreted
// modulo 7 by the overlap arithmetic.
type Period struct {
	Start float64
	End   float64
	Rule  *model.ReservationRule
}

// PeriodsOf expands a rule into one period per start day.
func PeriodsOf(rule *model.ReservationRule) []Period {
	days := rule.StartDays.Days()
	periods := make([]Period, 0, len(days))
	for _, day := range days {
		periods = append(periods, Period{
			Start: float64(day-1) + rule.StartTime.DayFraction(),
			End:   float64(day-1+rule.DaysChanged) + rule.EndTime.DayFraction(),
			Rule:  rule,
		})
	}
	return periods
}

// ToCircle projects an instant onto the weekly circle in the given location.
func ToCircle(t time.Time, loc *time.Location) float64 {
	t = t.In(loc)
	day := (int(t.Weekday()) + 6) % 7 // Monday-based
	frac := (float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600 +
		float64(t.Nanosecond())/(3600*1e9)) / 24
	return float64(day) + frac
}

func mod7(x float64) float64 {
	m := math.Mod(x, 7)
	if m < 0 {
		m += 7
	}
	return m
}

// HoursOverlap computes the length in hours of the intersection of the
// half-open arcs [a, b) and [c, d) on the mod-7 circle. Touching endpoints
// yield zero.
func HoursOverlap(a, b, c, d float64) float64 {
	b, c, d = mod7(b-a), mod7(c-a), mod7(d-a)

	if c > d {
		return math.Min(b, d) * 24
	}
	return (math.Min(b, d) - math.Min(b, c)) * 24
}

// HoursInside is the number of hours of [start, end) lying inside the period.
func (p Period) HoursInside(start, end float64) float64 {
	return HoursOverlap(p.Start, p.End, start, end)
}

// Overlaps reports whether two periods share a positive amount of time.
func (p Period) Overlaps(other Period) bool {
	return HoursOverlap(p.Start, p.End, other.Start, other.End) > 0
}
