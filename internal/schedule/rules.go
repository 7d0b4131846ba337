package schedule

import (
	"time"

	"makerspace-reservation-backend/internal/model"
	"makerspace-reservation-backend/internal/reject"
)

// coverageEpsilon absorbs float noise when comparing hour sums; one
// nanosecond is ~2.8e-13 hours.
const coverageEpsilon = 1e-9

// CheckInterval decides whether the interval [start, end) is admissible under
// the given rules of one machine type. Weekday arithmetic happens in loc.
// A nil result means the interval is admissible.
func CheckInterval(rules []model.ReservationRule, start, end time.Time, loc *time.Location) *reject.Rejection {
	duration := end.Sub(start).Hours()
	if duration > 7*24 {
		return reject.New(reject.IntervalTooLong, "reservations longer than a week cannot be checked against weekly rules")
	}

	s := ToCircle(start, loc)
	e := ToCircle(end, loc)

	// Rules whose periods the interval intersects, and the hours spent in each.
	var (
		intersecting []*model.ReservationRule
		hoursIn      []float64
		covered      float64
	)
	for i := range rules {
		rule := &rules[i]
		var hours float64
		for _, period := range PeriodsOf(rule) {
			hours += period.HoursInside(s, e)
		}
		if hours > 0 {
			intersecting = append(intersecting, rule)
			hoursIn = append(hoursIn, hours)
			covered += hours
		}
	}
	if len(intersecting) == 0 {
		return reject.New(reject.RuleCoverageMissing, "no reservation rule covers the interval")
	}
	if covered < duration-coverageEpsilon {
		return reject.New(reject.RuleCoverageMissing, "part of the interval lies outside every rule period")
	}

	maxHours, minHours := intersecting[0].MaxHours, intersecting[0].MaxHours
	for _, rule := range intersecting[1:] {
		if rule.MaxHours > maxHours {
			maxHours = rule.MaxHours
		}
		if rule.MaxHours < minHours {
			minHours = rule.MaxHours
		}
	}
	if duration > maxHours {
		return reject.New(reject.ExceedsMaxHours, "duration %.2fh exceeds the maximum of %.2fh", duration, maxHours)
	}
	// Short enough for every intersected rule; no border consideration needed.
	if duration <= minHours {
		return nil
	}

	// The interval straddles a rule border: every intersected rule must allow
	// the full duration under its border-crossed cap.
	for _, rule := range intersecting {
		if duration > rule.MaxHoursBorderCrossed {
			return reject.New(reject.ExceedsBorderMaxHours,
				"duration %.2fh exceeds the border-crossed maximum of %.2fh", duration, rule.MaxHoursBorderCrossed)
		}
	}
	return nil
}

// ValidateRule checks a proposed rule against itself and against the other
// rules of the same machine type. The rule under edit is excluded from
// siblings by ID.
func ValidateRule(rule *model.ReservationRule, siblings []model.ReservationRule) *reject.Rejection {
	if rule.DaysChanged > 7 ||
		rule.StartTime >= rule.EndTime && rule.DaysChanged == 0 ||
		rule.DaysChanged == 7 && rule.StartTime < rule.EndTime {
		return reject.New(reject.PeriodTooLong, "rule period must be shorter than a week and non-empty")
	}
	if rule.StartDays.Empty() {
		return reject.New(reject.PeriodTooLong, "rule must start on at least one weekday")
	}

	periods := PeriodsOf(rule)
	for i, p1 := range periods {
		for j, p2 := range periods {
			if i != j && p1.Overlaps(p2) {
				return reject.New(reject.InternalOverlap, "rule periods overlap each other")
			}
		}
	}

	for i := range siblings {
		other := &siblings[i]
		if other.ID == rule.ID && rule.ID != 0 {
			continue
		}
		for _, p1 := range periods {
			for _, p2 := range PeriodsOf(other) {
				if p1.Overlaps(p2) {
					return reject.New(reject.CrossRuleOverlap, "rule periods overlap those of rule %d", other.ID)
				}
			}
		}
	}
	return nil
}
