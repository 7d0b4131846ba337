package reservation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"makerspace-reservation-backend/internal/model"
	"makerspace-reservation-backend/internal/reject"
	"makerspace-reservation-backend/internal/schedule"
)

// FindFreeSlots reports the start times within [from, to) at which a
// reservation of the given duration on the machine would be admissible under
// the machine type's rules and would not collide with existing reservations.
// The result is sorted ascending and free of duplicates.
func (s *Service) FindFreeSlots(ctx context.Context, machineID int64, duration time.Duration, from, to time.Time) ([]time.Time, reject.List, error) {
	if duration <= 0 || !from.Before(to) {
		return nil, reject.List{reject.New(reject.EmptyOrInvertedInterval, "duration and search window must be positive")}, nil
	}
	if to.Sub(from) > time.Duration(s.cfg.SlotSearchMaxDays)*24*time.Hour {
		return nil, reject.List{reject.New(reject.SearchWindowTooLong,
			"search windows are limited to %d days", s.cfg.SlotSearchMaxDays)}, nil
	}

	machine, err := s.store.Machine(ctx, machineID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, reject.List{reject.New(reject.NotFound, "machine %d does not exist", machineID)}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading machine %d: %w", machineID, err)
	}
	if !machine.Reservable() {
		return nil, reject.List{reject.New(reject.MachineUnavailable, "machine is %s", machine.Status)}, nil
	}

	rules, err := s.store.ListRules(ctx, machine.MachineTypeID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading rules: %w", err)
	}
	// Reservations ending after the window start can collide with a slot
	// that starts inside the window and runs past its end.
	reservations, err := s.store.ListReservations(ctx, machineID, from, to.Add(duration))
	if err != nil {
		return nil, nil, fmt.Errorf("loading reservations: %w", err)
	}

	candidates := s.slotCandidates(rules, reservations, from, to)

	var slots []time.Time
	var last time.Time
	for _, candidate := range candidates {
		if candidate.Before(from) || !candidate.Before(to) {
			continue
		}
		if len(slots) > 0 && candidate.Equal(last) {
			continue
		}
		end := candidate.Add(duration)
		if schedule.CheckInterval(rules, candidate, end, s.cfg.Location) != nil {
			continue
		}
		if overlapsAny(reservations, candidate, end) {
			continue
		}
		slots = append(slots, candidate)
		last = candidate
	}
	return slots, nil, nil
}

// slotCandidates enumerates the only start times worth testing: the window
// start, the end of each reservation, and every rule period boundary
// materialized over the weeks the window touches.
func (s *Service) slotCandidates(rules []model.ReservationRule, reservations []model.Reservation, from, to time.Time) []time.Time {
	candidates := []time.Time{from}
	for _, r := range reservations {
		candidates = append(candidates, r.EndTime)
	}

	week := startOfWeek(from, s.cfg.Location)
	for ; week.Before(to); week = week.AddDate(0, 0, 7) {
		for i := range rules {
			for _, period := range schedule.PeriodsOf(&rules[i]) {
				candidates = append(candidates,
					instantAt(week, period.Start),
					instantAt(week, period.End),
				)
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })
	return candidates
}

// startOfWeek returns Monday 00:00 of the week containing t, in loc.
func startOfWeek(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	t = t.AddDate(0, 0, -((int(t.Weekday()) + 6) % 7))
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// instantAt converts a circle point (day fraction relative to the week's
// Monday) back into an instant, keeping the civil time of day stable across
// DST transitions.
func instantAt(weekStart time.Time, point float64) time.Time {
	days := int(point)
	seconds := time.Duration((point - float64(days)) * 24 * float64(time.Hour))
	return weekStart.AddDate(0, 0, days).Add(seconds.Round(time.Second))
}

func overlapsAny(reservations []model.Reservation, start, end time.Time) bool {
	for i := range reservations {
		if reservations[i].Overlaps(start, end) {
			return true
		}
	}
	return false
}
