package model

import (
	"fmt"
	"time"
)

// DayTime is a time of day stored as seconds since midnight.
type DayTime int

// ParseDayTime parses "HH:MM" or "HH:MM:SS". "24:00" is accepted as the end
// of the day.
func ParseDayTime(s string) (DayTime, error) {
	var h, m, sec int
	switch n, _ := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); n {
	case 2, 3:
	default:
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || sec < 0 || sec > 59 || (h == 24 && (m != 0 || sec != 0)) {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return DayTime(h*3600 + m*60 + sec), nil
}

// String renders the time of day as "HH:MM:SS".
func (t DayTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)/60%60, int(t)%60)
}

// DayFraction is the time of day as a fraction of a day in [0, 1].
func (t DayTime) DayFraction() float64 {
	return float64(t) / (24 * 60 * 60)
}

// MarshalJSON renders the value as a "HH:MM:SS" string.
func (t DayTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted "HH:MM[:SS]" string.
func (t *DayTime) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("invalid time of day %s", b)
	}
	parsed, err := ParseDayTime(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// WeekdaySet is a bitmask of ISO weekdays: bit 0 is Monday, bit 6 is Sunday.
type WeekdaySet int

// WeekdaySetOf builds a set from ISO weekday numbers (1 = Monday .. 7 = Sunday).
func WeekdaySetOf(days ...int) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		if d >= 1 && d <= 7 {
			s |= 1 << (d - 1)
		}
	}
	return s
}

// Days returns the contained ISO weekday numbers in ascending order.
func (s WeekdaySet) Days() []int {
	var days []int
	for d := 1; d <= 7; d++ {
		if s&(1<<(d-1)) != 0 {
			days = append(days, d)
		}
	}
	return days
}

// Contains reports whether the ISO weekday d is in the set.
func (s WeekdaySet) Contains(d int) bool {
	return d >= 1 && d <= 7 && s&(1<<(d-1)) != 0
}

// Empty reports whether no weekday is set.
func (s WeekdaySet) Empty() bool { return s == 0 }

// ReservationRule is a weekly repeating admissibility window for a machine
// type, with duration caps. One period starts on each weekday in StartDays;
// the period runs from StartTime to EndTime with DaysChanged midnight
// crossings in between.
type ReservationRule struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	MachineTypeID int64      `gorm:"index;not null" json:"machineTypeId"`
	StartTime     DayTime    `gorm:"not null" json:"startTime"`
	EndTime       DayTime    `gorm:"not null" json:"endTime"`
	DaysChanged   int        `gorm:"not null" json:"daysChanged"`
	StartDays     WeekdaySet `gorm:"not null" json:"startDays"`
	// MaxHours caps a reservation lying inside a single period of this rule;
	// MaxHoursBorderCrossed caps one that also touches a neighbouring period.
	MaxHours              float64   `gorm:"not null" json:"maxHours"`
	MaxHoursBorderCrossed float64   `gorm:"not null" json:"maxHoursBorderCrossed"`
	CreatedAt             time.Time `json:"-"`
	UpdatedAt             time.Time `json:"-"`
}
