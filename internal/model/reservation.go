package model

import "time"

// Quota is a policy envelope authorizing reservations on a machine type,
// scoped either to a single user or to all users.
type Quota struct {
	ID            int64  `gorm:"primaryKey" json:"id"`
	MachineTypeID int64  `gorm:"index;not null" json:"machineTypeId"`
	All           bool   `gorm:"not null;default:false" json:"all"`
	UserID        *int64 `gorm:"index" json:"userId,omitempty"`
	// NumberOfReservations caps the user's concurrent active reservations
	// attributed to this quota.
	NumberOfReservations int  `gorm:"not null;default:1" json:"numberOfReservations"`
	IgnoreRules          bool `gorm:"not null;default:false" json:"ignoreRules"`
	// Diminishing quotas are consumed permanently: a reservation keeps
	// counting against them after its end time has passed.
	Diminishing bool `gorm:"not null;default:false" json:"diminishing"`
	// MaxHours is a per-quota duration cap carried by older quota rows.
	MaxHours  *float64  `json:"maxHours,omitempty"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Reservation is a user's committed time window on a specific machine.
// Intervals are half-open [StartTime, EndTime) UTC instants.
type Reservation struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"userId"`
	MachineID int64     `gorm:"index:idx_reservations_machine_start,priority:1;not null" json:"machineId"`
	StartTime time.Time `gorm:"index:idx_reservations_machine_start,priority:2;not null" json:"startTime"`
	EndTime   time.Time `gorm:"not null" json:"endTime"`
	EventID   *int64    `json:"eventId,omitempty"`
	Special   bool      `gorm:"not null;default:false" json:"special"`
	SpecialText string  `json:"specialText,omitempty"`
	Comment     string  `json:"comment,omitempty"`
	QuotaID     *int64  `gorm:"index" json:"quotaId,omitempty"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`

	// Associations
	Machine Machine `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Quota   *Quota  `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}

// Personal reports whether the reservation consumes an ordinary user quota,
// as opposed to event and special reservations made by the makerspace itself.
func (r *Reservation) Personal() bool {
	return r.EventID == nil && !r.Special
}

// Overlaps reports whether the half-open intervals of two reservations
// intersect. Touching endpoints do not overlap.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}
