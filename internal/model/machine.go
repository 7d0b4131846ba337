package model

import "time"

// UsageRequirement is the capability a user must hold to use machines of a type.
type UsageRequirement string

const (
	RequireAuthenticated  UsageRequirement = "authenticated"
	RequireBasicCourse    UsageRequirement = "course-completed-basic"
	RequireAdvancedCourse UsageRequirement = "course-completed-advanced"
)

// Valid reports whether the requirement is one of the known values.
func (r UsageRequirement) Valid() bool {
	switch r {
	case RequireAuthenticated, RequireBasicCourse, RequireAdvancedCourse:
		return true
	}
	return false
}

// MachineType groups machines that share reservation rules and quotas.
type MachineType struct {
	ID               int64            `gorm:"primaryKey" json:"id"`
	Name             string           `gorm:"uniqueIndex;size:256;not null" json:"name"`
	UsageRequirement UsageRequirement `gorm:"size:32;not null;default:authenticated" json:"usageRequirement"`
	// Fraction of the type's machines one user may hold simultaneous
	// reservations on. 0.5 for the 3D printers, 1.0 for the sewing machines.
	ConcurrentMachineFraction float64   `gorm:"not null;default:1" json:"concurrentMachineFraction"`
	Priority                  int       `gorm:"index;not null" json:"priority"`
	CreatedAt                 time.Time `json:"-"`
	UpdatedAt                 time.Time `json:"-"`

	// Associations
	Machines []Machine         `gorm:"foreignKey:MachineTypeID" json:"machines,omitempty"`
	Rules    []ReservationRule `gorm:"foreignKey:MachineTypeID" json:"-"`
}

// MachineStatus is the operator-set state of a machine.
type MachineStatus string

const (
	StatusAvailable   MachineStatus = "available"
	StatusOutOfOrder  MachineStatus = "out_of_order"
	StatusMaintenance MachineStatus = "maintenance"
)

// Machine is a single reservable device.
type Machine struct {
	ID            int64         `gorm:"primaryKey" json:"id"`
	Name          string        `gorm:"uniqueIndex;size:256;not null" json:"name"`
	MachineTypeID int64         `gorm:"index;not null" json:"machineTypeId"`
	Status        MachineStatus `gorm:"size:16;not null;default:available" json:"status"`
	Priority      *int          `json:"priority,omitempty"`
	Location      string        `gorm:"size:256" json:"location"`
	CreatedAt     time.Time     `json:"-"`
	UpdatedAt     time.Time     `json:"-"`

	// Associations
	MachineType MachineType `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

// Reservable reports whether the machine may be the target of new reservations.
func (m *Machine) Reservable() bool {
	return m.Status == StatusAvailable
}

// MachineUsageRule is the free-form usage text shown for a machine type.
// The content is opaque to the reservation core.
type MachineUsageRule struct {
	MachineTypeID int64     `gorm:"primaryKey" json:"machineTypeId"`
	Content       string    `gorm:"not null" json:"content"`
	UpdatedAt     time.Time `json:"lastModified"`
}
