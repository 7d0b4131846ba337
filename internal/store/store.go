// Package store is the persistence boundary of the reservation service. All
// other components read and write through the Store interface; the GORM
// implementation serializes competing writers per machine.
package store

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"makerspace-reservation-backend/internal/model"
)

// Store defines the repository operations used by the reservation core and
// the administrative API.
type Store interface {
	Machine(ctx context.Context, id int64) (*model.Machine, error)
	ListMachines(ctx context.Context) ([]model.Machine, error)
	SaveMachine(ctx context.Context, m *model.Machine) error
	CountMachinesOfType(ctx context.Context, machineTypeID int64) (int64, error)

	MachineType(ctx context.Context, id int64) (*model.MachineType, error)
	ListMachineTypes(ctx context.Context) ([]model.MachineType, error)

	ListRules(ctx context.Context, machineTypeID int64) ([]model.ReservationRule, error)
	SaveRule(ctx context.Context, r *model.ReservationRule) error
	DeleteRule(ctx context.Context, id int64) error

	QuotasFor(ctx context.Context, userID, machineTypeID int64) ([]model.Quota, error)
	SaveQuota(ctx context.Context, q *model.Quota) error
	DeleteQuota(ctx context.Context, id int64) error
	CountActiveOnQuota(ctx context.Context, q *model.Quota, userID int64, now time.Time, excludeReservationID int64) (int64, error)

	Reservation(ctx context.Context, id int64) (*model.Reservation, error)
	ListReservations(ctx context.Context, machineID int64, from, to time.Time) ([]model.Reservation, error)
	OverlapExists(ctx context.Context, machineID int64, start, end time.Time, excludeReservationID int64) (bool, error)
	CountUserConcurrent(ctx context.Context, userID, machineTypeID int64, start, end time.Time, excludeReservationID int64) (int64, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
	UpdateReservation(ctx context.Context, r *model.Reservation) error
	DeleteReservation(ctx context.Context, id int64) error

	UsageRule(ctx context.Context, machineTypeID int64) (*model.MachineUsageRule, error)
	SaveUsageRule(ctx context.Context, u *model.MachineUsageRule) error

	// WithMachineLock runs fn in a transaction holding a write lock on the
	// machine row, serializing the read-overlap-then-insert sequence against
	// other writers on the same machine. fn receives a Store bound to the
	// transaction. The transaction is retried once on serialization conflicts.
	WithMachineLock(ctx context.Context, machineID int64, fn func(Store) error) error
}

// gormStore implements Store using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Machine(ctx context.Context, id int64) (*model.Machine, error) {
	var m model.Machine
	if err := s.db.WithContext(ctx).Preload("MachineType").First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *gormStore) ListMachines(ctx context.Context) ([]model.Machine, error) {
	var machines []model.Machine
	err := s.db.WithContext(ctx).
		Joins("JOIN machine_types ON machine_types.id = machines.machine_type_id").
		Order("machine_types.priority, machines.priority NULLS LAST, lower(machines.name)").
		Preload("MachineType").
		Find(&machines).Error
	return machines, err
}

func (s *gormStore) SaveMachine(ctx context.Context, m *model.Machine) error {
	return s.db.WithContext(ctx).Save(m).Error
}

func (s *gormStore) CountMachinesOfType(ctx context.Context, machineTypeID int64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Machine{}).
		Where("machine_type_id = ?", machineTypeID).
		Count(&n).Error
	return n, err
}

func (s *gormStore) MachineType(ctx context.Context, id int64) (*model.MachineType, error) {
	var t model.MachineType
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *gormStore) ListMachineTypes(ctx context.Context) ([]model.MachineType, error) {
	var types []model.MachineType
	err := s.db.WithContext(ctx).Order("priority").Preload("Machines").Find(&types).Error
	return types, err
}

func (s *gormStore) ListRules(ctx context.Context, machineTypeID int64) ([]model.ReservationRule, error) {
	var rules []model.ReservationRule
	err := s.db.WithContext(ctx).
		Where("machine_type_id = ?", machineTypeID).
		Order("id").
		Find(&rules).Error
	return rules, err
}

func (s *gormStore) SaveRule(ctx context.Context, r *model.ReservationRule) error {
	return s.db.WithContext(ctx).Save(r).Error
}

func (s *gormStore) DeleteRule(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&model.ReservationRule{}, id).Error
}

// QuotasFor returns the union of the user's own quotas and the all-user
// quotas for the machine type. User-scoped quotas come first.
func (s *gormStore) QuotasFor(ctx context.Context, userID, machineTypeID int64) ([]model.Quota, error) {
	var quotas []model.Quota
	err := s.db.WithContext(ctx).
		Where("machine_type_id = ? AND (user_id = ? OR \"all\")", machineTypeID, userID).
		Order("\"all\", id").
		Find(&quotas).Error
	return quotas, err
}

func (s *gormStore) SaveQuota(ctx context.Context, q *model.Quota) error {
	return s.db.WithContext(ctx).Save(q).Error
}

func (s *gormStore) DeleteQuota(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&model.Quota{}, id).Error
}

// CountActiveOnQuota counts the reservations currently consuming the quota
// for the given user. Diminishing quotas count every reservation ever
// attributed to them; normal quotas only those that have not ended yet.
func (s *gormStore) CountActiveOnQuota(ctx context.Context, q *model.Quota, userID int64, now time.Time, excludeReservationID int64) (int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("quota_id = ?", q.ID)
	if q.All {
		query = query.Where("user_id = ?", userID)
	}
	if !q.Diminishing {
		query = query.Where("end_time > ?", now)
	}
	if excludeReservationID != 0 {
		query = query.Where("id <> ?", excludeReservationID)
	}
	var n int64
	err := query.Count(&n).Error
	return n, err
}

func (s *gormStore) Reservation(ctx context.Context, id int64) (*model.Reservation, error) {
	var r model.Reservation
	if err := s.db.WithContext(ctx).Preload("Machine").Preload("Machine.MachineType").First(&r, id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *gormStore) ListReservations(ctx context.Context, machineID int64, from, to time.Time) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := s.db.WithContext(ctx).
		Where("machine_id = ? AND start_time < ? AND end_time > ?", machineID, to, from).
		Order("start_time").
		Find(&reservations).Error
	return reservations, err
}

// OverlapExists reports whether any reservation on the machine intersects the
// half-open interval [start, end), excluding the reservation under edit.
func (s *gormStore) OverlapExists(ctx context.Context, machineID int64, start, end time.Time, excludeReservationID int64) (bool, error) {
	query := s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("machine_id = ? AND start_time < ? AND end_time > ?", machineID, end, start)
	if excludeReservationID != 0 {
		query = query.Where("id <> ?", excludeReservationID)
	}
	var n int64
	if err := query.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountUserConcurrent counts the user's personal reservations on machines of
// the type that intersect [start, end).
func (s *gormStore) CountUserConcurrent(ctx context.Context, userID, machineTypeID int64, start, end time.Time, excludeReservationID int64) (int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Reservation{}).
		Joins("JOIN machines ON machines.id = reservations.machine_id").
		Where("machines.machine_type_id = ?", machineTypeID).
		Where("reservations.user_id = ?", userID).
		Where("reservations.start_time < ? AND reservations.end_time > ?", end, start).
		Where("reservations.event_id IS NULL AND NOT reservations.special")
	if excludeReservationID != 0 {
		query = query.Where("reservations.id <> ?", excludeReservationID)
	}
	var n int64
	err := query.Count(&n).Error
	return n, err
}

func (s *gormStore) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *gormStore) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	return s.db.WithContext(ctx).Save(r).Error
}

func (s *gormStore) DeleteReservation(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&model.Reservation{}, id).Error
}

func (s *gormStore) UsageRule(ctx context.Context, machineTypeID int64) (*model.MachineUsageRule, error) {
	var u model.MachineUsageRule
	if err := s.db.WithContext(ctx).First(&u, "machine_type_id = ?", machineTypeID).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *gormStore) SaveUsageRule(ctx context.Context, u *model.MachineUsageRule) error {
	return s.db.WithContext(ctx).Save(u).Error
}

// WithMachineLock serializes writers by taking a FOR UPDATE lock on the
// machine row for the duration of fn's transaction. A serialization conflict
// is retried once; the second failure surfaces to the caller.
func (s *gormStore) WithMachineLock(ctx context.Context, machineID int64, fn func(Store) error) error {
	run := func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := lockMachineRow(tx, machineID); err != nil {
				return fmt.Errorf("locking machine %d: %w", machineID, err)
			}
			return fn(&gormStore{db: tx})
		})
	}

	err := run()
	if err != nil && isSerializationFailure(err) {
		log.Printf("retrying machine %d transaction after serialization conflict: %v", machineID, err)
		err = run()
	}
	return err
}

// lockMachineRow takes a write lock on the machine row. Postgres supports
// SELECT FOR UPDATE; sqlite does not, so there the row is touched to claim
// the database write lock for the rest of the transaction.
func lockMachineRow(tx *gorm.DB, machineID int64) error {
	if tx.Dialector.Name() == "sqlite" {
		res := tx.Model(&model.Machine{}).
			Where("id = ?", machineID).
			Update("updated_at", time.Now().UTC())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}
	var m model.Machine
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, machineID).Error
}

// isSerializationFailure matches postgres serialization/deadlock failures
// (SQLSTATE 40001/40P01) and sqlite's write contention error.
func isSerializationFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "40001") ||
		strings.Contains(msg, "40P01") ||
		strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "database is locked")
}
