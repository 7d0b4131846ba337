// Package reservation implements the reservation core: quota resolution,
// validation of new and updated reservations against the machine type's
// rules, and the free-slot search. All persistence goes through store.Store.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"makerspace-reservation-backend/internal/model"
	"makerspace-reservation-backend/internal/reject"
	"makerspace-reservation-backend/internal/schedule"
	"makerspace-reservation-backend/internal/store"
)

// Config carries the reservation policy knobs.
type Config struct {
	// HorizonDays is how far into the future a normal reservation may end.
	HorizonDays int
	// Location is the makerspace's timezone; weekly rule arithmetic runs in it.
	Location *time.Location
	// SlotSearchMaxDays bounds the free-slot search window.
	SlotSearchMaxDays int
	// Grace allows reservations to start slightly in the past, absorbing the
	// time spent filling in the form.
	Grace time.Duration
}

// Service validates and persists reservations.
type Service struct {
	store store.Store
	cfg   Config
	now   func() time.Time
}

// NewService creates a reservation service. now may be nil for time.Now.
func NewService(s store.Store, cfg Config, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 28
	}
	if cfg.SlotSearchMaxDays <= 0 {
		cfg.SlotSearchMaxDays = 90
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{store: s, cfg: cfg, now: now}
}

// Request describes a reservation to create or the new state of one to
// update.
type Request struct {
	MachineID   int64
	Start       time.Time
	End         time.Time
	EventID     *int64
	Special     bool
	SpecialText string
	Comment     string
	// QuotaID optionally pins the quota to consume; when nil the service
	// resolves one.
	QuotaID *int64
}

func (r *Request) personal() bool {
	return r.EventID == nil && !r.Special
}

// Create validates and persists a new reservation. It returns either the
// persisted reservation, a non-empty list of rejection reasons, or an
// infrastructure error.
func (s *Service) Create(ctx context.Context, p Principal, req Request) (*model.Reservation, reject.List, error) {
	machine, err := s.store.Machine(ctx, req.MachineID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, reject.List{reject.New(reject.NotFound, "machine %d does not exist", req.MachineID)}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading machine %d: %w", req.MachineID, err)
	}

	reservation := &model.Reservation{
		UserID:      p.UserID,
		MachineID:   machine.ID,
		StartTime:   req.Start.UTC(),
		EndTime:     req.End.UTC(),
		EventID:     req.EventID,
		Special:     req.Special,
		SpecialText: req.SpecialText,
		Comment:     req.Comment,
	}
	return s.validateAndPersist(ctx, p, machine, reservation, req.QuotaID, false)
}

// Update applies a change to an existing reservation. Only the end time and
// the text fields of a personal reservation may change, and only before the
// reservation has started; event and special reservations stay editable for
// capability holders.
func (s *Service) Update(ctx context.Context, p Principal, reservationID int64, req Request) (*model.Reservation, reject.List, error) {
	existing, err := s.store.Reservation(ctx, reservationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, reject.List{reject.New(reject.NotFound, "reservation %d does not exist", reservationID)}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading reservation %d: %w", reservationID, err)
	}

	now := s.now()
	eventOrSpecial := existing.EventID != nil || existing.Special
	switch {
	case eventOrSpecial:
		if !p.Has(CapCreateEventReservation) {
			return nil, reject.List{reject.New(reject.Forbidden, "event reservations require the %s capability", CapCreateEventReservation)}, nil
		}
	case existing.UserID != p.UserID:
		return nil, reject.List{reject.New(reject.Forbidden, "only the owner may change a reservation")}, nil
	case !existing.StartTime.After(now):
		return nil, reject.List{reject.New(reject.Immutable, "the reservation has already started")}, nil
	}

	// The machine, user and start time are immutable across an update.
	if req.MachineID != 0 && req.MachineID != existing.MachineID {
		return nil, reject.List{reject.New(reject.Immutable, "a reservation cannot be moved to another machine")}, nil
	}
	if !eventOrSpecial && !req.Start.IsZero() && !req.Start.UTC().Equal(existing.StartTime) {
		return nil, reject.List{reject.New(reject.Immutable, "a reservation cannot be moved, only extended")}, nil
	}

	machine, err := s.store.Machine(ctx, existing.MachineID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading machine %d: %w", existing.MachineID, err)
	}

	updated := *existing
	if eventOrSpecial && !req.Start.IsZero() {
		updated.StartTime = req.Start.UTC()
	}
	if !req.End.IsZero() {
		updated.EndTime = req.End.UTC()
	}
	updated.SpecialText = req.SpecialText
	updated.Comment = req.Comment

	return s.validateAndPersist(ctx, p, machine, &updated, req.QuotaID, true)
}

// validateAndPersist runs the full check list and commits under the machine
// lock. isUpdate excludes the reservation's own row from overlap and
// capacity counting.
func (s *Service) validateAndPersist(ctx context.Context, p Principal, machine *model.Machine, r *model.Reservation, quotaID *int64, isUpdate bool) (*model.Reservation, reject.List, error) {
	now := s.now()
	personal := r.Personal()

	var rejections reject.List
	if !p.MeetsUsageRequirement(machine.MachineType.UsageRequirement) {
		rejections = append(rejections, reject.New(reject.MissingCapability,
			"using this machine requires %q", machine.MachineType.UsageRequirement))
	}
	if !machine.Reservable() {
		rejections = append(rejections, reject.New(reject.MachineUnavailable, "machine is %s", machine.Status))
	}
	if !r.StartTime.Before(r.EndTime) {
		rejections = append(rejections, reject.New(reject.EmptyOrInvertedInterval, "start time must precede end time"))
	}
	if !personal && !p.Has(CapCreateEventReservation) {
		rejections = append(rejections, reject.New(reject.MissingCapability,
			"event and special reservations require the %s capability", CapCreateEventReservation))
	}
	if personal {
		if !isUpdate && r.StartTime.Before(now.Add(-s.cfg.Grace)) {
			rejections = append(rejections, reject.New(reject.AlreadyStarted, "reservations cannot start in the past"))
		}
		horizon := now.Add(time.Duration(s.cfg.HorizonDays) * 24 * time.Hour)
		if r.EndTime.After(horizon) {
			rejections = append(rejections, reject.New(reject.ExceedsHorizon,
				"reservations may end at most %d days ahead", s.cfg.HorizonDays))
		}
	}
	if len(rejections) > 0 {
		return nil, rejections, nil
	}

	if personal {
		quota, rej, err := s.resolveQuota(ctx, p, machine, r, quotaID, isUpdate)
		if err != nil {
			return nil, nil, err
		}
		if rej != nil {
			return nil, reject.List{rej}, nil
		}
		r.QuotaID = &quota.ID
	}

	var excludeID int64
	if isUpdate {
		excludeID = r.ID
	}

	err := s.store.WithMachineLock(ctx, machine.ID, func(tx store.Store) error {
		overlapping, err := tx.OverlapExists(ctx, machine.ID, r.StartTime, r.EndTime, excludeID)
		if err != nil {
			return fmt.Errorf("overlap query: %w", err)
		}
		if overlapping {
			rejections = append(rejections, reject.New(reject.Overlap, "the machine is already reserved in this window"))
			return nil
		}

		if personal {
			rej, err := s.checkFairnessCap(ctx, tx, p.UserID, machine, r.StartTime, r.EndTime, excludeID)
			if err != nil {
				return err
			}
			if rej != nil {
				rejections = append(rejections, rej)
				return nil
			}
		}

		if isUpdate {
			return tx.UpdateReservation(ctx, r)
		}
		return tx.InsertReservation(ctx, r)
	})
	if err != nil {
		return nil, nil, err
	}
	if len(rejections) > 0 {
		return nil, rejections, nil
	}
	return r, nil, nil
}

// resolveQuota picks the quota the reservation will consume: the first
// eligible quota, in preference order, that has capacity and admits the
// interval. When quotaID is set only that quota is considered.
func (s *Service) resolveQuota(ctx context.Context, p Principal, machine *model.Machine, r *model.Reservation, quotaID *int64, isUpdate bool) (*model.Quota, *reject.Rejection, error) {
	quotas, err := eligibleQuotas(ctx, s.store, p.UserID, machine.MachineTypeID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading quotas: %w", err)
	}
	if quotaID != nil {
		filtered := quotas[:0]
		for _, q := range quotas {
			if q.ID == *quotaID {
				filtered = append(filtered, q)
			}
		}
		quotas = filtered
	}
	if len(quotas) == 0 {
		return nil, reject.New(reject.NoQuotaAvailable, "no quota grants reservations on this machine type"), nil
	}

	now := s.now()
	duration := r.EndTime.Sub(r.StartTime).Hours()

	var excludeID int64
	if isUpdate {
		excludeID = r.ID
	}

	// Remember the rejection of the most preferred quota that had capacity
	// but refused the interval; it is more useful to the caller than a
	// generic exhaustion message.
	var intervalRejection *reject.Rejection

	var rules []model.ReservationRule
	rulesLoaded := false

	for i := range quotas {
		quota := &quotas[i]
		ok, err := quotaHasCapacity(ctx, s.store, quota, p.UserID, now, excludeID)
		if err != nil {
			return nil, nil, fmt.Errorf("counting quota %d usage: %w", quota.ID, err)
		}
		if !ok {
			continue
		}

		if quota.MaxHours != nil && duration > *quota.MaxHours {
			if intervalRejection == nil {
				intervalRejection = reject.New(reject.ExceedsMaxHours,
					"duration %.2fh exceeds the quota maximum of %.2fh", duration, *quota.MaxHours)
			}
			continue
		}
		if !quota.IgnoreRules {
			if !rulesLoaded {
				rules, err = s.store.ListRules(ctx, machine.MachineTypeID)
				if err != nil {
					return nil, nil, fmt.Errorf("loading rules: %w", err)
				}
				rulesLoaded = true
			}
			if rej := schedule.CheckInterval(rules, r.StartTime, r.EndTime, s.cfg.Location); rej != nil {
				if intervalRejection == nil {
					intervalRejection = rej
				}
				continue
			}
		}
		return quota, nil, nil
	}

	if intervalRejection != nil {
		return nil, intervalRejection, nil
	}
	return nil, reject.New(reject.QuotaExhausted, "all quotas for this machine type are used up"), nil
}

// checkFairnessCap enforces the per-type cap on how many machines one user
// may hold at the same time.
func (s *Service) checkFairnessCap(ctx context.Context, tx store.Store, userID int64, machine *model.Machine, start, end time.Time, excludeID int64) (*reject.Rejection, error) {
	machineCount, err := tx.CountMachinesOfType(ctx, machine.MachineTypeID)
	if err != nil {
		return nil, fmt.Errorf("counting machines: %w", err)
	}
	limit := int64(math.Ceil(float64(machineCount) * machine.MachineType.ConcurrentMachineFraction))
	if limit < 1 {
		limit = 1
	}

	concurrent, err := tx.CountUserConcurrent(ctx, userID, machine.MachineTypeID, start, end, excludeID)
	if err != nil {
		return nil, fmt.Errorf("counting concurrent reservations: %w", err)
	}
	if concurrent+1 > limit {
		return reject.New(reject.TooManySimultaneous,
			"at most %d simultaneous reservations on this machine type", limit), nil
	}
	return nil, nil
}

// Delete removes a reservation. Owners may delete before the start time;
// holders of the event capability may delete event and special reservations
// at any time.
func (s *Service) Delete(ctx context.Context, p Principal, reservationID int64) (reject.List, error) {
	r, err := s.store.Reservation(ctx, reservationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reject.List{reject.New(reject.NotFound, "reservation %d does not exist", reservationID)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading reservation %d: %w", reservationID, err)
	}

	eventOrSpecial := r.EventID != nil || r.Special
	if eventOrSpecial && p.Has(CapCreateEventReservation) {
		return nil, s.store.DeleteReservation(ctx, reservationID)
	}
	if r.UserID != p.UserID {
		return reject.List{reject.New(reject.Forbidden, "only the owner may delete a reservation")}, nil
	}
	if !r.StartTime.After(s.now()) {
		return reject.List{reject.New(reject.AlreadyStarted, "started reservations cannot be deleted")}, nil
	}
	return nil, s.store.DeleteReservation(ctx, reservationID)
}
