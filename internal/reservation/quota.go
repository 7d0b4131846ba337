package reservation

import (
	"context"
	"sort"
	"time"

	"makerspace-reservation-backend/internal/model"
	"makerspace-reservation-backend/internal/store"
)

// sortQuotas orders eligible quotas by preference: user-scoped before
// all-scoped, non-diminishing before diminishing, rule-following before
// rule-ignoring. Picking the least powerful sufficient quota first keeps the
// permissive ones in reserve.
func sortQuotas(quotas []model.Quota) {
	sort.SliceStable(quotas, func(i, j int) bool {
		a, b := &quotas[i], &quotas[j]
		if a.All != b.All {
			return !a.All
		}
		if a.Diminishing != b.Diminishing {
			return !a.Diminishing
		}
		if a.IgnoreRules != b.IgnoreRules {
			return !a.IgnoreRules
		}
		return a.ID < b.ID
	})
}

// eligibleQuotas returns the quotas that could authorize a reservation for
// the user on the machine type, in preference order.
func eligibleQuotas(ctx context.Context, s store.Store, userID, machineTypeID int64) ([]model.Quota, error) {
	quotas, err := s.QuotasFor(ctx, userID, machineTypeID)
	if err != nil {
		return nil, err
	}
	sortQuotas(quotas)
	return quotas, nil
}

// quotaHasCapacity reports whether the quota can take on one more active
// reservation for the user, not counting the reservation under edit.
func quotaHasCapacity(ctx context.Context, s store.Store, q *model.Quota, userID int64, now time.Time, excludeReservationID int64) (bool, error) {
	active, err := s.CountActiveOnQuota(ctx, q, userID, now, excludeReservationID)
	if err != nil {
		return false, err
	}
	return active < int64(q.NumberOfReservations), nil
}
