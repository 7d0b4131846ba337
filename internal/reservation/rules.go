package reservation

import (
	"context"
	"fmt"

	"makerspace-reservation-backend/internal/model"
	"makerspace-reservation-backend/internal/reject"
	"makerspace-reservation-backend/internal/schedule"
)

// ValidateRule checks a proposed rule against the other rules of its machine
// type without persisting anything.
func (s *Service) ValidateRule(ctx context.Context, rule *model.ReservationRule) (reject.List, error) {
	siblings, err := s.store.ListRules(ctx, rule.MachineTypeID)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	if rej := schedule.ValidateRule(rule, siblings); rej != nil {
		return reject.List{rej}, nil
	}
	return nil, nil
}

// SaveRule validates and persists a new or edited rule. Operators only.
func (s *Service) SaveRule(ctx context.Context, p Principal, rule *model.ReservationRule) (reject.List, error) {
	if !p.Has(CapManageMachines) {
		return reject.List{reject.New(reject.MissingCapability, "editing rules requires the %s capability", CapManageMachines)}, nil
	}
	rejections, err := s.ValidateRule(ctx, rule)
	if err != nil || len(rejections) > 0 {
		return rejections, err
	}
	if err := s.store.SaveRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("saving rule: %w", err)
	}
	return nil, nil
}

// DeleteRule removes a rule. Operators only.
func (s *Service) DeleteRule(ctx context.Context, p Principal, ruleID int64) (reject.List, error) {
	if !p.Has(CapManageMachines) {
		return reject.List{reject.New(reject.MissingCapability, "editing rules requires the %s capability", CapManageMachines)}, nil
	}
	return nil, s.store.DeleteRule(ctx, ruleID)
}
