package reservation

import "makerspace-reservation-backend/internal/model"

// Capabilities beyond the machine-type usage requirements. The surrounding
// web application decides who holds which capability; the core only checks
// membership.
const (
	CapCreateEventReservation = "create-event-reservation"
	CapManageMachines         = "manage-machines"
)

// Principal is the authenticated caller as supplied by the web application.
type Principal struct {
	UserID       int64
	Capabilities map[string]bool
}

// NewPrincipal builds a principal from a user ID and capability names.
func NewPrincipal(userID int64, capabilities ...string) Principal {
	caps := make(map[string]bool, len(capabilities))
	for _, c := range capabilities {
		caps[c] = true
	}
	return Principal{UserID: userID, Capabilities: caps}
}

// Has reports whether the principal holds the named capability.
func (p Principal) Has(capability string) bool {
	return p.Capabilities[capability]
}

// MeetsUsageRequirement reports whether the principal may use machines with
// the given requirement. Every authenticated principal satisfies
// RequireAuthenticated; the course requirements map to capability tags.
func (p Principal) MeetsUsageRequirement(req model.UsageRequirement) bool {
	if req == model.RequireAuthenticated {
		return p.UserID != 0
	}
	return p.Has(string(req))
}
