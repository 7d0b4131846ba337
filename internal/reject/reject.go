// Package reject defines the closed set of reasons a reservation, rule or
// slot-search request can be refused. Rejections are ordinary values carried
// back to the caller; only infrastructure errors flow as wrapped errors.
package reject

import "fmt"

// Kind identifies a single rejection reason.
type Kind string

const (
	MissingCapability       Kind = "MissingCapability"
	MachineUnavailable      Kind = "MachineUnavailable"
	EmptyOrInvertedInterval Kind = "EmptyOrInvertedInterval"
	ExceedsHorizon          Kind = "ExceedsHorizon"
	RuleCoverageMissing     Kind = "RuleCoverageMissing"
	ExceedsMaxHours         Kind = "ExceedsMaxHours"
	ExceedsBorderMaxHours   Kind = "ExceedsBorderMaxHours"
	IntervalTooLong         Kind = "IntervalTooLong"
	NoQuotaAvailable        Kind = "NoQuotaAvailable"
	QuotaExhausted          Kind = "QuotaExhausted"
	Overlap                 Kind = "Overlap"
	TooManySimultaneous     Kind = "TooManySimultaneous"
	PeriodTooLong           Kind = "PeriodTooLong"
	InternalOverlap         Kind = "InternalOverlap"
	CrossRuleOverlap        Kind = "CrossRuleOverlap"
	Immutable               Kind = "Immutable"
	NotFound                Kind = "NotFound"
	Forbidden               Kind = "Forbidden"
	AlreadyStarted          Kind = "AlreadyStarted"
	SearchWindowTooLong     Kind = "SearchWindowTooLong"
)

// Rejection is one refused check with an optional human-readable detail.
type Rejection struct {
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// Error satisfies the error interface so rejections can travel error paths.
func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Detail)
}

// Is matches against another *Rejection by kind, enabling errors.Is with
// sentinel rejections.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Kind == r.Kind
}

// New builds a rejection with a formatted detail.
func New(kind Kind, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// List is the ordered set of reasons a request was refused.
type List []*Rejection

// Error renders the reasons joined in order.
func (l List) Error() string {
	s := ""
	for i, r := range l {
		if i > 0 {
			s += "; "
		}
		s += r.Error()
	}
	return s
}

// Contains reports whether any rejection in the list has the given kind.
func (l List) Contains(kind Kind) bool {
	for _, r := range l {
		if r.Kind == kind {
			return true
		}
	}
	return false
}
