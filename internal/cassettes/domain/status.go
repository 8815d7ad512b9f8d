// Package domain provides core business rules for the cassettes bounded context.
package domain

import (
	"fmt"

	"cassette_tracking_backend/platform/apperr"
)

// Status is a cassette's position in the repair workflow.
type Status string

const (
	StatusOK                   Status = "OK"
	StatusBad                  Status = "BAD"
	StatusInTransitToRC        Status = "IN_TRANSIT_TO_RC"
	StatusInRepair             Status = "IN_REPAIR"
	StatusReadyForPickup       Status = "READY_FOR_PICKUP"
	StatusInTransitToPengelola Status = "IN_TRANSIT_TO_PENGELOLA"
	StatusScrapped             Status = "SCRAPPED"
)

// transitions is the allowed edge set of the cassette state machine.
// SCRAPPED has no outgoing edges; it is the single terminal state.
var transitions = map[Status][]Status{
	StatusOK:                   {StatusInTransitToRC},
	StatusBad:                  {StatusInTransitToRC},
	StatusInTransitToRC:        {StatusInRepair},
	StatusInRepair:             {StatusReadyForPickup, StatusScrapped},
	StatusReadyForPickup:       {StatusInTransitToPengelola},
	StatusInTransitToPengelola: {StatusOK},
	StatusScrapped:             nil,
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := transitions[s]; !ok {
		return "", apperr.BadRequest(fmt.Sprintf("unknown cassette status %q", raw))
	}
	return s, nil
}

// All returns every defined status, in workflow order.
func All() []Status {
	return []Status{
		StatusOK,
		StatusBad,
		StatusInTransitToRC,
		StatusInRepair,
		StatusReadyForPickup,
		StatusInTransitToPengelola,
		StatusScrapped,
	}
}

// IsTerminal reports whether the status allows no further transitions.
func IsTerminal(s Status) bool {
	return s == StatusScrapped
}

// TargetsFrom returns the statuses reachable from the given status.
func TargetsFrom(from Status) []Status {
	return append([]Status(nil), transitions[from]...)
}

// CanTransition reports whether the edge from→to exists in the machine.
func CanTransition(from, to Status) bool {
	for _, target := range transitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a typed InvalidTransition error identifying the
// current and requested state when the edge is not in the machine. Callers
// must surface the error, never coerce the status.
func ValidateTransition(from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return apperr.Conflict(fmt.Sprintf("invalid cassette transition from %s to %s", from, to)).
		WithCode(apperr.CodeInvalidTransition).
		WithDetails(map[string]string{"current": string(from), "requested": string(to)})
}
