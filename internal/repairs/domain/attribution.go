// Package domain provides core business rules for the repairs bounded
// context, chiefly the temporal attribution of repair events to the
// service-order tickets that caused them.
package domain

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
)

// TicketWindow is a candidate ticket reduced to its attribution-relevant
// shape: identity plus lifetime window. A nil ClosedAt means the ticket is
// still open and its window extends to infinity.
type TicketWindow struct {
	ID        uuid.UUID
	CreatedAt time.Time
	ClosedAt  *time.Time
}

// ReferenceTime picks the repair timestamp attribution compares against:
// the event's creation time, falling back to its reception time when the
// creation time is absent.
func ReferenceTime(createdAt, receivedAt *time.Time) (time.Time, bool) {
	if createdAt != nil && !createdAt.IsZero() {
		return *createdAt, true
	}
	if receivedAt != nil && !receivedAt.IsZero() {
		return *receivedAt, true
	}
	return time.Time{}, false
}

// covers reports whether the ticket's lifetime window contains ref.
func (w TicketWindow) covers(ref time.Time) bool {
	if ref.Before(w.CreatedAt) {
		return false
	}
	return w.ClosedAt == nil || !ref.After(*w.ClosedAt)
}

// ResolveTicket maps a repair event to the single ticket that owns it.
//
// Candidates whose lifetime window covers ref win; among several, the one
// with the most recent creation time. Without a covering window the
// candidates created before ref form the fallback pool; if even that is
// empty, the full candidate set does. Either way the pool's most recently
// created ticket is chosen, so a repair predating every ticket still gets a
// best-effort answer. Only an empty candidate set yields no attribution.
//
// Ties on creation time break on ascending ticket id, keeping the result
// deterministic and idempotent for identical inputs.
func ResolveTicket(ref time.Time, candidates []TicketWindow) (uuid.UUID, bool) {
	if len(candidates) == 0 {
		return uuid.Nil, false
	}

	var lifetimeMatches []TicketWindow
	for _, w := range candidates {
		if w.covers(ref) {
			lifetimeMatches = append(lifetimeMatches, w)
		}
	}
	if len(lifetimeMatches) > 0 {
		return lastByCreation(lifetimeMatches), true
	}

	var createdBefore []TicketWindow
	for _, w := range candidates {
		if !w.CreatedAt.After(ref) {
			createdBefore = append(createdBefore, w)
		}
	}

	pool := createdBefore
	if len(pool) == 0 {
		pool = append([]TicketWindow(nil), candidates...)
	}

	return lastByCreation(pool), true
}

// lastByCreation sorts ascending by (createdAt, id) and returns the last id.
func lastByCreation(pool []TicketWindow) uuid.UUID {
	sorted := append([]TicketWindow(nil), pool...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return bytes.Compare(sorted[i].ID[:], sorted[j].ID[:]) < 0
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted[len(sorted)-1].ID
}
