package domain

import (
	"time"

	"github.com/google/uuid"
)

// BlockKind identifies why a cassette cannot be claimed.
type BlockKind string

const (
	BlockStatus BlockKind = "STATUS"
	BlockTicket BlockKind = "TICKET"
	BlockTask   BlockKind = "TASK"
)

// blockingStatuses are the statuses under which a cassette is physically out
// of reach for a new ticket or task. READY_FOR_PICKUP is deliberately absent:
// the open ticket, not the status, is what blocks a pickup-ready cassette.
var blockingStatuses = map[Status]bool{
	StatusInTransitToRC:        true,
	StatusInRepair:             true,
	StatusInTransitToPengelola: true,
	StatusScrapped:             true,
}

// OpenTicketRef identifies the most recent non-terminal ticket holding a cassette.
type OpenTicketRef struct {
	TicketID     uuid.UUID
	TicketNumber string
	CreatedAt    time.Time
}

// ActiveTaskRef identifies a non-terminal maintenance task bound to a cassette.
type ActiveTaskRef struct {
	TaskID uuid.UUID
	Kind   string
}

// Block describes what claims the cassette right now.
type Block struct {
	Kind BlockKind `json:"kind"`
	Ref  uuid.UUID `json:"ref"`
	// Label is a human-readable identifier of the blocker (status name,
	// ticket number, or task kind) for user display.
	Label string `json:"label"`
}

// AvailabilityResult is the guard's answer for a single cassette.
type AvailabilityResult struct {
	Available bool   `json:"available"`
	BlockedBy *Block `json:"blockedBy,omitempty"`
}

// EvaluateAvailability applies the guard rules in order; first match wins:
// blocking status, then open ticket, then active maintenance task.
func EvaluateAvailability(cassetteID uuid.UUID, status Status, openTicket *OpenTicketRef, activeTask *ActiveTaskRef) AvailabilityResult {
	if blockingStatuses[status] {
		return AvailabilityResult{
			BlockedBy: &Block{Kind: BlockStatus, Ref: cassetteID, Label: string(status)},
		}
	}

	if openTicket != nil {
		return AvailabilityResult{
			BlockedBy: &Block{Kind: BlockTicket, Ref: openTicket.TicketID, Label: openTicket.TicketNumber},
		}
	}

	if activeTask != nil {
		return AvailabilityResult{
			BlockedBy: &Block{Kind: BlockTask, Ref: activeTask.TaskID, Label: activeTask.Kind},
		}
	}

	return AvailabilityResult{Available: true}
}
