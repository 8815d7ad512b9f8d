package events

import "github.com/google/uuid"

// CassetteStatusChanged is published after a successful status transition.
type CassetteStatusChanged struct {
	BaseEvent
	CassetteID uuid.UUID
	Serial     string
	From       string
	To         string
}

// EventName returns the unique identifier for this event type.
func (CassetteStatusChanged) EventName() string { return "cassette.status_changed" }

// CassetteReplaced is published after the replacement coordinator retires an
// old cassette and activates its successor. Notes carry the operator's audit
// remarks; audit persistence is a downstream subscriber concern.
type CassetteReplaced struct {
	BaseEvent
	OldCassetteID uuid.UUID
	NewCassetteID uuid.UUID
	NewSerial     string
	TicketID      uuid.UUID
	Notes         string
}

// EventName returns the unique identifier for this event type.
func (CassetteReplaced) EventName() string { return "cassette.replaced" }

// TicketCreated is published after a service-order ticket claims its cassettes.
type TicketCreated struct {
	BaseEvent
	TicketID     uuid.UUID
	TicketNumber string
	CassetteIDs  []uuid.UUID
}

// EventName returns the unique identifier for this event type.
func (TicketCreated) EventName() string { return "ticket.created" }

// TicketClosed is published after a ticket reaches its terminal status.
type TicketClosed struct {
	BaseEvent
	TicketID uuid.UUID
}

// EventName returns the unique identifier for this event type.
func (TicketClosed) EventName() string { return "ticket.closed" }

// RepairAttributed is published when the attribution resolver links a repair
// event to its originating ticket.
type RepairAttributed struct {
	BaseEvent
	RepairID uuid.UUID
	TicketID uuid.UUID
}

// EventName returns the unique identifier for this event type.
func (RepairAttributed) EventName() string { return "repair.attributed" }
