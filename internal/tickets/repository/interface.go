package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Ticket statuses. A ticket is either open or closed; soft deletion is
// tracked separately so deleted tickets drop out of availability and
// attribution without losing history.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Delivery directions.
const (
	DirectionToRepairCenter   = "TO_REPAIR_CENTER"
	DirectionFromRepairCenter = "FROM_REPAIR_CENTER"
)

// Ticket is a service-order ticket with its cassette links and deliveries.
type Ticket struct {
	ID           uuid.UUID
	TicketNumber string
	Status       string
	CreatedAt    time.Time
	ClosedAt     *time.Time
	DeletedAt    *time.Time
	Links        []CassetteLink
	Deliveries   []Delivery
}

// CassetteLink ties a cassette to a ticket. ReplacementRequested marks the
// cassette as awaiting a physical replacement under this ticket.
type CassetteLink struct {
	ID                   uuid.UUID
	TicketID             uuid.UUID
	CassetteID           uuid.UUID
	ReplacementRequested bool
	Reason               *string
	CreatedAt            time.Time
}

// Delivery records one cassette movement between a bank and the repair center
// under a ticket.
type Delivery struct {
	ID          uuid.UUID
	TicketID    uuid.UUID
	CassetteID  uuid.UUID
	Direction   string
	DeliveredAt *time.Time
	CreatedAt   time.Time
}

// ClaimParams describes one cassette a new ticket wants to claim.
type ClaimParams struct {
	CassetteID           uuid.UUID
	ReplacementRequested bool
	Reason               *string
}

// CreateParams carries the fields for a new ticket and its claims.
type CreateParams struct {
	TicketNumber string
	Claims       []ClaimParams
}

// AddDeliveryParams records a cassette movement under an existing ticket.
type AddDeliveryParams struct {
	TicketID    uuid.UUID
	CassetteID  uuid.UUID
	Direction   string
	DeliveredAt *time.Time
}

// ListParams filters the ticket listing.
type ListParams struct {
	Status     *string
	CassetteID *uuid.UUID
	Limit      int
	Offset     int
}

type Reader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Ticket, error)
	GetByNumber(ctx context.Context, number string) (Ticket, error)
	List(ctx context.Context, params ListParams) ([]Ticket, int, error)
}

type Writer interface {
	// Create inserts the ticket and claims every listed cassette in one
	// transaction: each cassette is locked, checked for availability, linked,
	// given an outbound delivery, and moved to IN_TRANSIT_TO_RC. Any blocked
	// or unknown cassette fails the whole creation.
	Create(ctx context.Context, params CreateParams) (Ticket, error)
	Close(ctx context.Context, id uuid.UUID) (Ticket, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddDelivery(ctx context.Context, params AddDeliveryParams) (Delivery, error)
}

type Repository interface {
	Reader
	Writer
}
