package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cassette_tracking_backend/internal/repairs/domain"
)

// RepairEvent is a repair record reported by the repair center for one
// cassette. TicketID is filled once, either at creation when the caller
// already knows the owning ticket or later by attribution.
type RepairEvent struct {
	ID                uuid.UUID
	CassetteID        uuid.UUID
	TicketID          *uuid.UUID
	CreatedAt         *time.Time
	ReceivedAt        *time.Time
	DiagnosingStartAt *time.Time
	RepairStartAt     *time.Time
	CompletedAt       *time.Time
	DeletedAt         *time.Time
}

// CreateParams carries the fields for a new repair event. A nil CreatedAt
// lets the store stamp the current time.
type CreateParams struct {
	CassetteID        uuid.UUID
	TicketID          *uuid.UUID
	CreatedAt         *time.Time
	ReceivedAt        *time.Time
	DiagnosingStartAt *time.Time
	RepairStartAt     *time.Time
	CompletedAt       *time.Time
}

// Cursor marks a resume position in the unattributed-event scan. The zero
// value starts from the beginning.
type Cursor struct {
	RefTime time.Time
	ID      uuid.UUID
}

// ListParams filters the repair event listing.
type ListParams struct {
	CassetteID   *uuid.UUID
	TicketID     *uuid.UUID
	Unattributed bool
	Limit        int
	Offset       int
}

type Reader interface {
	GetByID(ctx context.Context, id uuid.UUID) (RepairEvent, error)
	List(ctx context.Context, params ListParams) ([]RepairEvent, error)
	ListUnattributed(ctx context.Context, cursor Cursor, limit int) ([]RepairEvent, error)
	CandidateTickets(ctx context.Context, cassetteID uuid.UUID) ([]domain.TicketWindow, error)
}

type Writer interface {
	Create(ctx context.Context, params CreateParams) (RepairEvent, error)
	// Attribute writes ticketID onto the event if and only if the event has
	// no ticket yet. It reports whether the write happened.
	Attribute(ctx context.Context, repairID, ticketID uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Repository interface {
	Reader
	Writer
}
