package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cassette_tracking_backend/internal/cassettes/domain"
)

// Cassette is the repository-level representation of a cash cassette.
type Cassette struct {
	ID                  uuid.UUID
	SerialNumber        string
	TypeCode            string
	BankID              uuid.UUID
	MachineID           *uuid.UUID
	UsageRole           string
	Status              domain.Status
	ReplacedCassetteID  *uuid.UUID
	ReplacementTicketID *uuid.UUID
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CreateParams contains parameters for provisioning a new cassette.
type CreateParams struct {
	SerialNumber string
	TypeCode     string
	BankID       uuid.UUID
	MachineID    *uuid.UUID
	UsageRole    string
}

// ReplaceParams contains parameters for the replacement coordinator.
type ReplaceParams struct {
	OldCassetteID       uuid.UUID
	NewSerialNumber     string
	ReplacementTicketID uuid.UUID
}

// TransitionResult carries the updated cassette together with the status it
// held under the row lock before the update.
type TransitionResult struct {
	Cassette Cassette
	From     domain.Status
}

// ReplaceResult carries both sides of a completed replacement.
type ReplaceResult struct {
	OldCassette Cassette
	NewCassette Cassette
}

// AvailabilitySnapshot holds the guard's inputs for a batch of cassettes,
// gathered in a fixed number of queries regardless of batch size.
type AvailabilitySnapshot struct {
	Statuses    map[uuid.UUID]domain.Status
	OpenTickets map[uuid.UUID]domain.OpenTicketRef
	ActiveTasks map[uuid.UUID]domain.ActiveTaskRef
}

// ListParams filters cassette listings.
type ListParams struct {
	BankID *uuid.UUID
	Status *domain.Status
	Limit  int
	Offset int
}

// CassetteReader provides read operations for cassettes.
type CassetteReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Cassette, error)
	GetBySerial(ctx context.Context, serial string) (Cassette, error)
	List(ctx context.Context, params ListParams) ([]Cassette, int, error)
	AvailabilitySnapshot(ctx context.Context, ids []uuid.UUID) (AvailabilitySnapshot, error)
}

// CassetteWriter provides state-changing operations for cassettes.
// Transition and Replace run in a single transaction holding a row lock on
// the cassette for the duration of the read-then-write.
type CassetteWriter interface {
	Create(ctx context.Context, params CreateParams) (Cassette, error)
	Transition(ctx context.Context, id uuid.UUID, target domain.Status) (TransitionResult, error)
	Replace(ctx context.Context, params ReplaceParams) (ReplaceResult, error)
}

// Repository combines all cassette repository operations.
type Repository interface {
	CassetteReader
	CassetteWriter
}
