package transport

import (
	"github.com/google/uuid"

	"cassette_tracking_backend/internal/cassettes/domain"
)

// CreateCassetteRequest contains data for provisioning a new cassette.
type CreateCassetteRequest struct {
	SerialNumber string     `json:"serialNumber" validate:"required,min=1,max=64"`
	TypeCode     string     `json:"typeCode" validate:"required,min=1,max=32"`
	BankID       uuid.UUID  `json:"bankId" validate:"required"`
	MachineID    *uuid.UUID `json:"machineId,omitempty"`
	UsageRole    string     `json:"usageRole" validate:"required,oneof=PRIMARY SPARE"`
}

// TransitionRequest asks the state machine to move a cassette.
type TransitionRequest struct {
	TargetStatus string `json:"targetStatus" validate:"required"`
}

// ReplaceCassetteRequest asks the replacement coordinator to retire a
// cassette and activate a successor under the given ticket.
type ReplaceCassetteRequest struct {
	NewSerialNumber     string    `json:"newSerialNumber" validate:"required,min=1,max=64"`
	ReplacementTicketID uuid.UUID `json:"replacementTicketId" validate:"required"`
	Notes               string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// AvailabilityBatchRequest asks the guard about several cassettes at once.
type AvailabilityBatchRequest struct {
	CassetteIDs []uuid.UUID `json:"cassetteIds" validate:"required,min=1,max=100"`
}

// CassetteResponse represents a cassette in API responses.
type CassetteResponse struct {
	ID                  uuid.UUID  `json:"id"`
	SerialNumber        string     `json:"serialNumber"`
	TypeCode            string     `json:"typeCode"`
	BankID              uuid.UUID  `json:"bankId"`
	MachineID           *uuid.UUID `json:"machineId,omitempty"`
	UsageRole           string     `json:"usageRole"`
	Status              string     `json:"status"`
	ReplacedCassetteID  *uuid.UUID `json:"replacedCassetteId,omitempty"`
	ReplacementTicketID *uuid.UUID `json:"replacementTicketId,omitempty"`
	CreatedAt           string     `json:"createdAt"`
	UpdatedAt           string     `json:"updatedAt"`
}

// CassetteListResponse wraps a list of cassettes.
type CassetteListResponse struct {
	Items []CassetteResponse `json:"items"`
	Total int                `json:"total"`
}

// AvailabilityResponse is the guard's answer for one cassette.
type AvailabilityResponse struct {
	CassetteID uuid.UUID     `json:"cassetteId"`
	Available  bool          `json:"available"`
	BlockedBy  *domain.Block `json:"blockedBy,omitempty"`
}

// AvailabilityBatchResponse maps cassette ids to guard answers.
type AvailabilityBatchResponse struct {
	Results map[uuid.UUID]AvailabilityResponse `json:"results"`
}

// ReplaceCassetteResponse carries both sides of a completed replacement.
type ReplaceCassetteResponse struct {
	OldCassette CassetteResponse `json:"oldCassette"`
	NewCassette CassetteResponse `json:"newCassette"`
}
