// Package transport defines request and response types for the repairs API.
package transport

import "time"

// CreateRepairRequest reports a repair event from the repair center. The
// timestamps are optional; CreatedAt defaults to the current time when
// omitted.
type CreateRepairRequest struct {
	CassetteID        string     `json:"cassetteId" binding:"required,uuid"`
	TicketID          string     `json:"ticketId" binding:"omitempty,uuid"`
	CreatedAt         *time.Time `json:"createdAt"`
	ReceivedAt        *time.Time `json:"receivedAt"`
	DiagnosingStartAt *time.Time `json:"diagnosingStartAt"`
	RepairStartAt     *time.Time `json:"repairStartAt"`
	CompletedAt       *time.Time `json:"completedAt"`
}

// RepairResponse is the API representation of a repair event.
type RepairResponse struct {
	ID                string     `json:"id"`
	CassetteID        string     `json:"cassetteId"`
	TicketID          *string    `json:"ticketId"`
	CreatedAt         *time.Time `json:"createdAt"`
	ReceivedAt        *time.Time `json:"receivedAt"`
	DiagnosingStartAt *time.Time `json:"diagnosingStartAt"`
	RepairStartAt     *time.Time `json:"repairStartAt"`
	CompletedAt       *time.Time `json:"completedAt"`
}

// RepairListResponse wraps a page of repair events.
type RepairListResponse struct {
	Items []RepairResponse `json:"items"`
}

// ResolveResponse is the outcome of a dry attribution lookup for one repair
// event. TicketID is null when no candidate ticket exists.
type ResolveResponse struct {
	RepairID string  `json:"repairId"`
	TicketID *string `json:"ticketId"`
}

// BackfillRequest tunes a manually triggered attribution backfill.
type BackfillRequest struct {
	DryRun    bool `json:"dryRun"`
	BatchSize int  `json:"batchSize" binding:"omitempty,min=1,max=1000"`
}

// BackfillResponse reports the counts of a completed backfill run.
type BackfillResponse struct {
	Attributed     int  `json:"attributed"`
	Unattributable int  `json:"unattributable"`
	Errored        int  `json:"errored"`
	DryRun         bool `json:"dryRun"`
}
