// Package transport defines request and response types for the tickets API.
package transport

import "time"

// ClaimRequest names one cassette a new ticket wants to send for repair.
type ClaimRequest struct {
	CassetteID           string  `json:"cassetteId" binding:"required,uuid"`
	ReplacementRequested bool    `json:"replacementRequested"`
	Reason               *string `json:"reason"`
}

// CreateTicketRequest opens a service-order ticket claiming its cassettes.
type CreateTicketRequest struct {
	TicketNumber string         `json:"ticketNumber" binding:"required,min=3,max=64"`
	Cassettes    []ClaimRequest `json:"cassettes" binding:"required,min=1,max=100,dive"`
}

// AddDeliveryRequest records a cassette movement under an open ticket.
type AddDeliveryRequest struct {
	CassetteID  string     `json:"cassetteId" binding:"required,uuid"`
	Direction   string     `json:"direction" binding:"required,oneof=TO_REPAIR_CENTER FROM_REPAIR_CENTER"`
	DeliveredAt *time.Time `json:"deliveredAt"`
}

// LinkResponse is the API representation of a ticket-cassette link.
type LinkResponse struct {
	ID                   string  `json:"id"`
	CassetteID           string  `json:"cassetteId"`
	ReplacementRequested bool    `json:"replacementRequested"`
	Reason               *string `json:"reason"`
}

// DeliveryResponse is the API representation of a delivery.
type DeliveryResponse struct {
	ID          string     `json:"id"`
	CassetteID  string     `json:"cassetteId"`
	Direction   string     `json:"direction"`
	DeliveredAt *time.Time `json:"deliveredAt"`
	CreatedAt   string     `json:"createdAt"`
}

// TicketResponse is the API representation of a service-order ticket.
type TicketResponse struct {
	ID           string             `json:"id"`
	TicketNumber string             `json:"ticketNumber"`
	Status       string             `json:"status"`
	CreatedAt    string             `json:"createdAt"`
	ClosedAt     *string            `json:"closedAt"`
	Links        []LinkResponse     `json:"links,omitempty"`
	Deliveries   []DeliveryResponse `json:"deliveries,omitempty"`
}

// TicketListResponse wraps a page of tickets.
type TicketListResponse struct {
	Items []TicketResponse `json:"items"`
	Total int              `json:"total"`
}
