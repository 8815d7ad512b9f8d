// Package service implements service-order ticket management: opening
// tickets that claim cassettes for repair, recording deliveries, and closing
// tickets when the repair round-trip completes.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cassette_tracking_backend/internal/events"
	"cassette_tracking_backend/internal/tickets/repository"
	"cassette_tracking_backend/internal/tickets/transport"
	"cassette_tracking_backend/platform/logger"
)

// Service provides business logic for service-order tickets.
type Service struct {
	repo repository.Repository
	bus  events.Bus
	log  *logger.Logger
}

// New creates a new tickets service.
func New(repo repository.Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// Create opens a ticket and claims its cassettes in one transaction.
func (s *Service) Create(ctx context.Context, req transport.CreateTicketRequest) (transport.TicketResponse, error) {
	params := repository.CreateParams{TicketNumber: req.TicketNumber}
	for _, claim := range req.Cassettes {
		cassetteID, err := uuid.Parse(claim.CassetteID)
		if err != nil {
			return transport.TicketResponse{}, fmt.Errorf("parse cassette id: %w", err)
		}
		params.Claims = append(params.Claims, repository.ClaimParams{
			CassetteID:           cassetteID,
			ReplacementRequested: claim.ReplacementRequested,
			Reason:               claim.Reason,
		})
	}

	ticket, err := s.repo.Create(ctx, params)
	if err != nil {
		return transport.TicketResponse{}, err
	}

	cassetteIDs := make([]uuid.UUID, len(ticket.Links))
	for i, link := range ticket.Links {
		cassetteIDs[i] = link.CassetteID
	}
	s.bus.Publish(ctx, events.TicketCreated{
		BaseEvent:    events.NewBaseEvent(),
		TicketID:     ticket.ID,
		TicketNumber: ticket.TicketNumber,
		CassetteIDs:  cassetteIDs,
	})

	s.log.Info("ticket opened",
		"ticketId", ticket.ID, "ticketNumber", ticket.TicketNumber, "cassettes", len(cassetteIDs))
	return toResponse(ticket), nil
}

// GetByID retrieves a ticket with its links and deliveries.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.TicketResponse, error) {
	ticket, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.TicketResponse{}, err
	}
	return toResponse(ticket), nil
}

// GetByNumber retrieves a ticket by its human-facing number.
func (s *Service) GetByNumber(ctx context.Context, number string) (transport.TicketResponse, error) {
	ticket, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return transport.TicketResponse{}, err
	}
	return toResponse(ticket), nil
}

// List retrieves tickets with optional filters.
func (s *Service) List(ctx context.Context, params repository.ListParams) (transport.TicketListResponse, error) {
	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.TicketListResponse{}, err
	}

	responses := make([]transport.TicketResponse, len(items))
	for i, item := range items {
		responses[i] = toResponse(item)
	}
	return transport.TicketListResponse{Items: responses, Total: total}, nil
}

// Close marks a ticket closed. Cassettes held by the ticket become claimable
// again; their journey back to the bank stays on the status state machine.
func (s *Service) Close(ctx context.Context, id uuid.UUID) (transport.TicketResponse, error) {
	ticket, err := s.repo.Close(ctx, id)
	if err != nil {
		return transport.TicketResponse{}, err
	}

	s.bus.Publish(ctx, events.TicketClosed{
		BaseEvent: events.NewBaseEvent(),
		TicketID:  ticket.ID,
	})
	s.log.Info("ticket closed", "ticketId", ticket.ID, "ticketNumber", ticket.TicketNumber)
	return toResponse(ticket), nil
}

// Delete soft-deletes a ticket.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("ticket deleted", "ticketId", id)
	return nil
}

// AddDelivery records a cassette movement under an open ticket.
func (s *Service) AddDelivery(ctx context.Context, params repository.AddDeliveryParams) (transport.DeliveryResponse, error) {
	delivery, err := s.repo.AddDelivery(ctx, params)
	if err != nil {
		return transport.DeliveryResponse{}, err
	}
	return toDeliveryResponse(delivery), nil
}

func toResponse(t repository.Ticket) transport.TicketResponse {
	resp := transport.TicketResponse{
		ID:           t.ID.String(),
		TicketNumber: t.TicketNumber,
		Status:       t.Status,
		CreatedAt:    t.CreatedAt.Format(time.RFC3339),
	}
	if t.ClosedAt != nil {
		closed := t.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &closed
	}
	for _, link := range t.Links {
		resp.Links = append(resp.Links, transport.LinkResponse{
			ID:                   link.ID.String(),
			CassetteID:           link.CassetteID.String(),
			ReplacementRequested: link.ReplacementRequested,
			Reason:               link.Reason,
		})
	}
	for _, delivery := range t.Deliveries {
		resp.Deliveries = append(resp.Deliveries, toDeliveryResponse(delivery))
	}
	return resp
}

func toDeliveryResponse(d repository.Delivery) transport.DeliveryResponse {
	return transport.DeliveryResponse{
		ID:          d.ID.String(),
		CassetteID:  d.CassetteID.String(),
		Direction:   d.Direction,
		DeliveredAt: d.DeliveredAt,
		CreatedAt:   d.CreatedAt.Format(time.RFC3339),
	}
}
