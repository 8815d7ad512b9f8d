package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cassette_tracking_backend/internal/cassettes/domain"
	"cassette_tracking_backend/internal/cassettes/repository"
	"cassette_tracking_backend/internal/cassettes/transport"
	"cassette_tracking_backend/internal/events"
	"cassette_tracking_backend/platform/logger"
	"cassette_tracking_backend/platform/metrics"
)

// Service provides business logic for cassettes: the state machine, the
// availability guard, and the replacement coordinator.
type Service struct {
	repo repository.Repository
	bus  events.Bus
	log  *logger.Logger
}

// New creates a new cassettes service.
func New(repo repository.Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// GetByID retrieves a cassette by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.CassetteResponse, error) {
	cassette, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.CassetteResponse{}, err
	}
	return toResponse(cassette), nil
}

// GetBySerial retrieves a cassette by serial number.
func (s *Service) GetBySerial(ctx context.Context, serial string) (transport.CassetteResponse, error) {
	cassette, err := s.repo.GetBySerial(ctx, serial)
	if err != nil {
		return transport.CassetteResponse{}, err
	}
	return toResponse(cassette), nil
}

// List retrieves cassettes with optional filters.
func (s *Service) List(ctx context.Context, params repository.ListParams) (transport.CassetteListResponse, error) {
	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.CassetteListResponse{}, err
	}

	responses := make([]transport.CassetteResponse, len(items))
	for i, item := range items {
		responses[i] = toResponse(item)
	}
	return transport.CassetteListResponse{Items: responses, Total: total}, nil
}

// Create provisions a new cassette with status OK.
func (s *Service) Create(ctx context.Context, req transport.CreateCassetteRequest) (transport.CassetteResponse, error) {
	cassette, err := s.repo.Create(ctx, repository.CreateParams{
		SerialNumber: req.SerialNumber,
		TypeCode:     req.TypeCode,
		BankID:       req.BankID,
		MachineID:    req.MachineID,
		UsageRole:    req.UsageRole,
	})
	if err != nil {
		return transport.CassetteResponse{}, err
	}

	s.log.Info("cassette provisioned", "id", cassette.ID, "serial", cassette.SerialNumber)
	return toResponse(cassette), nil
}

// Transition moves a cassette along the state machine. The repository holds
// the row lock; this layer validates the target name, records metrics, and
// publishes the status-change event.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, req transport.TransitionRequest) (transport.CassetteResponse, error) {
	target, err := domain.ParseStatus(req.TargetStatus)
	if err != nil {
		return transport.CassetteResponse{}, err
	}

	result, err := s.repo.Transition(ctx, id, target)
	if err != nil {
		metrics.CassetteTransitions.WithLabelValues(string(target), metrics.OutcomeRejected).Inc()
		return transport.CassetteResponse{}, err
	}
	metrics.CassetteTransitions.WithLabelValues(string(target), metrics.OutcomeApplied).Inc()

	cassette := result.Cassette
	s.log.Info("cassette transitioned",
		"id", cassette.ID, "serial", cassette.SerialNumber,
		"from", string(result.From), "to", string(cassette.Status))

	if s.bus != nil {
		s.bus.Publish(ctx, events.CassetteStatusChanged{
			BaseEvent:  events.NewBaseEvent(),
			CassetteID: cassette.ID,
			Serial:     cassette.SerialNumber,
			From:       string(result.From),
			To:         string(cassette.Status),
		})
	}

	return toResponse(cassette), nil
}

// CheckAvailability answers whether a single cassette can be claimed right now.
func (s *Service) CheckAvailability(ctx context.Context, id uuid.UUID) (transport.AvailabilityResponse, error) {
	batch, err := s.CheckAvailabilityBatch(ctx, []uuid.UUID{id})
	if err != nil {
		return transport.AvailabilityResponse{}, err
	}
	return batch.Results[id], nil
}

// CheckAvailabilityBatch answers the guard question for N cassettes in a
// fixed number of store round trips. The result is advisory; transitions
// re-check under lock.
func (s *Service) CheckAvailabilityBatch(ctx context.Context, ids []uuid.UUID) (transport.AvailabilityBatchResponse, error) {
	snapshot, err := s.repo.AvailabilitySnapshot(ctx, ids)
	if err != nil {
		return transport.AvailabilityBatchResponse{}, err
	}

	results := make(map[uuid.UUID]transport.AvailabilityResponse, len(ids))
	for _, id := range ids {
		var openTicket *domain.OpenTicketRef
		if ref, ok := snapshot.OpenTickets[id]; ok {
			openTicket = &ref
		}
		var activeTask *domain.ActiveTaskRef
		if ref, ok := snapshot.ActiveTasks[id]; ok {
			activeTask = &ref
		}

		result := domain.EvaluateAvailability(id, snapshot.Statuses[id], openTicket, activeTask)
		if result.Available {
			metrics.AvailabilityChecks.WithLabelValues("available").Inc()
		} else {
			metrics.AvailabilityChecks.WithLabelValues("blocked").Inc()
		}

		results[id] = transport.AvailabilityResponse{
			CassetteID: id,
			Available:  result.Available,
			BlockedBy:  result.BlockedBy,
		}
	}

	return transport.AvailabilityBatchResponse{Results: results}, nil
}

// Replace retires the old cassette and activates a successor under the given
// ticket. The notes travel on the CassetteReplaced event for the audit
// collaborator; the core does not persist them.
func (s *Service) Replace(ctx context.Context, oldID uuid.UUID, req transport.ReplaceCassetteRequest) (transport.ReplaceCassetteResponse, error) {
	result, err := s.repo.Replace(ctx, repository.ReplaceParams{
		OldCassetteID:       oldID,
		NewSerialNumber:     req.NewSerialNumber,
		ReplacementTicketID: req.ReplacementTicketID,
	})
	if err != nil {
		metrics.CassetteTransitions.WithLabelValues(string(domain.StatusScrapped), metrics.OutcomeRejected).Inc()
		return transport.ReplaceCassetteResponse{}, err
	}
	metrics.CassetteTransitions.WithLabelValues(string(domain.StatusScrapped), metrics.OutcomeApplied).Inc()

	s.log.Info("cassette replaced",
		"oldId", result.OldCassette.ID, "newId", result.NewCassette.ID,
		"newSerial", result.NewCassette.SerialNumber, "ticketId", req.ReplacementTicketID)

	if s.bus != nil {
		s.bus.Publish(ctx, events.CassetteReplaced{
			BaseEvent:     events.NewBaseEvent(),
			OldCassetteID: result.OldCassette.ID,
			NewCassetteID: result.NewCassette.ID,
			NewSerial:     result.NewCassette.SerialNumber,
			TicketID:      req.ReplacementTicketID,
			Notes:         req.Notes,
		})
	}

	return transport.ReplaceCassetteResponse{
		OldCassette: toResponse(result.OldCassette),
		NewCassette: toResponse(result.NewCassette),
	}, nil
}

// toResponse converts a repository Cassette to a transport response.
func toResponse(c repository.Cassette) transport.CassetteResponse {
	return transport.CassetteResponse{
		ID:                  c.ID,
		SerialNumber:        c.SerialNumber,
		TypeCode:            c.TypeCode,
		BankID:              c.BankID,
		MachineID:           c.MachineID,
		UsageRole:           c.UsageRole,
		Status:              string(c.Status),
		ReplacedCassetteID:  c.ReplacedCassetteID,
		ReplacementTicketID: c.ReplacementTicketID,
		CreatedAt:           c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           c.UpdatedAt.Format(time.RFC3339),
	}
}
