// Package service implements repair event management and the temporal
// attribution of historical repairs to service-order tickets.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cassette_tracking_backend/internal/events"
	"cassette_tracking_backend/internal/repairs/domain"
	"cassette_tracking_backend/internal/repairs/repository"
	"cassette_tracking_backend/internal/repairs/transport"
	"cassette_tracking_backend/platform/logger"
	"cassette_tracking_backend/platform/metrics"
)

// Service provides business logic for repair events.
type Service struct {
	repo repository.Repository
	bus  events.Bus
	log  *logger.Logger
}

// New creates a new repairs service.
func New(repo repository.Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// Create records a repair event reported by the repair center.
func (s *Service) Create(ctx context.Context, req transport.CreateRepairRequest) (transport.RepairResponse, error) {
	cassetteID, err := uuid.Parse(req.CassetteID)
	if err != nil {
		return transport.RepairResponse{}, fmt.Errorf("parse cassette id: %w", err)
	}

	params := repository.CreateParams{
		CassetteID:        cassetteID,
		CreatedAt:         req.CreatedAt,
		ReceivedAt:        req.ReceivedAt,
		DiagnosingStartAt: req.DiagnosingStartAt,
		RepairStartAt:     req.RepairStartAt,
		CompletedAt:       req.CompletedAt,
	}
	if req.TicketID != "" {
		ticketID, err := uuid.Parse(req.TicketID)
		if err != nil {
			return transport.RepairResponse{}, fmt.Errorf("parse ticket id: %w", err)
		}
		params.TicketID = &ticketID
	}

	ev, err := s.repo.Create(ctx, params)
	if err != nil {
		return transport.RepairResponse{}, err
	}

	s.log.Info("repair event recorded", "repairId", ev.ID, "cassetteId", ev.CassetteID)
	return toResponse(ev), nil
}

// GetByID retrieves a repair event.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.RepairResponse, error) {
	ev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.RepairResponse{}, err
	}
	return toResponse(ev), nil
}

// List retrieves repair events with optional filters.
func (s *Service) List(ctx context.Context, params repository.ListParams) (transport.RepairListResponse, error) {
	items, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.RepairListResponse{}, err
	}

	responses := make([]transport.RepairResponse, len(items))
	for i, item := range items {
		responses[i] = toResponse(item)
	}
	return transport.RepairListResponse{Items: responses}, nil
}

// Delete soft-deletes a repair event.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Resolve answers which ticket owns a repair event without persisting
// anything. Already attributed events return their stored ticket.
func (s *Service) Resolve(ctx context.Context, repairID uuid.UUID) (transport.ResolveResponse, error) {
	ev, err := s.repo.GetByID(ctx, repairID)
	if err != nil {
		return transport.ResolveResponse{}, err
	}

	resp := transport.ResolveResponse{RepairID: repairID.String()}
	if ev.TicketID != nil {
		id := ev.TicketID.String()
		resp.TicketID = &id
		return resp, nil
	}

	ticketID, ok, err := s.resolve(ctx, ev)
	if err != nil {
		return transport.ResolveResponse{}, err
	}
	if ok {
		id := ticketID.String()
		resp.TicketID = &id
	}
	return resp, nil
}

// BackfillOptions tunes a backfill run.
type BackfillOptions struct {
	DryRun    bool
	BatchSize int
}

// BackfillResult reports per-event outcomes of a backfill run.
type BackfillResult struct {
	Attributed     int
	Unattributable int
	Errored        int
}

// Backfill walks every unattributed repair event in (reference time, id)
// order and stamps each with the ticket the resolver chooses. A single
// failing event is counted and skipped so one bad row never stalls the run.
// The walk checks ctx between batches so a shutdown interrupts cleanly; the
// cursor makes a rerun pick up where the previous run stopped writing.
func (s *Service) Backfill(ctx context.Context, opts BackfillOptions) (BackfillResult, error) {
	start := time.Now()
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	var result BackfillResult
	var cursor repository.Cursor

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := s.repo.ListUnattributed(ctx, cursor, batchSize)
		if err != nil {
			return result, fmt.Errorf("load backfill batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, ev := range batch {
			cursor = cursorAfter(ev)

			ticketID, ok, err := s.resolve(ctx, ev)
			if err != nil {
				result.Errored++
				metrics.AttributionResults.WithLabelValues(metrics.OutcomeErrored).Inc()
				s.log.Error("resolve repair event", "repairId", ev.ID, "error", err)
				continue
			}
			if !ok {
				result.Unattributable++
				metrics.AttributionResults.WithLabelValues(metrics.OutcomeUnattributable).Inc()
				continue
			}

			if opts.DryRun {
				result.Attributed++
				continue
			}

			written, err := s.repo.Attribute(ctx, ev.ID, ticketID)
			if err != nil {
				result.Errored++
				metrics.AttributionResults.WithLabelValues(metrics.OutcomeErrored).Inc()
				s.log.Error("attribute repair event", "repairId", ev.ID, "error", err)
				continue
			}
			if !written {
				// Another writer got there first. Not an error.
				continue
			}

			result.Attributed++
			metrics.AttributionResults.WithLabelValues(metrics.OutcomeAttributed).Inc()
			s.bus.Publish(ctx, events.RepairAttributed{
				BaseEvent: events.NewBaseEvent(),
				RepairID:  ev.ID,
				TicketID:  ticketID,
			})
		}
	}

	metrics.BackfillDuration.Observe(time.Since(start).Seconds())
	s.log.Info("attribution backfill finished",
		"attributed", result.Attributed,
		"unattributable", result.Unattributable,
		"errored", result.Errored,
		"dryRun", opts.DryRun,
		"duration", time.Since(start).String(),
	)
	return result, nil
}

// resolve runs the pure resolver against the event's candidate tickets.
func (s *Service) resolve(ctx context.Context, ev repository.RepairEvent) (uuid.UUID, bool, error) {
	ref, ok := domain.ReferenceTime(ev.CreatedAt, ev.ReceivedAt)
	if !ok {
		return uuid.Nil, false, nil
	}

	candidates, err := s.repo.CandidateTickets(ctx, ev.CassetteID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("load candidate tickets: %w", err)
	}

	ticketID, ok := domain.ResolveTicket(ref, candidates)
	return ticketID, ok, nil
}

func cursorAfter(ev repository.RepairEvent) repository.Cursor {
	c := repository.Cursor{ID: ev.ID}
	switch {
	case ev.CreatedAt != nil:
		c.RefTime = *ev.CreatedAt
	case ev.ReceivedAt != nil:
		c.RefTime = *ev.ReceivedAt
	default:
		c.RefTime = time.Unix(0, 0).UTC()
	}
	return c
}

func toResponse(ev repository.RepairEvent) transport.RepairResponse {
	resp := transport.RepairResponse{
		ID:                ev.ID.String(),
		CassetteID:        ev.CassetteID.String(),
		CreatedAt:         ev.CreatedAt,
		ReceivedAt:        ev.ReceivedAt,
		DiagnosingStartAt: ev.DiagnosingStartAt,
		RepairStartAt:     ev.RepairStartAt,
		CompletedAt:       ev.CompletedAt,
	}
	if ev.TicketID != nil {
		id := ev.TicketID.String()
		resp.TicketID = &id
	}
	return resp
}
