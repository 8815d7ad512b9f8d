package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cassette_tracking_backend/internal/repairs/domain"
	"cassette_tracking_backend/platform/apperr"
)

// Repo persists repair events in Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

var _ Repository = (*Repo)(nil)

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const repairColumns = `id, cassette_id, ticket_id, created_at, received_at,
	diagnosing_start_at, repair_start_at, completed_at, deleted_at`

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (RepairEvent, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+repairColumns+`
		FROM repair_events
		WHERE id = $1 AND deleted_at IS NULL`, id)

	ev, err := scanRepair(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RepairEvent{}, apperr.NotFound("repair event not found")
		}
		return RepairEvent{}, fmt.Errorf("get repair event: %w", err)
	}
	return ev, nil
}

func (r *Repo) List(ctx context.Context, params ListParams) ([]RepairEvent, error) {
	query := `SELECT ` + repairColumns + ` FROM repair_events WHERE deleted_at IS NULL`
	args := []any{}
	idx := 1

	if params.CassetteID != nil {
		query += fmt.Sprintf(" AND cassette_id = $%d", idx)
		args = append(args, *params.CassetteID)
		idx++
	}
	if params.TicketID != nil {
		query += fmt.Sprintf(" AND ticket_id = $%d", idx)
		args = append(args, *params.TicketID)
		idx++
	}
	if params.Unattributed {
		query += " AND ticket_id IS NULL"
	}

	query += " ORDER BY COALESCE(created_at, received_at, 'epoch'::timestamptz) DESC, id DESC"
	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, params.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list repair events: %w", err)
	}
	defer rows.Close()

	return collectRepairs(rows)
}

// ListUnattributed pages through repair events that still lack a ticket,
// ordered by (reference time, id) ascending so a caller can resume from the
// last event of the previous page.
func (r *Repo) ListUnattributed(ctx context.Context, cursor Cursor, limit int) ([]RepairEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+repairColumns+`
		FROM repair_events
		WHERE ticket_id IS NULL
		  AND deleted_at IS NULL
		  AND (COALESCE(created_at, received_at, 'epoch'::timestamptz) > $1
		       OR (COALESCE(created_at, received_at, 'epoch'::timestamptz) = $1 AND id > $2))
		ORDER BY COALESCE(created_at, received_at, 'epoch'::timestamptz) ASC, id ASC
		LIMIT $3`, cursor.RefTime, cursor.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list unattributed repair events: %w", err)
	}
	defer rows.Close()

	return collectRepairs(rows)
}

// CandidateTickets returns the lifetime windows of every non-deleted ticket
// touching the cassette, through either a ticket link or a delivery.
func (r *Repo) CandidateTickets(ctx context.Context, cassetteID uuid.UUID) ([]domain.TicketWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT t.id, t.created_at, t.closed_at
		FROM service_order_tickets t
		WHERE t.deleted_at IS NULL
		  AND t.id IN (
			SELECT ticket_id FROM ticket_cassette_links WHERE cassette_id = $1
			UNION
			SELECT ticket_id FROM deliveries WHERE cassette_id = $1
		  )`, cassetteID)
	if err != nil {
		return nil, fmt.Errorf("load candidate tickets: %w", err)
	}
	defer rows.Close()

	var windows []domain.TicketWindow
	for rows.Next() {
		var w domain.TicketWindow
		if err := rows.Scan(&w.ID, &w.CreatedAt, &w.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan candidate ticket: %w", err)
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read candidate tickets: %w", err)
	}
	return windows, nil
}

func (r *Repo) Create(ctx context.Context, params CreateParams) (RepairEvent, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO repair_events (
			cassette_id, ticket_id, created_at, received_at,
			diagnosing_start_at, repair_start_at, completed_at
		)
		VALUES ($1, $2, COALESCE($3, now()), $4, $5, $6, $7)
		RETURNING `+repairColumns,
		params.CassetteID, params.TicketID, params.CreatedAt, params.ReceivedAt,
		params.DiagnosingStartAt, params.RepairStartAt, params.CompletedAt)

	ev, err := scanRepair(row)
	if err != nil {
		return RepairEvent{}, fmt.Errorf("create repair event: %w", err)
	}
	return ev, nil
}

// Attribute stamps the owning ticket onto an unattributed event. The
// ticket_id IS NULL guard makes the write idempotent and keeps concurrent
// backfills from overwriting each other.
func (r *Repo) Attribute(ctx context.Context, repairID, ticketID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE repair_events
		SET ticket_id = $2
		WHERE id = $1 AND ticket_id IS NULL AND deleted_at IS NULL`,
		repairID, ticketID)
	if err != nil {
		return false, fmt.Errorf("attribute repair event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE repair_events
		SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete repair event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("repair event not found")
	}
	return nil
}

func collectRepairs(rows pgx.Rows) ([]RepairEvent, error) {
	var events []RepairEvent
	for rows.Next() {
		ev, err := scanRepair(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repair event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read repair events: %w", err)
	}
	return events, nil
}

func scanRepair(row pgx.Row) (RepairEvent, error) {
	var ev RepairEvent
	err := row.Scan(
		&ev.ID, &ev.CassetteID, &ev.TicketID, &ev.CreatedAt, &ev.ReceivedAt,
		&ev.DiagnosingStartAt, &ev.RepairStartAt, &ev.CompletedAt, &ev.DeletedAt,
	)
	return ev, err
}
