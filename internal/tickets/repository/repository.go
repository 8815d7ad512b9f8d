package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	cassettedomain "cassette_tracking_backend/internal/cassettes/domain"
	"cassette_tracking_backend/platform/apperr"
)

const ticketNotFoundMessage = "ticket not found"

const ticketColumns = `id, ticket_number, status, created_at, closed_at, deleted_at`

// pgUniqueViolation is the Postgres error code for unique constraint violations.
const pgUniqueViolation = "23505"

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new ticket repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// GetByID retrieves a ticket with its links and deliveries.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM service_order_tickets WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ticket{}, apperr.NotFound(ticketNotFoundMessage)
		}
		return Ticket{}, fmt.Errorf("get ticket by id: %w", err)
	}

	if err := r.loadAssociations(ctx, &ticket); err != nil {
		return Ticket{}, err
	}
	return ticket, nil
}

// GetByNumber retrieves a ticket by its human-facing number.
func (r *Repo) GetByNumber(ctx context.Context, number string) (Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM service_order_tickets WHERE ticket_number = $1 AND deleted_at IS NULL`, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ticket{}, apperr.NotFound(ticketNotFoundMessage)
		}
		return Ticket{}, fmt.Errorf("get ticket by number: %w", err)
	}

	if err := r.loadAssociations(ctx, &ticket); err != nil {
		return Ticket{}, err
	}
	return ticket, nil
}

// List retrieves tickets with optional status and cassette filters. Links and
// deliveries are not expanded on list results.
func (r *Repo) List(ctx context.Context, params ListParams) ([]Ticket, int, error) {
	limit := params.Limit
	if limit < 1 {
		limit = 50
	}

	var statusParam interface{}
	if params.Status != nil {
		statusParam = *params.Status
	}
	var cassetteParam interface{}
	if params.CassetteID != nil {
		cassetteParam = *params.CassetteID
	}

	countQuery := `
		SELECT COUNT(*)
		FROM service_order_tickets t
		WHERE t.deleted_at IS NULL
			AND ($1::text IS NULL OR t.status = $1)
			AND ($2::uuid IS NULL OR EXISTS (
				SELECT 1 FROM ticket_cassette_links l
				WHERE l.ticket_id = t.id AND l.cassette_id = $2
			))`

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, statusParam, cassetteParam).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}

	query := `
		SELECT ` + ticketColumns + `
		FROM service_order_tickets t
		WHERE t.deleted_at IS NULL
			AND ($1::text IS NULL OR t.status = $1)
			AND ($2::uuid IS NULL OR EXISTS (
				SELECT 1 FROM ticket_cassette_links l
				WHERE l.ticket_id = t.id AND l.cassette_id = $2
			))
		ORDER BY t.created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, statusParam, cassetteParam, limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var results []Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ticket: %w", err)
		}
		results = append(results, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tickets: %w", err)
	}

	return results, total, nil
}

// Create inserts a ticket and claims its cassettes atomically. Cassette rows
// are locked in id order so concurrent creations over overlapping sets
// serialize instead of deadlocking. Each claim re-runs the availability rules
// under the lock and moves the cassette to IN_TRANSIT_TO_RC; a single blocked
// cassette rolls the whole ticket back.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Ticket, error) {
	if len(params.Claims) == 0 {
		return Ticket{}, apperr.Validation("ticket needs at least one cassette")
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Ticket{}, fmt.Errorf("begin create ticket: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]uuid.UUID, len(params.Claims))
	for i, claim := range params.Claims {
		ids[i] = claim.CassetteID
	}

	statuses, err := lockCassettes(ctx, tx, ids)
	if err != nil {
		return Ticket{}, err
	}

	for _, id := range ids {
		if err := checkClaimable(ctx, tx, id, statuses[id]); err != nil {
			return Ticket{}, err
		}
	}

	ticket, err := scanTicket(tx.QueryRow(ctx, `
		INSERT INTO service_order_tickets (ticket_number, status)
		VALUES ($1, $2)
		RETURNING `+ticketColumns, params.TicketNumber, StatusOpen))
	if err != nil {
		if isUniqueViolation(err) {
			return Ticket{}, apperr.Conflict("ticket number is already in use")
		}
		return Ticket{}, fmt.Errorf("create ticket: %w", err)
	}

	for _, claim := range params.Claims {
		var link CassetteLink
		err := tx.QueryRow(ctx, `
			INSERT INTO ticket_cassette_links (ticket_id, cassette_id, replacement_requested, reason)
			VALUES ($1, $2, $3, $4)
			RETURNING id, ticket_id, cassette_id, replacement_requested, reason, created_at`,
			ticket.ID, claim.CassetteID, claim.ReplacementRequested, claim.Reason,
		).Scan(&link.ID, &link.TicketID, &link.CassetteID, &link.ReplacementRequested, &link.Reason, &link.CreatedAt)
		if err != nil {
			return Ticket{}, fmt.Errorf("link cassette to ticket: %w", err)
		}
		ticket.Links = append(ticket.Links, link)

		var delivery Delivery
		err = tx.QueryRow(ctx, `
			INSERT INTO deliveries (ticket_id, cassette_id, direction)
			VALUES ($1, $2, $3)
			RETURNING id, ticket_id, cassette_id, direction, delivered_at, created_at`,
			ticket.ID, claim.CassetteID, DirectionToRepairCenter,
		).Scan(&delivery.ID, &delivery.TicketID, &delivery.CassetteID, &delivery.Direction,
			&delivery.DeliveredAt, &delivery.CreatedAt)
		if err != nil {
			return Ticket{}, fmt.Errorf("record outbound delivery: %w", err)
		}
		ticket.Deliveries = append(ticket.Deliveries, delivery)

		if err := cassettedomain.ValidateTransition(statuses[claim.CassetteID], cassettedomain.StatusInTransitToRC); err != nil {
			return Ticket{}, err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE cassettes SET status = $2, updated_at = now() WHERE id = $1`,
			claim.CassetteID, string(cassettedomain.StatusInTransitToRC))
		if err != nil {
			return Ticket{}, fmt.Errorf("claim cassette: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return Ticket{}, apperr.NotFound("cassette not found")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Ticket{}, fmt.Errorf("commit create ticket: %w", err)
	}
	return ticket, nil
}

// Close marks the ticket closed and stamps closed_at. Closing an already
// closed ticket is a conflict.
func (r *Repo) Close(ctx context.Context, id uuid.UUID) (Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, `
		UPDATE service_order_tickets
		SET status = $2, closed_at = now()
		WHERE id = $1 AND deleted_at IS NULL AND status <> $2
		RETURNING `+ticketColumns, id, StatusClosed))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.closeMiss(ctx, id)
		}
		return Ticket{}, fmt.Errorf("close ticket: %w", err)
	}

	if err := r.loadAssociations(ctx, &ticket); err != nil {
		return Ticket{}, err
	}
	return ticket, nil
}

// closeMiss distinguishes a missing ticket from an already closed one.
func (r *Repo) closeMiss(ctx context.Context, id uuid.UUID) (Ticket, error) {
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT status FROM service_order_tickets WHERE id = $1 AND deleted_at IS NULL`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ticket{}, apperr.NotFound(ticketNotFoundMessage)
		}
		return Ticket{}, fmt.Errorf("check ticket status: %w", err)
	}
	return Ticket{}, apperr.Conflict("ticket is already closed")
}

// Delete soft-deletes a ticket. Deleted tickets stop blocking cassettes and
// drop out of repair attribution; their rows stay for history.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE service_order_tickets
		SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(ticketNotFoundMessage)
	}
	return nil
}

// AddDelivery records a cassette movement under an open ticket.
func (r *Repo) AddDelivery(ctx context.Context, params AddDeliveryParams) (Delivery, error) {
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT status FROM service_order_tickets WHERE id = $1 AND deleted_at IS NULL`,
		params.TicketID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delivery{}, apperr.NotFound(ticketNotFoundMessage)
		}
		return Delivery{}, fmt.Errorf("check ticket for delivery: %w", err)
	}
	if status == StatusClosed {
		return Delivery{}, apperr.Conflict("ticket is already closed")
	}

	var delivery Delivery
	err = r.pool.QueryRow(ctx, `
		INSERT INTO deliveries (ticket_id, cassette_id, direction, delivered_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, ticket_id, cassette_id, direction, delivered_at, created_at`,
		params.TicketID, params.CassetteID, params.Direction, params.DeliveredAt,
	).Scan(&delivery.ID, &delivery.TicketID, &delivery.CassetteID, &delivery.Direction,
		&delivery.DeliveredAt, &delivery.CreatedAt)
	if err != nil {
		return Delivery{}, fmt.Errorf("record delivery: %w", err)
	}
	return delivery, nil
}

// lockCassettes locks the cassette rows in id order and returns their
// statuses. A missing id fails the whole claim.
func lockCassettes(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) (map[uuid.UUID]cassettedomain.Status, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, status FROM cassettes WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock cassettes: %w", err)
	}
	defer rows.Close()

	statuses := make(map[uuid.UUID]cassettedomain.Status, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("scan locked cassette: %w", err)
		}
		statuses[id] = cassettedomain.Status(status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked cassettes: %w", err)
	}

	for _, id := range ids {
		if _, ok := statuses[id]; !ok {
			return nil, apperr.NotFound("cassette not found").
				WithDetails(map[string]string{"cassetteId": id.String()})
		}
	}
	return statuses, nil
}

// checkClaimable runs the availability rules for one cassette under its lock.
func checkClaimable(ctx context.Context, tx pgx.Tx, id uuid.UUID, status cassettedomain.Status) error {
	var openTicket *cassettedomain.OpenTicketRef
	var ref cassettedomain.OpenTicketRef
	err := tx.QueryRow(ctx, `
		SELECT t.id, t.ticket_number, t.created_at
		FROM (
			SELECT ticket_id FROM ticket_cassette_links WHERE cassette_id = $1
			UNION
			SELECT ticket_id FROM deliveries WHERE cassette_id = $1
		) assoc
		JOIN service_order_tickets t ON t.id = assoc.ticket_id
		WHERE t.deleted_at IS NULL AND t.status <> $2
		ORDER BY t.created_at DESC
		LIMIT 1`, id, StatusClosed).Scan(&ref.TicketID, &ref.TicketNumber, &ref.CreatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check blocking ticket: %w", err)
	}
	if err == nil {
		openTicket = &ref
	}

	var activeTask *cassettedomain.ActiveTaskRef
	var taskRef cassettedomain.ActiveTaskRef
	err = tx.QueryRow(ctx, `
		SELECT id, kind
		FROM maintenance_tasks
		WHERE cassette_id = $1 AND status NOT IN ('DONE', 'CANCELLED')
		ORDER BY created_at DESC
		LIMIT 1`, id).Scan(&taskRef.TaskID, &taskRef.Kind)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check blocking task: %w", err)
	}
	if err == nil {
		activeTask = &taskRef
	}

	result := cassettedomain.EvaluateAvailability(id, status, openTicket, activeTask)
	if !result.Available {
		return apperr.Conflict("cassette is not available").
			WithCode(apperr.CodeUnavailable).
			WithDetails(result.BlockedBy)
	}
	return nil
}

func (r *Repo) loadAssociations(ctx context.Context, ticket *Ticket) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, ticket_id, cassette_id, replacement_requested, reason, created_at
		FROM ticket_cassette_links
		WHERE ticket_id = $1
		ORDER BY created_at ASC`, ticket.ID)
	if err != nil {
		return fmt.Errorf("load ticket links: %w", err)
	}
	for rows.Next() {
		var link CassetteLink
		if err := rows.Scan(&link.ID, &link.TicketID, &link.CassetteID,
			&link.ReplacementRequested, &link.Reason, &link.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scan ticket link: %w", err)
		}
		ticket.Links = append(ticket.Links, link)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate ticket links: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id, ticket_id, cassette_id, direction, delivered_at, created_at
		FROM deliveries
		WHERE ticket_id = $1
		ORDER BY created_at ASC`, ticket.ID)
	if err != nil {
		return fmt.Errorf("load ticket deliveries: %w", err)
	}
	for rows.Next() {
		var delivery Delivery
		if err := rows.Scan(&delivery.ID, &delivery.TicketID, &delivery.CassetteID,
			&delivery.Direction, &delivery.DeliveredAt, &delivery.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scan ticket delivery: %w", err)
		}
		ticket.Deliveries = append(ticket.Deliveries, delivery)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate ticket deliveries: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.TicketNumber, &t.Status, &t.CreatedAt, &t.ClosedAt, &t.DeletedAt)
	return t, err
}
