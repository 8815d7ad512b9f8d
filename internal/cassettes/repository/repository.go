package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"cassette_tracking_backend/internal/cassettes/domain"
	"cassette_tracking_backend/platform/apperr"
)

const cassetteNotFoundMessage = "cassette not found"

const cassetteColumns = `id, serial_number, type_code, bank_id, machine_id, usage_role, status,
	replaced_cassette_id, replacement_ticket_id, created_at, updated_at`

// pgUniqueViolation is the Postgres error code for unique constraint violations.
const pgUniqueViolation = "23505"

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new cassette repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// GetByID retrieves a cassette by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Cassette, error) {
	query := `SELECT ` + cassetteColumns + ` FROM cassettes WHERE id = $1`

	cassette, err := scanCassette(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cassette{}, apperr.NotFound(cassetteNotFoundMessage)
		}
		return Cassette{}, fmt.Errorf("get cassette by id: %w", err)
	}

	return cassette, nil
}

// GetBySerial retrieves a cassette by its serial number.
func (r *Repo) GetBySerial(ctx context.Context, serial string) (Cassette, error) {
	query := `SELECT ` + cassetteColumns + ` FROM cassettes WHERE serial_number = $1`

	cassette, err := scanCassette(r.pool.QueryRow(ctx, query, serial))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cassette{}, apperr.NotFound(cassetteNotFoundMessage)
		}
		return Cassette{}, fmt.Errorf("get cassette by serial: %w", err)
	}

	return cassette, nil
}

// List retrieves cassettes with optional bank and status filters.
func (r *Repo) List(ctx context.Context, params ListParams) ([]Cassette, int, error) {
	limit := params.Limit
	if limit < 1 {
		limit = 50
	}

	var statusParam interface{}
	if params.Status != nil {
		statusParam = string(*params.Status)
	}
	var bankParam interface{}
	if params.BankID != nil {
		bankParam = *params.BankID
	}

	countQuery := `
		SELECT COUNT(*)
		FROM cassettes
		WHERE ($1::uuid IS NULL OR bank_id = $1)
			AND ($2::text IS NULL OR status = $2)`

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, bankParam, statusParam).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cassettes: %w", err)
	}

	query := `
		SELECT ` + cassetteColumns + `
		FROM cassettes
		WHERE ($1::uuid IS NULL OR bank_id = $1)
			AND ($2::text IS NULL OR status = $2)
		ORDER BY serial_number ASC
		LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, bankParam, statusParam, limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list cassettes: %w", err)
	}
	defer rows.Close()

	var results []Cassette
	for rows.Next() {
		cassette, err := scanCassette(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan cassette: %w", err)
		}
		results = append(results, cassette)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate cassettes: %w", err)
	}

	return results, total, nil
}

// Create provisions a new cassette with status OK.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Cassette, error) {
	query := `
		INSERT INTO cassettes (serial_number, type_code, bank_id, machine_id, usage_role, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + cassetteColumns

	cassette, err := scanCassette(r.pool.QueryRow(ctx, query,
		params.SerialNumber, params.TypeCode, params.BankID, params.MachineID,
		params.UsageRole, string(domain.StatusOK),
	))
	if err != nil {
		if isUniqueViolation(err) {
			return Cassette{}, apperr.Conflict("serial number is already in use").
				WithCode(apperr.CodeDuplicateSerial)
		}
		return Cassette{}, fmt.Errorf("create cassette: %w", err)
	}

	return cassette, nil
}

// Transition moves a cassette to the target status inside a single
// transaction. The cassette row is locked for the read-then-write, so two
// concurrent transitions on the same cassette serialize and the loser sees
// the winner's status. Claim transitions re-check availability under the
// same lock; the earlier unlocked guard read is advisory only. The returned
// From status is the one read under the lock, not a separate earlier read.
func (r *Repo) Transition(ctx context.Context, id uuid.UUID, target domain.Status) (TransitionResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransitionResult{}, fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := lockCassette(ctx, tx, id)
	if err != nil {
		return TransitionResult{}, err
	}

	if err := domain.ValidateTransition(current.Status, target); err != nil {
		return TransitionResult{}, err
	}

	if target == domain.StatusInTransitToRC {
		if err := recheckClaimable(ctx, tx, current); err != nil {
			return TransitionResult{}, err
		}
	}

	updated, err := updateStatus(ctx, tx, id, target)
	if err != nil {
		return TransitionResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransitionResult{}, fmt.Errorf("commit transition: %w", err)
	}
	return TransitionResult{Cassette: updated, From: current.Status}, nil
}

// Replace retires the old cassette and creates its successor atomically.
// Preconditions are validated against rows read under the old cassette's
// lock; any failure rolls back every step.
func (r *Repo) Replace(ctx context.Context, params ReplaceParams) (ReplaceResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ReplaceResult{}, fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := lockCassette(ctx, tx, params.OldCassetteID)
	if err != nil {
		return ReplaceResult{}, err
	}

	var hasRequest bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM ticket_cassette_links
			WHERE ticket_id = $1 AND cassette_id = $2 AND replacement_requested
		)`, params.ReplacementTicketID, params.OldCassetteID).Scan(&hasRequest)
	if err != nil {
		return ReplaceResult{}, fmt.Errorf("check replacement request: %w", err)
	}

	var serialInUse bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM cassettes WHERE serial_number = $1)`,
		params.NewSerialNumber).Scan(&serialInUse)
	if err != nil {
		return ReplaceResult{}, fmt.Errorf("check serial in use: %w", err)
	}

	if err := domain.ValidateReplacement(old.Status, hasRequest, serialInUse); err != nil {
		return ReplaceResult{}, err
	}

	newCassette, err := scanCassette(tx.QueryRow(ctx, `
		INSERT INTO cassettes (serial_number, type_code, bank_id, machine_id, usage_role,
			status, replaced_cassette_id, replacement_ticket_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+cassetteColumns,
		params.NewSerialNumber, old.TypeCode, old.BankID, old.MachineID, old.UsageRole,
		string(domain.StatusOK), old.ID, params.ReplacementTicketID,
	))
	if err != nil {
		// Unique-violation backstop for a serial racing past the EXISTS check.
		if isUniqueViolation(err) {
			return ReplaceResult{}, apperr.Conflict("serial number is already in use").
				WithCode(apperr.CodeDuplicateSerial)
		}
		return ReplaceResult{}, fmt.Errorf("create replacement cassette: %w", err)
	}

	scrapped, err := updateStatus(ctx, tx, old.ID, domain.StatusScrapped)
	if err != nil {
		return ReplaceResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ReplaceResult{}, fmt.Errorf("commit replace: %w", err)
	}

	return ReplaceResult{OldCassette: scrapped, NewCassette: newCassette}, nil
}

// AvailabilitySnapshot gathers the guard's inputs for the given cassettes in
// exactly three queries, independent of batch size. A missing cassette fails
// the whole batch: callers must never treat unknown ids as available.
func (r *Repo) AvailabilitySnapshot(ctx context.Context, ids []uuid.UUID) (AvailabilitySnapshot, error) {
	snapshot := AvailabilitySnapshot{
		Statuses:    make(map[uuid.UUID]domain.Status, len(ids)),
		OpenTickets: make(map[uuid.UUID]domain.OpenTicketRef),
		ActiveTasks: make(map[uuid.UUID]domain.ActiveTaskRef),
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, status FROM cassettes WHERE id = ANY($1)`, ids)
	if err != nil {
		return AvailabilitySnapshot{}, fmt.Errorf("load cassette statuses: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		var status string
		if err := rows.Scan(&id, &status); err != nil {
			rows.Close()
			return AvailabilitySnapshot{}, fmt.Errorf("scan cassette status: %w", err)
		}
		snapshot.Statuses[id] = domain.Status(status)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return AvailabilitySnapshot{}, fmt.Errorf("iterate cassette statuses: %w", err)
	}

	for _, id := range ids {
		if _, ok := snapshot.Statuses[id]; !ok {
			return AvailabilitySnapshot{}, apperr.NotFound(cassetteNotFoundMessage).
				WithDetails(map[string]string{"cassetteId": id.String()})
		}
	}

	// The ticket and task lookups are independent; run them on separate pool
	// connections.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `
			SELECT DISTINCT ON (assoc.cassette_id)
				assoc.cassette_id, t.id, t.ticket_number, t.created_at
			FROM (
				SELECT ticket_id, cassette_id FROM ticket_cassette_links WHERE cassette_id = ANY($1)
				UNION
				SELECT ticket_id, cassette_id FROM deliveries WHERE cassette_id = ANY($1)
			) assoc
			JOIN service_order_tickets t ON t.id = assoc.ticket_id
			WHERE t.deleted_at IS NULL AND t.status <> 'CLOSED'
			ORDER BY assoc.cassette_id, t.created_at DESC`, ids)
		if err != nil {
			return fmt.Errorf("load blocking tickets: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var cassetteID uuid.UUID
			var ref domain.OpenTicketRef
			if err := rows.Scan(&cassetteID, &ref.TicketID, &ref.TicketNumber, &ref.CreatedAt); err != nil {
				return fmt.Errorf("scan blocking ticket: %w", err)
			}
			snapshot.OpenTickets[cassetteID] = ref
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate blocking tickets: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `
			SELECT DISTINCT ON (cassette_id) cassette_id, id, kind
			FROM maintenance_tasks
			WHERE cassette_id = ANY($1) AND status NOT IN ('DONE', 'CANCELLED')
			ORDER BY cassette_id, created_at DESC`, ids)
		if err != nil {
			return fmt.Errorf("load blocking tasks: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var cassetteID uuid.UUID
			var ref domain.ActiveTaskRef
			if err := rows.Scan(&cassetteID, &ref.TaskID, &ref.Kind); err != nil {
				return fmt.Errorf("scan blocking task: %w", err)
			}
			snapshot.ActiveTasks[cassetteID] = ref
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate blocking tasks: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return AvailabilitySnapshot{}, err
	}

	return snapshot, nil
}

// lockCassette reads a cassette under FOR UPDATE within the given transaction.
func lockCassette(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Cassette, error) {
	cassette, err := scanCassette(tx.QueryRow(ctx,
		`SELECT `+cassetteColumns+` FROM cassettes WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cassette{}, apperr.NotFound(cassetteNotFoundMessage)
		}
		return Cassette{}, fmt.Errorf("lock cassette: %w", err)
	}
	return cassette, nil
}

// recheckClaimable re-runs the availability rules for a single cassette
// inside the transition transaction.
func recheckClaimable(ctx context.Context, tx pgx.Tx, cassette Cassette) error {
	var openTicket *domain.OpenTicketRef
	var ref domain.OpenTicketRef
	err := tx.QueryRow(ctx, `
		SELECT t.id, t.ticket_number, t.created_at
		FROM (
			SELECT ticket_id FROM ticket_cassette_links WHERE cassette_id = $1
			UNION
			SELECT ticket_id FROM deliveries WHERE cassette_id = $1
		) assoc
		JOIN service_order_tickets t ON t.id = assoc.ticket_id
		WHERE t.deleted_at IS NULL AND t.status <> 'CLOSED'
		ORDER BY t.created_at DESC
		LIMIT 1`, cassette.ID).Scan(&ref.TicketID, &ref.TicketNumber, &ref.CreatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("recheck blocking ticket: %w", err)
	}
	if err == nil {
		openTicket = &ref
	}

	var activeTask *domain.ActiveTaskRef
	var taskRef domain.ActiveTaskRef
	err = tx.QueryRow(ctx, `
		SELECT id, kind
		FROM maintenance_tasks
		WHERE cassette_id = $1 AND status NOT IN ('DONE', 'CANCELLED')
		ORDER BY created_at DESC
		LIMIT 1`, cassette.ID).Scan(&taskRef.TaskID, &taskRef.Kind)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("recheck blocking task: %w", err)
	}
	if err == nil {
		activeTask = &taskRef
	}

	return claimBlocked(cassette, openTicket, activeTask)
}

// claimBlocked maps the guard verdict for a locked cassette onto the conflict
// a claim transition returns.
func claimBlocked(cassette Cassette, openTicket *domain.OpenTicketRef, activeTask *domain.ActiveTaskRef) error {
	result := domain.EvaluateAvailability(cassette.ID, cassette.Status, openTicket, activeTask)
	if !result.Available {
		return apperr.Conflict("cassette is not available").
			WithCode(apperr.CodeUnavailable).
			WithDetails(result.BlockedBy)
	}
	return nil
}

func updateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, target domain.Status) (Cassette, error) {
	cassette, err := scanCassette(tx.QueryRow(ctx, `
		UPDATE cassettes SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+cassetteColumns, id, string(target)))
	if err != nil {
		return Cassette{}, fmt.Errorf("update cassette status: %w", err)
	}
	return cassette, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func scanCassette(row pgx.Row) (Cassette, error) {
	var c Cassette
	var status string
	err := row.Scan(
		&c.ID, &c.SerialNumber, &c.TypeCode, &c.BankID, &c.MachineID, &c.UsageRole,
		&status, &c.ReplacedCassetteID, &c.ReplacementTicketID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return Cassette{}, err
	}
	c.Status = domain.Status(status)
	return c, nil
}
