package service

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"cassette_tracking_backend/internal/events"
	"cassette_tracking_backend/internal/repairs/domain"
	"cassette_tracking_backend/internal/repairs/repository"
	"cassette_tracking_backend/platform/logger"
)

// fakeRepo is an in-memory Repository for driving the backfill.
type fakeRepo struct {
	events        []repository.RepairEvent
	candidates    map[uuid.UUID][]domain.TicketWindow
	candidatesErr map[uuid.UUID]error
	attributed    map[uuid.UUID]uuid.UUID
	listCalls     int
}

var _ repository.Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		candidates:    make(map[uuid.UUID][]domain.TicketWindow),
		candidatesErr: make(map[uuid.UUID]error),
		attributed:    make(map[uuid.UUID]uuid.UUID),
	}
}

func (f *fakeRepo) refTime(ev repository.RepairEvent) time.Time {
	if ev.CreatedAt != nil {
		return *ev.CreatedAt
	}
	if ev.ReceivedAt != nil {
		return *ev.ReceivedAt
	}
	return time.Unix(0, 0).UTC()
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.RepairEvent, error) {
	for _, ev := range f.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return repository.RepairEvent{}, errors.New("not found")
}

func (f *fakeRepo) List(context.Context, repository.ListParams) ([]repository.RepairEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) ListUnattributed(_ context.Context, cursor repository.Cursor, limit int) ([]repository.RepairEvent, error) {
	f.listCalls++

	var pending []repository.RepairEvent
	for _, ev := range f.events {
		if ev.TicketID != nil {
			continue
		}
		if _, done := f.attributed[ev.ID]; done {
			continue
		}
		ref := f.refTime(ev)
		if ref.Before(cursor.RefTime) {
			continue
		}
		if ref.Equal(cursor.RefTime) && bytes.Compare(ev.ID[:], cursor.ID[:]) <= 0 {
			continue
		}
		pending = append(pending, ev)
	}

	sort.Slice(pending, func(i, j int) bool {
		ri, rj := f.refTime(pending[i]), f.refTime(pending[j])
		if ri.Equal(rj) {
			return bytes.Compare(pending[i].ID[:], pending[j].ID[:]) < 0
		}
		return ri.Before(rj)
	})

	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (f *fakeRepo) CandidateTickets(_ context.Context, cassetteID uuid.UUID) ([]domain.TicketWindow, error) {
	if err := f.candidatesErr[cassetteID]; err != nil {
		return nil, err
	}
	return f.candidates[cassetteID], nil
}

func (f *fakeRepo) Create(context.Context, repository.CreateParams) (repository.RepairEvent, error) {
	return repository.RepairEvent{}, errors.New("not implemented")
}

func (f *fakeRepo) Attribute(_ context.Context, repairID, ticketID uuid.UUID) (bool, error) {
	for _, ev := range f.events {
		if ev.ID != repairID {
			continue
		}
		if ev.TicketID != nil {
			return false, nil
		}
		if _, done := f.attributed[repairID]; done {
			return false, nil
		}
		f.attributed[repairID] = ticketID
		return true, nil
	}
	return false, errors.New("not found")
}

func (f *fakeRepo) Delete(context.Context, uuid.UUID) error {
	return errors.New("not implemented")
}

func newTestService(repo repository.Repository) *Service {
	log := logger.New("development")
	return New(repo, events.NewInMemoryBus(log), log)
}

func addEvent(f *fakeRepo, cassetteID uuid.UUID, createdAt time.Time) uuid.UUID {
	ev := repository.RepairEvent{
		ID:         uuid.New(),
		CassetteID: cassetteID,
		CreatedAt:  &createdAt,
	}
	f.events = append(f.events, ev)
	return ev.ID
}

func TestBackfillAttributesAndCounts(t *testing.T) {
	repo := newFakeRepo()
	cassette := uuid.New()
	orphan := uuid.New()

	ticket := domain.TicketWindow{ID: uuid.New(), CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo.candidates[cassette] = []domain.TicketWindow{ticket}

	attributable := addEvent(repo, cassette, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	addEvent(repo, orphan, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))

	svc := newTestService(repo)
	result, err := svc.Backfill(context.Background(), BackfillOptions{BatchSize: 10})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}

	if result.Attributed != 1 || result.Unattributable != 1 || result.Errored != 0 {
		t.Errorf("result = %+v, want 1 attributed, 1 unattributable", result)
	}
	if got := repo.attributed[attributable]; got != ticket.ID {
		t.Errorf("event attributed to %v, want %v", got, ticket.ID)
	}
}

func TestBackfillDryRunWritesNothing(t *testing.T) {
	repo := newFakeRepo()
	cassette := uuid.New()
	repo.candidates[cassette] = []domain.TicketWindow{
		{ID: uuid.New(), CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	addEvent(repo, cassette, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	addEvent(repo, cassette, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))

	svc := newTestService(repo)
	result, err := svc.Backfill(context.Background(), BackfillOptions{DryRun: true, BatchSize: 10})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}

	if result.Attributed != 2 {
		t.Errorf("attributed = %d, want 2", result.Attributed)
	}
	if len(repo.attributed) != 0 {
		t.Errorf("dry run wrote %d attributions", len(repo.attributed))
	}
}

func TestBackfillDryRunCursorTerminates(t *testing.T) {
	// Dry runs leave events unattributed; the cursor must still move past
	// them instead of rereading the same batch forever.
	repo := newFakeRepo()
	cassette := uuid.New()
	repo.candidates[cassette] = []domain.TicketWindow{
		{ID: uuid.New(), CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for i := 0; i < 5; i++ {
		addEvent(repo, cassette, time.Date(2024, 1, 5+i, 0, 0, 0, 0, time.UTC))
	}

	svc := newTestService(repo)
	result, err := svc.Backfill(context.Background(), BackfillOptions{DryRun: true, BatchSize: 2})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if result.Attributed != 5 {
		t.Errorf("attributed = %d, want 5", result.Attributed)
	}
	if repo.listCalls > 4 {
		t.Errorf("listCalls = %d, cursor did not advance", repo.listCalls)
	}
}

func TestBackfillToleratesPerEventErrors(t *testing.T) {
	repo := newFakeRepo()
	broken := uuid.New()
	healthy := uuid.New()

	repo.candidatesErr[broken] = errors.New("relation scan failed")
	repo.candidates[healthy] = []domain.TicketWindow{
		{ID: uuid.New(), CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	addEvent(repo, broken, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	ok := addEvent(repo, healthy, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))

	svc := newTestService(repo)
	result, err := svc.Backfill(context.Background(), BackfillOptions{BatchSize: 10})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}

	if result.Errored != 1 || result.Attributed != 1 {
		t.Errorf("result = %+v, want 1 errored, 1 attributed", result)
	}
	if _, done := repo.attributed[ok]; !done {
		t.Error("healthy event should still be attributed after a failing one")
	}
}

func TestBackfillSkipsAlreadyAttributed(t *testing.T) {
	repo := newFakeRepo()
	cassette := uuid.New()
	ticketID := uuid.New()
	created := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	repo.events = append(repo.events, repository.RepairEvent{
		ID:         uuid.New(),
		CassetteID: cassette,
		TicketID:   &ticketID,
		CreatedAt:  &created,
	})

	svc := newTestService(repo)
	result, err := svc.Backfill(context.Background(), BackfillOptions{BatchSize: 10})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}

	if result.Attributed != 0 || result.Unattributable != 0 || result.Errored != 0 {
		t.Errorf("result = %+v, want all zero", result)
	}
}

func TestBackfillStopsOnContextCancel(t *testing.T) {
	repo := newFakeRepo()
	cassette := uuid.New()
	repo.candidates[cassette] = []domain.TicketWindow{
		{ID: uuid.New(), CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	addEvent(repo, cassette, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestService(repo)
	_, err := svc.Backfill(ctx, BackfillOptions{BatchSize: 10})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(repo.attributed) != 0 {
		t.Error("cancelled run should not write")
	}
}

func TestBackfillIdempotent(t *testing.T) {
	repo := newFakeRepo()
	cassette := uuid.New()
	ticket := domain.TicketWindow{ID: uuid.New(), CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo.candidates[cassette] = []domain.TicketWindow{ticket}
	id := addEvent(repo, cassette, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))

	svc := newTestService(repo)
	first, err := svc.Backfill(context.Background(), BackfillOptions{BatchSize: 10})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := svc.Backfill(context.Background(), BackfillOptions{BatchSize: 10})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first.Attributed != 1 || second.Attributed != 0 {
		t.Errorf("runs = %+v then %+v, want 1 then 0", first, second)
	}
	if repo.attributed[id] != ticket.ID {
		t.Errorf("attribution changed to %v", repo.attributed[id])
	}
}
