package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"cassette_tracking_backend/internal/cassettes/domain"
	"cassette_tracking_backend/internal/cassettes/repository"
	"cassette_tracking_backend/internal/cassettes/transport"
	"cassette_tracking_backend/internal/events"
	"cassette_tracking_backend/platform/apperr"
	"cassette_tracking_backend/platform/logger"
)

// fakeRepo serves availability snapshots from memory.
type fakeRepo struct {
	repository.Repository

	statuses      map[uuid.UUID]domain.Status
	openTickets   map[uuid.UUID]domain.OpenTicketRef
	activeTasks   map[uuid.UUID]domain.ActiveTaskRef
	snapshotCalls int

	transitionResult repository.TransitionResult
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		statuses:    make(map[uuid.UUID]domain.Status),
		openTickets: make(map[uuid.UUID]domain.OpenTicketRef),
		activeTasks: make(map[uuid.UUID]domain.ActiveTaskRef),
	}
}

func (f *fakeRepo) AvailabilitySnapshot(_ context.Context, ids []uuid.UUID) (repository.AvailabilitySnapshot, error) {
	f.snapshotCalls++

	snapshot := repository.AvailabilitySnapshot{
		Statuses:    make(map[uuid.UUID]domain.Status),
		OpenTickets: make(map[uuid.UUID]domain.OpenTicketRef),
		ActiveTasks: make(map[uuid.UUID]domain.ActiveTaskRef),
	}
	for _, id := range ids {
		status, ok := f.statuses[id]
		if !ok {
			return repository.AvailabilitySnapshot{}, apperr.NotFound("cassette not found")
		}
		snapshot.Statuses[id] = status
		if ref, ok := f.openTickets[id]; ok {
			snapshot.OpenTickets[id] = ref
		}
		if ref, ok := f.activeTasks[id]; ok {
			snapshot.ActiveTasks[id] = ref
		}
	}
	return snapshot, nil
}

func (f *fakeRepo) Transition(_ context.Context, _ uuid.UUID, _ domain.Status) (repository.TransitionResult, error) {
	return f.transitionResult, nil
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func newTestService(repo repository.Repository) *Service {
	log := logger.New("development")
	return New(repo, events.NewInMemoryBus(log), log)
}

func TestCheckAvailabilityBatchMixedResults(t *testing.T) {
	repo := newFakeRepo()

	free := uuid.New()
	inRepair := uuid.New()
	ticketed := uuid.New()
	tasked := uuid.New()

	repo.statuses[free] = domain.StatusOK
	repo.statuses[inRepair] = domain.StatusInRepair
	repo.statuses[ticketed] = domain.StatusReadyForPickup
	repo.statuses[tasked] = domain.StatusBad

	holder := domain.OpenTicketRef{TicketID: uuid.New(), TicketNumber: "SO-77"}
	repo.openTickets[ticketed] = holder
	repo.activeTasks[tasked] = domain.ActiveTaskRef{TaskID: uuid.New(), Kind: "CLEANING"}

	svc := newTestService(repo)
	batch, err := svc.CheckAvailabilityBatch(context.Background(),
		[]uuid.UUID{free, inRepair, ticketed, tasked})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	if repo.snapshotCalls != 1 {
		t.Errorf("snapshotCalls = %d, want 1 round trip for the batch", repo.snapshotCalls)
	}

	if !batch.Results[free].Available {
		t.Errorf("free cassette blocked by %+v", batch.Results[free].BlockedBy)
	}
	if got := batch.Results[inRepair].BlockedBy; got == nil || got.Kind != domain.BlockStatus {
		t.Errorf("in-repair cassette blockedBy = %+v, want status block", got)
	}
	if got := batch.Results[ticketed].BlockedBy; got == nil || got.Kind != domain.BlockTicket || got.Ref != holder.TicketID {
		t.Errorf("ticketed cassette blockedBy = %+v, want ticket block", got)
	}
	if got := batch.Results[tasked].BlockedBy; got == nil || got.Kind != domain.BlockTask {
		t.Errorf("tasked cassette blockedBy = %+v, want task block", got)
	}
}

func TestCheckAvailabilityBatchUnknownIDFailsWholeBatch(t *testing.T) {
	repo := newFakeRepo()
	known := uuid.New()
	repo.statuses[known] = domain.StatusOK

	svc := newTestService(repo)
	_, err := svc.CheckAvailabilityBatch(context.Background(), []uuid.UUID{known, uuid.New()})
	if err == nil {
		t.Fatal("expected error for unknown cassette id")
	}
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Errorf("kind = %v, want not found", apperr.GetKind(err))
	}
}

func TestCheckAvailabilitySingleDelegatesToBatch(t *testing.T) {
	repo := newFakeRepo()
	id := uuid.New()
	repo.statuses[id] = domain.StatusScrapped

	svc := newTestService(repo)
	result, err := svc.CheckAvailability(context.Background(), id)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Available {
		t.Error("scrapped cassette reported available")
	}
	if result.CassetteID != id {
		t.Errorf("cassetteId = %v, want %v", result.CassetteID, id)
	}
}

// The status-change event must carry the prior status read under the row
// lock, not a separate earlier read that can go stale between the check and
// the update. The fake repo panics on GetByID, so any read outside the
// transition itself fails the test.
func TestTransitionEventCarriesLockedPriorStatus(t *testing.T) {
	repo := newFakeRepo()
	id := uuid.New()
	repo.transitionResult = repository.TransitionResult{
		From: domain.StatusBad,
		Cassette: repository.Cassette{
			ID:           id,
			SerialNumber: "CAS-7",
			Status:       domain.StatusInTransitToRC,
		},
	}

	bus := &recordingBus{}
	svc := New(repo, bus, logger.New("development"))

	resp, err := svc.Transition(context.Background(), id,
		transport.TransitionRequest{TargetStatus: string(domain.StatusInTransitToRC)})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if resp.Status != string(domain.StatusInTransitToRC) {
		t.Errorf("status = %q, want %q", resp.Status, domain.StatusInTransitToRC)
	}

	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	changed, ok := bus.published[0].(events.CassetteStatusChanged)
	if !ok {
		t.Fatalf("published %T, want CassetteStatusChanged", bus.published[0])
	}
	if changed.From != string(domain.StatusBad) {
		t.Errorf("event from = %q, want %q", changed.From, domain.StatusBad)
	}
	if changed.To != string(domain.StatusInTransitToRC) {
		t.Errorf("event to = %q, want %q", changed.To, domain.StatusInTransitToRC)
	}
}

func TestTransitionRejectsUnknownTarget(t *testing.T) {
	svc := newTestService(newFakeRepo())

	_, err := svc.Transition(context.Background(), uuid.New(),
		transport.TransitionRequest{TargetStatus: "MELTED"})
	if err == nil {
		t.Fatal("expected error for unknown status name")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Errorf("err = %T, want *apperr.Error", err)
	}
}
