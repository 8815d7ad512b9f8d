package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsp(s string) *time.Time {
	t := ts(s)
	return &t
}

func TestResolveTicketLifetimeMatch(t *testing.T) {
	t1 := TicketWindow{ID: uuid.New(), CreatedAt: ts("2024-01-01T00:00:00Z"), ClosedAt: tsp("2024-01-10T00:00:00Z")}
	t2 := TicketWindow{ID: uuid.New(), CreatedAt: ts("2024-01-15T00:00:00Z")}
	candidates := []TicketWindow{t2, t1}

	// Inside the closed ticket's window.
	got, ok := ResolveTicket(ts("2024-01-05T00:00:00Z"), candidates)
	if !ok || got != t1.ID {
		t.Errorf("repair at Jan 5: got %v ok=%v, want first ticket", got, ok)
	}

	// After the open ticket's creation; open window extends forever.
	got, ok = ResolveTicket(ts("2024-01-20T00:00:00Z"), candidates)
	if !ok || got != t2.ID {
		t.Errorf("repair at Jan 20: got %v ok=%v, want open ticket", got, ok)
	}
}

func TestResolveTicketFallbackBeforeEveryTicket(t *testing.T) {
	t1 := TicketWindow{ID: uuid.New(), CreatedAt: ts("2024-01-01T00:00:00Z"), ClosedAt: tsp("2024-01-10T00:00:00Z")}
	t2 := TicketWindow{ID: uuid.New(), CreatedAt: ts("2024-01-15T00:00:00Z")}

	// A repair predating every ticket still resolves: the full pool's most
	// recently created ticket wins.
	got, ok := ResolveTicket(ts("2023-12-25T00:00:00Z"), []TicketWindow{t1, t2})
	if !ok || got != t2.ID {
		t.Errorf("repair at Dec 25: got %v ok=%v, want latest-created ticket", got, ok)
	}
}

func TestResolveTicketFallbackCreatedBeforePool(t *testing.T) {
	// Repair falls in a gap: after t1 closed, before t2 opened. No lifetime
	// match, but t1 was created before the repair, so t1 wins over t2.
	t1 := TicketWindow{ID: uuid.New(), CreatedAt: ts("2024-01-01T00:00:00Z"), ClosedAt: tsp("2024-01-10T00:00:00Z")}
	t2 := TicketWindow{ID: uuid.New(), CreatedAt: ts("2024-01-15T00:00:00Z")}

	got, ok := ResolveTicket(ts("2024-01-12T00:00:00Z"), []TicketWindow{t2, t1})
	if !ok || got != t1.ID {
		t.Errorf("repair in gap: got %v ok=%v, want closed ticket", got, ok)
	}
}

func TestResolveTicketPicksMostRecentLifetimeMatch(t *testing.T) {
	// Overlapping windows both cover the repair; the later-created one wins.
	t1 := TicketWindow{ID: uuid.New(), CreatedAt: ts("2024-01-01T00:00:00Z")}
	t2 := TicketWindow{ID: uuid.New(), CreatedAt: ts("2024-01-03T00:00:00Z")}

	got, ok := ResolveTicket(ts("2024-01-05T00:00:00Z"), []TicketWindow{t1, t2})
	if !ok || got != t2.ID {
		t.Errorf("overlapping windows: got %v ok=%v, want later-created ticket", got, ok)
	}
}

func TestResolveTicketNoCandidates(t *testing.T) {
	if _, ok := ResolveTicket(ts("2024-01-05T00:00:00Z"), nil); ok {
		t.Error("no candidates must yield no attribution")
	}
	if _, ok := ResolveTicket(ts("2024-01-05T00:00:00Z"), []TicketWindow{}); ok {
		t.Error("empty candidates must yield no attribution")
	}
}

func TestResolveTicketWindowBoundariesInclusive(t *testing.T) {
	w := TicketWindow{ID: uuid.New(), CreatedAt: ts("2024-01-01T00:00:00Z"), ClosedAt: tsp("2024-01-10T00:00:00Z")}
	decoy := TicketWindow{ID: uuid.New(), CreatedAt: ts("2023-06-01T00:00:00Z"), ClosedAt: tsp("2023-06-02T00:00:00Z")}
	candidates := []TicketWindow{decoy, w}

	got, ok := ResolveTicket(w.CreatedAt, candidates)
	if !ok || got != w.ID {
		t.Errorf("repair exactly at creation: got %v, want window match", got)
	}
	got, ok = ResolveTicket(*w.ClosedAt, candidates)
	if !ok || got != w.ID {
		t.Errorf("repair exactly at close: got %v, want window match", got)
	}
}

func TestResolveTicketTieBreaksOnID(t *testing.T) {
	created := ts("2024-01-01T00:00:00Z")
	a := TicketWindow{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), CreatedAt: created}
	b := TicketWindow{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), CreatedAt: created}

	// Same creation time: the sort is ascending (createdAt, id) and the last
	// entry wins, so the higher id is chosen regardless of input order.
	got, ok := ResolveTicket(ts("2024-01-05T00:00:00Z"), []TicketWindow{a, b})
	if !ok || got != b.ID {
		t.Errorf("tie-break: got %v, want higher id", got)
	}
	got, ok = ResolveTicket(ts("2024-01-05T00:00:00Z"), []TicketWindow{b, a})
	if !ok || got != b.ID {
		t.Errorf("tie-break with reversed input: got %v, want higher id", got)
	}
}

func TestResolveTicketDeterministic(t *testing.T) {
	var candidates []TicketWindow
	base := ts("2024-01-01T00:00:00Z")
	for i := 0; i < 20; i++ {
		candidates = append(candidates, TicketWindow{
			ID:        uuid.New(),
			CreatedAt: base.Add(time.Duration(i%5) * time.Hour),
		})
	}

	ref := ts("2024-02-01T00:00:00Z")
	first, ok := ResolveTicket(ref, candidates)
	if !ok {
		t.Fatal("expected a result")
	}
	for i := 0; i < 10; i++ {
		got, _ := ResolveTicket(ref, candidates)
		if got != first {
			t.Fatalf("run %d: got %v, want %v", i, got, first)
		}
	}
}

func TestReferenceTime(t *testing.T) {
	created := ts("2024-01-05T00:00:00Z")
	received := ts("2024-01-06T00:00:00Z")

	got, ok := ReferenceTime(&created, &received)
	if !ok || !got.Equal(created) {
		t.Errorf("with both set: got %v, want createdAt", got)
	}

	got, ok = ReferenceTime(nil, &received)
	if !ok || !got.Equal(received) {
		t.Errorf("createdAt missing: got %v, want receivedAt", got)
	}

	var zero time.Time
	got, ok = ReferenceTime(&zero, &received)
	if !ok || !got.Equal(received) {
		t.Errorf("createdAt zero: got %v, want receivedAt", got)
	}

	if _, ok := ReferenceTime(nil, nil); ok {
		t.Error("both missing: expected no reference time")
	}
}
