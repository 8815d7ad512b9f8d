package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEvaluateAvailabilityStatusRuleWinsFirst(t *testing.T) {
	cassetteID := uuid.New()
	ticket := &OpenTicketRef{TicketID: uuid.New(), TicketNumber: "SO-1", CreatedAt: time.Now()}
	task := &ActiveTaskRef{TaskID: uuid.New(), Kind: "CLEANING"}

	// All three rules match; the status block must be reported.
	result := EvaluateAvailability(cassetteID, StatusInRepair, ticket, task)
	if result.Available {
		t.Fatal("expected blocked")
	}
	if result.BlockedBy.Kind != BlockStatus {
		t.Errorf("kind = %s, want %s", result.BlockedBy.Kind, BlockStatus)
	}
	if result.BlockedBy.Label != string(StatusInRepair) {
		t.Errorf("label = %q, want %q", result.BlockedBy.Label, StatusInRepair)
	}
}

func TestEvaluateAvailabilityTicketBeforeTask(t *testing.T) {
	cassetteID := uuid.New()
	ticket := &OpenTicketRef{TicketID: uuid.New(), TicketNumber: "SO-2", CreatedAt: time.Now()}
	task := &ActiveTaskRef{TaskID: uuid.New(), Kind: "CLEANING"}

	result := EvaluateAvailability(cassetteID, StatusOK, ticket, task)
	if result.Available {
		t.Fatal("expected blocked")
	}
	if result.BlockedBy.Kind != BlockTicket {
		t.Errorf("kind = %s, want %s", result.BlockedBy.Kind, BlockTicket)
	}
	if result.BlockedBy.Ref != ticket.TicketID {
		t.Errorf("ref = %s, want ticket id %s", result.BlockedBy.Ref, ticket.TicketID)
	}
	if result.BlockedBy.Label != "SO-2" {
		t.Errorf("label = %q, want ticket number", result.BlockedBy.Label)
	}
}

func TestEvaluateAvailabilityTaskRule(t *testing.T) {
	cassetteID := uuid.New()
	task := &ActiveTaskRef{TaskID: uuid.New(), Kind: "CALIBRATION"}

	result := EvaluateAvailability(cassetteID, StatusBad, nil, task)
	if result.Available {
		t.Fatal("expected blocked")
	}
	if result.BlockedBy.Kind != BlockTask {
		t.Errorf("kind = %s, want %s", result.BlockedBy.Kind, BlockTask)
	}
	if result.BlockedBy.Label != "CALIBRATION" {
		t.Errorf("label = %q, want task kind", result.BlockedBy.Label)
	}
}

func TestEvaluateAvailabilityStatusBlocks(t *testing.T) {
	cassetteID := uuid.New()

	blocked := []Status{StatusInTransitToRC, StatusInRepair, StatusInTransitToPengelola, StatusScrapped}
	for _, s := range blocked {
		result := EvaluateAvailability(cassetteID, s, nil, nil)
		if result.Available {
			t.Errorf("status %s should block", s)
		}
	}

	// BAD cassettes and pickup-ready cassettes are claimable by status; only a
	// ticket or task can hold them.
	free := []Status{StatusOK, StatusBad, StatusReadyForPickup}
	for _, s := range free {
		result := EvaluateAvailability(cassetteID, s, nil, nil)
		if !result.Available {
			t.Errorf("status %s should not block, got %+v", s, result.BlockedBy)
		}
	}
}

func TestEvaluateAvailabilityScrappedAlwaysBlocked(t *testing.T) {
	result := EvaluateAvailability(uuid.New(), StatusScrapped, nil, nil)
	if result.Available {
		t.Fatal("scrapped cassette must never be available")
	}
	if result.BlockedBy.Kind != BlockStatus {
		t.Errorf("kind = %s, want %s", result.BlockedBy.Kind, BlockStatus)
	}
}
