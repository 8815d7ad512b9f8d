package events

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"cassette_tracking_backend/platform/logger"
)

func newCaptureLogger(buf *bytes.Buffer) *logger.Logger {
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(buf, nil))}
}

func TestAuditLogRecordsReplacementNotes(t *testing.T) {
	var buf bytes.Buffer
	log := newCaptureLogger(&buf)

	bus := NewInMemoryBus(log)
	RegisterAuditLog(bus, log)

	oldID := uuid.New()
	if err := bus.PublishSync(context.Background(), CassetteReplaced{
		BaseEvent:     NewBaseEvent(),
		OldCassetteID: oldID,
		NewCassetteID: uuid.New(),
		NewSerial:     "CAS-2041",
		TicketID:      uuid.New(),
		Notes:         "feed roller worn beyond tolerance",
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "cassette replaced") {
		t.Fatalf("no replacement audit record in output:\n%s", out)
	}
	if !strings.Contains(out, "feed roller worn beyond tolerance") {
		t.Errorf("notes missing from audit record:\n%s", out)
	}
	if !strings.Contains(out, oldID.String()) {
		t.Errorf("old cassette id missing from audit record:\n%s", out)
	}
}

func TestAuditLogCoversAllDomainEvents(t *testing.T) {
	published := []Event{
		CassetteStatusChanged{BaseEvent: NewBaseEvent(), CassetteID: uuid.New(), Serial: "CAS-1", From: "OK", To: "BAD"},
		CassetteReplaced{BaseEvent: NewBaseEvent(), OldCassetteID: uuid.New(), NewCassetteID: uuid.New()},
		TicketCreated{BaseEvent: NewBaseEvent(), TicketID: uuid.New(), TicketNumber: "SO-1"},
		TicketClosed{BaseEvent: NewBaseEvent(), TicketID: uuid.New()},
		RepairAttributed{BaseEvent: NewBaseEvent(), RepairID: uuid.New(), TicketID: uuid.New()},
	}

	wantRecords := []string{
		"cassette status changed",
		"cassette replaced",
		"ticket created",
		"ticket closed",
		"repair attributed",
	}

	var buf bytes.Buffer
	log := newCaptureLogger(&buf)

	bus := NewInMemoryBus(log)
	RegisterAuditLog(bus, log)

	for _, event := range published {
		if err := bus.PublishSync(context.Background(), event); err != nil {
			t.Fatalf("publish %s: %v", event.EventName(), err)
		}
	}

	out := buf.String()
	for _, want := range wantRecords {
		if !strings.Contains(out, want) {
			t.Errorf("no audit record %q in output:\n%s", want, out)
		}
	}
}
