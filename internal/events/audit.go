package events

import (
	"context"

	"cassette_tracking_backend/platform/logger"
)

// auditedEvents lists every domain event the audit log subscribes to.
var auditedEvents = []string{
	CassetteStatusChanged{}.EventName(),
	CassetteReplaced{}.EventName(),
	TicketCreated{}.EventName(),
	TicketClosed{}.EventName(),
	RepairAttributed{}.EventName(),
}

// RegisterAuditLog subscribes a structured-logging handler to every domain
// event. Each event yields one audit record; replacement notes travel on the
// CassetteReplaced record, which is where operator remarks end up.
func RegisterAuditLog(bus Bus, log *logger.Logger) {
	audit := log.With("channel", "audit")

	handler := HandlerFunc(func(_ context.Context, event Event) error {
		switch e := event.(type) {
		case CassetteStatusChanged:
			audit.Info("cassette status changed",
				"cassetteId", e.CassetteID, "serial", e.Serial,
				"from", e.From, "to", e.To)
		case CassetteReplaced:
			audit.Info("cassette replaced",
				"oldCassetteId", e.OldCassetteID, "newCassetteId", e.NewCassetteID,
				"newSerial", e.NewSerial, "ticketId", e.TicketID, "notes", e.Notes)
		case TicketCreated:
			audit.Info("ticket created",
				"ticketId", e.TicketID, "ticketNumber", e.TicketNumber,
				"cassettes", len(e.CassetteIDs))
		case TicketClosed:
			audit.Info("ticket closed", "ticketId", e.TicketID)
		case RepairAttributed:
			audit.Info("repair attributed",
				"repairId", e.RepairID, "ticketId", e.TicketID)
		default:
			audit.Info("domain event", "event", event.EventName())
		}
		return nil
	})

	for _, name := range auditedEvents {
		bus.Subscribe(name, handler)
	}
}
