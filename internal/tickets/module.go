// Package tickets provides the service-order tickets bounded context module:
// tickets that claim cassettes for a repair round-trip, their cassette links,
// and the deliveries moving cassettes to and from the repair center.
package tickets

import (
	"cassette_tracking_backend/internal/events"
	apphttp "cassette_tracking_backend/internal/http"
	"cassette_tracking_backend/internal/tickets/handler"
	"cassette_tracking_backend/internal/tickets/repository"
	"cassette_tracking_backend/internal/tickets/service"
	"cassette_tracking_backend/platform/logger"
	"cassette_tracking_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the tickets bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the tickets module with all its dependencies.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "tickets"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts ticket routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/tickets")
	group.GET("", m.handler.List)
	group.GET("/:id", m.handler.GetByID)
	group.GET("/number/:number", m.handler.GetByNumber)
	group.POST("", m.handler.Create)
	group.POST("/:id/close", m.handler.Close)
	group.POST("/:id/deliveries", m.handler.AddDelivery)

	// Deletion rewrites availability and attribution inputs, so it is admin-only.
	ctx.Admin.DELETE("/tickets/:id", m.handler.Delete)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
