// Package repairs provides the repairs bounded context module: repair event
// intake from the repair center and temporal attribution of historical
// repairs to service-order tickets.
package repairs

import (
	"cassette_tracking_backend/internal/events"
	apphttp "cassette_tracking_backend/internal/http"
	"cassette_tracking_backend/internal/repairs/handler"
	"cassette_tracking_backend/internal/repairs/repository"
	"cassette_tracking_backend/internal/repairs/service"
	"cassette_tracking_backend/platform/logger"
	"cassette_tracking_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the repairs bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the repairs module with all its dependencies.
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
	return "repairs"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts repair routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/repairs")
	group.GET("", m.handler.List)
	group.GET("/:id", m.handler.GetByID)
	group.GET("/:id/resolve", m.handler.Resolve)
	group.POST("", m.handler.Create)
	group.DELETE("/:id", m.handler.Delete)

	// Backfill can rewrite history in bulk, so it stays admin-only.
	ctx.Admin.POST("/repairs/backfill", m.handler.Backfill)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
