// Package cassettes provides the cassettes bounded context module: the
// status state machine, the availability guard, and the replacement
// coordinator for physical cash cassettes.
package cassettes

import (
	"cassette_tracking_backend/internal/cassettes/handler"
	"cassette_tracking_backend/internal/cassettes/repository"
	"cassette_tracking_backend/internal/cassettes/service"
	"cassette_tracking_backend/internal/events"
	apphttp "cassette_tracking_backend/internal/http"
	"cassette_tracking_backend/platform/logger"
	"cassette_tracking_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the cassettes bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the cassettes module with all its dependencies.
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
	return "cassettes"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct access if needed.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts cassette routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/cassettes")
	group.GET("", m.handler.List)
	group.GET("/:id", m.handler.GetByID)
	group.GET("/serial/:serial", m.handler.GetBySerial)
	group.GET("/:id/availability", m.handler.CheckAvailability)
	group.POST("/availability", m.handler.CheckAvailabilityBatch)
	group.POST("/:id/transition", m.handler.Transition)
	group.POST("/:id/replace", m.handler.Replace)

	// Provisioning is admin-only; status flow is open to all operators.
	ctx.Admin.POST("/cassettes", m.handler.Create)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
