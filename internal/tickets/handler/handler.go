package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cassette_tracking_backend/internal/tickets/repository"
	"cassette_tracking_backend/internal/tickets/service"
	"cassette_tracking_backend/internal/tickets/transport"
	"cassette_tracking_backend/platform/httpkit"
	"cassette_tracking_backend/platform/validator"
)

// Handler handles HTTP requests for service-order tickets.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid ticket ID"
)

// New creates a new tickets handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// List retrieves tickets with optional filters.
// GET /api/v1/tickets
func (h *Handler) List(c *gin.Context) {
	params := repository.ListParams{}

	if raw := c.Query("status"); raw != "" {
		if raw != repository.StatusOpen && raw != repository.StatusClosed {
			httpkit.Error(c, http.StatusBadRequest, "invalid ticket status", nil)
			return
		}
		params.Status = &raw
	}
	if raw := c.Query("cassetteId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid cassette ID", nil)
			return
		}
		params.CassetteID = &id
	}

	result, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetByID retrieves a ticket by ID.
// GET /api/v1/tickets/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetByNumber retrieves a ticket by its human-facing number.
// GET /api/v1/tickets/number/:number
func (h *Handler) GetByNumber(c *gin.Context) {
	number := c.Param("number")
	if number == "" {
		httpkit.Error(c, http.StatusBadRequest, "ticket number is required", nil)
		return
	}

	result, err := h.svc.GetByNumber(c.Request.Context(), number)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Create opens a ticket and claims its cassettes.
// POST /api/v1/tickets
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Create(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// Close marks a ticket closed.
// POST /api/v1/tickets/:id/close
func (h *Handler) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.Close(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Delete soft-deletes a ticket.
// DELETE /api/v1/admin/tickets/:id
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// AddDelivery records a cassette movement under a ticket.
// POST /api/v1/tickets/:id/deliveries
func (h *Handler) AddDelivery(c *gin.Context) {
	ticketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.AddDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	cassetteID, err := uuid.Parse(req.CassetteID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid cassette ID", nil)
		return
	}

	result, err := h.svc.AddDelivery(c.Request.Context(), repository.AddDeliveryParams{
		TicketID:    ticketID,
		CassetteID:  cassetteID,
		Direction:   req.Direction,
		DeliveredAt: req.DeliveredAt,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}
