package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cassette_tracking_backend/internal/repairs/repository"
	"cassette_tracking_backend/internal/repairs/service"
	"cassette_tracking_backend/internal/repairs/transport"
	"cassette_tracking_backend/platform/httpkit"
	"cassette_tracking_backend/platform/validator"
)

// Handler handles HTTP requests for repair events.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid repair event ID"
)

// New creates a new repairs handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// List retrieves repair events with optional filters.
// GET /api/v1/repairs
func (h *Handler) List(c *gin.Context) {
	params := repository.ListParams{}

	if raw := c.Query("cassetteId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid cassette ID", nil)
			return
		}
		params.CassetteID = &id
	}
	if raw := c.Query("ticketId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid ticket ID", nil)
			return
		}
		params.TicketID = &id
	}
	if c.Query("unattributed") == "true" {
		params.Unattributed = true
	}

	result, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetByID retrieves a repair event by ID.
// GET /api/v1/repairs/:id
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

// Create records a repair event.
// POST /api/v1/repairs
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateRepairRequest
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

// Delete soft-deletes a repair event.
// DELETE /api/v1/repairs/:id
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

// Resolve reports which ticket owns a repair event, without writing.
// GET /api/v1/repairs/:id/resolve
func (h *Handler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.Resolve(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Backfill runs the attribution backfill on demand.
// POST /api/v1/admin/repairs/backfill
func (h *Handler) Backfill(c *gin.Context) {
	var req transport.BackfillRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Backfill(c.Request.Context(), service.BackfillOptions{
		DryRun:    req.DryRun,
		BatchSize: req.BatchSize,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.BackfillResponse{
		Attributed:     result.Attributed,
		Unattributable: result.Unattributable,
		Errored:        result.Errored,
		DryRun:         req.DryRun,
	})
}
