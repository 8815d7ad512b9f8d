package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cassette_tracking_backend/internal/cassettes/domain"
	"cassette_tracking_backend/internal/cassettes/repository"
	"cassette_tracking_backend/internal/cassettes/service"
	"cassette_tracking_backend/internal/cassettes/transport"
	"cassette_tracking_backend/platform/httpkit"
	"cassette_tracking_backend/platform/validator"
)

// Handler handles HTTP requests for cassettes.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid cassette ID"
)

// New creates a new cassettes handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// List retrieves cassettes with optional filters.
// GET /api/v1/cassettes
func (h *Handler) List(c *gin.Context) {
	params := repository.ListParams{}

	if raw := c.Query("bankId"); raw != "" {
		bankID, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid bank ID", nil)
			return
		}
		params.BankID = &bankID
	}
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if httpkit.HandleError(c, err) {
			return
		}
		params.Status = &status
	}

	result, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetByID retrieves a cassette by ID.
// GET /api/v1/cassettes/:id
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

// GetBySerial retrieves a cassette by serial number.
// GET /api/v1/cassettes/serial/:serial
func (h *Handler) GetBySerial(c *gin.Context) {
	serial := c.Param("serial")
	if serial == "" {
		httpkit.Error(c, http.StatusBadRequest, "serial is required", nil)
		return
	}

	result, err := h.svc.GetBySerial(c.Request.Context(), serial)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Create provisions a new cassette.
// POST /api/v1/admin/cassettes
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateCassetteRequest
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

// Transition moves a cassette to a new status.
// POST /api/v1/cassettes/:id/transition
func (h *Handler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Transition(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CheckAvailability answers the guard question for one cassette.
// GET /api/v1/cassettes/:id/availability
func (h *Handler) CheckAvailability(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.CheckAvailability(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CheckAvailabilityBatch answers the guard question for several cassettes.
// POST /api/v1/cassettes/availability
func (h *Handler) CheckAvailabilityBatch(c *gin.Context) {
	var req transport.AvailabilityBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.CheckAvailabilityBatch(c.Request.Context(), req.CassetteIDs)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Replace retires a cassette and activates a successor.
// POST /api/v1/cassettes/:id/replace
func (h *Handler) Replace(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.ReplaceCassetteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Replace(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}
