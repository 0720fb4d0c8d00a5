package handler

import (
	"casino-backend/internal/adapter/http/dto"
	"casino-backend/internal/adapter/http/middleware"
	"casino-backend/internal/core/ports"
	"casino-backend/pkg/apperror"
	"casino-backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CancellationHandler handles the cancellation authorization workflow.
type CancellationHandler struct {
	cancelSvc ports.CancellationService
}

// NewCancellationHandler creates a new CancellationHandler.
func NewCancellationHandler(cancelSvc ports.CancellationService) *CancellationHandler {
	return &CancellationHandler{cancelSvc: cancelSvc}
}

// Request handles POST /api/v1/cancellations. Staff only.
func (h *CancellationHandler) Request(c *gin.Context) {
	staffID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	txID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		response.Error(c, apperror.Validation("transaction_id inválido"))
		return
	}

	result, err := h.cancelSvc.Request(c.Request.Context(), txID, staffID.(uuid.UUID), req.Reason, req.RequiresDoubleAuth)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromCancellation(result))
}

// Authorize handles POST /api/v1/cancellations/:id/authorize. Staff only.
func (h *CancellationHandler) Authorize(c *gin.Context) {
	staffID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id inválido"))
		return
	}

	result, err := h.cancelSvc.Authorize(c.Request.Context(), requestID, staffID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Outcome == ports.AuthorizeOutcomeFirstRecorded {
		response.OK(c, gin.H{
			"message": "Primera autorización registrada",
			"request": dto.FromCancellation(result.Request),
		})
		return
	}

	response.OK(c, gin.H{
		"message": "Cancelación autorizada y procesada",
		"request": dto.FromCancellation(result.Request),
	})
}

// Reject handles POST /api/v1/cancellations/:id/reject. Staff only.
func (h *CancellationHandler) Reject(c *gin.Context) {
	staffID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id inválido"))
		return
	}

	if err := h.cancelSvc.Reject(c.Request.Context(), requestID, staffID.(uuid.UUID)); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "Solicitud de cancelación rechazada")
}

// Get handles GET /api/v1/cancellations/:id. Staff only.
func (h *CancellationHandler) Get(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id inválido"))
		return
	}

	req, err := h.cancelSvc.Get(c.Request.Context(), requestID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromCancellation(req))
}
