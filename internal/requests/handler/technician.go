package handler

import (
	"net/http"

	"servitec_backend/internal/requests/transport"
	"servitec_backend/platform/httpkit"
	"servitec_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Nearby lists open requests around the technician's base.
// GET /api/v1/technician/requests/nearby
func (h *Handler) Nearby(c *gin.Context) {
	actor, ok := technicianActor(c)
	if !ok {
		return
	}
	result, err := h.svc.Nearby(c.Request.Context(), actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// SubmitQuote sends or revises the technician's quote.
// POST /api/v1/technician/requests/:id/quote
func (h *Handler) SubmitQuote(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	var req transport.SubmitQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	actor, ok := technicianActor(c)
	if !ok {
		return
	}

	result, err := h.svc.SubmitQuote(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DirectResponse accepts or declines a direct invitation.
// POST /api/v1/technician/requests/:id/direct-response
func (h *Handler) DirectResponse(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	var req transport.DirectResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	actor, ok := technicianActor(c)
	if !ok {
		return
	}

	result, err := h.svc.RespondDirect(c.Request.Context(), actor, id, *req.Accept, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
