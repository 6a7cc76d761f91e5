package handler

import (
	"context"
	"errors"
	"net/http"

	"servitec_backend/internal/notification/sse"
	"servitec_backend/internal/requests/domain"
	"servitec_backend/internal/requests/service"
	"servitec_backend/internal/requests/transport"
	"servitec_backend/internal/watchdog"
	"servitec_backend/platform/httpkit"
	"servitec_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "solicitud inválida"
	msgValidationFailed = "datos inválidos"
	msgInvalidID        = "identificador de solicitud inválido"
)

// Handler serves the client and technician request endpoints.
type Handler struct {
	svc      *service.Service
	val      *validator.Validator
	observer *watchdog.Observer
}

func New(svc *service.Service, val *validator.Validator, observer *watchdog.Observer) *Handler {
	return &Handler{svc: svc, val: val, observer: observer}
}

// List returns the caller's requests.
// GET /api/v1/requests
func (h *Handler) List(c *gin.Context) {
	actor, ok := clientActor(c)
	if !ok {
		return
	}
	result, err := h.svc.List(c.Request.Context(), actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Create publishes a new request.
// POST /api/v1/requests
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	actor, ok := clientActor(c)
	if !ok {
		return
	}

	result, err := h.svc.Create(c.Request.Context(), actor, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// Get returns one request with its matches.
// GET /api/v1/requests/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	actor, ok := clientActor(c)
	if !ok {
		return
	}
	result, err := h.svc.Snapshot(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Patch applies one lifecycle or negotiation action and returns the refreshed workspace.
// PATCH /api/v1/requests/:id
func (h *Handler) Patch(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	var req transport.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	actor, ok := clientActor(c)
	if !ok {
		return
	}

	result, err := h.svc.Apply(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Timeline lists the request's history, newest first.
// GET /api/v1/requests/:id/timeline
func (h *Handler) Timeline(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	actor, ok := clientActor(c)
	if !ok {
		return
	}
	result, err := h.svc.Timeline(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Watch streams the request while the client keeps it open and lets the
// watchdog fire due timeouts on every tick.
// GET /api/v1/requests/:id/watch
func (h *Handler) Watch(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	actor, ok := clientActor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.svc.Snapshot(ctx, actor, id); httpkit.HandleError(c, err) {
		return
	}

	sse.PrepareStream(c)
	err := h.observer.Watch(ctx, id, func(domain.Request) error {
		snapshot, err := h.svc.Snapshot(ctx, actor, id)
		if err != nil {
			return err
		}
		return sse.Write(c, sse.Event{Type: sse.EventRequestSnapshot, RequestID: id, Data: snapshot})
	})
	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		_ = c.Error(err)
		_ = sse.Write(c, sse.Event{Type: "error", RequestID: id, Message: "se perdió la conexión con la solicitud"})
	}
}

func requestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.Nil, false
	}
	return id, true
}

func clientActor(c *gin.Context) (service.Actor, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return service.Actor{}, false
	}
	return service.ClientActor(identity.UserID(), identity.DisplayName()), true
}

func technicianActor(c *gin.Context) (service.Actor, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return service.Actor{}, false
	}
	return service.TechnicianActor(identity.UserID(), identity.DisplayName()), true
}
