// Package requests is the service-request bounded context: creation, matching,
// the lifecycle and quote negotiation, plus the technician-facing endpoints.
package requests

import (
	"context"
	"time"

	"servitec_backend/internal/events"
	apphttp "servitec_backend/internal/http"
	"servitec_backend/internal/requests/domain"
	"servitec_backend/internal/requests/handler"
	"servitec_backend/internal/requests/repository"
	"servitec_backend/internal/requests/service"
	"servitec_backend/internal/requests/transport"
	"servitec_backend/internal/watchdog"
	"servitec_backend/platform/logger"
	"servitec_backend/platform/validator"

	"github.com/google/uuid"
)

// Module is the requests bounded context module implementing http.Module.
type Module struct {
	handler  *handler.Handler
	service  *service.Service
	observer *watchdog.Observer
}

// NewModule wires the service, the cooperative watchdog and the handlers.
// The watchdog re-checks watched requests every tick.
func NewModule(store repository.Store, directory service.TechnicianDirectory, bus events.Bus, val *validator.Validator, log *logger.Logger, settings service.Settings, tick time.Duration) (*Module, error) {
	if err := transport.RegisterValidations(val); err != nil {
		return nil, err
	}
	svc, err := service.New(store, directory, bus, log, settings)
	if err != nil {
		return nil, err
	}
	observer := watchdog.NewObserver(svc.Rules(), watchTarget{svc: svc}, tick, log)

	return &Module{
		handler:  handler.New(svc, val, observer),
		service:  svc,
		observer: observer,
	}, nil
}

func (m *Module) Name() string {
	return "requests"
}

// Service returns the service layer for the scheduler worker and adapters.
func (m *Module) Service() *service.Service {
	return m.service
}

// Shutdown waits for timeouts fired by watchers.
func (m *Module) Shutdown() {
	m.observer.Wait()
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	requests := ctx.Client.Group("/requests")
	requests.GET("", m.handler.List)
	requests.POST("", m.handler.Create)
	requests.GET("/:id", m.handler.Get)
	requests.PATCH("/:id", m.handler.Patch)
	requests.GET("/:id/timeline", m.handler.Timeline)
	requests.GET("/:id/watch", m.handler.Watch)

	technician := ctx.Technician.Group("/requests")
	technician.GET("/nearby", m.handler.Nearby)
	technician.POST("/:id/quote", m.handler.SubmitQuote)
	technician.POST("/:id/direct-response", m.handler.DirectResponse)
}

// watchTarget lets the observer fire timeouts through the service. The
// service re-checks every rule under the row lock.
type watchTarget struct {
	svc *service.Service
}

func (t watchTarget) Load(ctx context.Context, id uuid.UUID) (domain.Request, error) {
	return t.svc.Load(ctx, id)
}

func (t watchTarget) Fire(ctx context.Context, id uuid.UUID, action domain.Action) error {
	_, err := t.svc.ApplyTimeout(ctx, id, action, service.SourceWatch)
	return err
}

var _ apphttp.Module = (*Module)(nil)
