// Package notification pushes request events to the clients and technicians
// they concern. It subscribes to the event bus; request code never calls it.
package notification

import (
	"context"

	"servitec_backend/internal/events"
	apphttp "servitec_backend/internal/http"
	"servitec_backend/internal/notification/sse"
	"servitec_backend/platform/httpkit"
	"servitec_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Module struct {
	sse *sse.Service
	log *logger.Logger
}

func New(log *logger.Logger) *Module {
	return &Module{sse: sse.New(log), log: log}
}

func (m *Module) Name() string { return "notification" }

// SSE exposes the hub so other modules can stream through it.
func (m *Module) SSE() *sse.Service { return m.sse }

// RegisterHandlers subscribes the hub to request events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.RequestCreated{}.EventName(), events.HandlerFunc(m.onRequestCreated))
	bus.Subscribe(events.RequestTransitioned{}.EventName(), events.HandlerFunc(m.onRequestTransitioned))
	bus.Subscribe(events.MatchesGenerated{}.EventName(), events.HandlerFunc(m.onMatchesGenerated))
	bus.Subscribe(events.QuoteUpdated{}.EventName(), events.HandlerFunc(m.onQuoteUpdated))
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/notifications/stream", m.sse.Handler(userFromContext))
}

func userFromContext(c *gin.Context) (uuid.UUID, bool) {
	id := httpkit.GetIdentity(c)
	if !id.IsAuthenticated() {
		return uuid.Nil, false
	}
	return id.UserID(), true
}

func (m *Module) onRequestCreated(_ context.Context, event events.Event) error {
	e, ok := event.(events.RequestCreated)
	if !ok {
		return nil
	}
	recipients := append([]uuid.UUID{e.ClientID}, e.MatchedTechnicians...)
	if e.TargetTechnicianID != nil {
		recipients = append(recipients, *e.TargetTechnicianID)
	}
	m.sse.PublishMany(recipients, sse.Event{
		Type:      sse.EventRequestCreated,
		RequestID: e.RequestID,
		Message:   "nueva solicitud",
		Data:      gin.H{"mode": e.Mode, "status": e.Status},
	})
	return nil
}

func (m *Module) onRequestTransitioned(_ context.Context, event events.Event) error {
	e, ok := event.(events.RequestTransitioned)
	if !ok {
		return nil
	}
	recipients := append([]uuid.UUID{e.ClientID}, e.Technicians...)
	m.sse.PublishMany(recipients, sse.Event{
		Type:      sse.EventRequestUpdated,
		RequestID: e.RequestID,
		Message:   e.Label,
		Data: gin.H{
			"action":    e.Action,
			"from":      e.From,
			"to":        e.To,
			"automatic": e.Automatic,
		},
	})
	return nil
}

func (m *Module) onMatchesGenerated(_ context.Context, event events.Event) error {
	e, ok := event.(events.MatchesGenerated)
	if !ok {
		return nil
	}
	recipients := append([]uuid.UUID{e.ClientID}, e.TechnicianIDs...)
	m.sse.PublishMany(recipients, sse.Event{
		Type:      sse.EventMatchesGenerated,
		RequestID: e.RequestID,
		Data:      gin.H{"strategy": e.Strategy, "count": len(e.TechnicianIDs)},
	})
	return nil
}

func (m *Module) onQuoteUpdated(_ context.Context, event events.Event) error {
	e, ok := event.(events.QuoteUpdated)
	if !ok {
		return nil
	}
	m.sse.PublishMany([]uuid.UUID{e.ClientID, e.TechnicianID}, sse.Event{
		Type:      sse.EventQuoteUpdated,
		RequestID: e.RequestID,
		Data:      gin.H{"matchId": e.MatchID, "quoteStatus": e.QuoteStatus},
	})
	return nil
}

var _ apphttp.Module = (*Module)(nil)
