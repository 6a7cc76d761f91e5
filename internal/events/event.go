// Package events defines the domain events exchanged between modules.
// Bus infrastructure lives in platform/events.
package events

import (
	"servitec_backend/platform/events"
	"servitec_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var (
	NewBaseEvent   = events.NewBaseEvent
	NewBaseEventAt = events.NewBaseEventAt
)

func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// RequestCreated is published after a client submits a request.
type RequestCreated struct {
	BaseEvent
	RequestID          uuid.UUID   `json:"requestId"`
	ClientID           uuid.UUID   `json:"clientId"`
	Mode               string      `json:"mode"`
	Status             string      `json:"status"`
	TargetTechnicianID *uuid.UUID  `json:"targetTechnicianId,omitempty"`
	MatchedTechnicians []uuid.UUID `json:"matchedTechnicians,omitempty"`
}

func (e RequestCreated) EventName() string { return "requests.created" }

// RequestTransitioned is published after any lifecycle or negotiation action commits.
type RequestTransitioned struct {
	BaseEvent
	RequestID   uuid.UUID   `json:"requestId"`
	ClientID    uuid.UUID   `json:"clientId"`
	Action      string      `json:"action"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	ActorType   string      `json:"actorType"`
	Label       string      `json:"label"`
	Technicians []uuid.UUID `json:"technicians,omitempty"`
	Automatic   bool        `json:"automatic"`
}

func (e RequestTransitioned) EventName() string { return "requests.transitioned" }

// MatchesGenerated is published when a scoring pass stored new candidates.
type MatchesGenerated struct {
	BaseEvent
	RequestID     uuid.UUID   `json:"requestId"`
	ClientID      uuid.UUID   `json:"clientId"`
	Strategy      string      `json:"strategy"`
	TechnicianIDs []uuid.UUID `json:"technicianIds"`
}

func (e MatchesGenerated) EventName() string { return "requests.matches.generated" }

// QuoteUpdated is published when a match changes quote status.
type QuoteUpdated struct {
	BaseEvent
	RequestID    uuid.UUID `json:"requestId"`
	ClientID     uuid.UUID `json:"clientId"`
	MatchID      uuid.UUID `json:"matchId"`
	TechnicianID uuid.UUID `json:"technicianId"`
	QuoteStatus  string    `json:"quoteStatus"`
}

func (e QuoteUpdated) EventName() string { return "requests.quote.updated" }
