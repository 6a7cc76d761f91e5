// Package transport defines the request and response bodies of the requests module.
package transport

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateRequestRequest struct {
	Title              string     `json:"title" validate:"required,min=3,max=120"`
	Category           string     `json:"category" validate:"required,max=80"`
	Description        string     `json:"description" validate:"max=4000"`
	Address            string     `json:"address" validate:"required,max=240"`
	City               string     `json:"city" validate:"required,max=120"`
	Urgency            string     `json:"urgency" validate:"required,urgency"`
	PreferredWindow    string     `json:"preferredWindow" validate:"max=120"`
	Mode               string     `json:"mode" validate:"required,mode"`
	RadiusKm           float64    `json:"radiusKm" validate:"omitempty,gt=0,lte=500"`
	Latitude           *float64   `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude          *float64   `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	TargetTechnicianID *uuid.UUID `json:"targetTechnicianId,omitempty" validate:"required_if=Mode direct"`
}

// ActionRequest is the PATCH body. Which optional fields are required depends on Action.
type ActionRequest struct {
	Action   string           `json:"action" validate:"required"`
	MatchID  *uuid.UUID       `json:"matchId,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	ETAHours *float64         `json:"etaHours,omitempty"`
	Note     *string          `json:"note,omitempty" validate:"omitempty,max=500"`
	Reason   *string          `json:"reason,omitempty" validate:"omitempty,max=500"`
	Status   *string          `json:"status,omitempty"`
}

type SubmitQuoteRequest struct {
	Price    decimal.Decimal `json:"price"`
	ETAHours float64         `json:"etaHours" validate:"required"`
	Note     *string         `json:"note,omitempty" validate:"omitempty,max=500"`
}

type DirectResponseRequest struct {
	Accept *bool   `json:"accept" validate:"required"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type TechnicianRefResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone,omitempty"`
}

type MatchResponse struct {
	ID              uuid.UUID `json:"id"`
	TechnicianID    uuid.UUID `json:"technicianId"`
	TechnicianName  string    `json:"technicianName"`
	TechnicianPhone string    `json:"technicianPhone,omitempty"`
	Specialty       string    `json:"specialty,omitempty"`
	City            string    `json:"city,omitempty"`
	Score           float64   `json:"score"`
	DistanceKm      *float64  `json:"distanceKm,omitempty"`
	QuoteStatus     string    `json:"quoteStatus"`
	Price           *string   `json:"price,omitempty"`
	ETAHours        *int      `json:"etaHours,omitempty"`
	Note            *string   `json:"note,omitempty"`
	RejectionReason *string   `json:"rejectionReason,omitempty"`
	Rating          float64   `json:"rating"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type RequestResponse struct {
	ID                 uuid.UUID              `json:"id"`
	ClientID           uuid.UUID              `json:"clientId"`
	Title              string                 `json:"title"`
	Category           string                 `json:"category"`
	Description        string                 `json:"description"`
	Address            string                 `json:"address"`
	City               string                 `json:"city"`
	Latitude           *float64               `json:"latitude,omitempty"`
	Longitude          *float64               `json:"longitude,omitempty"`
	Urgency            string                 `json:"urgency"`
	PreferredWindow    string                 `json:"preferredWindow"`
	Mode               string                 `json:"mode"`
	Status             string                 `json:"status"`
	StatusLabel        string                 `json:"statusLabel"`
	RadiusKm           float64                `json:"radiusKm"`
	TargetTechnician   *TechnicianRefResponse `json:"targetTechnician,omitempty"`
	AssignedTechnician *TechnicianRefResponse `json:"assignedTechnician,omitempty"`
	DirectExpiresAt    *time.Time             `json:"directExpiresAt,omitempty"`
	SelectedMatchID    *uuid.UUID             `json:"selectedMatchId,omitempty"`
	AllowedStatuses    []string               `json:"allowedStatuses"`
	Matches            []MatchResponse        `json:"matches"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
}

type CreateRequestResponse struct {
	Request RequestResponse `json:"request"`
	Matches []MatchResponse `json:"matches"`
}

type KnownTechnicianResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Specialty string    `json:"specialty,omitempty"`
	City      string    `json:"city,omitempty"`
	Rating    float64   `json:"rating"`
}

// WorkspaceResponse is everything a client screen needs after any change.
type WorkspaceResponse struct {
	Requests    []RequestResponse         `json:"requests"`
	Technicians []KnownTechnicianResponse `json:"technicians"`
}

type TimelineEventResponse struct {
	ID        uuid.UUID  `json:"id"`
	ActorType string     `json:"actorType"`
	ActorID   *uuid.UUID `json:"actorId,omitempty"`
	Action    string     `json:"action"`
	Label     string     `json:"label"`
	CreatedAt time.Time  `json:"createdAt"`
}

type NearbyRequestResponse struct {
	ID              uuid.UUID      `json:"id"`
	Title           string         `json:"title"`
	Category        string         `json:"category"`
	Description     string         `json:"description"`
	Address         string         `json:"address"`
	City            string         `json:"city"`
	Urgency         string         `json:"urgency"`
	PreferredWindow string         `json:"preferredWindow"`
	Mode            string         `json:"mode"`
	Status          string         `json:"status"`
	DistanceKm      float64        `json:"distanceKm"`
	DirectToMe      bool           `json:"directToMe"`
	DirectExpiresAt *time.Time     `json:"directExpiresAt,omitempty"`
	MyQuote         *MatchResponse `json:"myQuote,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

type NearbyResponse struct {
	Items    []NearbyRequestResponse `json:"items"`
	RadiusKm float64                 `json:"radiusKm"`
}

type RequestStatusResponse struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}
