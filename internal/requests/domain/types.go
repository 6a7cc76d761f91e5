// Package domain holds the business rules of service requests: the status
// state machine, the quote sub-machine and the invariants tying them together.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPublished  Status = "published"
	StatusMatched    Status = "matched"
	StatusQuoted     Status = "quoted"
	StatusDirectSent Status = "direct_sent"
	StatusSelected   Status = "selected"
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var knownStatuses = map[Status]bool{
	StatusPublished: true, StatusMatched: true, StatusQuoted: true, StatusDirectSent: true,
	StatusSelected: true, StatusScheduled: true, StatusInProgress: true, StatusCompleted: true, StatusCancelled: true,
}

// assignedStatuses are exactly the statuses that carry an assigned technician.
var assignedStatuses = map[Status]bool{
	StatusSelected: true, StatusScheduled: true, StatusInProgress: true, StatusCompleted: true,
}

// OpenStatuses are visible to technicians browsing nearby work.
var OpenStatuses = []Status{StatusPublished, StatusMatched, StatusQuoted, StatusDirectSent}

func (s Status) Known() bool      { return knownStatuses[s] }
func (s Status) IsTerminal() bool { return s == StatusCompleted || s == StatusCancelled }
func (s Status) HasAssignment() bool {
	return assignedStatuses[s]
}

// Negotiable reports whether quotes may still be exchanged in this status.
func (s Status) Negotiable() bool {
	switch s {
	case StatusPublished, StatusMatched, StatusQuoted, StatusSelected:
		return true
	}
	return false
}

type Mode string

const (
	ModeMarketplace Mode = "marketplace"
	ModeDirect      Mode = "direct"
)

type Urgency string

const (
	UrgencyLow    Urgency = "baja"
	UrgencyMedium Urgency = "media"
	UrgencyHigh   Urgency = "alta"
)

// Rank orders urgencies for listings, most urgent first.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyHigh:
		return 0
	case UrgencyMedium:
		return 1
	default:
		return 2
	}
}

type QuoteStatus string

const (
	QuotePending   QuoteStatus = "pending"
	QuoteSubmitted QuoteStatus = "submitted"
	QuoteAccepted  QuoteStatus = "accepted"
	QuoteRejected  QuoteStatus = "rejected"
)

// TechnicianRef identifies a technician on a request.
type TechnicianRef struct {
	ID    uuid.UUID
	Name  string
	Phone string
}

// Request is one job posting.
type Request struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	Title           string
	Category        string
	Description     string
	Address         string
	City            string
	Latitude        *float64
	Longitude       *float64
	Urgency         Urgency
	PreferredWindow string
	Mode            Mode
	Status          Status
	RadiusKm        float64
	Target          *TechnicianRef
	Assigned        *TechnicianRef
	DirectExpiresAt *time.Time
	SelectedMatchID *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (r Request) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

func (r *Request) SetCoordinates(lat, lng float64) {
	r.Latitude = &lat
	r.Longitude = &lng
}

// Match is one technician's candidacy for a request.
type Match struct {
	ID              uuid.UUID
	RequestID       uuid.UUID
	TechnicianID    uuid.UUID
	TechnicianName  string
	TechnicianPhone string
	Specialty       string
	City            string
	Score           float64
	DistanceKm      *float64
	QuoteStatus     QuoteStatus
	Price           *decimal.Decimal
	ETAHours        *int
	Note            *string
	RejectionReason *string
	Rating          float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (m Match) Ref() TechnicianRef {
	return TechnicianRef{ID: m.TechnicianID, Name: m.TechnicianName, Phone: m.TechnicianPhone}
}

type ActorType string

const (
	ActorClient     ActorType = "client"
	ActorTechnician ActorType = "technician"
	ActorSystem     ActorType = "system"
)

// TimelineEvent is an append-only audit entry.
type TimelineEvent struct {
	ID        uuid.UUID
	RequestID uuid.UUID
	ActorID   *uuid.UUID
	ActorType ActorType
	Action    Action
	Label     string
	CreatedAt time.Time
}
