package service

import (
	"context"
	"time"

	"servitec_backend/internal/availability"
	"servitec_backend/internal/matching"
	"servitec_backend/internal/requests/domain"

	"github.com/google/uuid"
)

// Technician is the directory's view of a technician profile. The schedule is
// already resolved from whatever configuration the profile carries.
type Technician struct {
	ID           uuid.UUID
	Name         string
	Phone        string
	Specialty    string
	City         string
	CoverageArea string
	BaseAddress  string
	Location     *matching.Point
	RadiusKm     float64
	Rating       float64
	Schedule     availability.Schedule
	Timezone     string
	LastSeenAt   *time.Time
}

// TechnicianDirectory is the technician-profile collaborator.
type TechnicianDirectory interface {
	ListActive(ctx context.Context) ([]Technician, error)
	Get(ctx context.Context, id uuid.UUID) (Technician, error)
	SetCoordinates(ctx context.Context, id uuid.UUID, p matching.Point) error
}

// Geocoder resolves a free-text address. A nil point with a nil error means no result.
type Geocoder interface {
	Resolve(ctx context.Context, query string) (*matching.Point, error)
}

// TimeoutScheduler enqueues durable timeout checks.
type TimeoutScheduler interface {
	ScheduleDirectExpiry(ctx context.Context, requestID uuid.UUID, at time.Time) error
	ScheduleMatchGeneration(ctx context.Context, requestID uuid.UUID, at time.Time) error
}

// Actor is whoever issues an action.
type Actor struct {
	ID   uuid.UUID
	Name string
	Type domain.ActorType
}

func ClientActor(id uuid.UUID, name string) Actor {
	return Actor{ID: id, Name: name, Type: domain.ActorClient}
}

func TechnicianActor(id uuid.UUID, name string) Actor {
	return Actor{ID: id, Name: name, Type: domain.ActorTechnician}
}

// SystemActor issues timeout transitions.
var SystemActor = Actor{Type: domain.ActorSystem}

func (a Actor) idPtr() *uuid.UUID {
	if a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}
