package adapters

import (
	"context"

	"servitec_backend/internal/availability"
	"servitec_backend/internal/matching"
	"servitec_backend/internal/requests/service"
	techrepo "servitec_backend/internal/technicians/repository"

	"github.com/google/uuid"
)

// ProfileStore is the part of the technicians repository the directory reads.
type ProfileStore interface {
	ListActive(ctx context.Context) ([]techrepo.Profile, error)
	Get(ctx context.Context, id uuid.UUID) (techrepo.Profile, error)
	SetCoordinates(ctx context.Context, id uuid.UUID, lat, lng float64) error
	ListMissingCoordinates(ctx context.Context, limit int) ([]techrepo.Profile, error)
}

// TechnicianDirectory adapts technician profiles for the requests domain.
// Working hours are resolved once per read: structured JSON first, then the
// legacy text, then the default week.
type TechnicianDirectory struct {
	store ProfileStore
}

func NewTechnicianDirectory(store ProfileStore) *TechnicianDirectory {
	return &TechnicianDirectory{store: store}
}

func (d *TechnicianDirectory) ListActive(ctx context.Context) ([]service.Technician, error) {
	profiles, err := d.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return toTechnicians(profiles), nil
}

func (d *TechnicianDirectory) Get(ctx context.Context, id uuid.UUID) (service.Technician, error) {
	p, err := d.store.Get(ctx, id)
	if err != nil {
		return service.Technician{}, err
	}
	return toTechnician(p), nil
}

func (d *TechnicianDirectory) SetCoordinates(ctx context.Context, id uuid.UUID, p matching.Point) error {
	return d.store.SetCoordinates(ctx, id, p.Lat, p.Lng)
}

// MissingCoordinates lists technicians whose base address still needs geocoding.
func (d *TechnicianDirectory) MissingCoordinates(ctx context.Context, limit int) ([]service.Technician, error) {
	profiles, err := d.store.ListMissingCoordinates(ctx, limit)
	if err != nil {
		return nil, err
	}
	return toTechnicians(profiles), nil
}

func toTechnicians(profiles []techrepo.Profile) []service.Technician {
	out := make([]service.Technician, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, toTechnician(p))
	}
	return out
}

func toTechnician(p techrepo.Profile) service.Technician {
	t := service.Technician{
		ID:           p.ID,
		Name:         p.Name,
		Phone:        p.Phone,
		Specialty:    p.Specialty,
		City:         p.City,
		CoverageArea: p.CoverageArea,
		BaseAddress:  p.BaseAddress,
		RadiusKm:     p.RadiusKm,
		Rating:       p.Rating,
		Schedule:     availability.Resolve(p.WorkingHours, p.WorkingHoursText),
		Timezone:     p.Timezone,
		LastSeenAt:   p.LastSeenAt,
	}
	if p.Latitude != nil && p.Longitude != nil {
		t.Location = &matching.Point{Lat: *p.Latitude, Lng: *p.Longitude}
	}
	return t
}

var _ service.TechnicianDirectory = (*TechnicianDirectory)(nil)
