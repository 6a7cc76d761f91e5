package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"servitec_backend/internal/availability"
	"servitec_backend/internal/events"
	"servitec_backend/internal/matching"
	"servitec_backend/internal/requests/repository"
	"servitec_backend/platform/apperr"
	"servitec_backend/platform/clock"
	"servitec_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	mu    sync.Mutex
	techs []Technician
}

func (d *fakeDirectory) add(t Technician) Technician {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Schedule == (availability.Schedule{}) {
		t.Schedule = availability.Default()
	}
	d.techs = append(d.techs, t)
	return t
}

func (d *fakeDirectory) ListActive(context.Context) ([]Technician, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Technician(nil), d.techs...), nil
}

func (d *fakeDirectory) Get(_ context.Context, id uuid.UUID) (Technician, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.techs {
		if t.ID == id {
			return t, nil
		}
	}
	return Technician{}, apperr.NotFound("técnico no encontrado")
}

func (d *fakeDirectory) SetCoordinates(_ context.Context, id uuid.UUID, p matching.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.techs {
		if d.techs[i].ID == id {
			d.techs[i].Location = &p
		}
	}
	return nil
}

func (d *fakeDirectory) MissingCoordinates(_ context.Context, limit int) ([]Technician, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Technician
	for _, t := range d.techs {
		if t.Location == nil && t.BaseAddress != "" && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeGeocoder struct {
	mu     sync.Mutex
	points map[string]matching.Point
	calls  int
}

func (g *fakeGeocoder) Resolve(_ context.Context, q string) (*matching.Point, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if p, ok := g.points[q]; ok {
		return &p, nil
	}
	return nil, nil
}

type scheduled struct {
	id uuid.UUID
	at time.Time
}

type fakeScheduler struct {
	mu     sync.Mutex
	direct []scheduled
	match  []scheduled
}

func (s *fakeScheduler) ScheduleDirectExpiry(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.direct = append(s.direct, scheduled{id, at})
	return nil
}

func (s *fakeScheduler) ScheduleMatchGeneration(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.match = append(s.match, scheduled{id, at})
	return nil
}

// Monday 12:00 in Buenos Aires.
var t0 = time.Date(2024, time.January, 15, 15, 0, 0, 0, time.UTC)

var obelisco = matching.Point{Lat: -34.6037, Lng: -58.3816}

func kmNorth(p matching.Point, d float64) *matching.Point {
	return &matching.Point{Lat: p.Lat + (d/matching.EarthRadiusKm)*180/math.Pi, Lng: p.Lng}
}

type fixture struct {
	svc       *Service
	store     *repository.Memory
	dir       *fakeDirectory
	geo       *fakeGeocoder
	scheduler *fakeScheduler
	clock     *clock.MockClock
	bus       *events.InMemoryBus
	client    Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     repository.NewMemory(),
		dir:       &fakeDirectory{},
		geo:       &fakeGeocoder{points: map[string]matching.Point{}},
		scheduler: &fakeScheduler{},
		clock:     clock.NewMockClock(t0),
		bus:       events.NewInMemoryBus(logger.NewNop()),
		client:    ClientActor(uuid.New(), "Ana"),
	}
	svc, err := New(f.store, f.dir, f.bus, logger.NewNop(), Settings{
		MatchLimit:           5,
		DirectOfferTTL:       20 * time.Minute,
		MatchGenerationDelay: 20 * time.Second,
		DefaultTimezone:      "America/Argentina/Buenos_Aires",
		PhoneRegion:          "AR",
	})
	require.NoError(t, err)
	svc.SetGeocoder(f.geo)
	svc.SetScheduler(f.scheduler)
	svc.SetClock(f.clock)
	f.svc = svc
	t.Cleanup(f.bus.Wait)
	return f
}
