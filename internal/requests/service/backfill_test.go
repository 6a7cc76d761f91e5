package service

import (
	"context"
	"testing"

	"servitec_backend/platform/apperr"
	"servitec_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackfillCoordinatesResolvesRequestsAndTechnicians(t *testing.T) {
	f := newFixture(t)
	resolvable := marketplaceInput()
	resolvable.Address = "Av. Rivadavia 5000"
	lost := marketplaceInput()
	lost.Address = "Calle Inexistente 1"

	a, err := f.svc.Create(context.Background(), f.client, resolvable)
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), f.client, lost)
	require.NoError(t, err)
	tech := f.dir.add(Technician{Name: "Base", BaseAddress: "Cabildo 2000", City: "Buenos Aires"})

	f.geo.points["Av. Rivadavia 5000, Buenos Aires"] = obelisco
	f.geo.points["Cabildo 2000, Buenos Aires"] = *kmNorth(obelisco, 5)

	report, err := f.svc.BackfillCoordinates(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RequestsResolved)
	assert.Equal(t, 1, report.TechniciansResolved)
	// The second pass only sees the unresolvable request and stops.
	assert.Equal(t, 3, report.Requests)

	got, err := f.store.GetRequest(context.Background(), a.Request.ID)
	require.NoError(t, err)
	require.True(t, got.HasCoordinates())
	assert.InDelta(t, obelisco.Lat, *got.Latitude, 1e-9)

	updated, err := f.dir.Get(context.Background(), tech.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.Location)
}

func TestBackfillWithoutGeocoder(t *testing.T) {
	f := newFixture(t)
	svc, err := New(f.store, f.dir, f.bus, logger.NewNop(), Settings{MatchLimit: 5, DefaultTimezone: "UTC"})
	require.NoError(t, err)

	_, err = svc.BackfillCoordinates(context.Background(), 10)

	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
}
