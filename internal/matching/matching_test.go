package matching

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kmNorth returns a point d kilometres due north of p.
func kmNorth(p Point, d float64) *Point {
	return &Point{Lat: p.Lat + (d/EarthRadiusKm)*180/math.Pi, Lng: p.Lng}
}

var obelisco = Point{Lat: -34.6037, Lng: -58.3816}

func TestHaversineSymmetricAndZero(t *testing.T) {
	pairs := [][4]float64{
		{-34.6037, -58.3816, -31.4201, -64.1888},
		{40.4168, -3.7038, 41.3874, 2.1686},
		{0, 0, 0, 180},
		{89.9, 10, -89.9, -170},
	}
	for _, p := range pairs {
		ab := HaversineKm(p[0], p[1], p[2], p[3])
		ba := HaversineKm(p[2], p[3], p[0], p[1])
		assert.InDelta(t, ab, ba, 1e-9)
		assert.Zero(t, HaversineKm(p[0], p[1], p[0], p[1]))
	}
	assert.InDelta(t, 505, HaversineKm(40.4168, -3.7038, 41.3874, 2.1686), 5, "Madrid to Barcelona")
}

func TestEffectiveRadius(t *testing.T) {
	assert.Equal(t, 10.0, EffectiveRadius(10, 25))
	assert.Equal(t, 8.0, EffectiveRadius(20, 8))
	assert.Equal(t, 12.0, EffectiveRadius(0, 12))
	assert.Equal(t, 12.0, EffectiveRadius(12, 0))
	assert.Equal(t, 0.0, EffectiveRadius(0, 0))
}

func TestCreationScoreScenario(t *testing.T) {
	strategy := CreationStrategy{Weights: DefaultWeights().Creation}
	target := Target{Location: &obelisco, RadiusKm: 15, Urgency: "alta"}
	c := Candidate{ID: uuid.New(), Name: "Ana", Location: kmNorth(obelisco, 2), RadiusKm: 20, Rating: 4.5, WithinHours: true}

	ranked, ok := strategy.Score(target, c)
	require.True(t, ok)
	require.NotNil(t, ranked.DistanceKm)
	assert.InDelta(t, 2.0, *ranked.DistanceKm, 1e-6)
	assert.InDelta(t, 159.0, ranked.Score, 1e-4)
}

func TestCreationSkipsMissingCoordinatesAndOutOfRadius(t *testing.T) {
	strategy := CreationStrategy{Weights: DefaultWeights().Creation}
	target := Target{Location: &obelisco, RadiusKm: 10, Urgency: "media"}

	_, ok := strategy.Score(target, Candidate{Name: "sin coords"})
	assert.False(t, ok)

	_, ok = strategy.Score(target, Candidate{Name: "lejos", Location: kmNorth(obelisco, 12), RadiusKm: 30})
	assert.False(t, ok, "beyond request radius")

	_, ok = strategy.Score(target, Candidate{Name: "radio chico", Location: kmNorth(obelisco, 6), RadiusKm: 5})
	assert.False(t, ok, "beyond technician radius")

	_, ok = strategy.Score(Target{Urgency: "media"}, Candidate{Location: &obelisco})
	assert.False(t, ok, "request without coordinates")
}

func TestRankCreationOrderAndLimit(t *testing.T) {
	target := Target{Location: &obelisco, RadiusKm: 50, Urgency: "baja"}
	var candidates []Candidate
	for i := 7; i >= 0; i-- {
		candidates = append(candidates, Candidate{
			ID:       uuid.New(),
			Name:     string(rune('A' + i)),
			Location: kmNorth(obelisco, float64(i+1)),
			Rating:   4,
		})
	}

	ranked := NewRanker(5).Rank(CreationStrategy{Weights: DefaultWeights().Creation}, target, candidates)

	require.Len(t, ranked, 5)
	for i, want := range []string{"A", "B", "C", "D", "E"} {
		assert.Equal(t, want, ranked[i].Candidate.Name)
	}
	assert.InDelta(t, 139.0, ranked[0].Score, 1e-6)
}

func TestCreationComparatorBreaksTiesByDistance(t *testing.T) {
	near, far := 1.5, 3.0
	cmpFn := CreationStrategy{}.Comparator()

	a := Ranked{Candidate: Candidate{Name: "near"}, Score: 120, DistanceKm: &near}
	b := Ranked{Candidate: Candidate{Name: "far"}, Score: 120, DistanceKm: &far}
	c := Ranked{Candidate: Candidate{Name: "best"}, Score: 121, DistanceKm: &far}

	assert.Negative(t, cmpFn(a, b))
	assert.Positive(t, cmpFn(b, a))
	assert.Negative(t, cmpFn(c, a))
}

func TestNewRankerClampsLimit(t *testing.T) {
	assert.Equal(t, 1, NewRanker(0).Limit())
	assert.Equal(t, 10, NewRanker(50).Limit())
	assert.Equal(t, 7, NewRanker(7).Limit())
}

func TestBackfillScoring(t *testing.T) {
	strategy := BackfillStrategy{Weights: DefaultWeights().Backfill}
	target := Target{Category: "Plomería", City: "Córdoba", Address: "Av. Colón 1200, Córdoba"}
	c := Candidate{
		Name:         "Luis",
		Specialty:    "plomeria y gas",
		City:         "cordoba",
		CoverageArea: "Córdoba capital y alrededores",
		HasPhone:     true,
	}

	ranked, ok := strategy.Score(target, c)
	require.True(t, ok)
	assert.Equal(t, 8.0+4+3+2+1, ranked.Score)
	assert.Nil(t, ranked.DistanceKm)
}

func TestBackfillTieBreakRecencyThenName(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)
	target := Target{Category: "electricidad", City: "Rosario"}
	candidates := []Candidate{
		{Name: "Zoe", Specialty: "electricidad", LastSeenAt: &earlier},
		{Name: "Ángel", Specialty: "electricidad"},
		{Name: "Bruno", Specialty: "electricidad"},
		{Name: "Marta", Specialty: "electricidad", LastSeenAt: &now},
		{Name: "Otro", Specialty: "pintura"},
	}

	ranked := NewRanker(5).Rank(BackfillStrategy{Weights: DefaultWeights().Backfill}, target, candidates)

	names := make([]string, 0, len(ranked))
	for _, r := range ranked {
		names = append(names, r.Candidate.Name)
	}
	assert.Equal(t, []string{"Marta", "Zoe", "Ángel", "Bruno"}, names, "zero score dropped, locale-aware names")
}

func TestBackfillAllZeroFallsBackToFullSet(t *testing.T) {
	target := Target{Category: "cerrajería", City: "Mendoza"}
	candidates := []Candidate{{Name: "Carla"}, {Name: "bea"}, {Name: "Ana"}}

	ranked := NewRanker(5).Rank(BackfillStrategy{Weights: DefaultWeights().Backfill}, target, candidates)

	require.Len(t, ranked, 3)
	assert.Equal(t, "Ana", ranked[0].Candidate.Name)
	assert.Equal(t, "bea", ranked[1].Candidate.Name)
	assert.Equal(t, "Carla", ranked[2].Candidate.Name)
}

func TestBackfillRespectsRadiusWhenCoordinatesKnown(t *testing.T) {
	target := Target{Location: &obelisco, RadiusKm: 5, Category: "gas"}
	candidates := []Candidate{
		{Name: "cerca", Specialty: "gas", Location: kmNorth(obelisco, 1)},
		{Name: "lejos", Specialty: "gas", Location: kmNorth(obelisco, 9)},
		{Name: "sin coords", Specialty: "gas"},
	}

	ranked := NewRanker(5).Rank(BackfillStrategy{Weights: DefaultWeights().Backfill}, target, candidates)

	require.Len(t, ranked, 2)
	assert.NotNil(t, ranked[0].DistanceKm)
}

func TestLoadWeightsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("creation:\n  working_hours_bonus: 7\n  urgency:\n    alta: 20\nbackfill:\n  phone: 0.5\n"), 0o600))

	w, err := LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, 7.0, w.Creation.WorkingHoursBonus)
	assert.Equal(t, 20.0, w.Creation.Urgency["alta"])
	assert.Equal(t, 8.0, w.Creation.Urgency["media"])
	assert.Equal(t, 100.0, w.Creation.Base)
	assert.Equal(t, 0.5, w.Backfill.Phone)

	_, err = LoadWeights(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	def, err := LoadWeights("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), def)
}
