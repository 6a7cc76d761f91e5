package matching

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Weights tunes both scoring strategies.
type Weights struct {
	Creation CreationWeights `yaml:"creation"`
	Backfill BackfillWeights `yaml:"backfill"`
}

type CreationWeights struct {
	Base              float64            `yaml:"base"`
	DistancePerKm     float64            `yaml:"distance_per_km"`
	RatingMultiplier  float64            `yaml:"rating_multiplier"`
	WorkingHoursBonus float64            `yaml:"working_hours_bonus"`
	Urgency           map[string]float64 `yaml:"urgency"`
}

type BackfillWeights struct {
	Specialty    float64 `yaml:"specialty"`
	City         float64 `yaml:"city"`
	CoverageArea float64 `yaml:"coverage_area"`
	AddressCity  float64 `yaml:"address_city"`
	Phone        float64 `yaml:"phone"`
}

func DefaultWeights() Weights {
	return Weights{
		Creation: CreationWeights{
			Base:              100,
			DistancePerKm:     3,
			RatingMultiplier:  10,
			WorkingHoursBonus: 5,
			Urgency:           map[string]float64{"alta": 15, "media": 8, "baja": 2},
		},
		Backfill: BackfillWeights{Specialty: 8, City: 4, CoverageArea: 3, AddressCity: 2, Phone: 1},
	}
}

// LoadWeights overlays the YAML file at path on the defaults. An empty path
// returns the defaults.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()
	if path == "" {
		return w, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return w, fmt.Errorf("read scoring profile: %w", err)
	}

	var overlay Weights
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return w, fmt.Errorf("parse scoring profile: %w", err)
	}

	mergeNonZero(&w.Creation.Base, overlay.Creation.Base)
	mergeNonZero(&w.Creation.DistancePerKm, overlay.Creation.DistancePerKm)
	mergeNonZero(&w.Creation.RatingMultiplier, overlay.Creation.RatingMultiplier)
	mergeNonZero(&w.Creation.WorkingHoursBonus, overlay.Creation.WorkingHoursBonus)
	for k, v := range overlay.Creation.Urgency {
		w.Creation.Urgency[k] = v
	}
	mergeNonZero(&w.Backfill.Specialty, overlay.Backfill.Specialty)
	mergeNonZero(&w.Backfill.City, overlay.Backfill.City)
	mergeNonZero(&w.Backfill.CoverageArea, overlay.Backfill.CoverageArea)
	mergeNonZero(&w.Backfill.AddressCity, overlay.Backfill.AddressCity)
	mergeNonZero(&w.Backfill.Phone, overlay.Backfill.Phone)
	return w, nil
}

func mergeNonZero(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}
