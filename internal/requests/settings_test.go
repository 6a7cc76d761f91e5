package requests

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"servitec_backend/platform/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsFromConfigOverlaysProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	require.NoError(t, os.WriteFile(path, []byte("creation:\n  distance_per_km: 5\n  urgency:\n    alta: 30\n"), 0o600))

	settings, err := SettingsFromConfig(&config.Config{
		MatchLimit:           4,
		DefaultRadiusKm:      25,
		DefaultTimezone:      "America/Argentina/Cordoba",
		PhoneDefaultRegion:   "AR",
		ScoringProfilePath:   path,
		DirectOfferTTL:       15 * time.Minute,
		MatchGenerationDelay: 30 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, settings.MatchLimit)
	assert.Equal(t, 25.0, settings.DefaultRadiusKm)
	assert.Equal(t, 15*time.Minute, settings.DirectOfferTTL)
	assert.Equal(t, 30*time.Second, settings.MatchGenerationDelay)
	assert.Equal(t, 5.0, settings.Weights.Creation.DistancePerKm)
	assert.Equal(t, 30.0, settings.Weights.Creation.Urgency["alta"])
	assert.Equal(t, 8.0, settings.Weights.Creation.Urgency["media"])
	assert.Equal(t, 100.0, settings.Weights.Creation.Base)
}

func TestSettingsFromConfigReportsMissingProfile(t *testing.T) {
	_, err := SettingsFromConfig(&config.Config{ScoringProfilePath: filepath.Join(t.TempDir(), "missing.yaml")})

	assert.Error(t, err)
}
