package requests

import (
	"servitec_backend/internal/matching"
	"servitec_backend/internal/requests/service"
	"servitec_backend/platform/config"
)

// EngineConfig is everything the engine reads from configuration.
type EngineConfig interface {
	config.MatchingConfig
	config.WatchdogConfig
}

// SettingsFromConfig builds the engine settings, loading the scoring profile when one is configured.
func SettingsFromConfig(cfg EngineConfig) (service.Settings, error) {
	weights, err := matching.LoadWeights(cfg.GetScoringProfilePath())
	if err != nil {
		return service.Settings{}, err
	}
	return service.Settings{
		MatchLimit:           cfg.GetMatchLimit(),
		DefaultRadiusKm:      cfg.GetDefaultRadiusKm(),
		DirectOfferTTL:       cfg.GetDirectOfferTTL(),
		MatchGenerationDelay: cfg.GetMatchGenerationDelay(),
		DefaultTimezone:      cfg.GetDefaultTimezone(),
		PhoneRegion:          cfg.GetPhoneDefaultRegion(),
		Weights:              weights,
	}, nil
}
