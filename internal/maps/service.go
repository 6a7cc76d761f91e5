package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"servitec_backend/internal/matching"
	"servitec_backend/platform/config"
	"servitec_backend/platform/logger"
	"servitec_backend/platform/metrics"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org/search"
	suggestionLimit     = 5
)

type Service struct {
	client       *http.Client
	baseURL      string
	userAgent    string
	countryCodes string
	limiter      *rate.Limiter
	inflight     singleflight.Group
	cache        Cache
	cacheTTL     time.Duration
	log          *logger.Logger
}

// NewService builds the geocoder. cache may be nil.
func NewService(cfg config.GeocoderConfig, cache Cache, log *logger.Logger) *Service {
	base := cfg.GetGeocoderURL()
	if base == "" {
		base = defaultNominatimURL
	}
	rps := cfg.GetGeocoderRatePerSecond()
	if rps <= 0 {
		rps = 1
	}
	return &Service{
		client:       &http.Client{Timeout: 5 * time.Second},
		baseURL:      base,
		userAgent:    cfg.GetGeocoderUserAgent(),
		countryCodes: cfg.GetGeocoderCountryCodes(),
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		cache:        cache,
		cacheTTL:     cfg.GetGeocodeCacheTTL(),
		log:          log,
	}
}

func (s *Service) SearchAddress(ctx context.Context, query string) ([]AddressSuggestion, error) {
	rawResults, err := s.search(ctx, query, suggestionLimit)
	if err != nil {
		return nil, err
	}

	suggestions := make([]AddressSuggestion, 0, len(rawResults))
	for _, raw := range rawResults {
		suggestion, ok := buildSuggestion(raw)
		if !ok {
			continue
		}
		suggestions = append(suggestions, suggestion)
	}
	return suggestions, nil
}

// Resolve returns the coordinates of the first result for query, or nil when
// there is none. Results, including misses, are cached and concurrent
// lookups of the same query share one upstream call.
func (s *Service) Resolve(ctx context.Context, query string) (*matching.Point, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	if s.cache != nil {
		entry, ok, err := s.cache.Get(ctx, query)
		if err != nil {
			s.log.Warn("geocode cache read failed", slog.String("error", err.Error()))
		} else if ok {
			metrics.GeocoderLookups.WithLabelValues("cache_hit").Inc()
			return entry.point(), nil
		}
	}

	v, err, _ := s.inflight.Do(query, func() (any, error) {
		entry, err := s.resolveUpstream(ctx, query)
		if err != nil {
			return CacheEntry{}, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, query, entry, s.cacheTTL); err != nil {
				s.log.Warn("geocode cache write failed", slog.String("error", err.Error()))
			}
		}
		return entry, nil
	})
	if err != nil {
		metrics.GeocoderLookups.WithLabelValues("error").Inc()
		return nil, err
	}
	entry := v.(CacheEntry)
	if entry.Found {
		metrics.GeocoderLookups.WithLabelValues("resolved").Inc()
	} else {
		metrics.GeocoderLookups.WithLabelValues("empty").Inc()
	}
	return entry.point(), nil
}

func (e CacheEntry) point() *matching.Point {
	if !e.Found {
		return nil
	}
	return &matching.Point{Lat: e.Lat, Lng: e.Lng}
}

func (s *Service) resolveUpstream(ctx context.Context, query string) (CacheEntry, error) {
	results, err := s.search(ctx, query, 1)
	if err != nil {
		return CacheEntry{}, err
	}
	for _, raw := range results {
		lat, latErr := strconv.ParseFloat(raw.Lat, 64)
		lng, lngErr := strconv.ParseFloat(raw.Lon, 64)
		if latErr == nil && lngErr == nil {
			return CacheEntry{Found: true, Lat: lat, Lng: lng}, nil
		}
	}
	return CacheEntry{Found: false}, nil
}

func (s *Service) search(ctx context.Context, query string, limit int) ([]nominatimResponse, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("q", query)
	params.Add("format", "json")
	params.Add("addressdetails", "1")
	params.Add("limit", strconv.Itoa(limit))
	if s.countryCodes != "" {
		params.Add("countrycodes", s.countryCodes)
	}

	reqURL := fmt.Sprintf("%s?%s", s.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept-Language", "es")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("nominatim request failed", "error", err)
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		s.log.Error("nominatim upstream error", "status", resp.StatusCode)
		return nil, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var rawResults []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&rawResults); err != nil {
		s.log.Error("failed to decode nominatim payload", "error", err)
		return nil, err
	}
	return rawResults, nil
}

func buildSuggestion(raw nominatimResponse) (AddressSuggestion, bool) {
	if raw.Address.Road == "" {
		return AddressSuggestion{}, false
	}

	city := pickCity(raw.Address)
	if city == "" {
		return AddressSuggestion{}, false
	}
	lat, err := strconv.ParseFloat(raw.Lat, 64)
	if err != nil {
		return AddressSuggestion{}, false
	}
	lon, err := strconv.ParseFloat(raw.Lon, 64)
	if err != nil {
		return AddressSuggestion{}, false
	}

	suggestion := AddressSuggestion{
		Street:      raw.Address.Road,
		HouseNumber: raw.Address.HouseNumber,
		ZipCode:     raw.Address.Postcode,
		City:        city,
		Lat:         lat,
		Lon:         lon,
	}
	suggestion.Label = buildLabel(suggestion)
	return suggestion, true
}

func pickCity(address nominatimAddress) string {
	for _, c := range []string{address.City, address.Town, address.Village, address.Municipality, address.Suburb, address.State} {
		if c != "" {
			return c
		}
	}
	return ""
}

// buildLabel renders "Street 123, CP City" the way addresses are written in Argentina.
func buildLabel(suggestion AddressSuggestion) string {
	parts := []string{suggestion.Street}
	if suggestion.HouseNumber != "" {
		parts = append(parts, suggestion.HouseNumber)
	}
	parts = append(parts, ",")
	if suggestion.ZipCode != "" {
		parts = append(parts, suggestion.ZipCode)
	}
	parts = append(parts, suggestion.City)

	label := strings.Join(parts, " ")
	label = strings.ReplaceAll(label, " ,", ",")
	return strings.TrimSpace(label)
}
