// Package config loads process configuration from the environment.
// Consumers depend on the narrow interfaces below, never on *Config directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DatabaseConfig interface {
	GetDatabaseURL() string
}

// PoolConfig sizes the connection pool of one process.
type PoolConfig interface {
	DatabaseConfig
	GetDatabaseMaxConns() int
	GetDatabaseMinConns() int
}

// JWTConfig is what the auth middleware needs to validate access tokens.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig configures the asynq connection shared by the API and the worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// GeocoderConfig configures the address resolver and its cache.
type GeocoderConfig interface {
	GetGeocoderURL() string
	GetGeocoderUserAgent() string
	GetGeocoderCountryCodes() string
	GetGeocoderRatePerSecond() float64
	GetGeocodeCacheTTL() time.Duration
}

// MatchingConfig drives candidate ranking.
type MatchingConfig interface {
	GetMatchLimit() int
	GetDefaultRadiusKm() float64
	GetDefaultTimezone() string
	GetPhoneDefaultRegion() string
	GetScoringProfilePath() string
}

// WatchdogConfig holds the two timeout thresholds. They are unrelated settings
// and are configured separately.
type WatchdogConfig interface {
	GetDirectOfferTTL() time.Duration
	GetMatchGenerationDelay() time.Duration
	GetWatchdogTick() time.Duration
}

// Config holds all settings of one process.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	DBMaxConns      int
	DBMinConns      int
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string
	CORSAllowCreds  bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	GeocoderURL           string
	GeocoderUserAgent     string
	GeocoderCountryCodes  string
	GeocoderRatePerSecond float64
	GeocodeCacheTTL       time.Duration

	MatchLimit         int
	DefaultRadiusKm    float64
	DefaultTimezone    string
	PhoneDefaultRegion string
	ScoringProfilePath string

	DirectOfferTTL       time.Duration
	MatchGenerationDelay time.Duration
	WatchdogTick         time.Duration
}

const (
	minMatchLimit = 1
	maxMatchLimit = 10
)

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true") || containsWildcard(corsOrigins)

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		DBMaxConns:      int(mustInt64(getEnv("DB_MAX_CONNS", "25"))),
		DBMinConns:      int(mustInt64(getEnv("DB_MIN_CONNS", "2"))),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:    corsAllowAll,
		CORSOrigins:     corsOrigins,
		CORSAllowCreds:  strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "10"))),

		GeocoderURL:           getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org/search"),
		GeocoderUserAgent:     getEnv("GEOCODER_USER_AGENT", "servitec-backend/1.0"),
		GeocoderCountryCodes:  getEnv("GEOCODER_COUNTRY_CODES", "ar"),
		GeocoderRatePerSecond: mustFloat(getEnv("GEOCODER_RATE_PER_SEC", "1")),
		GeocodeCacheTTL:       mustDuration(getEnv("GEOCODE_CACHE_TTL", "720h")),

		MatchLimit:         clampInt(int(mustInt64(getEnv("MATCH_LIMIT", "5"))), minMatchLimit, maxMatchLimit),
		DefaultRadiusKm:    mustFloat(getEnv("DEFAULT_RADIUS_KM", "15")),
		DefaultTimezone:    getEnv("DEFAULT_TIMEZONE", "America/Argentina/Buenos_Aires"),
		PhoneDefaultRegion: strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "AR")),
		ScoringProfilePath: getEnv("SCORING_PROFILE_PATH", ""),

		DirectOfferTTL:       mustDuration(getEnv("DIRECT_OFFER_TTL", "20m")),
		MatchGenerationDelay: mustDuration(getEnv("MATCH_GENERATION_DELAY", "20s")),
		WatchdogTick:         mustDuration(getEnv("WATCHDOG_TICK", "1s")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.DirectOfferTTL <= 0 {
		return nil, fmt.Errorf("DIRECT_OFFER_TTL must be a positive duration")
	}
	if cfg.MatchGenerationDelay <= 0 {
		return nil, fmt.Errorf("MATCH_GENERATION_DELAY must be a positive duration")
	}
	if cfg.WatchdogTick <= 0 {
		cfg.WatchdogTick = time.Second
	}
	if cfg.AsynqConcurrency <= 0 {
		cfg.AsynqConcurrency = 10
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("DEFAULT_TIMEZONE: %w", err)
	}

	return cfg, nil
}

func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetDatabaseMaxConns() int   { return c.DBMaxConns }
func (c *Config) GetDatabaseMinConns() int   { return c.DBMinConns }
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) IsSchedulerEnabled() bool   { return c.RedisURL != "" }

func (c *Config) GetGeocoderURL() string            { return c.GeocoderURL }
func (c *Config) GetGeocoderUserAgent() string      { return c.GeocoderUserAgent }
func (c *Config) GetGeocoderCountryCodes() string   { return c.GeocoderCountryCodes }
func (c *Config) GetGeocoderRatePerSecond() float64 { return c.GeocoderRatePerSecond }
func (c *Config) GetGeocodeCacheTTL() time.Duration { return c.GeocodeCacheTTL }

func (c *Config) GetMatchLimit() int            { return c.MatchLimit }
func (c *Config) GetDefaultRadiusKm() float64   { return c.DefaultRadiusKm }
func (c *Config) GetDefaultTimezone() string    { return c.DefaultTimezone }
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }
func (c *Config) GetScoringProfilePath() string { return c.ScoringProfilePath }

func (c *Config) GetDirectOfferTTL() time.Duration       { return c.DirectOfferTTL }
func (c *Config) GetMatchGenerationDelay() time.Duration { return c.MatchGenerationDelay }
func (c *Config) GetWatchdogTick() time.Duration         { return c.WatchdogTick }

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
