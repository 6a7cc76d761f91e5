package maps

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"time"

	"servitec_backend/platform/sanitize"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "geocode:"

// CacheEntry is a remembered resolution. Found=false remembers that the
// provider had no result, so unknown addresses are not retried on every call.
type CacheEntry struct {
	Found bool    `json:"found"`
	Lat   float64 `json:"lat,omitempty"`
	Lng   float64 `json:"lng,omitempty"`
}

// Cache stores resolutions by normalized query.
type Cache interface {
	Get(ctx context.Context, query string) (CacheEntry, bool, error)
	Set(ctx context.Context, query string, entry CacheEntry, ttl time.Duration) error
}

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// NewRedisClient opens the redis connection shared with the scheduler.
func NewRedisClient(redisURL string, tlsInsecure bool) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if tlsInsecure {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

func cacheKey(query string) string {
	return cacheKeyPrefix + sanitize.Fold(sanitize.Text(query))
}

func (c *RedisCache) Get(ctx context.Context, query string) (CacheEntry, bool, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, err
	}
	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return CacheEntry{}, false, nil
	}
	return entry, true, nil
}

func (c *RedisCache) Set(ctx context.Context, query string, entry CacheEntry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKey(query), raw, ttl).Err()
}
