// Package cache wraps Redis behind a small interface and provides the
// result-cache keys the analysis API uses.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is not present.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the caching operations the API layer needs.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
}

// RedisCache implements Cache on a Redis client.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a Redis-backed cache. All keys are namespaced under
// the prefix.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) prefixKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Get retrieves a value, returning ErrCacheMiss when absent.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefixKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return []byte(val), nil
}

// Set stores a value with a TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefixKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefixKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Exists reports whether a key is present.
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.client.Exists(ctx, c.prefixKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return count > 0, nil
}

// Clear removes every key under the prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefixKey("*"), 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis clear: %w", err)
		}
	}
	return iter.Err()
}

// Manager provides JSON-level operations over a Cache.
type Manager struct {
	cache Cache
}

// NewManager creates a cache manager.
func NewManager(cache Cache) *Manager {
	return &Manager{cache: cache}
}

// GetJSON retrieves and unmarshals a cached value into dest.
func (m *Manager) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := m.cache.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetJSON marshals and stores a value.
func (m *Manager) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return m.cache.Set(ctx, key, data, ttl)
}

// Delete removes a key.
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.cache.Delete(ctx, key)
}

// Clear removes all cached data under the prefix.
func (m *Manager) Clear(ctx context.Context) error {
	return m.cache.Clear(ctx)
}

// Result TTLs. Analysis results age quickly because stored fares refresh
// daily; airports are effectively static.
const (
	AnalysisTTL = 15 * time.Minute
	AirportsTTL = 24 * time.Hour
)

// AnalysisKey builds the cache key for one analysis request. The airline
// filter is sorted so equivalent requests share an entry.
func AnalysisKey(origin, destination, tripType, cabin, start, end string, adults, children, infants int, airlines []string) string {
	sorted := make([]string, len(airlines))
	copy(sorted, airlines)
	sort.Strings(sorted)
	return fmt.Sprintf("analysis:%s:%s:%s:%s:%s:%s:%d-%d-%d:%s",
		origin, destination, tripType, cabin, start, end,
		adults, children, infants, strings.Join(sorted, "+"))
}

// AirportsKey is the cache key for the airport catalog.
func AirportsKey() string {
	return "airports:all"
}
