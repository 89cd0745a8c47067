// Package cache provides a Redis-backed cache for rendered search
// responses. The index is eventually consistent anyway, so serving a
// response a few seconds stale is acceptable; the TTL bounds staleness.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "discovery:search:"

// SearchCache caches serialized search responses keyed by a digest of
// the normalized request parameters. Concurrent misses for the same key
// collapse into one backend query via singleflight.
type SearchCache struct {
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
	log   *slog.Logger
}

// New connects to Redis and verifies the connection with a PING.
func New(addr string, ttl time.Duration, logger *slog.Logger) (*SearchCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &SearchCache{rdb: rdb, ttl: ttl, log: logger}, nil
}

// GetOrCompute returns the cached response for the key, or runs compute
// once (per key, across concurrent callers) and caches its result.
// Cache infrastructure errors degrade to computing directly.
func (c *SearchCache) GetOrCompute(ctx context.Context, key string, compute func() (json.RawMessage, error)) (json.RawMessage, bool, error) {
	if data, ok := c.get(ctx, key); ok {
		return data, true, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		if data, ok := c.get(ctx, key); ok {
			return data, nil
		}
		data, err := compute()
		if err != nil {
			return nil, err
		}
		if err := c.rdb.Set(ctx, key, []byte(data), c.ttl).Err(); err != nil {
			c.log.Warn("cache set failed", slog.Any("err", err))
		}
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(json.RawMessage), false, nil
}

func (c *SearchCache) get(ctx context.Context, key string) (json.RawMessage, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("cache get failed", slog.Any("err", err))
		}
		return nil, false
	}
	return json.RawMessage(data), true
}

// Invalidate removes all cached search responses.
func (c *SearchCache) Invalidate(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (c *SearchCache) Close() error {
	return c.rdb.Close()
}

// Key digests the request parameters into a stable cache key. Parameter
// order does not matter; tags are sorted before hashing.
func Key(parts map[string]string, tags []string) string {
	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(parts[name])
		b.WriteByte('&')
	}

	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	b.WriteString("tags=")
	b.WriteString(strings.Join(sorted, ","))

	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}
