package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ixurl.local/internal/app/imgix"
	"ixurl.local/internal/platform/metrics"
)

// Result of a cache lookup.
type Result int

const (
	Miss Result = iota
	Hit
	NotFound // negative entry, the source is known not to exist
)

func (r Result) String() string {
	switch r {
	case Hit:
		return "hit"
	case NotFound:
		return "negative"
	default:
		return "miss"
	}
}

const (
	keyPrefix        = "src:"
	notFoundSentinel = "__nil__"
)

// SourceCache is a two level cache of active sources: ristretto (L1) then Redis (L2).
// Values in Redis are the JSON encoded source, sign key included.
type SourceCache struct {
	client   *redis.Client
	local    *LocalCache
	ttl      time.Duration
	emptyTTL time.Duration
}

func NewSourceCache(client *redis.Client, local *LocalCache) *SourceCache {
	return &SourceCache{
		client:   client,
		local:    local,
		ttl:      time.Hour,
		emptyTTL: 30 * time.Second,
	}
}

func (c *SourceCache) Get(ctx context.Context, name string) (imgix.Source, Result, error) {
	if c.local != nil {
		if src, res := c.local.Get(name); res != Miss {
			metrics.CacheOperations.WithLabelValues("l1", res.String()).Inc()
			return src, res, nil
		}
		metrics.CacheOperations.WithLabelValues("l1", "miss").Inc()
	}
	if c.client == nil {
		return imgix.Source{}, Miss, nil
	}

	raw, err := c.client.Get(ctx, keyPrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		metrics.CacheOperations.WithLabelValues("l2", "miss").Inc()
		return imgix.Source{}, Miss, nil
	}
	if err != nil {
		metrics.CacheOperations.WithLabelValues("l2", "error").Inc()
		return imgix.Source{}, Miss, err
	}

	if raw == notFoundSentinel {
		metrics.CacheOperations.WithLabelValues("l2", "negative").Inc()
		if c.local != nil {
			c.local.SetNotFound(name)
		}
		return imgix.Source{}, NotFound, nil
	}

	var src imgix.Source
	if err := json.Unmarshal([]byte(raw), &src); err != nil {
		// Stale or foreign value; drop it and fall through to the database.
		metrics.CacheOperations.WithLabelValues("l2", "error").Inc()
		_ = c.client.Del(ctx, keyPrefix+name).Err()
		return imgix.Source{}, Miss, fmt.Errorf("decode cached source %q: %w", name, err)
	}
	metrics.CacheOperations.WithLabelValues("l2", "hit").Inc()
	if c.local != nil {
		c.local.Set(src)
	}
	return src, Hit, nil
}

func (c *SourceCache) Set(ctx context.Context, src imgix.Source) error {
	if c.local != nil {
		c.local.Set(src)
	}
	if c.client == nil {
		return nil
	}
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+src.Name, b, c.ttl).Err()
}

// SetNotFound stores a short lived negative entry so unknown names do not
// reach Postgres on every request.
func (c *SourceCache) SetNotFound(ctx context.Context, name string) error {
	if c.local != nil {
		c.local.SetNotFound(name)
	}
	if c.client == nil {
		return nil
	}
	return c.client.Set(ctx, keyPrefix+name, notFoundSentinel, c.emptyTTL).Err()
}

func (c *SourceCache) Delete(ctx context.Context, name string) error {
	if c.local != nil {
		c.local.Del(name)
	}
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, keyPrefix+name).Err()
}

func (c *SourceCache) Close() {
	if c.local != nil {
		c.local.Close()
		slog.Info("local source cache closed")
	}
}
