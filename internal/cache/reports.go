// Package cache provides Redis-backed caching for evaluation reports.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/strateval/internal/metrics"
	"github.com/ajitpratap0/strateval/pkg/evaluation"
)

// ReportCache provides Redis-based caching for finished evaluation reports
// so repeated report fetches skip the database.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// ReportCacheEntry represents a cached report with metadata
type ReportCacheEntry struct {
	ID       string             `json:"id"`
	Report   *evaluation.Report `json:"report"`
	CachedAt time.Time          `json:"cached_at"`
}

// NewReportCache creates a new Redis-based report cache
// If client is nil, returns nil (optional Redis support)
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	if client == nil {
		return nil
	}

	if ttl == 0 {
		ttl = time.Hour // Default TTL: 1 hour
	}

	return &ReportCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a report from cache
// Returns the report and true if found, or nil and false if not found or on error
func (c *ReportCache) Get(ctx context.Context, id string) (*evaluation.Report, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	key := c.buildKey(id)

	// Use a short timeout for cache operations to prevent blocking
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	cached, err := c.client.Get(cacheCtx, key).Result()
	if err != nil {
		if err != redis.Nil {
			// Log error but don't fail - cache miss is acceptable
			log.Debug().
				Err(err).
				Str("key", key).
				Msg("Redis get error - treating as cache miss")
		}
		metrics.RecordCacheMiss()
		return nil, false
	}

	var entry ReportCacheEntry
	if err := json.Unmarshal([]byte(cached), &entry); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Failed to unmarshal cached report")
		metrics.RecordCacheMiss()
		return nil, false
	}

	metrics.RecordCacheHit()
	log.Debug().
		Str("evaluation_id", id).
		Time("cached_at", entry.CachedAt).
		Msg("Cache hit for report")

	return entry.Report, true
}

// Set stores a report in cache with the configured TTL
func (c *ReportCache) Set(ctx context.Context, id string, report *evaluation.Report) error {
	return c.SetWithTTL(ctx, id, report, c.ttlOrDefault())
}

// SetWithTTL stores a report in cache with a custom TTL
func (c *ReportCache) SetWithTTL(ctx context.Context, id string, report *evaluation.Report, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	key := c.buildKey(id)

	entry := ReportCacheEntry{
		ID:       id,
		Report:   report,
		CachedAt: time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal report entry: %w", err)
	}

	// Use a short timeout for cache operations
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	metrics.RecordRedisOperation("set")
	if err := c.client.Set(cacheCtx, key, data, ttl).Err(); err != nil {
		// Log but don't fail the operation - cache failure should be graceful
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Failed to cache report")
		return err
	}

	log.Debug().
		Str("evaluation_id", id).
		Dur("ttl", ttl).
		Msg("Cached report")

	return nil
}

// Delete removes a report from cache
func (c *ReportCache) Delete(ctx context.Context, id string) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	key := c.buildKey(id)

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	metrics.RecordRedisOperation("del")
	if err := c.client.Del(cacheCtx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key: %w", err)
	}

	log.Debug().
		Str("evaluation_id", id).
		Msg("Deleted report from cache")

	return nil
}

// Clear removes all cached reports
func (c *ReportCache) Clear(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	pattern := c.buildKeyPattern()

	cacheCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	metrics.RecordRedisOperation("scan")
	iter := c.client.Scan(cacheCtx, 0, pattern, 0).Iterator()
	count := 0

	for iter.Next(cacheCtx) {
		if err := c.client.Del(cacheCtx, iter.Val()).Err(); err != nil {
			log.Warn().
				Err(err).
				Str("key", iter.Val()).
				Msg("Failed to delete cache key")
		} else {
			count++
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan error: %w", err)
	}

	log.Info().
		Int("keys_deleted", count).
		Msg("Cleared report cache")

	return nil
}

// Health checks if the Redis connection is healthy
func (c *ReportCache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Ping(cacheCtx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	return nil
}

func (c *ReportCache) ttlOrDefault() time.Duration {
	if c == nil || c.ttl == 0 {
		return time.Hour
	}
	return c.ttl
}

// buildKey creates a Redis key for an evaluation ID
func (c *ReportCache) buildKey(id string) string {
	return fmt.Sprintf("strateval:report:%s", id)
}

// buildKeyPattern creates a Redis key pattern for scanning
func (c *ReportCache) buildKeyPattern() string {
	return "strateval:report:*"
}
