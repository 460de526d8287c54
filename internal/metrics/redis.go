package metrics

import (
	"sync"
)

// cacheStats tracks report cache hits and misses to derive the hit rate
type cacheStats struct {
	mu     sync.Mutex
	hits   int64
	misses int64
}

var reportCacheStats cacheStats

// RecordCacheHit records a report cache hit and updates the hit rate
func RecordCacheHit() {
	RecordRedisOperation("get")

	reportCacheStats.mu.Lock()
	defer reportCacheStats.mu.Unlock()
	reportCacheStats.hits++
	reportCacheStats.updateHitRateLocked()
}

// RecordCacheMiss records a report cache miss and updates the hit rate
func RecordCacheMiss() {
	RecordRedisOperation("get")

	reportCacheStats.mu.Lock()
	defer reportCacheStats.mu.Unlock()
	reportCacheStats.misses++
	reportCacheStats.updateHitRateLocked()
}

// ResetCacheStats resets hit/miss statistics
func ResetCacheStats() {
	reportCacheStats.mu.Lock()
	defer reportCacheStats.mu.Unlock()
	reportCacheStats.hits = 0
	reportCacheStats.misses = 0
	RedisCacheHitRate.Set(0)
}

// CacheStats returns the current hit/miss counts
func CacheStats() (hits, misses int64) {
	reportCacheStats.mu.Lock()
	defer reportCacheStats.mu.Unlock()
	return reportCacheStats.hits, reportCacheStats.misses
}

// updateHitRateLocked updates the cache hit rate metric. Caller holds mu.
func (cs *cacheStats) updateHitRateLocked() {
	total := cs.hits + cs.misses
	if total > 0 {
		hitRate := float64(cs.hits) / float64(total)
		RedisCacheHitRate.Set(hitRate)
	}
}
