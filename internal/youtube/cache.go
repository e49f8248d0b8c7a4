package youtube

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"convify/internal/logging"
)

// TitleFetcher looks up a display title for a video ID.
type TitleFetcher interface {
	FetchTitle(ctx context.Context, videoID string) (string, error)
}

type cacheEntry struct {
	title    string
	storedAt time.Time
}

// CachedFetcher memoizes successful lookups for ttl, holding at most
// maxEntries titles. When full, the oldest entry is evicted.
type CachedFetcher struct {
	next       TitleFetcher
	ttl        time.Duration
	maxEntries int
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
	hits    uint64
	misses  uint64
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// NewCachedFetcher wraps next with a bounded TTL cache.
func NewCachedFetcher(next TitleFetcher, ttl time.Duration, maxEntries int, logger *slog.Logger) *CachedFetcher {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &CachedFetcher{
		next:       next,
		ttl:        ttl,
		maxEntries: maxEntries,
		logger:     logging.NewComponentLogger(logger, "title-cache"),
		now:        time.Now,
		entries:    make(map[string]cacheEntry),
	}
}

// FetchTitle returns a cached title when fresh, otherwise delegates and stores
// the result. Errors are never cached.
func (c *CachedFetcher) FetchTitle(ctx context.Context, videoID string) (string, error) {
	now := c.now()
	c.mu.RLock()
	entry, ok := c.entries[videoID]
	c.mu.RUnlock()
	if ok && now.Sub(entry.storedAt) < c.ttl {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		c.logger.Debug("title cache hit", logging.String("video_id", videoID))
		return entry.title, nil
	}

	title, err := c.next.FetchTitle(ctx, videoID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	if err != nil {
		return "", err
	}
	if _, exists := c.entries[videoID]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[videoID] = cacheEntry{title: title, storedAt: now}
	return title, nil
}

// Stats returns a snapshot of cache counters.
func (c *CachedFetcher) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// evictLocked drops expired entries, then the oldest one if still full.
func (c *CachedFetcher) evictLocked(now time.Time) {
	var oldestID string
	var oldest time.Time
	for id, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			delete(c.entries, id)
			continue
		}
		if oldestID == "" || entry.storedAt.Before(oldest) {
			oldestID, oldest = id, entry.storedAt
		}
	}
	if len(c.entries) >= c.maxEntries && oldestID != "" {
		delete(c.entries, oldestID)
	}
}
