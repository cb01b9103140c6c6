package directions

import (
	"fmt"
	"math"
	"sync"
	"time"

	"schoolbus-backend/internal/geo"
	"schoolbus-backend/internal/tracking"

	log "github.com/sirupsen/logrus"
)

// Cache holds recent routes so a bus polling the same stop does not hit the
// API on every refresh
type Cache struct {
	entries    map[string]*cacheEntry
	mutex      sync.Mutex
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	stats      cacheStats
}

type cacheEntry struct {
	route        tracking.Route
	createdAt    time.Time
	lastAccessed time.Time
	hitCount     int
}

type cacheStats struct {
	hits      int64
	misses    int64
	evictions int64
}

// NewCache creates a route cache
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// CacheKey builds the key for a route. Both ends are rounded to ~11m so small
// GPS jitter still lands on the same entry.
func CacheKey(origin, destination geo.LatLng) string {
	return geo.EncodePolyline([]geo.LatLng{roundLatLng(origin), roundLatLng(destination)})
}

func roundLatLng(p geo.LatLng) geo.LatLng {
	return geo.LatLng{
		Latitude:  math.Round(p.Latitude*1e4) / 1e4,
		Longitude: math.Round(p.Longitude*1e4) / 1e4,
	}
}

// Get retrieves a route if it is cached and not expired
func (c *Cache) Get(key string) (tracking.Route, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, found := c.entries[key]
	if !found {
		c.stats.misses++
		return tracking.Route{}, false
	}

	now := c.now()
	if now.Sub(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.stats.misses++
		c.stats.evictions++
		return tracking.Route{}, false
	}

	entry.lastAccessed = now
	entry.hitCount++
	c.stats.hits++
	return entry.route, true
}

// Set stores a route
func (c *Cache) Set(key string, route tracking.Route) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.removeExpired(now)
		if len(c.entries) >= c.maxEntries {
			c.evictOldest()
		}
	}

	c.entries[key] = &cacheEntry{
		route:        route,
		createdAt:    now,
		lastAccessed: now,
	}
}

// Len returns the number of cached routes
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

// evictOldest removes the least recently used entry
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.lastAccessed.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastAccessed
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.evictions++
		log.Debugf("🗑️  Evicted oldest directions cache entry: %s", oldestKey)
	}
}

func (c *Cache) removeExpired(now time.Time) {
	for key, entry := range c.entries {
		if now.Sub(entry.createdAt) > c.ttl {
			delete(c.entries, key)
			c.stats.evictions++
		}
	}
}

// GetStats returns cache statistics
func (c *Cache) GetStats() map[string]interface{} {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	hitRate := 0.0
	total := c.stats.hits + c.stats.misses
	if total > 0 {
		hitRate = float64(c.stats.hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"cache_size":  len(c.entries),
		"max_entries": c.maxEntries,
		"hits":        c.stats.hits,
		"misses":      c.stats.misses,
		"hit_rate":    fmt.Sprintf("%.2f%%", hitRate),
		"evictions":   c.stats.evictions,
		"ttl_seconds": int(c.ttl.Seconds()),
	}
}
