// Package cache keeps recent successful extraction results in memory so a
// repeated request for the same input can skip the browser.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/pricehist/models"
)

// entry holds a cached result with its creation timestamp.
type entry struct {
	result    *models.ExtractionResult
	createdAt time.Time
}

// Cache is an in-memory cache of extraction results keyed by input.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a Cache holding at most maxEntries results. A background
// goroutine evicts entries older than ttl every ttl/12 (at least a minute)
// until Close is called.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go c.cleanupLoop()
	return c
}

// Key derives a cache key from a raw input. Bare symbols are
// case-insensitive; URLs are used verbatim.
func Key(rawInput string) string {
	s := strings.TrimSpace(rawInput)
	if !strings.Contains(s, "://") {
		s = strings.ToUpper(s)
	}
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Get returns a cached result younger than maxAge and within the TTL.
// maxAge <= 0 disables the lookup.
func (c *Cache) Get(key string, maxAge time.Duration) (*models.ExtractionResult, bool) {
	if maxAge <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	age := c.now().Sub(e.createdAt)
	if age > maxAge || (c.ttl > 0 && age > c.ttl) {
		return nil, false
	}
	return e.result, true
}

// Set stores a successful result. Failed results are ignored. If the cache
// is at capacity, the oldest entry is evicted.
func (c *Cache) Set(key string, r *models.ExtractionResult) {
	if r == nil || !r.OK() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.store {
			if oldestKey == "" || e.createdAt.Before(oldest) {
				oldestKey, oldest = k, e.createdAt
			}
		}
		delete(c.store, oldestKey)
	}

	c.store[key] = &entry{result: r, createdAt: c.now()}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) cleanupLoop() {
	if c.ttl <= 0 {
		return
	}
	interval := c.ttl / 12
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
