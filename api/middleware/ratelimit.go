package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricehist/config"
	"github.com/use-agent/pricehist/models"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiters holds one token bucket per identity (API key or client IP).
type Limiters struct {
	mu       sync.Mutex
	entries  map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiters creates the bucket set and starts a goroutine that evicts
// identities unused for an hour, checking every 5 minutes until Close.
func NewLimiters(cfg config.RateLimitConfig) *Limiters {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	l := &Limiters{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   burst,
		idle:    time.Hour,
		stop:    make(chan struct{}),
	}
	go l.cleanupLoop(5 * time.Minute)
	return l
}

// Allow consumes a token for identity.
func (l *Limiters) Allow(identity string) bool {
	l.mu.Lock()
	entry, ok := l.entries[identity]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[identity] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()

	return entry.limiter.Allow()
}

// Close stops the cleanup goroutine.
func (l *Limiters) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiters) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.evictIdle(time.Now())
		}
	}
}

func (l *Limiters) evictIdle(now time.Time) {
	cutoff := now.Add(-l.idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, id)
		}
	}
}

// RateLimit returns per-identity token-bucket rate limiting middleware.
// The API key set by Auth is the identity; the client IP is the fallback.
func RateLimit(l *Limiters) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.GetString(apiKeyContextKey)
		if identity == "" {
			identity = c.ClientIP()
		}

		if !l.Allow(identity) {
			abort(c, http.StatusTooManyRequests, models.ErrCodeRateLimited,
				"rate limit exceeded, please slow down")
			return
		}
		c.Next()
	}
}
