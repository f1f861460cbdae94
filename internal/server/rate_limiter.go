package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterStaleAfter = 10 * time.Minute

// ipRateLimiter hands out one token bucket per client key.
type ipRateLimiter struct {
	mu            sync.Mutex
	entries       map[string]*ipRateLimitEntry
	limit         rate.Limit
	burst         int
	opCount       int
	cleanupEveryN int
}

type ipRateLimitEntry struct {
	limiter    *rate.Limiter
	lastSeenAt time.Time
}

// newIPRateLimiter returns nil (no limiting) when perMinute is not positive.
func newIPRateLimiter(perMinute, burst int) *ipRateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &ipRateLimiter{
		entries:       make(map[string]*ipRateLimitEntry),
		limit:         rate.Limit(float64(perMinute) / 60),
		burst:         burst,
		cleanupEveryN: 64,
	}
}

func (l *ipRateLimiter) Allow(key string, now time.Time) bool {
	if l == nil || key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		entry = &ipRateLimitEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeenAt = now
	l.maybeCleanupLocked(now)

	return entry.limiter.AllowN(now, 1)
}

func (l *ipRateLimiter) maybeCleanupLocked(now time.Time) {
	l.opCount++
	if l.opCount%l.cleanupEveryN != 0 {
		return
	}
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeenAt) > limiterStaleAfter {
			delete(l.entries, key)
		}
	}
}
