package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterEntryTTL        = 10 * time.Minute
	limiterCleanupInterval = 5 * time.Minute
)

// KeyedLimiter is an in-memory per-key rate limiter, used to slow down
// admin login attempts per client IP. It is safe for concurrent use. Stale
// keys are dropped lazily on access.
type KeyedLimiter struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	entries     map[string]*limiterEntry
	lastCleanup time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedLimiter creates a limiter that allows up to burst events per key,
// refilling at perSecond events per second.
func NewKeyedLimiter(perSecond float64, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		limit:       rate.Limit(perSecond),
		burst:       burst,
		entries:     make(map[string]*limiterEntry),
		lastCleanup: time.Now(),
	}
}

// Allow reports whether the given key may proceed. Each call consumes one
// event from the key's budget.
func (l *KeyedLimiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) >= limiterCleanupInterval {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > limiterEntryTTL {
				delete(l.entries, k)
			}
		}
		l.lastCleanup = now
	}

	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
