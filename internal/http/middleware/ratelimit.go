package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	localMaxKeys = 10000
	localIdleTTL = 10 * time.Minute
)

type localEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

// localLimiter keeps one token bucket per key in process. It backs the
// Redis limiter when Redis is absent or failing, so limits are per instance.
type localLimiter struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	now     func() time.Time
}

func newLocalLimiter() *localLimiter {
	return &localLimiter{entries: make(map[string]*localEntry), now: time.Now}
}

// allow spends one token from key's bucket; the bucket holds max tokens and
// refills completely once per window.
func (l *localLimiter) allow(key string, max int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= localMaxKeys {
			l.pruneLocked(now)
		}
		e = &localEntry{limiter: rate.NewLimiter(rate.Every(window/time.Duration(max)), max)}
		l.entries[key] = e
	}
	e.seen = now
	return e.limiter.AllowN(now, 1)
}

func (l *localLimiter) pruneLocked(now time.Time) {
	for k, e := range l.entries {
		if now.Sub(e.seen) > localIdleTTL {
			delete(l.entries, k)
		}
	}
	if len(l.entries) >= localMaxKeys {
		l.entries = make(map[string]*localEntry)
	}
}
