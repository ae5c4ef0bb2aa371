package greenapi

import (
	"sync"
	"time"
)

const (
	// maxTrackedSources caps the tracked source hosts so rotating senders
	// cannot exhaust memory.
	maxTrackedSources = 4096

	// rateWindow is the counting window per source.
	rateWindow = 60 * time.Second

	// rateMaxHits allows bursts of batched webhook deliveries while still
	// bounding abuse from a single source.
	rateMaxHits = 120
)

type rateEntry struct {
	windowStart time.Time
	count       int
}

// webhookRateLimiter bounds webhook requests per source host within a fixed
// window. Safe for concurrent use.
type webhookRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateEntry
}

func newWebhookRateLimiter() *webhookRateLimiter {
	return &webhookRateLimiter{entries: make(map[string]*rateEntry)}
}

// Allow reports whether the source is within limits, pruning stale entries
// when the tracked-source cap is reached.
func (l *webhookRateLimiter) Allow(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	if len(l.entries) >= maxTrackedSources {
		for k, e := range l.entries {
			if now.Sub(e.windowStart) >= rateWindow {
				delete(l.entries, k)
			}
		}
		for len(l.entries) >= maxTrackedSources {
			for k := range l.entries {
				delete(l.entries, k)
				break
			}
		}
	}

	e, ok := l.entries[source]
	if !ok || now.Sub(e.windowStart) >= rateWindow {
		l.entries[source] = &rateEntry{windowStart: now, count: 1}
		return true
	}

	e.count++
	return e.count <= rateMaxHits
}
