package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Buckets hands out one token bucket per client key and forgets idle keys.
type Buckets struct {
	mu      sync.Mutex
	perSec  rate.Limit
	burst   int
	ttl     time.Duration
	entries map[string]*bucket
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewBuckets constructs a keyed limiter allowing perSecond requests with the given burst.
func NewBuckets(perSecond float64, burst int, ttl time.Duration) *Buckets {
	return &Buckets{perSec: rate.Limit(perSecond), burst: burst, ttl: ttl, entries: map[string]*bucket{}}
}

// Allow consumes a token for key.
func (b *Buckets) Allow(key string) bool {
	now := time.Now()
	b.mu.Lock()
	e, ok := b.entries[key]
	if !ok {
		e = &bucket{lim: rate.NewLimiter(b.perSec, b.burst)}
		b.entries[key] = e
	}
	e.seen = now
	b.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

// Sweep drops buckets idle for longer than the ttl and returns how many were removed.
func (b *Buckets) Sweep(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for k, e := range b.entries {
		if now.Sub(e.seen) > b.ttl {
			delete(b.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (b *Buckets) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
