package quota

import (
	"sync"
	"time"

	"mercator-hq/ganymede/pkg/config"
)

// Limiter is a sliding-window counter over inbound requests. It mirrors
// the upstream account budget: once MaxRequests have been admitted within
// the window, further requests are rejected until the oldest admitted one
// slides out.
//
// The window is tracked as a ring of fixed-granularity buckets, so memory
// stays constant regardless of traffic. Safe for concurrent use.
type Limiter struct {
	maxRequests int64
	window      time.Duration
	bucketSize  time.Duration

	mu      sync.Mutex
	buckets []bucket
	head    int
}

type bucket struct {
	timestamp time.Time
	count     int64
}

// targetBuckets is the granularity of the ring: a 1h window uses 1m
// buckets.
const targetBuckets = 60

// NewLimiter creates a limiter from quota configuration.
func NewLimiter(cfg config.QuotaConfig) *Limiter {
	window := cfg.Window.Std()

	bucketSize := window / targetBuckets
	if bucketSize < time.Second {
		bucketSize = time.Second
	}

	numBuckets := int(window / bucketSize)
	if numBuckets == 0 {
		numBuckets = 1
	}

	return &Limiter{
		maxRequests: int64(cfg.MaxRequests),
		window:      window,
		bucketSize:  bucketSize,
		buckets:     make([]bucket, numBuckets),
	}
}

// Allow admits one request if the window has capacity. When the quota is
// exhausted it reports false together with how long until capacity frees
// up.
func (l *Limiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.pruneLocked(now)

	if l.sumLocked() >= l.maxRequests {
		return false, l.retryAfterLocked(now)
	}

	l.bucketForLocked(now).count++
	return true, 0
}

// Used returns the number of requests admitted within the current window.
func (l *Limiter) Used() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(time.Now())
	return l.sumLocked()
}

// Remaining returns how many more requests the current window admits.
func (l *Limiter) Remaining() int64 {
	remaining := l.maxRequests - l.Used()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears the window.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.buckets {
		l.buckets[i] = bucket{}
	}
	l.head = 0
}

func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	for i := range l.buckets {
		if !l.buckets[i].timestamp.IsZero() && l.buckets[i].timestamp.Before(cutoff) {
			l.buckets[i] = bucket{}
		}
	}
}

func (l *Limiter) sumLocked() int64 {
	var sum int64
	for i := range l.buckets {
		sum += l.buckets[i].count
	}
	return sum
}

// retryAfterLocked is the time until the oldest occupied bucket slides
// out of the window, rounded up one bucket so the caller does not race
// the boundary.
func (l *Limiter) retryAfterLocked(now time.Time) time.Duration {
	var oldest time.Time
	for i := range l.buckets {
		ts := l.buckets[i].timestamp
		if ts.IsZero() || l.buckets[i].count == 0 {
			continue
		}
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
	}

	if oldest.IsZero() {
		return l.bucketSize
	}

	retryAfter := oldest.Add(l.window + l.bucketSize).Sub(now)
	if retryAfter < 0 {
		retryAfter = l.bucketSize
	}
	return retryAfter
}

// bucketForLocked finds or claims the ring slot for the current time.
func (l *Limiter) bucketForLocked(now time.Time) *bucket {
	bucketTime := now.Truncate(l.bucketSize)

	if l.buckets[l.head].timestamp.Equal(bucketTime) {
		return &l.buckets[l.head]
	}

	for i := range l.buckets {
		if l.buckets[i].timestamp.Equal(bucketTime) {
			return &l.buckets[i]
		}
	}

	// Claim an empty slot, or recycle the oldest.
	target := -1
	for i := range l.buckets {
		if l.buckets[i].timestamp.IsZero() {
			target = i
			break
		}
	}
	if target == -1 {
		target = 0
		for i := 1; i < len(l.buckets); i++ {
			if l.buckets[i].timestamp.Before(l.buckets[target].timestamp) {
				target = i
			}
		}
	}

	l.buckets[target] = bucket{timestamp: bucketTime}
	l.head = target
	return &l.buckets[target]
}
