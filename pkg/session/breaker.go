package session

import (
	"sync"
	"time"
)

// Breaker is the circuit breaker guarding the upstream. Once tripped, all
// new work is rejected until the resume time passes; the open state then
// clears itself on the next Check.
//
// Only the manager's worker goroutine calls Trip. Any goroutine may call
// Check; a slightly stale read is acceptable, the worst case being one
// extra enqueued request that the worker then rejects.
type Breaker struct {
	mu       sync.RWMutex
	tripped  bool
	resumeAt time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker() *Breaker {
	return &Breaker{}
}

// Trip opens the breaker for the given duration. A Trip while already open
// extends the resume time only if the new cooldown reaches further.
func (b *Breaker) Trip(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	resumeAt := time.Now().Add(d)
	if !b.tripped || resumeAt.After(b.resumeAt) {
		b.resumeAt = resumeAt
	}
	b.tripped = true
}

// Check reports whether the breaker is open and, if so, how long until it
// closes. A breaker whose resume time has passed auto-clears.
func (b *Breaker) Check() (bool, time.Duration) {
	b.mu.RLock()
	tripped, resumeAt := b.tripped, b.resumeAt
	b.mu.RUnlock()

	if !tripped {
		return false, 0
	}

	remaining := time.Until(resumeAt)
	if remaining <= 0 {
		b.mu.Lock()
		// Re-check under the write lock: another goroutine may have
		// cleared it, or the worker may have re-tripped it meanwhile.
		if b.tripped && !time.Now().Before(b.resumeAt) {
			b.tripped = false
		}
		tripped = b.tripped
		remaining = time.Until(b.resumeAt)
		b.mu.Unlock()

		if !tripped || remaining <= 0 {
			return false, 0
		}
	}

	return true, remaining
}
