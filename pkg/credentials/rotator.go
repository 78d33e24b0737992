package credentials

import "sync"

// Rotator holds an ordered list of credential bundle sources and an active
// index. Rotation advances circularly; it is how the session layer spreads
// load across accounts when the upstream rate limits.
//
// Rotator is safe for concurrent use, though in practice only the session
// manager's worker goroutine mutates it.
type Rotator struct {
	mu      sync.RWMutex
	sources []string
	active  int
}

// NewRotator creates a rotator over the given bundle file paths. At least
// one source is required; the first entry is the initial active account.
func NewRotator(sources []string) *Rotator {
	copied := make([]string, len(sources))
	copy(copied, sources)
	return &Rotator{sources: copied}
}

// Current returns the active credential source path.
func (r *Rotator) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[r.active]
}

// Index returns the active index.
func (r *Rotator) Index() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Len returns the number of configured sources.
func (r *Rotator) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

// Rotate advances to the next source. It returns false without advancing
// when only one source is configured, so callers can distinguish "rotated,
// try again" from "nowhere to go".
func (r *Rotator) Rotate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sources) <= 1 {
		return false
	}

	r.active = (r.active + 1) % len(r.sources)
	return true
}
