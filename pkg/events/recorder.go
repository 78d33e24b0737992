package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// appendTimeout bounds a single record write so a wedged store cannot
// stall the session worker.
const appendTimeout = 5 * time.Second

// Recorder turns manager notifications into stored events. It satisfies
// the session layer's event sink. All methods are fire-and-forget: a
// storage failure is logged, never returned.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store:  store,
		logger: slog.Default().With("component", "events.recorder"),
	}
}

// RateLimited records an upstream rate-limit event. A zero cooldown means
// the manager rotated instead of tripping the breaker.
func (r *Recorder) RateLimited(source string, cooldown time.Duration) {
	detail := "rate limited, rotated to another account"
	if cooldown > 0 {
		detail = fmt.Sprintf("rate limited, cooling down for %s", cooldown)
	}
	r.record(&Event{
		Kind:   KindRateLimit,
		Source: source,
		Detail: detail,
	})
}

// ContentFailure records a content refusal and its streak position.
func (r *Recorder) ContentFailure(detail string, consecutive int) {
	r.record(&Event{
		Kind:   KindContentFailure,
		Detail: fmt.Sprintf("%s (consecutive: %d)", detail, consecutive),
	})
}

// BreakerTripped records a circuit breaker trip.
func (r *Recorder) BreakerTripped(cooldown time.Duration, reason string) {
	r.record(&Event{
		Kind:   KindBreakerTrip,
		Detail: fmt.Sprintf("breaker tripped for %s: %s", cooldown, reason),
	})
}

// AccountRotated records an account source rotation.
func (r *Recorder) AccountRotated(from, to string) {
	r.record(&Event{
		Kind:   KindAccountRotation,
		Source: to,
		Detail: fmt.Sprintf("rotated from %s to %s", from, to),
	})
}

func (r *Recorder) record(event *Event) {
	event.ID = uuid.NewString()
	event.CreatedAt = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	if err := r.store.Append(ctx, event); err != nil {
		r.logger.Warn("failed to record event",
			"kind", string(event.Kind),
			"error", err)
	}
}
