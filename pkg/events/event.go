package events

import (
	"context"
	"time"
)

// Kind classifies an operational event.
type Kind string

const (
	// KindRateLimit records an upstream rate-limit hit.
	KindRateLimit Kind = "rate_limit"

	// KindContentFailure records a content refusal.
	KindContentFailure Kind = "content_failure"

	// KindBreakerTrip records a circuit breaker trip.
	KindBreakerTrip Kind = "breaker_trip"

	// KindAccountRotation records an account source rotation.
	KindAccountRotation Kind = "account_rotation"
)

// Event is one immutable log record.
type Event struct {
	// ID is a UUID assigned at record time.
	ID string

	// Kind classifies the event.
	Kind Kind

	// Source identifies the account source involved, when applicable.
	Source string

	// Detail is a human-readable description.
	Detail string

	// CreatedAt is the record timestamp.
	CreatedAt time.Time
}

// ListOptions filters a List call.
type ListOptions struct {
	// Kind restricts results to one event kind; empty means all kinds.
	Kind Kind

	// Limit caps the number of returned events; 0 means no cap.
	Limit int
}

// Store persists events. Implementations are safe for concurrent use.
type Store interface {
	// Append writes one event.
	Append(ctx context.Context, event *Event) error

	// List returns events newest-first, filtered by opts.
	List(ctx context.Context, opts ListOptions) ([]*Event, error)

	// Count returns the total number of stored events.
	Count(ctx context.Context) (int64, error)

	// DeleteBefore removes events created before cutoff and reports how
	// many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// TrimTo removes the oldest events until at most max remain and
	// reports how many were removed.
	TrimTo(ctx context.Context, max int64) (int64, error)

	// Close releases the backing resources.
	Close() error
}
