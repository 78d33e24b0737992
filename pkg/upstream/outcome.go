package upstream

import (
	"context"
	"errors"
)

// Outcome is the classified result of one upstream exchange attempt. It is
// the canonical contract between the session layer and the retry policy:
// every error leaving this package maps to exactly one Outcome before any
// policy decision runs, so the policy never inspects free-text.
type Outcome int

const (
	// OutcomeSuccess is a completed exchange with usable text.
	OutcomeSuccess Outcome = iota

	// OutcomeRateLimited is an upstream rate limit.
	OutcomeRateLimited

	// OutcomeAuthInvalid is a rejected handshake or rotted cookies.
	OutcomeAuthInvalid

	// OutcomeContentRefused is a transport-level success with no usable
	// generated text.
	OutcomeContentRefused

	// OutcomeServerUnavailable is an upstream server-side failure.
	OutcomeServerUnavailable

	// OutcomeTimeout is an exchange that exceeded its deadline.
	OutcomeTimeout

	// OutcomeUnknown is anything that fits no other category.
	OutcomeUnknown
)

// String returns the outcome name used in logs and metrics labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeAuthInvalid:
		return "auth_invalid"
	case OutcomeContentRefused:
		return "content_refused"
	case OutcomeServerUnavailable:
		return "server_unavailable"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Classify maps an error from an upstream exchange to exactly one Outcome.
// A nil error is OutcomeSuccess.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}

	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		return OutcomeRateLimited
	}

	var auth *AuthError
	if errors.As(err, &auth) {
		return OutcomeAuthInvalid
	}

	var refusal *RefusalError
	if errors.As(err, &refusal) {
		return OutcomeContentRefused
	}

	var server *ServerError
	if errors.As(err, &server) {
		return OutcomeServerUnavailable
	}

	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return OutcomeTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}

	return OutcomeUnknown
}
