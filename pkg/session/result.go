package session

import "mercator-hq/ganymede/pkg/upstream"

// Tag is the stable, machine-checkable failure class on a Result. Calling
// code and tests branch on tags, never on free-text detail.
type Tag string

const (
	// TagNone marks a successful result.
	TagNone Tag = ""

	// TagCredentialMissing means the credential file is absent or lacks
	// the primary session token.
	TagCredentialMissing Tag = "credential_missing"

	// TagCredentialMalformed means the credential file parsed into
	// neither accepted shape.
	TagCredentialMalformed Tag = "credential_malformed"

	// TagAuthInvalid means the upstream rejected the credentials even
	// after a fresh handshake.
	TagAuthInvalid Tag = "auth_invalid"

	// TagRateLimited means the upstream rate limit held after rotation
	// was exhausted, or the breaker is cooling down.
	TagRateLimited Tag = "rate_limited"

	// TagContentRefused means the upstream produced no usable text.
	TagContentRefused Tag = "content_refused"

	// TagServerUnavailable means the upstream kept failing server-side.
	TagServerUnavailable Tag = "server_unavailable"

	// TagTimeout means attempts (or the caller's total wait) timed out.
	TagTimeout Tag = "timeout"

	// TagUnknown covers everything else, including recovered panics.
	TagUnknown Tag = "unknown"
)

// Result is the terminal outcome of one Query call. Query never returns an
// error: every failure path produces a tagged Result so the transport
// layer can decide status mapping.
type Result struct {
	// Success reports whether Text carries a generated answer.
	Success bool

	// Text is the generated answer (success only).
	Text string

	// Tag is the failure class (failure only).
	Tag Tag

	// Detail is a human-readable elaboration of the failure.
	Detail string

	// Attempts is the number of upstream attempts made, 0 when the
	// request was rejected before any attempt.
	Attempts int
}

// failureTag maps a classified outcome to its result tag.
func failureTag(outcome upstream.Outcome) Tag {
	switch outcome {
	case upstream.OutcomeRateLimited:
		return TagRateLimited
	case upstream.OutcomeAuthInvalid:
		return TagAuthInvalid
	case upstream.OutcomeContentRefused:
		return TagContentRefused
	case upstream.OutcomeServerUnavailable:
		return TagServerUnavailable
	case upstream.OutcomeTimeout:
		return TagTimeout
	default:
		return TagUnknown
	}
}
