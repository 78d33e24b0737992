package upstream

import (
	"fmt"
	"time"
)

// UpstreamError represents a general upstream failure that does not fit a
// more specific category. It includes the HTTP status code when one is
// available.
type UpstreamError struct {
	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the error message
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// AuthError represents an authentication failure. This occurs when the
// upstream rejects the session cookies (HTTP 401 or 403) or the handshake
// does not yield a usable session token, which usually means the cookies
// have rotted.
type AuthError struct {
	// Message is the error message from the upstream
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("upstream authentication failed: %s", e.Message)
}

// RateLimitError represents a rate limit response (HTTP 429). It includes
// the retry-after duration if the upstream provided one.
type RateLimitError struct {
	// RetryAfter is the duration to wait before retrying (if provided)
	RetryAfter time.Duration

	// Message is the error message from the upstream
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("upstream rate limit exceeded (retry after %s): %s", e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("upstream rate limit exceeded: %s", e.Message)
}

// ServerError represents an upstream server-side failure (HTTP 5xx).
// It does not imply the session is broken.
type ServerError struct {
	// StatusCode is the HTTP status code
	StatusCode int

	// Message is the error message from the upstream
	Message string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("upstream server error (status %d): %s", e.StatusCode, e.Message)
}

// RefusalError represents a content-generation refusal: the exchange
// completed at the transport level but produced no usable text. An empty
// successful-looking response is a refusal, never Success("").
type RefusalError struct {
	// Message describes the refusal
	Message string
}

// Error implements the error interface.
func (e *RefusalError) Error() string {
	return fmt.Sprintf("upstream refused to generate content: %s", e.Message)
}

// TimeoutError represents a request that exceeded its deadline.
type TimeoutError struct {
	// Timeout is the configured timeout duration
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream request timeout after %s", e.Timeout)
}

// ParseError represents a response that could not be decoded.
type ParseError struct {
	// RawResponse is a truncated copy of the response that failed to parse
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("upstream response parse error: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
