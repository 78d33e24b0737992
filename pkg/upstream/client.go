package upstream

import (
	"context"

	"mercator-hq/ganymede/pkg/credentials"
)

// Client opens authenticated connections to the upstream provider.
//
// All methods accept a context.Context for cancellation and timeout
// control; implementations must respect cancellation and return promptly
// when the context is done.
type Client interface {
	// Open performs the handshake with the given credential bundle and
	// returns a live connection. It makes exactly one attempt: retrying
	// is the session layer's decision, not the client's.
	//
	// A rejected handshake returns *AuthError.
	Open(ctx context.Context, bundle credentials.Bundle) (Conn, error)

	// Close releases client-wide resources such as pooled connections.
	// Connections already opened remain usable.
	Close() error
}

// Conn is one live authenticated connection. At most one exchange runs on
// a connection at a time; the session manager serializes callers, so
// implementations need not be safe for concurrent Send calls.
type Conn interface {
	// StartConversation begins a fresh multi-turn context on this
	// connection without re-authenticating.
	StartConversation(ctx context.Context) (Conversation, error)

	// Send performs exactly one exchange within the given conversation
	// (nil for a one-shot exchange) and returns the generated text.
	// An exchange that completes with no usable text returns
	// *RefusalError, never ("", nil).
	Send(ctx context.Context, conv Conversation, prompt string) (string, error)

	// Close releases the connection. Best effort: errors are for
	// logging only.
	Close() error
}

// Conversation is an opaque multi-turn context handle. Implementations
// update it internally as turns accumulate.
type Conversation interface {
	// ID identifies the conversation for logging.
	ID() string
}
