package session

import (
	"context"
	"log/slog"
	"time"

	"mercator-hq/ganymede/pkg/credentials"
	"mercator-hq/ganymede/pkg/upstream"
)

// Session is one live authenticated upstream connection together with its
// current conversation. Owned exclusively by the manager's worker
// goroutine; nothing here is safe for concurrent use.
type Session struct {
	conn      upstream.Conn
	conv      upstream.Conversation
	turnsUsed int
	createdAt time.Time

	// source is the credential file this session was opened from.
	source string
}

// open performs the handshake with the given bundle. One attempt; retrying
// a failed handshake is a policy decision, not a session one.
func open(ctx context.Context, client upstream.Client, bundle credentials.Bundle, source string) (*Session, error) {
	conn, err := client.Open(ctx, bundle)
	if err != nil {
		return nil, err
	}

	return &Session{
		conn:      conn,
		createdAt: time.Now(),
		source:    source,
	}, nil
}

// ensureConversation makes sure a conversation handle exists, starting a
// fresh one when the turn cap is reached. The connection is reused either
// way; no re-handshake happens here.
func (s *Session) ensureConversation(ctx context.Context, maxTurns int) error {
	if s.conv != nil && s.turnsUsed < maxTurns {
		return nil
	}

	if s.conv != nil {
		slog.Debug("conversation turn cap reached, starting fresh conversation",
			"conversation", s.conv.ID(),
			"turns_used", s.turnsUsed)
	}

	conv, err := s.conn.StartConversation(ctx)
	if err != nil {
		return err
	}
	s.conv = conv
	s.turnsUsed = 0
	return nil
}

// send performs exactly one exchange within the current conversation. The
// turn is counted even on failure; a failed exchange still consumed the
// upstream's attention.
func (s *Session) send(ctx context.Context, prompt string) (string, error) {
	s.turnsUsed++
	return s.conn.Send(ctx, s.conv, prompt)
}

// close releases the connection. Best effort: a close failure is logged
// and never propagated.
func (s *Session) close() {
	if err := s.conn.Close(); err != nil {
		slog.Warn("failed to close upstream connection", "error", err)
	}
}

// age returns how long the session has been open.
func (s *Session) age() time.Duration {
	return time.Since(s.createdAt)
}
