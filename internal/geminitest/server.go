// Package geminitest provides a mock Gemini web frontend for tests.
// It serves the app page handshake and scripted StreamGenerate exchanges
// so integration tests can exercise the full stack without network access.
package geminitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Exchange is one scripted StreamGenerate response. Exchanges are consumed
// in order; when the script runs out the server repeats the last entry.
type Exchange struct {
	// StatusCode overrides the response status. Zero means 200.
	StatusCode int

	// Text is the candidate text returned on a 200 response. Empty text
	// produces a syntactically valid envelope with no candidate, which
	// clients treat as a refusal.
	Text string

	// Metadata is the conversation triple to return. Zero values mean the
	// server assigns a fresh conversation ID.
	Metadata [3]string

	// RetryAfter sets the Retry-After header in seconds when nonzero.
	RetryAfter int

	// Delay is applied before responding.
	Delay time.Duration

	// Headers are extra response headers.
	Headers map[string]string
}

// Server is a scripted stand-in for the Gemini web frontend.
type Server struct {
	httpServer *httptest.Server

	mu             sync.Mutex
	token          string
	handshakeCode  int
	exchanges      []Exchange
	next           int
	handshakeCount int
	sendCount      int
	prompts        []string
	convSeq        int
}

// New starts a mock frontend with a valid handshake token and no scripted
// exchanges. Callers must Close it.
func New() *Server {
	s := &Server{
		token:         "AHb2nS_mock_token",
		handshakeCode: http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/app", s.handleApp)
	mux.HandleFunc("/_/BardChatUi/data/assistant.lamda.BardFrontendService/StreamGenerate", s.handleGenerate)
	s.httpServer = httptest.NewServer(mux)
	return s
}

// URL returns the mock frontend's base URL.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// Close shuts the mock frontend down.
func (s *Server) Close() {
	s.httpServer.Close()
}

// SetHandshakeStatus makes subsequent handshakes answer with code instead
// of serving the app page.
func (s *Server) SetHandshakeStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handshakeCode = code
}

// SetToken replaces the session token embedded in the app page. An empty
// token serves a page without one, which clients read as expired cookies.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Script replaces the exchange script and rewinds it.
func (s *Server) Script(exchanges ...Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = exchanges
	s.next = 0
}

// HandshakeCount reports how many handshakes the server has answered.
func (s *Server) HandshakeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakeCount
}

// SendCount reports how many exchanges the server has answered.
func (s *Server) SendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCount
}

// Prompts returns the prompts received so far, in order.
func (s *Server) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

func (s *Server) handleApp(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	code := s.handshakeCode
	token := s.token
	s.handshakeCount++
	s.mu.Unlock()

	if code != http.StatusOK {
		w.WriteHeader(code)
		return
	}
	if token == "" {
		fmt.Fprint(w, "<html><body>signed out</body></html>")
		return
	}
	fmt.Fprintf(w, `<html><script>window.WIZ_global_data = {"SNlM0e":"%s"};</script></html>`, token)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	prompt := extractPrompt(r.PostFormValue("f.req"))

	s.mu.Lock()
	s.sendCount++
	s.prompts = append(s.prompts, prompt)
	var ex Exchange
	if len(s.exchanges) > 0 {
		i := s.next
		if i >= len(s.exchanges) {
			i = len(s.exchanges) - 1
		}
		ex = s.exchanges[i]
		s.next++
	}
	if ex.StatusCode == 0 && ex.Metadata[0] == "" {
		s.convSeq++
		ex.Metadata = [3]string{
			fmt.Sprintf("c_%d", s.convSeq),
			fmt.Sprintf("r_%d", s.convSeq),
			fmt.Sprintf("rc_%d", s.convSeq),
		}
	}
	s.mu.Unlock()

	if ex.Delay > 0 {
		time.Sleep(ex.Delay)
	}
	for name, value := range ex.Headers {
		w.Header().Set(name, value)
	}
	if ex.RetryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", ex.RetryAfter))
	}
	if ex.StatusCode != 0 && ex.StatusCode != http.StatusOK {
		w.WriteHeader(ex.StatusCode)
		return
	}

	fmt.Fprint(w, GenerateBody(ex.Text, ex.Metadata))
}

// GenerateBody renders a StreamGenerate response envelope carrying the
// given candidate text and conversation triple.
func GenerateBody(text string, metadata [3]string) string {
	inner, _ := json.Marshal([]interface{}{
		nil,
		[]string{metadata[0], metadata[1]},
		nil,
		nil,
		[]interface{}{
			[]interface{}{metadata[2], []string{text}},
		},
	})
	frame, _ := json.Marshal([][]interface{}{
		{"wrb.fr", nil, string(inner)},
	})
	return ")]}'\n\n" + string(frame) + "\n"
}

// extractPrompt digs the prompt out of the doubly encoded f.req envelope.
// Best effort: tests that only count calls tolerate an empty result.
func extractPrompt(freq string) string {
	var outer []interface{}
	if err := json.Unmarshal([]byte(freq), &outer); err != nil || len(outer) < 2 {
		return ""
	}
	payload, ok := outer[1].(string)
	if !ok {
		return ""
	}
	var inner []interface{}
	if err := json.Unmarshal([]byte(payload), &inner); err != nil || len(inner) < 1 {
		return ""
	}
	parts, ok := inner[0].([]interface{})
	if !ok || len(parts) < 1 {
		return ""
	}
	prompt, _ := parts[0].(string)
	return strings.TrimSpace(prompt)
}
