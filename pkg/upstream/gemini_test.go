package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/ganymede/pkg/credentials"
)

func testBundle() credentials.Bundle {
	return credentials.Bundle{
		credentials.PrimaryToken: "psid-value",
		credentials.RefreshToken: "psidts-value",
	}
}

func testGeminiConfig(baseURL string) GeminiConfig {
	return GeminiConfig{
		BaseURL:          baseURL,
		HandshakeTimeout: 5 * time.Second,
		SendTimeout:      5 * time.Second,
		MaxIdleConns:     2,
		IdleConnTimeout:  time.Second,
	}
}

// generateBody renders a StreamGenerate response envelope with the given
// candidate text and conversation metadata.
func generateBody(t *testing.T, text, convID, respID, choiceID string) string {
	t.Helper()

	inner, err := json.Marshal([]interface{}{
		nil,
		[]interface{}{convID, respID},
		nil,
		nil,
		[]interface{}{
			[]interface{}{choiceID, []interface{}{text}},
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal inner payload: %v", err)
	}

	frame, err := json.Marshal([][]interface{}{
		{"wrb.fr", nil, string(inner)},
	})
	if err != nil {
		t.Fatalf("failed to marshal frame: %v", err)
	}

	return ")]}'\n\n42\n" + string(frame) + "\n"
}

func TestGeminiClient_Open(t *testing.T) {
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		w.Write([]byte(`<html>window.WIZ_global_data = {"SNlM0e":"token-abc"};</html>`))
	}))
	defer server.Close()

	client := NewGeminiClient(testGeminiConfig(server.URL))
	conn, err := client.Open(context.Background(), testBundle())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer conn.Close()

	if !strings.Contains(gotCookie, credentials.PrimaryToken+"=psid-value") {
		t.Errorf("handshake did not send primary cookie, got %q", gotCookie)
	}

	gc, ok := conn.(*geminiConn)
	if !ok {
		t.Fatalf("Open() returned %T, want *geminiConn", conn)
	}
	if gc.atToken != "token-abc" {
		t.Errorf("session token = %q, want %q", gc.atToken, "token-abc")
	}
}

func TestGeminiClient_Open_AuthRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewGeminiClient(testGeminiConfig(server.URL))
	_, err := client.Open(context.Background(), testBundle())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Open() error = %v, want *AuthError", err)
	}
}

func TestGeminiClient_Open_MissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>signed out page, no session token</html>`))
	}))
	defer server.Close()

	client := NewGeminiClient(testGeminiConfig(server.URL))
	_, err := client.Open(context.Background(), testBundle())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Open() error = %v, want *AuthError", err)
	}
	if Classify(err) != OutcomeAuthInvalid {
		t.Errorf("Classify() = %v, want auth_invalid", Classify(err))
	}
}

func TestGeminiClient_Open_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewGeminiClient(testGeminiConfig(server.URL))
	_, err := client.Open(context.Background(), testBundle())

	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("Open() error = %v, want *ServerError", err)
	}
	if serverErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", serverErr.StatusCode)
	}
}

// openTestConn dials a test server and completes the handshake. The
// handler receives only the StreamGenerate POSTs.
func openTestConn(t *testing.T, handler http.HandlerFunc) (Conn, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`"SNlM0e":"token-abc"`))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client := NewGeminiClient(testGeminiConfig(server.URL))
	conn, err := client.Open(context.Background(), testBundle())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn, server
}

func TestGeminiConn_Send(t *testing.T) {
	var gotForm map[string]string
	conn, _ := openTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		gotForm = map[string]string{
			"at":    r.PostFormValue("at"),
			"f.req": r.PostFormValue("f.req"),
		}
		w.Write([]byte(generateBody(t, "hello from upstream", "c_123", "r_456", "rc_789")))
	})

	conv, err := conn.StartConversation(context.Background())
	if err != nil {
		t.Fatalf("StartConversation() error: %v", err)
	}
	if conv.ID() != "new" {
		t.Errorf("fresh conversation ID = %q, want %q", conv.ID(), "new")
	}

	text, err := conn.Send(context.Background(), conv, "hi")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if text != "hello from upstream" {
		t.Errorf("Send() = %q, want %q", text, "hello from upstream")
	}

	if gotForm["at"] != "token-abc" {
		t.Errorf("request token = %q, want %q", gotForm["at"], "token-abc")
	}
	if !strings.Contains(gotForm["f.req"], "hi") {
		t.Errorf("request payload missing prompt: %q", gotForm["f.req"])
	}

	// The exchange establishes the conversation identity.
	if conv.ID() != "c_123" {
		t.Errorf("conversation ID after exchange = %q, want %q", conv.ID(), "c_123")
	}
}

func TestGeminiConn_Send_ContinuesConversation(t *testing.T) {
	var secondPayload string
	calls := 0
	conn, _ := openTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		r.ParseForm()
		if calls == 2 {
			secondPayload = r.PostFormValue("f.req")
		}
		w.Write([]byte(generateBody(t, "reply", "c_123", "r_456", "rc_789")))
	})

	conv, err := conn.StartConversation(context.Background())
	if err != nil {
		t.Fatalf("StartConversation() error: %v", err)
	}

	if _, err := conn.Send(context.Background(), conv, "first"); err != nil {
		t.Fatalf("first Send() error: %v", err)
	}
	if _, err := conn.Send(context.Background(), conv, "second"); err != nil {
		t.Fatalf("second Send() error: %v", err)
	}

	// The second exchange must carry the metadata triple from the first.
	for _, id := range []string{"c_123", "r_456", "rc_789"} {
		if !strings.Contains(secondPayload, id) {
			t.Errorf("second request payload missing %q: %q", id, secondPayload)
		}
	}
}

func TestGeminiConn_Send_RateLimited(t *testing.T) {
	conn, _ := openTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := conn.Send(context.Background(), nil, "hi")

	var rateLimitErr *RateLimitError
	if !errors.As(err, &rateLimitErr) {
		t.Fatalf("Send() error = %v, want *RateLimitError", err)
	}
	if rateLimitErr.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", rateLimitErr.RetryAfter)
	}
}

func TestGeminiConn_Send_AuthInvalid(t *testing.T) {
	conn, _ := openTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := conn.Send(context.Background(), nil, "hi")
	if Classify(err) != OutcomeAuthInvalid {
		t.Fatalf("Classify(Send error) = %v, want auth_invalid (err: %v)", Classify(err), err)
	}
}

func TestGeminiConn_Send_ServerError(t *testing.T) {
	conn, _ := openTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := conn.Send(context.Background(), nil, "hi")
	if Classify(err) != OutcomeServerUnavailable {
		t.Fatalf("Classify(Send error) = %v, want server_unavailable (err: %v)", Classify(err), err)
	}
}

func TestGeminiConn_Send_EmptyTextIsRefusal(t *testing.T) {
	conn, _ := openTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(generateBody(t, "", "c_123", "r_456", "rc_789")))
	})

	text, err := conn.Send(context.Background(), nil, "hi")
	if text != "" {
		t.Errorf("Send() text = %q, want empty", text)
	}

	var refusalErr *RefusalError
	if !errors.As(err, &refusalErr) {
		t.Fatalf("Send() error = %v, want *RefusalError", err)
	}
}

func TestGeminiConn_Send_UnparseableResponse(t *testing.T) {
	conn, _ := openTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(")]}'\n\ncomplete garbage\n"))
	})

	_, err := conn.Send(context.Background(), nil, "hi")

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Send() error = %v, want *ParseError", err)
	}
	if Classify(err) != OutcomeUnknown {
		t.Errorf("Classify() = %v, want unknown", Classify(err))
	}
}

func TestGeminiConn_Send_AfterClose(t *testing.T) {
	conn, _ := openTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(generateBody(t, "reply", "c", "r", "rc")))
	})

	if err := conn.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if _, err := conn.Send(context.Background(), nil, "hi"); err == nil {
		t.Error("Send() on closed connection should fail")
	}
	if _, err := conn.StartConversation(context.Background()); err == nil {
		t.Error("StartConversation() on closed connection should fail")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "30", 30 * time.Second},
		{"zero seconds", "0", 0},
		{"garbage", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.header); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}

	t.Run("http date", func(t *testing.T) {
		header := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
		got := parseRetryAfter(header)
		if got < 50*time.Second || got > 70*time.Second {
			t.Errorf("parseRetryAfter(%q) = %v, want ~1m", header, got)
		}
	})
}

func TestCookieHeader(t *testing.T) {
	header := cookieHeader(testBundle())

	for _, want := range []string{
		credentials.PrimaryToken + "=psid-value",
		credentials.RefreshToken + "=psidts-value",
	} {
		if !strings.Contains(header, want) {
			t.Errorf("cookie header missing %q: %q", want, header)
		}
	}
}
