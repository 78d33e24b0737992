package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"mercator-hq/ganymede/pkg/credentials"
)

// GeminiConfig contains configuration for the Gemini web client.
type GeminiConfig struct {
	// BaseURL is the web endpoint base URL.
	BaseURL string

	// HandshakeTimeout bounds the cookie handshake in Open.
	HandshakeTimeout time.Duration

	// SendTimeout bounds a single exchange.
	SendTimeout time.Duration

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// IdleConnTimeout is how long an idle connection remains pooled.
	IdleConnTimeout time.Duration
}

// GeminiClient implements Client against the Gemini web endpoint. The
// endpoint is the one the browser frontend talks to, authenticated by the
// session cookies in the credential bundle; there is no API key.
type GeminiClient struct {
	config GeminiConfig
	client *http.Client
}

// streamGeneratePath is the frontend RPC the browser uses for chat
// exchanges.
const streamGeneratePath = "/_/BardChatUi/data/assistant.lamda.BardFrontendService/StreamGenerate"

// snlm0ePattern extracts the per-session request token from the app page.
// The handshake fails without it, which is the earliest reliable signal
// that the cookies have rotted.
var snlm0ePattern = regexp.MustCompile(`"SNlM0e":"(.*?)"`)

// NewGeminiClient creates a Gemini web client with connection pooling.
func NewGeminiClient(config GeminiConfig) *GeminiClient {
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConns,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &GeminiClient{
		config: config,
		client: &http.Client{Transport: transport},
	}
}

// Open performs the cookie handshake: it fetches the app page with the
// bundle's cookies and extracts the SNlM0e request token. One attempt,
// no internal retry.
func (c *GeminiClient) Open(ctx context.Context, bundle credentials.Bundle) (Conn, error) {
	handshakeCtx, cancel := context.WithTimeout(ctx, c.config.HandshakeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(handshakeCtx, http.MethodGet, c.config.BaseURL+"/app", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create handshake request: %w", err)
	}
	req.Header.Set("Cookie", cookieHeader(bundle))
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		if handshakeCtx.Err() != nil {
			return nil, &TimeoutError{Timeout: c.config.HandshakeTimeout}
		}
		return nil, &UpstreamError{Message: "handshake request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthError{Message: fmt.Sprintf("handshake rejected with status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 500 {
		return nil, &ServerError{StatusCode: resp.StatusCode, Message: "handshake failed"}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: "unexpected handshake status"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Message: "failed to read handshake response", Cause: err}
	}

	match := snlm0ePattern.FindSubmatch(body)
	if match == nil {
		// The page loads but without a session token the cookies are no
		// longer authenticated.
		return nil, &AuthError{Message: "session token not found in app page, cookies likely expired"}
	}

	slog.Debug("upstream handshake complete", "cookies", len(bundle))

	return &geminiConn{
		client:      c.client,
		baseURL:     c.config.BaseURL,
		cookies:     cookieHeader(bundle),
		atToken:     string(match[1]),
		sendTimeout: c.config.SendTimeout,
	}, nil
}

// Close drops pooled idle connections.
func (c *GeminiClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// cookieHeader renders a bundle as a Cookie header value.
func cookieHeader(bundle credentials.Bundle) string {
	pairs := make([]string, 0, len(bundle))
	for _, name := range bundle.Names() {
		pairs = append(pairs, name+"="+bundle[name])
	}
	return strings.Join(pairs, "; ")
}

// geminiConn is one live authenticated connection. The session manager
// serializes exchanges, so no internal locking is needed around sends.
type geminiConn struct {
	client      *http.Client
	baseURL     string
	cookies     string
	atToken     string
	sendTimeout time.Duration
	reqID       atomic.Int64
	closed      atomic.Bool
}

// geminiConversation carries the three-element context triple the frontend
// RPC uses to continue a dialogue: conversation ID, response ID, choice ID.
// All empty for a fresh conversation; updated after each exchange.
type geminiConversation struct {
	metadata [3]string
}

// ID identifies the conversation for logging.
func (c *geminiConversation) ID() string {
	if c.metadata[0] == "" {
		return "new"
	}
	return c.metadata[0]
}

// StartConversation begins a fresh multi-turn context. No network call is
// needed: the upstream allocates the conversation on the first exchange.
func (g *geminiConn) StartConversation(ctx context.Context) (Conversation, error) {
	if g.closed.Load() {
		return nil, &UpstreamError{Message: "connection is closed"}
	}
	return &geminiConversation{}, nil
}

// Send performs exactly one exchange and returns the generated text.
func (g *geminiConn) Send(ctx context.Context, conv Conversation, prompt string) (string, error) {
	if g.closed.Load() {
		return "", &UpstreamError{Message: "connection is closed"}
	}

	var meta *geminiConversation
	if conv != nil {
		var ok bool
		if meta, ok = conv.(*geminiConversation); !ok {
			return "", &UpstreamError{Message: fmt.Sprintf("foreign conversation handle %T", conv)}
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, g.sendTimeout)
	defer cancel()

	body, err := g.buildRequestBody(prompt, meta)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s%s?bl=boq_assistant-bard-web-server&rt=c&_reqid=%d",
		g.baseURL, streamGeneratePath, g.nextReqID())

	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Cookie", g.cookies)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := g.client.Do(req)
	if err != nil {
		if sendCtx.Err() != nil {
			return "", &TimeoutError{Timeout: g.sendTimeout}
		}
		return "", &UpstreamError{Message: "send request failed", Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &AuthError{Message: fmt.Sprintf("send rejected with status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &RateLimitError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    "too many requests",
		}
	case resp.StatusCode >= 500:
		return "", &ServerError{StatusCode: resp.StatusCode, Message: "send failed"}
	case resp.StatusCode != http.StatusOK:
		return "", &UpstreamError{StatusCode: resp.StatusCode, Message: "unexpected send status"}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UpstreamError{Message: "failed to read send response", Cause: err}
	}

	text, metadata, err := parseGenerateResponse(raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		// Transport-level success with no candidate text is a refusal,
		// never Success("").
		return "", &RefusalError{Message: "response contained no generated text"}
	}

	if meta != nil {
		meta.metadata = metadata
	}

	return text, nil
}

// Close releases the connection. The pooled HTTP client is shared across
// connections; only this connection's identity is invalidated.
func (g *geminiConn) Close() error {
	g.closed.Store(true)
	return nil
}

// nextReqID produces the incrementing request ID the frontend attaches to
// each RPC.
func (g *geminiConn) nextReqID() int64 {
	return 100000 + g.reqID.Add(1)*100000
}

// buildRequestBody assembles the form-encoded f.req envelope.
func (g *geminiConn) buildRequestBody(prompt string, meta *geminiConversation) (string, error) {
	var convContext []interface{}
	if meta != nil && meta.metadata[0] != "" {
		convContext = []interface{}{meta.metadata[0], meta.metadata[1], meta.metadata[2]}
	}

	inner, err := json.Marshal([]interface{}{
		[]interface{}{prompt},
		nil,
		convContext,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal prompt payload: %w", err)
	}

	outer, err := json.Marshal([]interface{}{nil, string(inner)})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request envelope: %w", err)
	}

	form := url.Values{}
	form.Set("f.req", string(outer))
	form.Set("at", g.atToken)
	return form.Encode(), nil
}

// parseGenerateResponse extracts the candidate text and conversation
// metadata triple from the streamed RPC envelope. The body is the usual
// anti-JSON preamble followed by length-prefixed JSON lines; the payload
// of interest is the "wrb.fr" frame.
func parseGenerateResponse(raw []byte) (string, [3]string, error) {
	var metadata [3]string

	body := strings.TrimPrefix(string(raw), ")]}'")
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[[\"wrb.fr\"") {
			continue
		}

		var frames [][]interface{}
		if err := json.Unmarshal([]byte(line), &frames); err != nil {
			continue
		}

		for _, frame := range frames {
			if len(frame) < 3 {
				continue
			}
			if tag, ok := frame[0].(string); !ok || tag != "wrb.fr" {
				continue
			}
			payload, ok := frame[2].(string)
			if !ok {
				continue
			}

			var inner []interface{}
			if err := json.Unmarshal([]byte(payload), &inner); err != nil {
				return "", metadata, &ParseError{RawResponse: truncate(payload, 512), Cause: err}
			}

			if meta, ok := asStringSlice(index(inner, 1)); ok {
				copy(metadata[:2], meta)
			}

			text := candidateText(inner)
			if choice, ok := index(index(index(inner, 4), 0), 0).(string); ok {
				metadata[2] = choice
			}
			return text, metadata, nil
		}
	}

	return "", metadata, &ParseError{
		RawResponse: truncate(string(raw), 512),
		Cause:       fmt.Errorf("no wrb.fr frame in response"),
	}
}

// candidateText pulls the first candidate's text out of the decoded
// payload: inner[4][0][1][0].
func candidateText(inner []interface{}) string {
	text, _ := index(index(index(index(inner, 4), 0), 1), 0).(string)
	return text
}

// index walks one level of a decoded JSON array, returning nil when the
// structure does not match.
func index(v interface{}, i int) interface{} {
	arr, ok := v.([]interface{})
	if !ok || i < 0 || i >= len(arr) {
		return nil
	}
	return arr[i]
}

// asStringSlice converts a decoded JSON array of strings.
func asStringSlice(v interface{}) ([]string, bool) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, elem := range arr {
		s, ok := elem.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// truncate bounds raw payload copies carried inside errors.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// parseRetryAfter parses the Retry-After header value. It supports both
// delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
