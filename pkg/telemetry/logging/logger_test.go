package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"mercator-hq/ganymede/pkg/config"
)

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}

	logger.Info("hello", "key", "value")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "hello" || entry["key"] != "value" {
		t.Errorf("entry = %v, want msg=hello key=value", entry)
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}

	logger.Info("suppressed")
	logger.Warn("emitted")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("info line emitted at warn level")
	}
	if !strings.Contains(out, "emitted") {
		t.Error("warn line missing")
	}
}

func TestSetup_InvalidConfig(t *testing.T) {
	if _, err := Setup(config.LoggingConfig{Level: "loud"}, nil); err == nil {
		t.Error("Setup() should reject an unknown level")
	}
	if _, err := Setup(config.LoggingConfig{Format: "xml"}, nil); err == nil {
		t.Error("Setup() should reject an unknown format")
	}
}

func TestSetup_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(config.LoggingConfig{
		Level:         "info",
		Format:        "json",
		RedactSecrets: true,
	}, &buf)
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}

	logger.Info("handshake", "cookies", "__Secure-1PSID=g.a000supersecret; __Secure-1PSIDTS=sidts-abc")

	out := buf.String()
	if strings.Contains(out, "supersecret") || strings.Contains(out, "sidts-abc") {
		t.Errorf("cookie values leaked into log output: %s", out)
	}
	if !strings.Contains(out, "__Secure-1PSID=***") {
		t.Errorf("expected masked cookie name in output: %s", out)
	}
}

func TestRedactor(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name     string
		in       string
		leaked   string
		retained string
	}{
		{
			name:     "cookie pair",
			in:       "Cookie: __Secure-1PSID=g.a000abc123",
			leaked:   "g.a000abc123",
			retained: "__Secure-1PSID=***",
		},
		{
			name:     "session token json",
			in:       `page contained "SNlM0e":"AFdKCvx912"`,
			leaked:   "AFdKCvx912",
			retained: "SNlM0e",
		},
		{
			name:     "generic token field",
			in:       "request failed: token=abcdef123456 rejected",
			leaked:   "abcdef123456",
			retained: "token=***",
		},
		{
			name:     "plain text untouched",
			in:       "conversation c_123 completed in 2s",
			retained: "conversation c_123 completed in 2s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Redact(tt.in)
			if tt.leaked != "" && strings.Contains(got, tt.leaked) {
				t.Errorf("Redact(%q) = %q, still contains secret", tt.in, got)
			}
			if !strings.Contains(got, tt.retained) {
				t.Errorf("Redact(%q) = %q, want it to contain %q", tt.in, got, tt.retained)
			}
		})
	}
}
