package logging

import "regexp"

// Redactor removes credential material from log fields. The session
// cookies are long-lived bearer secrets; one leaked value in a log line
// is a full account compromise, so anything that looks like a cookie or
// session token is masked before it reaches a handler.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a redactor with the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []redactPattern{
			// Cookie pair values (Cookie headers, bundle dumps).
			{
				regex:       regexp.MustCompile(`(__Secure-[A-Za-z0-9_]+)=[^;\s"]+`),
				replacement: "$1=***",
			},
			// The per-session request token.
			{
				regex:       regexp.MustCompile(`("?SNlM0e"?\s*[:=]\s*)"?[^",\s]+"?`),
				replacement: "${1}***",
			},
			// Generic cookie/token/secret key-value fields.
			{
				regex:       regexp.MustCompile(`(?i)\b(cookie|token|secret|password)\s*[:=]\s*[^;,\s"]+`),
				replacement: "$1=***",
			},
		},
	}
}

// Redact masks credential material in s.
func (r *Redactor) Redact(s string) string {
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}
