package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// Cookie names recognized in credential bundles. PrimaryToken is the
// session identifier the upstream handshake cannot proceed without;
// RefreshToken rotates periodically and is sent when present.
const (
	PrimaryToken = "__Secure-1PSID"
	RefreshToken = "__Secure-1PSIDTS"
)

// Bundle is a normalized mapping of cookie name to value. It is immutable
// once loaded for a given connection attempt.
type Bundle map[string]string

// Primary returns the primary session token.
func (b Bundle) Primary() string {
	return b[PrimaryToken]
}

// Refresh returns the refresh token, or "" if the bundle has none.
func (b Bundle) Refresh() string {
	return b[RefreshToken]
}

// Names returns the cookie names in the bundle, sorted for stable logging.
func (b Bundle) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NotFoundError indicates the credential file does not exist.
type NotFoundError struct {
	// Path is the missing file path.
	Path string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("credential file %q not found", e.Path)
}

// MalformedError indicates the credential file is not valid JSON in either
// accepted shape.
type MalformedError struct {
	// Path is the offending file path.
	Path string

	// Cause is the underlying parse error (if any).
	Cause error
}

// Error implements the error interface.
func (e *MalformedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("credential file %q is malformed: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("credential file %q is malformed", e.Path)
}

// Unwrap returns the underlying error for error chain support.
func (e *MalformedError) Unwrap() error {
	return e.Cause
}

// MissingTokenError indicates the bundle parsed but lacks the primary
// session token.
type MissingTokenError struct {
	// Path is the offending file path.
	Path string

	// Token is the missing cookie name.
	Token string
}

// Error implements the error interface.
func (e *MissingTokenError) Error() string {
	return fmt.Sprintf("credential file %q is missing required token %q", e.Path, e.Token)
}

// IsNotFound reports whether err means the credential file is absent.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// IsMalformed reports whether err means the credential file parsed into
// neither accepted shape.
func IsMalformed(err error) bool {
	var malformed *MalformedError
	return errors.As(err, &malformed)
}

// IsMissingToken reports whether err means the primary session token was
// absent after normalization.
func IsMissingToken(err error) bool {
	var missing *MissingTokenError
	return errors.As(err, &missing)
}

// cookieRecord is the list-of-records serialization shape, as produced by
// browser cookie exporters.
type cookieRecord struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Load reads a credential bundle from path. It accepts both a flat JSON
// object of name to value and a list of {name, value} records, and
// normalizes either into a Bundle. Load has no side effects; callers
// re-invoke it on every (re)connection to pick up rotated cookies.
func Load(path string) (Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to read credential file %q: %w", path, err)
	}

	bundle, err := parse(path, data)
	if err != nil {
		return nil, err
	}

	if bundle[PrimaryToken] == "" {
		return nil, &MissingTokenError{Path: path, Token: PrimaryToken}
	}

	return bundle, nil
}

// parse normalizes either serialization shape into a Bundle.
func parse(path string, data []byte) (Bundle, error) {
	// Flat object shape first: it is what the bundled exporter writes.
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err == nil {
		return Bundle(flat), nil
	}

	var records []cookieRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &MalformedError{Path: path, Cause: err}
	}

	bundle := make(Bundle, len(records))
	for _, rec := range records {
		if rec.Name == "" {
			continue
		}
		bundle[rec.Name] = rec.Value
	}

	if len(bundle) == 0 {
		return nil, &MalformedError{Path: path}
	}

	return bundle, nil
}
