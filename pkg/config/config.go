package config

// Config is the root configuration structure for Ganymede.
// It contains all configuration sections for the HTTP server, the upstream
// client, credential sources, session management, inbound quota, the
// operational event log, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Upstream contains configuration for the upstream chat client.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Accounts contains the credential bundle sources and hot-reload
	// settings.
	Accounts AccountsConfig `yaml:"accounts"`

	// Session contains session manager tuning: timeouts, retry caps,
	// cooldowns, and pacing.
	Session SessionConfig `yaml:"session"`

	// Quota contains the inbound request quota configuration.
	Quota QuotaConfig `yaml:"quota"`

	// Events contains configuration for the operational event log.
	Events EventsConfig `yaml:"events"`

	// Telemetry contains observability configuration (logging, metrics).
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response
	// writes. This must exceed the session total timeout or long queries
	// will be cut off mid-flight.
	// Default: 240s
	WriteTimeout Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// UpstreamConfig contains configuration for the upstream chat client.
type UpstreamConfig struct {
	// BaseURL is the upstream web endpoint base URL.
	// Default: "https://gemini.google.com"
	BaseURL string `yaml:"base_url"`

	// HandshakeTimeout bounds the cookie handshake performed when a
	// session is opened.
	// Default: 35s
	HandshakeTimeout Duration `yaml:"handshake_timeout"`

	// SendTimeout bounds a single message exchange (one generation).
	// Default: 90s
	SendTimeout Duration `yaml:"send_timeout"`

	// MaxIdleConns is the maximum number of idle connections in the pool.
	// Default: 10
	MaxIdleConns int `yaml:"max_idle_conns"`

	// IdleConnTimeout is how long an idle connection remains pooled.
	// Default: 90s
	IdleConnTimeout Duration `yaml:"idle_conn_timeout"`
}

// AccountsConfig contains credential bundle sources.
type AccountsConfig struct {
	// CookieFiles is the ordered list of credential bundle file paths.
	// The first entry is the initial active account; additional entries
	// are used for rotation on rate limits. At least one is required.
	CookieFiles []string `yaml:"cookie_files"`

	// Watch enables hot-reload: when a cookie file changes on disk the
	// current session is invalidated so the next query re-reads it.
	// Default: true
	Watch bool `yaml:"watch"`

	// WatchDebounce is the quiet period before a file change triggers
	// invalidation.
	// Default: 500ms
	WatchDebounce Duration `yaml:"watch_debounce"`
}

// SessionConfig contains session manager tuning.
//
// Every duration and threshold here is deliberately configuration rather
// than a constant: operators running against an unofficial endpoint need
// to tune cooldowns without a rebuild.
type SessionConfig struct {
	// TotalTimeout is the maximum time a caller blocks on Query,
	// covering all attempts, pacing, and retries. It must exceed
	// Upstream.SendTimeout plus retry overhead or legitimate retries
	// will be truncated by the caller-side wait.
	// Default: 180s
	TotalTimeout Duration `yaml:"total_timeout"`

	// MaxAttempts is the ceiling on attempts per external call across
	// all retry branches.
	// Default: 2
	MaxAttempts int `yaml:"max_attempts"`

	// MaxTurns is the per-session conversation turn cap. When reached, a
	// fresh conversation is started on the same connection.
	// Default: 25
	MaxTurns int `yaml:"max_turns"`

	// PacingMin and PacingMax bound the random delay applied before the
	// first attempt of each query, so outbound traffic does not arrive
	// in machine-regular bursts.
	// Defaults: 1s, 4s
	PacingMin Duration `yaml:"pacing_min"`
	PacingMax Duration `yaml:"pacing_max"`

	// RetryDelay is the wait before an in-place retry of the same
	// session (timeouts, single server errors, one auth re-handshake).
	// Default: 2s
	RetryDelay Duration `yaml:"retry_delay"`

	// RateLimitCooldown is the breaker duration applied when the
	// upstream rate limits and no alternate account is available.
	// Default: 20m
	RateLimitCooldown Duration `yaml:"rate_limit_cooldown"`

	// ServerErrorCooldown is the breaker duration applied after repeated
	// upstream server errors.
	// Default: 5m
	ServerErrorCooldown Duration `yaml:"server_error_cooldown"`

	// RefusalThreshold is the number of consecutive content refusals
	// that trips the breaker. Below the threshold a refusal fails only
	// the request that saw it.
	// Default: 3
	RefusalThreshold int `yaml:"refusal_threshold"`

	// RefusalCooldown is the breaker duration applied once the refusal
	// threshold is reached.
	// Default: 10m
	RefusalCooldown Duration `yaml:"refusal_cooldown"`
}

// QuotaConfig contains the inbound request quota. This mirrors the upstream
// account budget: after MaxRequests within Window, callers are rejected
// until the window slides.
type QuotaConfig struct {
	// Enabled controls whether the quota middleware is applied.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// MaxRequests is the number of requests allowed per window.
	// Default: 50
	MaxRequests int `yaml:"max_requests"`

	// Window is the sliding window size.
	// Default: 1h
	Window Duration `yaml:"window"`
}

// EventsConfig contains configuration for the operational event log.
type EventsConfig struct {
	// Enabled controls whether rate-limit and refusal events are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// SQLitePath is the event database file path.
	// Default: "ganymede-events.db"
	SQLitePath string `yaml:"sqlite_path"`

	// RetentionDays is how long events are kept. Zero disables pruning
	// by age.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// MaxRecords caps the number of stored events. Zero disables pruning
	// by count.
	// Default: 100000
	MaxRecords int `yaml:"max_records"`

	// PruneSchedule is a cron expression for scheduled pruning.
	// Empty disables the scheduler.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	// Default: "json"
	Format string `yaml:"format"`

	// RedactSecrets enables redaction of cookie and token values in
	// log fields.
	// Default: true
	RedactSecrets bool `yaml:"redact_secrets"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace and Subsystem prefix all metric names.
	// Defaults: "mercator", "ganymede"
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// AttemptBuckets defines histogram buckets for attempts per query.
	AttemptBuckets []float64 `yaml:"attempt_buckets"`

	// LatencyBuckets defines histogram buckets for upstream latency
	// (seconds).
	LatencyBuckets []float64 `yaml:"latency_buckets"`
}
