package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = Duration(30 * time.Second)
	DefaultWriteTimeout    = Duration(240 * time.Second)
	DefaultIdleTimeout     = Duration(120 * time.Second)
	DefaultShutdownTimeout = Duration(30 * time.Second)
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Upstream defaults
	DefaultUpstreamBaseURL   = "https://gemini.google.com"
	DefaultHandshakeTimeout  = Duration(35 * time.Second)
	DefaultSendTimeout       = Duration(90 * time.Second)
	DefaultMaxIdleConns      = 10
	DefaultIdleConnTimeout   = Duration(90 * time.Second)

	// Accounts defaults
	DefaultWatchDebounce = Duration(500 * time.Millisecond)

	// Session defaults
	DefaultTotalTimeout        = Duration(180 * time.Second)
	DefaultMaxAttempts         = 2
	DefaultMaxTurns            = 25
	DefaultPacingMin           = Duration(1 * time.Second)
	DefaultPacingMax           = Duration(4 * time.Second)
	DefaultRetryDelay          = Duration(2 * time.Second)
	DefaultRateLimitCooldown   = Duration(20 * time.Minute)
	DefaultServerErrorCooldown = Duration(5 * time.Minute)
	DefaultRefusalThreshold    = 3
	DefaultRefusalCooldown     = Duration(10 * time.Minute)

	// Quota defaults
	DefaultQuotaMaxRequests = 50
	DefaultQuotaWindow      = Duration(time.Hour)

	// Events defaults
	DefaultEventsSQLitePath    = "ganymede-events.db"
	DefaultEventsRetentionDays = 30
	DefaultEventsMaxRecords    = 100000
	DefaultEventsPruneSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "mercator"
	DefaultMetricsSubsystem = "ganymede"
)

// Default returns a fully-populated configuration with default values.
// LoadConfig unmarshals the YAML file over this, so booleans that default
// to true can still be disabled explicitly.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:   DefaultListenAddress,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxHeaderBytes:  DefaultMaxHeaderBytes,
		},
		Upstream: UpstreamConfig{
			BaseURL:          DefaultUpstreamBaseURL,
			HandshakeTimeout: DefaultHandshakeTimeout,
			SendTimeout:      DefaultSendTimeout,
			MaxIdleConns:     DefaultMaxIdleConns,
			IdleConnTimeout:  DefaultIdleConnTimeout,
		},
		Accounts: AccountsConfig{
			Watch:         true,
			WatchDebounce: DefaultWatchDebounce,
		},
		Session: SessionConfig{
			TotalTimeout:        DefaultTotalTimeout,
			MaxAttempts:         DefaultMaxAttempts,
			MaxTurns:            DefaultMaxTurns,
			PacingMin:           DefaultPacingMin,
			PacingMax:           DefaultPacingMax,
			RetryDelay:          DefaultRetryDelay,
			RateLimitCooldown:   DefaultRateLimitCooldown,
			ServerErrorCooldown: DefaultServerErrorCooldown,
			RefusalThreshold:    DefaultRefusalThreshold,
			RefusalCooldown:     DefaultRefusalCooldown,
		},
		Quota: QuotaConfig{
			Enabled:     true,
			MaxRequests: DefaultQuotaMaxRequests,
			Window:      DefaultQuotaWindow,
		},
		Events: EventsConfig{
			Enabled:       true,
			SQLitePath:    DefaultEventsSQLitePath,
			RetentionDays: DefaultEventsRetentionDays,
			MaxRecords:    DefaultEventsMaxRecords,
			PruneSchedule: DefaultEventsPruneSchedule,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:         DefaultLoggingLevel,
				Format:        DefaultLoggingFormat,
				RedactSecrets: true,
			},
			Metrics: MetricsConfig{
				Enabled:   true,
				Path:      DefaultMetricsPath,
				Namespace: DefaultMetricsNamespace,
				Subsystem: DefaultMetricsSubsystem,
			},
		},
	}
}

// ApplyDefaults fills zero-valued numeric and string fields with defaults.
// It is used for configurations constructed programmatically; LoadConfig
// starts from Default() instead so boolean fields behave correctly.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Upstream defaults
	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = DefaultUpstreamBaseURL
	}
	if cfg.Upstream.HandshakeTimeout == 0 {
		cfg.Upstream.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.Upstream.SendTimeout == 0 {
		cfg.Upstream.SendTimeout = DefaultSendTimeout
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultMaxIdleConns
	}
	if cfg.Upstream.IdleConnTimeout == 0 {
		cfg.Upstream.IdleConnTimeout = DefaultIdleConnTimeout
	}

	// Accounts defaults
	if cfg.Accounts.WatchDebounce == 0 {
		cfg.Accounts.WatchDebounce = DefaultWatchDebounce
	}

	// Session defaults
	if cfg.Session.TotalTimeout == 0 {
		cfg.Session.TotalTimeout = DefaultTotalTimeout
	}
	if cfg.Session.MaxAttempts == 0 {
		cfg.Session.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Session.MaxTurns == 0 {
		cfg.Session.MaxTurns = DefaultMaxTurns
	}
	if cfg.Session.PacingMin == 0 {
		cfg.Session.PacingMin = DefaultPacingMin
	}
	if cfg.Session.PacingMax == 0 {
		cfg.Session.PacingMax = DefaultPacingMax
	}
	if cfg.Session.RetryDelay == 0 {
		cfg.Session.RetryDelay = DefaultRetryDelay
	}
	if cfg.Session.RateLimitCooldown == 0 {
		cfg.Session.RateLimitCooldown = DefaultRateLimitCooldown
	}
	if cfg.Session.ServerErrorCooldown == 0 {
		cfg.Session.ServerErrorCooldown = DefaultServerErrorCooldown
	}
	if cfg.Session.RefusalThreshold == 0 {
		cfg.Session.RefusalThreshold = DefaultRefusalThreshold
	}
	if cfg.Session.RefusalCooldown == 0 {
		cfg.Session.RefusalCooldown = DefaultRefusalCooldown
	}

	// Quota defaults
	if cfg.Quota.MaxRequests == 0 {
		cfg.Quota.MaxRequests = DefaultQuotaMaxRequests
	}
	if cfg.Quota.Window == 0 {
		cfg.Quota.Window = DefaultQuotaWindow
	}

	// Events defaults
	if cfg.Events.SQLitePath == "" {
		cfg.Events.SQLitePath = DefaultEventsSQLitePath
	}
	if cfg.Events.RetentionDays == 0 {
		cfg.Events.RetentionDays = DefaultEventsRetentionDays
	}
	if cfg.Events.MaxRecords == 0 {
		cfg.Events.MaxRecords = DefaultEventsMaxRecords
	}
	if cfg.Events.PruneSchedule == "" {
		cfg.Events.PruneSchedule = DefaultEventsPruneSchedule
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
}
