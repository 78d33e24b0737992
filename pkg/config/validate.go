package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for errors. It returns the first
// problem found, with enough context to locate the offending field.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := validateUpstream(&cfg.Upstream); err != nil {
		return fmt.Errorf("upstream: %w", err)
	}
	if err := validateAccounts(&cfg.Accounts); err != nil {
		return fmt.Errorf("accounts: %w", err)
	}
	if err := validateSession(&cfg.Session, &cfg.Upstream); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := validateQuota(&cfg.Quota); err != nil {
		return fmt.Errorf("quota: %w", err)
	}
	if err := validateEvents(&cfg.Events); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.ListenAddress == "" {
		return fmt.Errorf("listen_address is required")
	}
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return fmt.Errorf("listen_address %q is not host:port: %w", cfg.ListenAddress, err)
	}
	if cfg.MaxHeaderBytes < 0 {
		return fmt.Errorf("max_header_bytes must not be negative")
	}
	return nil
}

func validateUpstream(cfg *UpstreamConfig) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return fmt.Errorf("base_url %q must start with http:// or https://", cfg.BaseURL)
	}
	if cfg.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout must be positive")
	}
	if cfg.SendTimeout <= 0 {
		return fmt.Errorf("send_timeout must be positive")
	}
	return nil
}

func validateAccounts(cfg *AccountsConfig) error {
	if len(cfg.CookieFiles) == 0 {
		return fmt.Errorf("at least one cookie file is required")
	}
	seen := make(map[string]bool, len(cfg.CookieFiles))
	for _, path := range cfg.CookieFiles {
		if path == "" {
			return fmt.Errorf("cookie file path must not be empty")
		}
		if seen[path] {
			return fmt.Errorf("duplicate cookie file %q", path)
		}
		seen[path] = true
	}
	return nil
}

func validateSession(cfg *SessionConfig, upstream *UpstreamConfig) error {
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if cfg.MaxTurns < 1 {
		return fmt.Errorf("max_turns must be at least 1")
	}
	if cfg.RefusalThreshold < 1 {
		return fmt.Errorf("refusal_threshold must be at least 1")
	}
	if cfg.PacingMin < 0 || cfg.PacingMax < 0 {
		return fmt.Errorf("pacing bounds must not be negative")
	}
	if cfg.PacingMax < cfg.PacingMin {
		return fmt.Errorf("pacing_max must not be less than pacing_min")
	}
	if cfg.RateLimitCooldown <= 0 {
		return fmt.Errorf("rate_limit_cooldown must be positive")
	}
	if cfg.ServerErrorCooldown <= 0 {
		return fmt.Errorf("server_error_cooldown must be positive")
	}
	if cfg.RefusalCooldown <= 0 {
		return fmt.Errorf("refusal_cooldown must be positive")
	}
	// The caller-side wait must outlast one generation attempt plus retry
	// overhead, or retries get truncated by the caller giving up first.
	if cfg.TotalTimeout <= upstream.SendTimeout {
		return fmt.Errorf("total_timeout (%s) must exceed upstream send_timeout (%s)",
			cfg.TotalTimeout, upstream.SendTimeout)
	}
	return nil
}

func validateQuota(cfg *QuotaConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.MaxRequests < 1 {
		return fmt.Errorf("max_requests must be at least 1")
	}
	if cfg.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	return nil
}

func validateEvents(cfg *EventsConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SQLitePath == "" {
		return fmt.Errorf("sqlite_path is required when events are enabled")
	}
	if cfg.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative")
	}
	if cfg.MaxRecords < 0 {
		return fmt.Errorf("max_records must not be negative")
	}
	if cfg.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
			return fmt.Errorf("invalid prune_schedule %q: %w", cfg.PruneSchedule, err)
		}
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging level %q is not one of debug, info, warn, error", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging format %q is not one of json, text", cfg.Logging.Format)
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics path %q must start with /", cfg.Metrics.Path)
	}
	return nil
}
