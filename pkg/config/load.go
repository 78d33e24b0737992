package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// Values not present in the file keep their defaults. The result is
// validated before it is returned.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention GANYMEDE_SECTION_FIELD (e.g., GANYMEDE_SERVER_LISTEN_ADDRESS)
// and always take precedence over file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("GANYMEDE_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	overrideDuration("GANYMEDE_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	overrideDuration("GANYMEDE_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	overrideDuration("GANYMEDE_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	overrideDuration("GANYMEDE_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Upstream overrides
	if val := os.Getenv("GANYMEDE_UPSTREAM_BASE_URL"); val != "" {
		cfg.Upstream.BaseURL = val
	}
	overrideDuration("GANYMEDE_UPSTREAM_HANDSHAKE_TIMEOUT", &cfg.Upstream.HandshakeTimeout)
	overrideDuration("GANYMEDE_UPSTREAM_SEND_TIMEOUT", &cfg.Upstream.SendTimeout)

	// Accounts overrides. Cookie files are comma-separated.
	if val := os.Getenv("GANYMEDE_ACCOUNTS_COOKIE_FILES"); val != "" {
		parts := strings.Split(val, ",")
		files := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				files = append(files, p)
			}
		}
		cfg.Accounts.CookieFiles = files
	}
	overrideBool("GANYMEDE_ACCOUNTS_WATCH", &cfg.Accounts.Watch)

	// Session overrides
	overrideDuration("GANYMEDE_SESSION_TOTAL_TIMEOUT", &cfg.Session.TotalTimeout)
	overrideInt("GANYMEDE_SESSION_MAX_ATTEMPTS", &cfg.Session.MaxAttempts)
	overrideInt("GANYMEDE_SESSION_MAX_TURNS", &cfg.Session.MaxTurns)
	overrideDuration("GANYMEDE_SESSION_PACING_MIN", &cfg.Session.PacingMin)
	overrideDuration("GANYMEDE_SESSION_PACING_MAX", &cfg.Session.PacingMax)
	overrideDuration("GANYMEDE_SESSION_RETRY_DELAY", &cfg.Session.RetryDelay)
	overrideDuration("GANYMEDE_SESSION_RATE_LIMIT_COOLDOWN", &cfg.Session.RateLimitCooldown)
	overrideDuration("GANYMEDE_SESSION_SERVER_ERROR_COOLDOWN", &cfg.Session.ServerErrorCooldown)
	overrideInt("GANYMEDE_SESSION_REFUSAL_THRESHOLD", &cfg.Session.RefusalThreshold)
	overrideDuration("GANYMEDE_SESSION_REFUSAL_COOLDOWN", &cfg.Session.RefusalCooldown)

	// Quota overrides
	overrideBool("GANYMEDE_QUOTA_ENABLED", &cfg.Quota.Enabled)
	overrideInt("GANYMEDE_QUOTA_MAX_REQUESTS", &cfg.Quota.MaxRequests)
	overrideDuration("GANYMEDE_QUOTA_WINDOW", &cfg.Quota.Window)

	// Events overrides
	overrideBool("GANYMEDE_EVENTS_ENABLED", &cfg.Events.Enabled)
	if val := os.Getenv("GANYMEDE_EVENTS_SQLITE_PATH"); val != "" {
		cfg.Events.SQLitePath = val
	}
	overrideInt("GANYMEDE_EVENTS_RETENTION_DAYS", &cfg.Events.RetentionDays)
	if val := os.Getenv("GANYMEDE_EVENTS_PRUNE_SCHEDULE"); val != "" {
		cfg.Events.PruneSchedule = val
	}

	// Telemetry overrides
	if val := os.Getenv("GANYMEDE_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("GANYMEDE_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	overrideBool("GANYMEDE_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	if val := os.Getenv("GANYMEDE_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
}

func overrideDuration(name string, dst *Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = Duration(d)
		}
	}
}

func overrideInt(name string, dst *int) {
	if val := os.Getenv(name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func overrideBool(name string, dst *bool) {
	if val := os.Getenv(name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}
