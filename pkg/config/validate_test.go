package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Accounts.CookieFiles = []string{"cookies.json"}
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "missing listen address",
			mutate:  func(c *Config) { c.Server.ListenAddress = "" },
			wantSub: "listen_address",
		},
		{
			name:    "listen address without port",
			mutate:  func(c *Config) { c.Server.ListenAddress = "localhost" },
			wantSub: "listen_address",
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Upstream.BaseURL = "" },
			wantSub: "base_url",
		},
		{
			name:    "base url without scheme",
			mutate:  func(c *Config) { c.Upstream.BaseURL = "gemini.google.com" },
			wantSub: "base_url",
		},
		{
			name:    "no cookie files",
			mutate:  func(c *Config) { c.Accounts.CookieFiles = nil },
			wantSub: "cookie file",
		},
		{
			name:    "duplicate cookie files",
			mutate:  func(c *Config) { c.Accounts.CookieFiles = []string{"a.json", "a.json"} },
			wantSub: "duplicate",
		},
		{
			name:    "zero max attempts",
			mutate:  func(c *Config) { c.Session.MaxAttempts = 0 },
			wantSub: "max_attempts",
		},
		{
			name:    "zero refusal threshold",
			mutate:  func(c *Config) { c.Session.RefusalThreshold = 0 },
			wantSub: "refusal_threshold",
		},
		{
			name:    "pacing bounds inverted",
			mutate:  func(c *Config) { c.Session.PacingMin = Duration(5 * time.Second); c.Session.PacingMax = Duration(time.Second) },
			wantSub: "pacing_max",
		},
		{
			name: "total timeout not above send timeout",
			mutate: func(c *Config) {
				c.Session.TotalTimeout = Duration(30 * time.Second)
				c.Upstream.SendTimeout = Duration(60 * time.Second)
			},
			wantSub: "total_timeout",
		},
		{
			name:    "quota zero max requests",
			mutate:  func(c *Config) { c.Quota.MaxRequests = 0 },
			wantSub: "max_requests",
		},
		{
			name:    "bad prune schedule",
			mutate:  func(c *Config) { c.Events.PruneSchedule = "not a cron expr" },
			wantSub: "prune_schedule",
		},
		{
			name:    "bad logging level",
			mutate:  func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			wantSub: "level",
		},
		{
			name:    "bad logging format",
			mutate:  func(c *Config) { c.Telemetry.Logging.Format = "xml" },
			wantSub: "format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("expected error containing %q, got %q", tt.wantSub, err.Error())
			}
		})
	}
}

func TestValidate_DisabledSectionsSkipped(t *testing.T) {
	cfg := validConfig()
	cfg.Quota.Enabled = false
	cfg.Quota.MaxRequests = 0
	cfg.Events.Enabled = false
	cfg.Events.SQLitePath = ""

	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled sections should not be validated, got %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("expected default listen address, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Session.RateLimitCooldown != DefaultRateLimitCooldown {
		t.Errorf("expected default rate limit cooldown, got %v", cfg.Session.RateLimitCooldown)
	}
	if cfg.Events.PruneSchedule != DefaultEventsPruneSchedule {
		t.Errorf("expected default prune schedule, got %q", cfg.Events.PruneSchedule)
	}
}
