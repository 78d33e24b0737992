// Package config provides configuration management for Ganymede.
//
// Configuration is loaded from a YAML file with optional environment
// variable overrides, validated, and handed to the rest of the process as
// an immutable value.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("config.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention GANYMEDE_SECTION_FIELD
// and always take precedence over file-based configuration. For example:
//
//   - GANYMEDE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - GANYMEDE_ACCOUNTS_COOKIE_FILES overrides accounts.cookie_files
//     (comma-separated)
//   - GANYMEDE_SESSION_RATE_LIMIT_COOLDOWN overrides
//     session.rate_limit_cooldown
//
// # Precedence
//
// Values are applied in the following order (later overrides earlier):
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Durations
//
// Duration fields accept Go duration notation in YAML ("90s", "20m", "1h").
//
// # Example Configuration
//
//	server:
//	  listen_address: "127.0.0.1:8080"
//
//	accounts:
//	  cookie_files:
//	    - "cookies/primary.json"
//	    - "cookies/backup.json"
//
//	session:
//	  rate_limit_cooldown: "20m"
//	  refusal_threshold: 3
//
//	events:
//	  sqlite_path: "data/events.db"
package config
