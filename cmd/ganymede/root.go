package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ganymede",
	Short: "Ganymede - chat API over a cookie-authenticated Gemini web session",
	Long: `Ganymede exposes a small chat HTTP API backed by the Gemini web
frontend, authenticated with exported browser session cookies.

The session layer handles what the upstream will not tell you politely:
  - Account rotation across multiple cookie bundles
  - Retry policy per failure class (rate limits, timeouts, refusals)
  - A circuit breaker that enforces cooldowns instead of hammering
  - Credential hot-reload when cookie files change on disk`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
}
