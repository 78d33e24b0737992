package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/credentials"
	"mercator-hq/ganymede/pkg/events"
	"mercator-hq/ganymede/pkg/quota"
	"mercator-hq/ganymede/pkg/server"
	"mercator-hq/ganymede/pkg/session"
	"mercator-hq/ganymede/pkg/telemetry/logging"
	"mercator-hq/ganymede/pkg/telemetry/metrics"
	"mercator-hq/ganymede/pkg/upstream"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Ganymede server",
	Long: `Start the Ganymede server with the specified configuration.

The server exposes the ask endpoint backed by the managed upstream
session, plus health, readiness, and metrics endpoints.

Examples:
  # Start with default config
  ganymede run

  # Start with custom config
  ganymede run --config /etc/ganymede/config.yaml

  # Override listen address
  ganymede run --listen 0.0.0.0:8080

  # Validate config without starting the server
  ganymede run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.Setup(cfg.Telemetry.Logging, nil)
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	if runFlags.dryRun {
		logger.Info("configuration valid",
			"config", cfgFile,
			"listen", cfg.Server.ListenAddress,
			"cookie_files", len(cfg.Accounts.CookieFiles))
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Upstream client and the session layer around it.
	client := upstream.NewGeminiClient(upstream.GeminiConfig{
		BaseURL:          cfg.Upstream.BaseURL,
		HandshakeTimeout: cfg.Upstream.HandshakeTimeout.Std(),
		SendTimeout:      cfg.Upstream.SendTimeout.Std(),
		MaxIdleConns:     cfg.Upstream.MaxIdleConns,
		IdleConnTimeout:  cfg.Upstream.IdleConnTimeout.Std(),
	})
	defer client.Close()
	rotator := credentials.NewRotator(cfg.Accounts.CookieFiles)

	managerOpts := []session.Option{session.WithLogger(logger)}
	serverOpts := []server.Option{server.WithLogger(logger)}

	// Operational event log.
	if cfg.Events.Enabled {
		store, err := events.NewSQLiteStore(cfg.Events.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open event store: %w", err)
		}
		defer store.Close()

		managerOpts = append(managerOpts, session.WithEventSink(events.NewRecorder(store)))

		scheduler := events.NewScheduler(events.NewPruner(store, cfg.Events))
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start retention scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	// The breaker gauge reads through this indirection because the
	// breaker only exists once the manager does.
	var breakerOpen func() bool
	if cfg.Telemetry.Metrics.Enabled {
		collector := metrics.NewCollector(cfg.Telemetry.Metrics, func() bool {
			if breakerOpen == nil {
				return false
			}
			return breakerOpen()
		})
		managerOpts = append(managerOpts, session.WithObserver(collector.Session))
		serverOpts = append(serverOpts,
			server.WithMetrics(cfg.Telemetry.Metrics.Path, collector.Handler()))
	}

	manager := session.NewManager(cfg.Session, client, rotator, managerOpts...)
	breakerOpen = func() bool {
		open, _ := manager.Breaker().Check()
		return open
	}

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session manager: %w", err)
	}
	defer manager.Stop()

	// Credential hot-reload.
	if cfg.Accounts.Watch {
		watcher, err := credentials.NewWatcher(cfg.Accounts.CookieFiles, cfg.Accounts.WatchDebounce.Std(), logger)
		if err != nil {
			return fmt.Errorf("failed to create credential watcher: %w", err)
		}
		go func() {
			if err := watcher.Watch(ctx, func(path string) {
				manager.Invalidate()
			}); err != nil {
				logger.Error("credential watcher exited", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	// Inbound quota.
	if cfg.Quota.Enabled {
		serverOpts = append(serverOpts, server.WithQuota(quota.NewLimiter(cfg.Quota)))
	}

	serverOpts = append(serverOpts, server.WithBreaker(manager.Breaker()))

	srv := server.NewServer(cfg.Server, manager, serverOpts...)

	logger.Info("ganymede starting",
		"listen", cfg.Server.ListenAddress,
		"upstream", cfg.Upstream.BaseURL,
		"account_sources", len(cfg.Accounts.CookieFiles),
		slog.Bool("quota", cfg.Quota.Enabled),
		slog.Bool("events", cfg.Events.Enabled))

	return srv.Start(ctx)
}
