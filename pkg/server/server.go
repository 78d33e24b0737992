package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/quota"
	"mercator-hq/ganymede/pkg/session"
)

// Querier answers prompts. Satisfied by the session manager.
type Querier interface {
	Query(ctx context.Context, prompt string) session.Result
}

// Server is the HTTP front end.
type Server struct {
	cfg     config.ServerConfig
	querier Querier
	logger  *slog.Logger

	breaker        *session.Breaker
	limiter        *quota.Limiter
	metricsPath    string
	metricsHandler http.Handler

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.Mutex
	running      bool
}

// Option configures a Server.
type Option func(*Server)

// WithBreaker wires the readiness probe to the circuit breaker.
func WithBreaker(b *session.Breaker) Option {
	return func(s *Server) { s.breaker = b }
}

// WithQuota applies the inbound quota to the ask endpoint.
func WithQuota(l *quota.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithMetrics mounts the metrics handler at path.
func WithMetrics(path string, handler http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metricsHandler = handler
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates the HTTP front end over the given querier.
func NewServer(cfg config.ServerConfig, querier Querier, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		querier: querier,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the full route and middleware stack.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	ask := http.Handler(http.HandlerFunc(s.handleAsk))
	if s.limiter != nil {
		ask = QuotaMiddleware(s.limiter)(ask)
	}
	mux.Handle("POST /api/ask", ask)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	if s.metricsHandler != nil {
		path := s.metricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, s.metricsHandler)
	}

	// Outermost first: recovery catches everything below it.
	var handler http.Handler = mux
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(s.logger)(handler)
	return handler
}

// Start runs the server and blocks until ctx is cancelled, a shutdown
// signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true

	s.httpServer = &http.Server{
		Addr:           s.cfg.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.cfg.ReadTimeout.Std(),
		WriteTimeout:   s.cfg.WriteTimeout.Std(),
		IdleTimeout:    s.cfg.IdleTimeout.Std(),
		MaxHeaderBytes: s.cfg.MaxHeaderBytes,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "address", s.cfg.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown drains in-flight requests within the configured shutdown
// timeout. Idempotent.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout.Std())
		defer cancel()

		s.logger.Info("shutting down http server", "timeout", s.cfg.ShutdownTimeout.Std())
		if shutdownErr := s.httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			err = fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
		}
	})
	return err
}
