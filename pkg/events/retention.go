package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/ganymede/pkg/config"
)

// Pruner enforces the retention policy on the event log: an age bound
// (RetentionDays) and a count bound (MaxRecords). Either bound set to 0
// disables that phase.
type Pruner struct {
	store  Store
	cfg    config.EventsConfig
	logger *slog.Logger
}

// NewPruner creates a pruner over the given store.
func NewPruner(store Store, cfg config.EventsConfig) *Pruner {
	return &Pruner{
		store:  store,
		cfg:    cfg,
		logger: slog.Default().With("component", "events.retention"),
	}
}

// Prune runs one retention cycle and returns the number of deleted
// events. Age-based deletion runs first, then the count cap.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var deleted int64

	if p.cfg.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -p.cfg.RetentionDays)
		n, err := p.store.DeleteBefore(ctx, cutoff)
		if err != nil {
			return deleted, fmt.Errorf("age-based pruning failed: %w", err)
		}
		deleted += n
	}

	if p.cfg.MaxRecords > 0 {
		n, err := p.store.TrimTo(ctx, int64(p.cfg.MaxRecords))
		if err != nil {
			return deleted, fmt.Errorf("count-based pruning failed: %w", err)
		}
		deleted += n
	}

	if deleted > 0 {
		p.logger.Info("pruned events",
			"deleted", deleted,
			"retention_days", p.cfg.RetentionDays,
			"max_records", p.cfg.MaxRecords)
	}

	return deleted, nil
}

// Scheduler runs the pruner on a cron schedule.
type Scheduler struct {
	pruner   *Pruner
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler for the pruner's configured schedule.
func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner:   pruner,
		schedule: pruner.cfg.PruneSchedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "events.scheduler"),
	}
}

// Start begins scheduled pruning. An empty schedule disables it. The
// scheduler stops when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", s.schedule, err)
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.pruner.Prune(ctx); err != nil {
			s.logger.Error("scheduled pruning failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("retention scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts scheduled pruning. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("retention scheduler stopped")
}
