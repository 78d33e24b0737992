package events

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mercator-hq/ganymede/pkg/config"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func appendEvent(t *testing.T, store Store, kind Kind, createdAt time.Time) *Event {
	t.Helper()

	e := &Event{
		ID:        fmt.Sprintf("ev-%s-%d", kind, createdAt.UnixNano()),
		Kind:      kind,
		Source:    "cookies.json",
		Detail:    "detail",
		CreatedAt: createdAt,
	}
	if err := store.Append(context.Background(), e); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	return e
}

func TestSQLiteStore_AppendAndList(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	appendEvent(t, store, KindRateLimit, now.Add(-2*time.Hour))
	appendEvent(t, store, KindContentFailure, now.Add(-time.Hour))
	appendEvent(t, store, KindRateLimit, now)

	all, err := store.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List() returned %d events, want 3", len(all))
	}

	// Newest first.
	if !all[0].CreatedAt.After(all[1].CreatedAt) {
		t.Error("List() is not ordered newest-first")
	}

	rateLimits, err := store.List(context.Background(), ListOptions{Kind: KindRateLimit})
	if err != nil {
		t.Fatalf("List(kind) error: %v", err)
	}
	if len(rateLimits) != 2 {
		t.Errorf("List(KindRateLimit) returned %d events, want 2", len(rateLimits))
	}

	limited, err := store.List(context.Background(), ListOptions{Limit: 1})
	if err != nil {
		t.Fatalf("List(limit) error: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("List(Limit: 1) returned %d events, want 1", len(limited))
	}
}

func TestSQLiteStore_Count(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 5; i++ {
		appendEvent(t, store, KindBreakerTrip, time.Now().Add(time.Duration(i)*time.Second))
	}

	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 5 {
		t.Errorf("Count() = %d, want 5", count)
	}
}

func TestSQLiteStore_DeleteBefore(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	appendEvent(t, store, KindRateLimit, now.Add(-48*time.Hour))
	appendEvent(t, store, KindRateLimit, now.Add(-36*time.Hour))
	appendEvent(t, store, KindRateLimit, now)

	deleted, err := store.DeleteBefore(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore() error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteBefore() deleted %d, want 2", deleted)
	}

	count, _ := store.Count(context.Background())
	if count != 1 {
		t.Errorf("Count() after delete = %d, want 1", count)
	}
}

func TestSQLiteStore_TrimTo(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	for i := 0; i < 10; i++ {
		appendEvent(t, store, KindContentFailure, now.Add(time.Duration(i)*time.Minute))
	}

	deleted, err := store.TrimTo(context.Background(), 4)
	if err != nil {
		t.Fatalf("TrimTo() error: %v", err)
	}
	if deleted != 6 {
		t.Errorf("TrimTo() deleted %d, want 6", deleted)
	}

	remaining, err := store.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(remaining) != 4 {
		t.Fatalf("remaining = %d, want 4", len(remaining))
	}

	// The newest records survive.
	for _, e := range remaining {
		if e.CreatedAt.Before(now.Add(5 * time.Minute)) {
			t.Errorf("old event %s survived the trim", e.ID)
		}
	}
}

// ---- recorder ----

type memoryStore struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (m *memoryStore) Append(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memoryStore) List(ctx context.Context, opts ListOptions) ([]*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Event(nil), m.events...), nil
}

func (m *memoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.events)), nil
}

func (m *memoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (m *memoryStore) TrimTo(ctx context.Context, max int64) (int64, error) {
	return 0, nil
}

func (m *memoryStore) Close() error { return nil }

func TestRecorder_AssignsIdentity(t *testing.T) {
	store := &memoryStore{}
	rec := NewRecorder(store)

	rec.RateLimited("cookies.json", 20*time.Minute)
	rec.ContentFailure("refused", 2)
	rec.BreakerTripped(10*time.Minute, "content_refused")
	rec.AccountRotated("a.json", "b.json")

	events, _ := store.List(context.Background(), ListOptions{})
	if len(events) != 4 {
		t.Fatalf("recorded %d events, want 4", len(events))
	}

	seen := map[string]bool{}
	for _, e := range events {
		if e.ID == "" {
			t.Error("event has no ID")
		}
		if seen[e.ID] {
			t.Errorf("duplicate event ID %s", e.ID)
		}
		seen[e.ID] = true
		if e.CreatedAt.IsZero() {
			t.Error("event has no timestamp")
		}
	}

	if events[0].Kind != KindRateLimit || events[0].Source != "cookies.json" {
		t.Errorf("first event = %+v, want rate_limit from cookies.json", events[0])
	}
}

func TestRecorder_SwallowsStoreErrors(t *testing.T) {
	store := &memoryStore{err: fmt.Errorf("disk full")}
	rec := NewRecorder(store)

	// Must not panic and must not propagate.
	rec.RateLimited("cookies.json", time.Minute)
	rec.ContentFailure("refused", 1)
}

// ---- retention ----

func TestPruner_AgeAndCountBounds(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	// 3 stale events and 6 fresh ones.
	for i := 0; i < 3; i++ {
		appendEvent(t, store, KindRateLimit, now.Add(-time.Duration(40+i)*24*time.Hour))
	}
	for i := 0; i < 6; i++ {
		appendEvent(t, store, KindRateLimit, now.Add(time.Duration(i)*time.Minute))
	}

	pruner := NewPruner(store, config.EventsConfig{
		RetentionDays: 30,
		MaxRecords:    4,
	})

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	// 3 by age, then 2 more by count.
	if deleted != 5 {
		t.Errorf("Prune() deleted %d, want 5", deleted)
	}

	count, _ := store.Count(context.Background())
	if count != 4 {
		t.Errorf("Count() after prune = %d, want 4", count)
	}
}

func TestPruner_DisabledBounds(t *testing.T) {
	store := openTestStore(t)
	appendEvent(t, store, KindRateLimit, time.Now().Add(-1000*24*time.Hour))

	pruner := NewPruner(store, config.EventsConfig{})

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Prune() with zero bounds deleted %d, want 0", deleted)
	}
}

func TestScheduler_EmptyScheduleIsNoop(t *testing.T) {
	store := openTestStore(t)
	pruner := NewPruner(store, config.EventsConfig{})
	s := NewScheduler(pruner)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	s.Stop()
}

func TestScheduler_RejectsInvalidSchedule(t *testing.T) {
	store := openTestStore(t)
	pruner := NewPruner(store, config.EventsConfig{PruneSchedule: "not a cron line"})
	s := NewScheduler(pruner)

	if err := s.Start(context.Background()); err == nil {
		t.Error("Start() should reject an invalid cron expression")
	}
}
