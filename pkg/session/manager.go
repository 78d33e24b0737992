package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/credentials"
	"mercator-hq/ganymede/pkg/upstream"
)

// Observer receives manager lifecycle notifications for telemetry. All
// methods are called from the worker goroutine and must not block.
type Observer interface {
	// QueryCompleted fires once per Query with its terminal result.
	QueryCompleted(tag Tag, attempts int, duration time.Duration)

	// AttemptCompleted fires once per upstream attempt.
	AttemptCompleted(outcome upstream.Outcome, duration time.Duration)

	// BreakerTripped fires when the worker opens the breaker.
	BreakerTripped(cooldown time.Duration, reason string)

	// AccountRotated fires when the active account source changes.
	AccountRotated(fromIndex, toIndex int)
}

// EventSink records operational events for the append-only event log.
// Telemetry only: implementations swallow their own failures and never
// influence control flow.
type EventSink interface {
	// RateLimited records an upstream rate-limit event.
	RateLimited(source string, cooldown time.Duration)

	// ContentFailure records a content refusal.
	ContentFailure(detail string, consecutive int)

	// BreakerTripped records a circuit breaker trip.
	BreakerTripped(cooldown time.Duration, reason string)

	// AccountRotated records a rotation between account sources.
	AccountRotated(from, to string)
}

type nopObserver struct{}

func (nopObserver) QueryCompleted(Tag, int, time.Duration)           {}
func (nopObserver) AttemptCompleted(upstream.Outcome, time.Duration) {}
func (nopObserver) BreakerTripped(time.Duration, string)             {}
func (nopObserver) AccountRotated(int, int)                          {}

type nopEventSink struct{}

func (nopEventSink) RateLimited(string, time.Duration)    {}
func (nopEventSink) ContentFailure(string, int)           {}
func (nopEventSink) BreakerTripped(time.Duration, string) {}
func (nopEventSink) AccountRotated(string, string)        {}

// request is one unit of work marshalled to the worker. The reply channel
// is buffered so an abandoned caller never blocks the worker.
type request struct {
	id          uint64
	prompt      string
	submittedAt time.Time
	reply       chan Result
}

// Manager owns the upstream session and serializes all exchanges onto a
// single worker goroutine. Any number of goroutines may call Query
// concurrently; no two sends ever race on the same connection.
type Manager struct {
	cfg     config.SessionConfig
	client  upstream.Client
	rotator *credentials.Rotator
	breaker *Breaker
	policy  *Policy

	logger   *slog.Logger
	observer Observer
	events   EventSink

	requests chan *request
	stop     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	wg       sync.WaitGroup

	baseCtx context.Context

	// initMu guards the session slot. The worker is the only opener, but
	// Stop closes the session from the caller's goroutine.
	initMu  sync.Mutex
	session *Session

	// stale is set by Invalidate when credentials change on disk; the
	// worker observes it before the next attempt.
	stale atomic.Bool

	// consecutiveRefusals counts content refusals since the last
	// successful exchange. Worker-only.
	consecutiveRefusals int

	reqSeq atomic.Uint64
	rng    *rand.Rand
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithObserver sets the telemetry observer.
func WithObserver(obs Observer) Option {
	return func(m *Manager) { m.observer = obs }
}

// WithEventSink sets the operational event sink.
func WithEventSink(sink EventSink) Option {
	return func(m *Manager) { m.events = sink }
}

// NewManager creates a session manager. Call Start before Query.
func NewManager(cfg config.SessionConfig, client upstream.Client, rotator *credentials.Rotator, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		client:   client,
		rotator:  rotator,
		breaker:  NewBreaker(),
		policy:   NewPolicy(cfg),
		logger:   slog.Default(),
		observer: nopObserver{},
		events:   nopEventSink{},
		requests: make(chan *request),
		stop:     make(chan struct{}),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Breaker exposes the circuit breaker for read-only checks (readiness
// probes). Only the manager trips it.
func (m *Manager) Breaker() *Breaker {
	return m.breaker
}

// Start launches the worker goroutine. It runs until Stop.
func (m *Manager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return fmt.Errorf("session manager already started")
	}

	m.baseCtx = ctx
	m.wg.Add(1)
	go m.worker()

	m.logger.Info("session manager started",
		"account_sources", m.rotator.Len(),
		"max_attempts", m.cfg.MaxAttempts,
		"total_timeout", m.cfg.TotalTimeout.Std())
	return nil
}

// Stop shuts the worker down and closes any live session. Idempotent.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	m.wg.Wait()

	m.initMu.Lock()
	if m.session != nil {
		m.session.close()
		m.session = nil
	}
	m.initMu.Unlock()
}

// Invalidate marks the current session stale. The worker discards it
// before the next attempt and re-reads credentials from disk. Safe to
// call from any goroutine; used by the credential watcher.
func (m *Manager) Invalidate() {
	m.stale.Store(true)
	m.logger.Info("session marked stale, next query will re-read credentials")
}

// Query submits a prompt and blocks until a terminal Result, the total
// timeout, or ctx cancellation. It never returns an error: every failure
// path yields a tagged Result.
//
// A caller that gives up abandons its wait; the in-flight upstream work
// runs to completion and its result is discarded.
func (m *Manager) Query(ctx context.Context, prompt string) Result {
	// Fast-reject without enqueueing. A stale read here is fine: the
	// worker re-checks.
	if open, remaining := m.breaker.Check(); open {
		return cooldownResult(remaining)
	}

	req := &request{
		id:          m.reqSeq.Add(1),
		prompt:      prompt,
		submittedAt: time.Now(),
		reply:       make(chan Result, 1),
	}

	total := time.NewTimer(m.cfg.TotalTimeout.Std())
	defer total.Stop()

	select {
	case m.requests <- req:
	case <-ctx.Done():
		return abandonedResult("caller cancelled before the request was scheduled")
	case <-total.C:
		return abandonedResult(fmt.Sprintf("no worker capacity within %s", m.cfg.TotalTimeout.Std()))
	case <-m.stop:
		return stoppedResult()
	}

	select {
	case res := <-req.reply:
		return res
	case <-ctx.Done():
		return abandonedResult("caller cancelled while waiting, upstream work continues")
	case <-total.C:
		return abandonedResult(fmt.Sprintf("no result within %s, upstream work continues", m.cfg.TotalTimeout.Std()))
	case <-m.stop:
		return stoppedResult()
	}
}

func cooldownResult(remaining time.Duration) Result {
	return Result{
		Tag:    TagRateLimited,
		Detail: fmt.Sprintf("cooling down, retry in %s", remaining.Round(time.Second)),
	}
}

func abandonedResult(detail string) Result {
	return Result{Tag: TagTimeout, Detail: detail}
}

func stoppedResult() Result {
	return Result{Tag: TagUnknown, Detail: "session manager is shutting down"}
}

func (m *Manager) worker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stop:
			return
		case req := <-m.requests:
			res := m.handle(req)
			req.reply <- res
		}
	}
}

// handle runs one request to a terminal Result. The outermost recover
// guarantees a panic anywhere below becomes a tagged failure instead of
// killing the process.
func (m *Manager) handle(req *request) (result Result) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("recovered panic in session worker",
				"request_id", req.id,
				"panic", fmt.Sprintf("%v", r))
			result = Result{
				Tag:      TagUnknown,
				Detail:   "internal error while handling the request",
				Attempts: result.Attempts,
			}
		}
		m.observer.QueryCompleted(result.Tag, result.Attempts, time.Since(start))
	}()

	// Re-check after the queue wait: the breaker may have been tripped
	// by a request scheduled ahead of this one.
	if open, remaining := m.breaker.Check(); open {
		return cooldownResult(remaining)
	}

	m.pace()

	for attempt := 1; ; attempt++ {
		outcome, text, attemptErr := m.attempt(req, attempt)

		if outcome == upstream.OutcomeSuccess {
			m.consecutiveRefusals = 0
			return Result{Success: true, Text: text, Attempts: attempt}
		}

		// Credential problems are terminal before any upstream attempt.
		if tag := credentialTag(attemptErr); tag != TagNone {
			m.logger.Warn("credential load failed",
				"request_id", req.id,
				"source", m.rotator.Current(),
				"error", attemptErr)
			return Result{Tag: tag, Detail: attemptErr.Error()}
		}

		if outcome == upstream.OutcomeContentRefused {
			m.consecutiveRefusals++
			m.events.ContentFailure(attemptErr.Error(), m.consecutiveRefusals)
		}

		action := m.policy.Decide(outcome, attempt, Env{
			CanRotate:           m.rotator.Len() > 1,
			ConsecutiveRefusals: m.consecutiveRefusals,
		})

		m.logger.Info("attempt failed",
			"request_id", req.id,
			"attempt", attempt,
			"outcome", outcome.String(),
			"action", action.Kind.String(),
			"error", attemptErr)

		switch action.Kind {
		case ActionRetrySameSession:
			// Auth failures invalidate the session so the retry runs a
			// fresh handshake; other outcomes keep the connection.
			if outcome == upstream.OutcomeAuthInvalid {
				m.discardSession()
			}
			m.sleep(action.Delay)

		case ActionRotateAndRetry:
			m.discardSession()
			from := m.rotator.Index()
			fromSource := m.rotator.Current()
			m.rotator.Rotate()
			m.observer.AccountRotated(from, m.rotator.Index())
			m.events.RateLimited(fromSource, 0)
			m.events.AccountRotated(fromSource, m.rotator.Current())
			m.logger.Info("rotated account source",
				"request_id", req.id,
				"from_index", from,
				"to_index", m.rotator.Index())
			m.sleep(action.Delay)

		case ActionTripBreaker:
			m.breaker.Trip(action.Cooldown)
			m.observer.BreakerTripped(action.Cooldown, outcome.String())
			m.events.BreakerTripped(action.Cooldown, outcome.String())
			if outcome == upstream.OutcomeRateLimited {
				m.events.RateLimited(m.rotator.Current(), action.Cooldown)
			}
			m.logger.Warn("circuit breaker tripped",
				"request_id", req.id,
				"cooldown", action.Cooldown,
				"reason", outcome.String())
			return Result{
				Tag:      failureTag(outcome),
				Detail:   fmt.Sprintf("%v (cooling down for %s)", attemptErr, action.Cooldown),
				Attempts: attempt,
			}

		default:
			return Result{
				Tag:      failureTag(outcome),
				Detail:   attemptErr.Error(),
				Attempts: attempt,
			}
		}
	}
}

// attempt runs one full upstream attempt: ensure a session, ensure a
// conversation, send. Every error leaves classified.
func (m *Manager) attempt(req *request, attempt int) (upstream.Outcome, string, error) {
	attemptStart := time.Now()

	sess, err := m.ensureSession()
	if err != nil {
		outcome := upstream.Classify(err)
		m.observer.AttemptCompleted(outcome, time.Since(attemptStart))
		return outcome, "", err
	}

	if err := sess.ensureConversation(m.baseCtx, m.cfg.MaxTurns); err != nil {
		outcome := upstream.Classify(err)
		m.observer.AttemptCompleted(outcome, time.Since(attemptStart))
		return outcome, "", err
	}

	text, err := sess.send(m.baseCtx, req.prompt)
	outcome := upstream.Classify(err)
	m.observer.AttemptCompleted(outcome, time.Since(attemptStart))

	if err != nil {
		return outcome, "", err
	}

	m.logger.Debug("exchange completed",
		"request_id", req.id,
		"attempt", attempt,
		"conversation", sess.conv.ID(),
		"turns_used", sess.turnsUsed,
		"session_age", sess.age().Round(time.Second))
	return upstream.OutcomeSuccess, text, nil
}

// ensureSession returns the live session, opening one if necessary. A
// pending Invalidate is consumed first so the open re-reads credentials
// from disk.
func (m *Manager) ensureSession() (*Session, error) {
	if m.stale.CompareAndSwap(true, false) {
		m.discardSession()
	}

	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.session != nil {
		return m.session, nil
	}

	source := m.rotator.Current()
	bundle, err := credentials.Load(source)
	if err != nil {
		return nil, err
	}

	sess, err := open(m.baseCtx, m.client, bundle, source)
	if err != nil {
		return nil, err
	}

	m.logger.Info("upstream session opened", "source", source)
	m.session = sess
	return sess, nil
}

// discardSession closes and forgets the current session.
func (m *Manager) discardSession() {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.session != nil {
		m.session.close()
		m.session = nil
	}
}

// credentialTag classifies credential-layer errors; TagNone for anything
// else.
func credentialTag(err error) Tag {
	if err == nil {
		return TagNone
	}
	switch {
	case credentials.IsNotFound(err), credentials.IsMissingToken(err):
		return TagCredentialMissing
	case credentials.IsMalformed(err):
		return TagCredentialMalformed
	default:
		return TagNone
	}
}

// pace sleeps a bounded random delay before the first attempt so outbound
// traffic does not arrive in machine-regular bursts.
func (m *Manager) pace() {
	min := m.cfg.PacingMin.Std()
	max := m.cfg.PacingMax.Std()
	if max <= 0 {
		return
	}

	delay := min
	if max > min {
		delay += time.Duration(m.rng.Int63n(int64(max - min)))
	}
	m.sleep(delay)
}

// sleep waits for d, returning early on shutdown.
func (m *Manager) sleep(d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-m.stop:
	}
}
