package session

import (
	"time"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/upstream"
)

// ActionKind identifies what the manager should do after a failed attempt.
type ActionKind int

const (
	// ActionRetrySameSession retries after Delay without discarding the
	// current session. The manager invalidates the session first only
	// for auth failures, forcing a fresh handshake.
	ActionRetrySameSession ActionKind = iota

	// ActionRotateAndRetry advances to the next account source and
	// retries with a fresh session.
	ActionRotateAndRetry

	// ActionTripBreaker opens the breaker for Cooldown and fails the
	// request.
	ActionTripBreaker

	// ActionFailPermanently fails the request without touching the
	// breaker.
	ActionFailPermanently
)

// String returns the action name used in logs.
func (k ActionKind) String() string {
	switch k {
	case ActionRetrySameSession:
		return "retry_same_session"
	case ActionRotateAndRetry:
		return "rotate_and_retry"
	case ActionTripBreaker:
		return "trip_breaker"
	default:
		return "fail_permanently"
	}
}

// Action is a policy decision.
type Action struct {
	// Kind is the decision.
	Kind ActionKind

	// Delay is the wait before the next attempt (retry kinds only).
	Delay time.Duration

	// Cooldown is the breaker duration (ActionTripBreaker only).
	Cooldown time.Duration
}

// Env is the manager state a decision depends on beyond the outcome
// itself.
type Env struct {
	// CanRotate is true when more than one account source is configured.
	CanRotate bool

	// ConsecutiveRefusals counts content refusals since the last
	// successful exchange, including the one being decided.
	ConsecutiveRefusals int
}

// Policy maps a classified attempt outcome to the next action. Decide is
// pure: same inputs, same decision, no side effects and no clock reads.
type Policy struct {
	maxAttempts         int
	retryDelay          time.Duration
	rateLimitCooldown   time.Duration
	serverErrorCooldown time.Duration
	refusalThreshold    int
	refusalCooldown     time.Duration
}

// NewPolicy creates a policy from session configuration.
func NewPolicy(cfg config.SessionConfig) *Policy {
	return &Policy{
		maxAttempts:         cfg.MaxAttempts,
		retryDelay:          cfg.RetryDelay.Std(),
		rateLimitCooldown:   cfg.RateLimitCooldown.Std(),
		serverErrorCooldown: cfg.ServerErrorCooldown.Std(),
		refusalThreshold:    cfg.RefusalThreshold,
		refusalCooldown:     cfg.RefusalCooldown.Std(),
	}
}

// Decide returns the action for a failed attempt. attempt is 1-based and
// counts the attempt that just finished. Decide is never called for
// OutcomeSuccess.
func (p *Policy) Decide(outcome upstream.Outcome, attempt int, env Env) Action {
	switch outcome {
	case upstream.OutcomeRateLimited:
		// Another account may have remaining budget. With a single
		// source, or with attempts exhausted, the only safe move is to
		// stop hammering a provider that already signaled overload.
		if env.CanRotate && attempt < p.maxAttempts {
			return Action{Kind: ActionRotateAndRetry, Delay: p.retryDelay}
		}
		return Action{Kind: ActionTripBreaker, Cooldown: p.rateLimitCooldown}

	case upstream.OutcomeAuthInvalid:
		// One fresh handshake distinguishes a stale session from
		// credentials that are bad forever.
		if attempt < p.maxAttempts {
			return Action{Kind: ActionRetrySameSession, Delay: p.retryDelay}
		}
		return Action{Kind: ActionFailPermanently}

	case upstream.OutcomeServerUnavailable:
		// A single server-side failure does not imply the session is
		// broken; repeated ones mean the upstream is down.
		if attempt < p.maxAttempts {
			return Action{Kind: ActionRetrySameSession, Delay: p.retryDelay}
		}
		return Action{Kind: ActionTripBreaker, Cooldown: p.serverErrorCooldown}

	case upstream.OutcomeContentRefused:
		// Repeated refusals signal a globally degraded session, not a
		// per-prompt issue.
		if env.ConsecutiveRefusals >= p.refusalThreshold {
			return Action{Kind: ActionTripBreaker, Cooldown: p.refusalCooldown}
		}
		return Action{Kind: ActionFailPermanently}

	case upstream.OutcomeTimeout:
		if attempt < p.maxAttempts {
			return Action{Kind: ActionRetrySameSession, Delay: p.retryDelay}
		}
		return Action{Kind: ActionFailPermanently}

	default:
		return Action{Kind: ActionFailPermanently}
	}
}
