// Package session owns the single long-lived upstream session and
// everything that keeps it healthy: the circuit breaker, the retry
// policy, account rotation, and the manager that serializes all work
// onto one worker goroutine.
//
// The Manager is the only component that touches the session, the
// breaker's trip side, and the rotator's active index. Callers interact
// through Query, which marshals work to the worker and blocks on a
// per-request reply with a bounded total timeout. The worker never lets
// a failure escape unclassified: every code path ends in a Result
// carrying one of the stable failure tags in result.go.
package session
