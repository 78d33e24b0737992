// Package events is the append-only operational event log: rate-limit
// hits, content refusals, breaker trips, and account rotations, recorded
// for operators to inspect after the fact.
//
// The log is telemetry, never control flow. The Recorder swallows storage
// failures after logging them; a broken event database cannot fail a
// query.
package events
