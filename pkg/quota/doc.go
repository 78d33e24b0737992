// Package quota enforces the inbound request budget with a sliding-window
// counter. It protects the single upstream account from exhaustion by
// refusing requests beyond the configured per-window limit before any
// session work is queued.
package quota
