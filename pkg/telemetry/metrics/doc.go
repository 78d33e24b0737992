// Package metrics exposes Prometheus metrics for the session layer:
// query outcomes, attempts per query, upstream latency, breaker state,
// and account rotations.
package metrics
