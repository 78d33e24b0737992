// Package server is the HTTP front end. It is a thin transport over the
// session manager: one ask endpoint, liveness and readiness probes, and
// the metrics endpoint, behind a recovery/logging/request-ID/quota
// middleware chain. All failure mapping to HTTP status codes happens
// here; the session layer only ever produces tagged results.
package server
