package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/session"
	"mercator-hq/ganymede/pkg/upstream"
)

func testMetricsConfig() config.MetricsConfig {
	return config.MetricsConfig{
		Enabled:   true,
		Path:      "/metrics",
		Namespace: "mercator",
		Subsystem: "ganymede",
	}
}

func TestSessionMetrics_QueryCompleted(t *testing.T) {
	c := NewCollector(testMetricsConfig(), nil)

	c.Session.QueryCompleted(session.TagNone, 1, time.Second)
	c.Session.QueryCompleted(session.TagNone, 2, time.Second)
	c.Session.QueryCompleted(session.TagRateLimited, 1, time.Second)

	if got := testutil.ToFloat64(c.Session.queries.WithLabelValues("success")); got != 2 {
		t.Errorf("queries_total{tag=success} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Session.queries.WithLabelValues("rate_limited")); got != 1 {
		t.Errorf("queries_total{tag=rate_limited} = %v, want 1", got)
	}
}

func TestSessionMetrics_AttemptsAndTrips(t *testing.T) {
	c := NewCollector(testMetricsConfig(), nil)

	c.Session.AttemptCompleted(upstream.OutcomeSuccess, 100*time.Millisecond)
	c.Session.AttemptCompleted(upstream.OutcomeTimeout, 2*time.Second)
	c.Session.BreakerTripped(20*time.Minute, "rate_limited")
	c.Session.AccountRotated(0, 1)

	if got := testutil.ToFloat64(c.Session.upstream.WithLabelValues("timeout")); got != 1 {
		t.Errorf("upstream_attempts_total{outcome=timeout} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Session.trips.WithLabelValues("rate_limited")); got != 1 {
		t.Errorf("breaker_trips_total{reason=rate_limited} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Session.rotations); got != 1 {
		t.Errorf("account_rotations_total = %v, want 1", got)
	}
}

func TestCollector_HandlerServesMetrics(t *testing.T) {
	open := false
	c := NewCollector(testMetricsConfig(), func() bool { return open })

	c.Session.QueryCompleted(session.TagNone, 1, time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "mercator_ganymede_queries_total") {
		t.Errorf("metrics output missing queries counter:\n%s", body)
	}
	if !strings.Contains(body, "mercator_ganymede_breaker_open 0") {
		t.Errorf("metrics output missing breaker gauge:\n%s", body)
	}

	open = true
	rec = httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "mercator_ganymede_breaker_open 1") {
		t.Error("breaker gauge did not follow the callback")
	}
}

// The metric set satisfies the manager's observer contract.
var _ session.Observer = (*SessionMetrics)(nil)
