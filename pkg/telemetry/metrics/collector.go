package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mercator-hq/ganymede/pkg/config"
)

// Collector owns the Prometheus registry and the session metric set.
type Collector struct {
	registry *prometheus.Registry

	// Session is the session-layer metric set, wired into the manager
	// as its observer.
	Session *SessionMetrics
}

// NewCollector creates a registry with Go runtime and process collectors
// plus the session metric set. breakerOpen, when non-nil, backs the
// breaker state gauge.
func NewCollector(cfg config.MetricsConfig, breakerOpen func() bool) *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		registry: registry,
		Session:  NewSessionMetrics(cfg, registry, breakerOpen),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
