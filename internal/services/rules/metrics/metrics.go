// Package metrics exports rule engine activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/louisbranch/ruleforge/internal/platform/errors"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "ruleforge"

// Collector records engine calls, notification rounds, and live configurations.
// It satisfies engine.Observer.
type Collector struct {
	registry *prometheus.Registry

	calls         *prometheus.CounterVec
	notifications prometheus.Counter
	deliveries    prometheus.Histogram
	live          prometheus.Gauge
}

// NewCollector builds a collector on its own registry. Go runtime and process
// collectors are included so /metrics is useful on its own.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.calls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "calls_total",
			Help:      "Engine mutations by operation and result code",
		},
		[]string{"op", "code"},
	)

	c.notifications = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "rounds_total",
			Help:      "Change notification rounds published",
		},
	)

	c.deliveries = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "listeners_per_round",
			Help:      "Listeners invoked per notification round",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
	)

	c.live = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "configuration",
			Name:      "live",
			Help:      "Configurations currently held in memory",
		},
	)

	c.registry.MustRegister(
		c.calls,
		c.notifications,
		c.deliveries,
		c.live,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// CallCompleted counts one engine mutation. Successful calls use code "OK".
func (c *Collector) CallCompleted(op string, err error) {
	code := "OK"
	if err != nil {
		code = string(apperrors.CodeOf(err))
	}
	c.calls.WithLabelValues(op, code).Inc()
}

// NotificationRound records one published change.
func (c *Collector) NotificationRound(delivered int) {
	c.notifications.Inc()
	c.deliveries.Observe(float64(delivered))
}

// ConfigurationsLive sets the number of live configurations.
func (c *Collector) ConfigurationsLive(count int) {
	c.live.Set(float64(count))
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
