package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for upstream calls.
const (
	OutcomeOK          = "ok"
	OutcomeStatusError = "status_error"
	OutcomeTransport   = "transport_error"
)

// Metrics tracks invocation outcomes.
//
// Metrics:
//   - <ns>_invocations_total: invocations by result kind ("ok" or error status)
//   - <ns>_upstream_duration_seconds: upstream round trip by outcome
//   - <ns>_inflight_invocations: invocations currently holding a slot
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	invocationsTotal *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	inflight         prometheus.Gauge
}

// New creates metrics registered on a dedicated registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of proxy invocations by result kind",
			},
			[]string{"kind"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_duration_seconds",
				Help:      "Duration of upstream chat-completion calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
			[]string{"outcome"},
		),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_invocations",
			Help:      "Invocations currently being handled",
		}),
	}

	m.registry.MustRegister(m.invocationsTotal, m.upstreamDuration, m.inflight)
	return m
}

// RecordInvocation counts one finished invocation.
func (m *Metrics) RecordInvocation(kind string) {
	if m == nil {
		return
	}
	m.invocationsTotal.WithLabelValues(kind).Inc()
}

// ObserveUpstream records the duration of one upstream call.
func (m *Metrics) ObserveUpstream(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// InflightAdd adjusts the in-flight gauge by delta.
func (m *Metrics) InflightAdd(delta float64) {
	if m == nil {
		return
	}
	m.inflight.Add(delta)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
