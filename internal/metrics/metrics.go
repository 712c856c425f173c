// Package metrics exposes Prometheus collectors for the orchestration
// loop. Metrics implements orchestrator.Observer so the controller
// reports into it without knowing about Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/libreassistant/libreassistant/internal/orchestrator"
)

// Metrics holds every collector the daemon registers.
type Metrics struct {
	requestsTotal  *prometheus.CounterVec
	iterations     prometheus.Histogram
	pluginDuration *prometheus.HistogramVec
	pluginFailures *prometheus.CounterVec
	parseFailures  prometheus.Counter
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libreassistant",
			Name:      "requests_total",
			Help:      "Finished requests by terminal reason and success.",
		}, []string{"reason", "success"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "libreassistant",
			Name:      "request_iterations",
			Help:      "Plugin rounds executed per request.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8, 13},
		}),
		pluginDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "libreassistant",
			Name:      "plugin_duration_seconds",
			Help:      "Plugin execution latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"plugin"}),
		pluginFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libreassistant",
			Name:      "plugin_failures_total",
			Help:      "Failed plugin executions.",
		}, []string{"plugin"}),
		parseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "libreassistant",
			Name:      "parse_failures_total",
			Help:      "Model turns that did not parse as an action.",
		}),
	}
	reg.MustRegister(m.requestsTotal, m.iterations, m.pluginDuration, m.pluginFailures, m.parseFailures)
	return m
}

// RequestFinished records one completed request.
func (m *Metrics) RequestFinished(o *orchestrator.Outcome) {
	m.requestsTotal.WithLabelValues(string(o.TerminalReason), strconv.FormatBool(o.Success)).Inc()
	m.iterations.Observe(float64(o.IterationCount))
}

// PluginExecuted records one plugin dispatch.
func (m *Metrics) PluginExecuted(pluginID string, success bool, elapsed time.Duration) {
	m.pluginDuration.WithLabelValues(pluginID).Observe(elapsed.Seconds())
	if !success {
		m.pluginFailures.WithLabelValues(pluginID).Inc()
	}
}

// ParseFailure records one unparseable model turn.
func (m *Metrics) ParseFailure() {
	m.parseFailures.Inc()
}

var _ orchestrator.Observer = (*Metrics)(nil)
