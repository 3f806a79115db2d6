package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "synctool"

// Metrics collects run metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	items      *prometheus.CounterVec
	steps      *prometheus.CounterVec
	stepTime   *prometheus.HistogramVec
	queueDepth *prometheus.GaugeVec
}

// NewMetrics creates and registers the run metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "items_total",
			Help:      "Items that finished a run, by final status.",
		}, []string{"rule", "status"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "steps_total",
			Help:      "Executed steps, by step and result.",
		}, []string{"rule", "step", "result"}),
		stepTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "step_duration_seconds",
			Help:      "Time spent in a single step.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"rule", "step"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_depth",
			Help:      "Items waiting in the work queue.",
		}, []string{"rule"}),
	}
	m.registry.MustRegister(m.items, m.steps, m.stepTime, m.queueDepth)
	return m
}

// Registry exposes the registry for scraping or export.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteToTextfile writes the metrics in the text exposition format, for
// the node exporter textfile collector.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observeStep(rule, step string, seconds float64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.steps.WithLabelValues(rule, step, result).Inc()
	m.stepTime.WithLabelValues(rule, step).Observe(seconds)
}

func (m *Metrics) observeItem(rule string, s Status) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(rule, s.String()).Inc()
}

func (m *Metrics) setQueueDepth(rule string, n int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(rule).Set(float64(n))
}
