package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/hitrank/internal/ports"
)

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

const metricsNamespace = "hitrank"

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It exposes stage latency, event outcomes, fallback reasons,
// permutation verdicts and the number of emitted hypotheses.
type PrometheusMetrics struct {
	stageLatency      *prometheus.HistogramVec
	events            *prometheus.CounterVec
	fallbacks         *prometheus.CounterVec
	permutations      *prometheus.CounterVec
	hypothesesEmitted *prometheus.HistogramVec
	operationCounter  *prometheus.CounterVec
	systemGauges      *prometheus.GaugeVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		stageLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "stage_duration_seconds",
				Help:      "Execution time of processing stages.",
				Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
			},
			[]string{"operation", "stage", "status"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_total",
				Help:      "Processed events by outcome.",
			},
			[]string{"outcome"},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "fallbacks_total",
				Help:      "Sentinel hypotheses emitted by fallback reason.",
			},
			[]string{"reason"},
		),
		permutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "permutations_total",
				Help:      "Fit permutations by verdict.",
			},
			[]string{"verdict"},
		),
		hypothesesEmitted: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "hypotheses_emitted",
				Help:      "Number of hypotheses emitted per event.",
				Buckets:   []float64{1, 2, 3, 5, 10, 20, 50, 100},
			},
			[]string{"outcome"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "operations_total",
				Help:      "Counters without a dedicated collector.",
			},
			[]string{"operation", "stage"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "system_state",
				Help:      "Current system state values.",
			},
			[]string{"metric", "stage"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.stageLatency.WithLabelValues(
		operation,
		labelOr(labels, "stage", "unknown"),
		labelOr(labels, "status", "success"),
	).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricEvents:
		pm.events.WithLabelValues(labelOr(labels, "outcome", "unknown")).Add(value)
	case ports.MetricFallbacks:
		pm.fallbacks.WithLabelValues(labelOr(labels, "reason", "unknown")).Add(value)
	case ports.MetricPermutations:
		pm.permutations.WithLabelValues(labelOr(labels, "verdict", "unknown")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, labelOr(labels, "stage", "unknown")).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.systemGauges.WithLabelValues(metric, labelOr(labels, "stage", "unknown")).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram. Unknown metrics are observed as
// latencies in seconds under their own operation label.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricHypothesesEmitted:
		pm.hypothesesEmitted.WithLabelValues(labelOr(labels, "outcome", "unknown")).Observe(value)
	default:
		pm.stageLatency.WithLabelValues(
			metric,
			labelOr(labels, "stage", "unknown"),
			labelOr(labels, "status", "success"),
		).Observe(value)
	}
}

func labelOr(labels map[string]string, key, fallback string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return fallback
}
