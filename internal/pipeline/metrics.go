package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts feature outcomes per feature name.
type Metrics struct {
	computed *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the pipeline collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		computed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storecast_features_computed_total",
			Help: "Features appended to a frame.",
		}, []string{"feature"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storecast_feature_failures_total",
			Help: "Features that failed and were left out of the frame.",
		}, []string{"feature"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storecast_feature_duration_seconds",
			Help:    "Time spent computing one feature.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"feature"}),
	}
	if reg != nil {
		reg.MustRegister(m.computed, m.failures, m.duration)
	}
	return m
}

func (m *Metrics) observe(feature string, elapsed time.Duration, err error) {
	m.duration.WithLabelValues(feature).Observe(elapsed.Seconds())
	if err != nil {
		m.failures.WithLabelValues(feature).Inc()
		return
	}
	m.computed.WithLabelValues(feature).Inc()
}
