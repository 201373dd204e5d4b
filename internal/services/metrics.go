package services

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"touchview/internal/cache"
	"touchview/internal/decoder"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Session metrics
	SessionsActive prometheus.Gauge
	ViewerSpawns   *prometheus.CounterVec

	// Conversion metrics
	Conversions        *prometheus.CounterVec
	ConversionDuration prometheus.Histogram

	// Decode metrics
	DecodeEvents *prometheus.CounterVec
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// InitMetrics initializes the Prometheus metrics. promauto registers
// against the default registry, so initialization happens once per
// process.
func InitMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "touchview_sessions_active",
				Help: "Number of tracked viewer sessions",
			}),

			ViewerSpawns: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "touchview_viewer_spawns_total",
				Help: "Total viewer process spawn attempts by outcome",
			}, []string{"outcome"}), // "ok", "not_found", "startup_failure"

			Conversions: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "touchview_conversions_total",
				Help: "Total container conversions by outcome",
			}, []string{"outcome"}), // "ok", "error"

			ConversionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "touchview_conversion_duration_seconds",
				Help:    "Container conversion latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			}),

			DecodeEvents: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "touchview_decode_events_total",
				Help: "Total decoded event blobs by outcome",
			}, []string{"outcome"}), // "yielded", "skipped"
		}
	})
	return globalMetrics
}

// ObserveDecode feeds one decode pass's statistics into the counters.
func (m *Metrics) ObserveDecode(stats decoder.Stats) {
	if m == nil {
		return
	}
	m.DecodeEvents.WithLabelValues("yielded").Add(float64(stats.Yielded))
	m.DecodeEvents.WithLabelValues("skipped").Add(float64(stats.Skipped))
}

// InstrumentedConverter wraps a Converter with conversion counters
// and latency observation.
type InstrumentedConverter struct {
	Inner   cache.Converter
	Metrics *Metrics
}

func (c *InstrumentedConverter) Convert(containerPath, destPath string) error {
	start := time.Now()
	err := c.Inner.Convert(containerPath, destPath)
	if c.Metrics != nil {
		c.Metrics.ConversionDuration.Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.Metrics.Conversions.WithLabelValues(outcome).Inc()
	}
	return err
}
