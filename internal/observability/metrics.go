package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type storeMetrics struct {
	activeSessions   prometheus.Gauge
	retrieveDuration prometheus.Histogram
	flushDuration    prometheus.Histogram
	sweptTotal       prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *storeMetrics
)

func getMetrics() *storeMetrics {
	metricsOnce.Do(func() {
		m := &storeMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "sessfile_active_sessions",
					Help: "Current session file count.",
				},
			),
			retrieveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "sessfile_retrieve_duration_seconds",
					Help:    "Session retrieve duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			flushDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "sessfile_flush_duration_seconds",
					Help:    "Session flush duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sweptTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessfile_swept_sessions_total",
					Help: "Total stale sessions removed by the sweeper.",
				},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.retrieveDuration,
			m.flushDuration,
			m.sweptTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler exposes the metrics for scraping. The host process
// decides whether and where to mount it.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveSessions(count int) {
	m := getMetrics()
	m.activeSessions.Set(float64(count))
}

func RecordRetrieve(duration time.Duration) {
	m := getMetrics()
	m.retrieveDuration.Observe(duration.Seconds())
}

func RecordFlush(duration time.Duration) {
	m := getMetrics()
	m.flushDuration.Observe(duration.Seconds())
}

func RecordSwept(count int) {
	m := getMetrics()
	m.sweptTotal.Add(float64(count))
}
