package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	storeTotal          *prometheus.CounterVec
	storeDuration       prometheus.Histogram
	searchTotal         *prometheus.CounterVec
	searchDuration      prometheus.Histogram
	observationsTotal   prometheus.Gauge
	timelineDuration    prometheus.Histogram
	embeddingsGenerated prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			storeTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_store_total",
					Help: "Total observation stores by outcome (stored, deduplicated).",
				},
				[]string{"outcome"},
			),
			storeDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_store_duration_seconds",
					Help:    "Observation store duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			searchTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_search_total",
					Help: "Total searches by mode (hybrid, fts_only).",
				},
				[]string{"mode"},
			),
			searchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_search_duration_seconds",
					Help:    "Hybrid search duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			observationsTotal: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "memory_observations_total",
					Help: "Total stored observations.",
				},
			),
			timelineDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_timeline_duration_seconds",
					Help:    "Timeline query duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			embeddingsGenerated: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "memory_embeddings_generated_total",
					Help: "Total embeddings generated (dedup hits skip generation).",
				},
			),
		}

		prometheus.MustRegister(
			m.storeTotal,
			m.storeDuration,
			m.searchTotal,
			m.searchDuration,
			m.observationsTotal,
			m.timelineDuration,
			m.embeddingsGenerated,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordMemoryStore(duration time.Duration, deduplicated bool) {
	m := getMetrics()
	outcome := "stored"
	if deduplicated {
		outcome = "deduplicated"
	} else {
		m.embeddingsGenerated.Inc()
	}
	m.storeTotal.WithLabelValues(outcome).Inc()
	m.storeDuration.Observe(duration.Seconds())
}

func RecordMemorySearch(duration time.Duration, mode string) {
	m := getMetrics()
	m.searchTotal.WithLabelValues(mode).Inc()
	m.searchDuration.Observe(duration.Seconds())
}

func RecordTimeline(duration time.Duration) {
	m := getMetrics()
	m.timelineDuration.Observe(duration.Seconds())
}

func SetObservations(total int) {
	m := getMetrics()
	m.observationsTotal.Set(float64(total))
}
