package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	IncomingMessages *prometheus.CounterVec
	OutgoingMessages *prometheus.CounterVec
	IntentsRouted    *prometheus.CounterVec
	RateLimited      prometheus.Counter
	GeminiRequests   *prometheus.CounterVec
	GeminiLatency    *prometheus.HistogramVec
	SearchDuration   prometheus.Histogram
	SnapshotDuration prometheus.Histogram
	SnapshotQueries  *prometheus.CounterVec
	EventWriteErrors *prometheus.CounterVec
	Errors           *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			IncomingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "incoming_messages_total",
				Help:      "Total inbound chat messages processed.",
			}, []string{"kind"}),
			OutgoingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outgoing_messages_total",
				Help:      "Total replies sent back to users.",
			}, []string{"kind"}),
			IntentsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intents_routed_total",
				Help:      "Total messages dispatched by classified intent.",
			}, []string{"intent"}),
			RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Total messages rejected by the per-user rate limiter.",
			}),
			GeminiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gemini_requests_total",
				Help:      "Total Gemini API requests by operation and outcome.",
			}, []string{"op", "status"}),
			GeminiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gemini_request_duration_seconds",
				Help:      "Latency distribution for Gemini API calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op", "status"}),
			SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "catalog_search_duration_seconds",
				Help:      "Latency distribution for catalog searches.",
				Buckets:   prometheus.DefBuckets,
			}),
			SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stats_snapshot_duration_seconds",
				Help:      "Latency distribution for dashboard snapshot computation.",
				Buckets:   prometheus.DefBuckets,
			}),
			SnapshotQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stats_snapshot_queries_total",
				Help:      "Snapshot sub-query outcomes by name.",
			}, []string{"query", "outcome"}),
			EventWriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_write_errors_total",
				Help:      "Analytics and log writes dropped after a storage error.",
			}, []string{"event"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.IncomingMessages,
			metricsInstance.OutgoingMessages,
			metricsInstance.IntentsRouted,
			metricsInstance.RateLimited,
			metricsInstance.GeminiRequests,
			metricsInstance.GeminiLatency,
			metricsInstance.SearchDuration,
			metricsInstance.SnapshotDuration,
			metricsInstance.SnapshotQueries,
			metricsInstance.EventWriteErrors,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
