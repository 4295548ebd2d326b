package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geocoder"

// Metrics holds the Prometheus counters, histograms, and gauges for the geocode queues.
type Metrics struct {
	// Lookup metrics.
	GeocodeRequests *prometheus.CounterVec // labels: queue, outcome={success,empty,unsupported,cancelled,transport,error}
	GeocodeCache    *prometheus.CounterVec // labels: queue, result={hit,miss}

	// Queue metrics.
	QueueActive        *prometheus.GaugeVec     // labels: queue
	QueuePending       *prometheus.GaugeVec     // labels: queue
	QueueWait          *prometheus.HistogramVec // labels: queue
	TransportDuration  *prometheus.HistogramVec // labels: queue
	DispatchesRejected *prometheus.CounterVec   // labels: queue

	// Result publishing.
	ResultsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.GeocodeRequests,
		m.GeocodeCache,
		m.QueueActive,
		m.QueuePending,
		m.QueueWait,
		m.TransportDuration,
		m.DispatchesRejected,
		m.ResultsPublished,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      help("Completed lookups by queue and outcome."),
		}, []string{"queue", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_total",
			Help:      help("Result cache lookups by queue and result."),
		}, []string{"queue", "result"}),
		QueueActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_active",
			Help:      help("Entries with a transport call in flight."),
		}, []string{"queue"}),
		QueuePending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_pending",
			Help:      help("Entries waiting for a concurrency slot."),
		}, []string{"queue"}),
		QueueWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_wait_seconds",
			Help:      help("Time from enqueue to dispatch."),
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"queue"}),
		TransportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transport_duration_seconds",
			Help:      help("Provider request duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"queue"}),
		DispatchesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_rejected_total",
			Help:      help("Entries completed without a transport call because no URL could be built."),
		}, []string{"queue"}),
		ResultsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_published_total",
			Help:      help("Resolved lookups written to the results topic."),
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      help("Failed writes to the results topic."),
		}),
	}
}
