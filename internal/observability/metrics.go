package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// alert check cycle.
type Metrics struct {
	RunsTotal       prometheus.Counter
	RunDuration     prometheus.Histogram
	StationsInBatch prometheus.Histogram

	// Reading fetch metrics.
	ReadingCache  *prometheus.CounterVec // labels: result={hit,miss}
	FetchRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	FetchDuration prometheus.Histogram

	// Notification metrics.
	NotificationsSent    *prometheus.CounterVec // labels: platform, kind={alert,improved,benzene}
	NotificationsSkipped *prometheus.CounterVec // labels: reason={hours,cooldown}
	DeliveryFailures     *prometheus.CounterVec // labels: platform, permanent={true,false}
	SubscribersResolved  prometheus.Histogram

	StoreErrors prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.StationsInBatch,
		m.ReadingCache,
		m.FetchRequests,
		m.FetchDuration,
		m.NotificationsSent,
		m.NotificationsSkipped,
		m.DeliveryFailures,
		m.SubscribersResolved,
		m.StoreErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "air_alert",
			Name:      "runs_total",
			Help:      "Total alert check invocations.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "air_alert",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete check cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		StationsInBatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "air_alert",
			Name:      "stations_in_batch",
			Help:      "Number of stations assigned to one invocation.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 200},
		}),
		ReadingCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "air_alert",
			Name:      "reading_cache_total",
			Help:      "Reading cache lookups by result.",
		}, []string{"result"}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "air_alert",
			Name:      "fetch_requests_total",
			Help:      "Station reading fetches by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "air_alert",
			Name:      "fetch_duration_seconds",
			Help:      "Envista latest-channels request duration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "air_alert",
			Name:      "notifications_sent_total",
			Help:      "Delivered notifications by platform and kind.",
		}, []string{"platform", "kind"}),
		NotificationsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "air_alert",
			Name:      "notifications_skipped_total",
			Help:      "Suppressed notifications by reason.",
		}, []string{"reason"}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "air_alert",
			Name:      "delivery_failures_total",
			Help:      "Failed sends by platform; permanent failures deactivate the subscriber.",
		}, []string{"platform", "permanent"}),
		SubscribersResolved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "air_alert",
			Name:      "subscribers_resolved",
			Help:      "Candidate subscribers per station after de-duplication.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "air_alert",
			Name:      "store_errors_total",
			Help:      "Key-value store operation failures.",
		}),
	}
}
