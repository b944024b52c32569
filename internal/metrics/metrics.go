// Package metrics provides Prometheus collectors for the discovery worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gigalert_discovery_cycles_total",
		Help: "Total number of completed discovery cycles",
	})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gigalert_discovery_cycle_duration_seconds",
		Help:    "Duration of discovery cycles",
		Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
	})

	pageFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gigalert_page_fetch_total",
		Help: "Listing page fetch attempts by outcome",
	}, []string{"status"})

	listingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gigalert_listings_total",
		Help: "Listings processed by outcome (matched, recorded, duplicate, store_error)",
	}, []string{"outcome"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gigalert_notifications_total",
		Help: "Outbound notifications by status",
	}, []string{"status"})

	listingsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gigalert_listings_purged_total",
		Help: "Listings deleted by the retention reaper",
	})

	workerRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gigalert_worker_running",
		Help: "1 while the discovery loop is running, 0 otherwise",
	})
)

// RecordCycle records a finished cycle and its duration in seconds.
func RecordCycle(seconds float64) {
	cyclesTotal.Inc()
	cycleDuration.Observe(seconds)
}

// RecordPageFetch records a page fetch outcome ("ok" or "error").
func RecordPageFetch(status string) {
	pageFetchTotal.WithLabelValues(status).Inc()
}

// RecordListing records a per-listing outcome.
func RecordListing(outcome string) {
	listingsTotal.WithLabelValues(outcome).Inc()
}

// RecordNotification records a send outcome ("sent" or "failed").
func RecordNotification(status string) {
	notificationsTotal.WithLabelValues(status).Inc()
}

// RecordPurge adds n purged listings.
func RecordPurge(n int64) {
	listingsPurged.Add(float64(n))
}

// SetWorkerRunning toggles the running gauge.
func SetWorkerRunning(running bool) {
	if running {
		workerRunning.Set(1)
		return
	}
	workerRunning.Set(0)
}
