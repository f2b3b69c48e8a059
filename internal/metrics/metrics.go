// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvesterTasksTotal          *prometheus.CounterVec
	harvesterFetchDurationSecs   prometheus.Histogram
	harvesterInflightFetches     prometheus.Gauge
	harvesterCheckpointsTotal    *prometheus.CounterVec
	harvesterTasksCompletedGauge prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvesterTasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_tasks_total",
				Help: "Total enrichment tasks resolved, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		harvesterFetchDurationSecs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_fetch_duration_seconds",
				Help:    "Histogram of detail-page fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		harvesterInflightFetches = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_inflight_fetches",
				Help: "Number of detail fetches currently in flight.",
			},
		)

		harvesterCheckpointsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_checkpoints_total",
				Help: "Total checkpoint save attempts, labeled by status.",
			},
			[]string{"status"},
		)

		harvesterTasksCompletedGauge = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_tasks_completed",
				Help: "Resolved task count for the current run.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTask increments the task counter for the given outcome and
// records fetch latency.
func ObserveTask(outcome string, completed int64, dur time.Duration) {
	harvesterTasksTotal.WithLabelValues(outcome).Inc()
	harvesterTasksCompletedGauge.Set(float64(completed))
	if dur > 0 {
		harvesterFetchDurationSecs.Observe(dur.Seconds())
	}
}

// ObserveCheckpoint increments the checkpoint counter for the given status.
func ObserveCheckpoint(status string) {
	harvesterCheckpointsTotal.WithLabelValues(status).Inc()
}

// IncInflightFetches increments the in-flight fetch gauge.
func IncInflightFetches() {
	harvesterInflightFetches.Inc()
}

// DecInflightFetches decrements the in-flight fetch gauge.
func DecInflightFetches() {
	harvesterInflightFetches.Dec()
}
