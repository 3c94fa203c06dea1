// Package metrics exposes Prometheus collectors for request-queue
// coordinators, labeled by queue id so a single process metrics-monitoring
// multiple queues can distinguish them.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	headWindowSize      *prometheus.GaugeVec
	inProgressCount     *prometheus.GaugeVec
	assumedTotalCount   *prometheus.GaugeVec
	assumedHandledCount *prometheus.GaugeVec
	fetchNextDuration   *prometheus.HistogramVec
	operationsTotal     *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors. Safe to call more
// than once; only the first call registers anything.
func Init() {
	once.Do(func() {
		headWindowSize = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rqueue_head_window_size",
				Help: "Number of request ids currently buffered in the local head window.",
			},
			[]string{"queue_id"},
		)

		inProgressCount = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rqueue_in_progress_count",
				Help: "Number of requests dispatched via fetchNext but not yet handled or reclaimed.",
			},
			[]string{"queue_id"},
		)

		assumedTotalCount = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rqueue_assumed_total_count",
				Help: "Advisory local estimate of the total number of requests added.",
			},
			[]string{"queue_id"},
		)

		assumedHandledCount = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rqueue_assumed_handled_count",
				Help: "Advisory local estimate of the number of requests handled.",
			},
			[]string{"queue_id"},
		)

		fetchNextDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rqueue_fetch_next_duration_seconds",
				Help:    "Latency of fetchNext calls, including any head-window refill.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"queue_id"},
		)

		operationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rqueue_operations_total",
				Help: "Total coordinator operations, labeled by operation and outcome.",
			},
			[]string{"queue_id", "operation", "outcome"},
		)
	})
}

// ObserveStats publishes a coordinator stats snapshot under queueID.
// Safe to call even if Init was never called; it is then a no-op.
func ObserveStats(queueID string, headWindow, inProgress int, assumedTotal, assumedHandled int64) {
	if headWindowSize == nil {
		return
	}
	headWindowSize.WithLabelValues(queueID).Set(float64(headWindow))
	inProgressCount.WithLabelValues(queueID).Set(float64(inProgress))
	assumedTotalCount.WithLabelValues(queueID).Set(float64(assumedTotal))
	assumedHandledCount.WithLabelValues(queueID).Set(float64(assumedHandled))
}

// ObserveFetchNext records the latency of a fetchNext call.
func ObserveFetchNext(queueID string, seconds float64) {
	if fetchNextDuration == nil {
		return
	}
	fetchNextDuration.WithLabelValues(queueID).Observe(seconds)
}

// IncOperation counts one coordinator operation outcome.
func IncOperation(queueID, operation, outcome string) {
	if operationsTotal == nil {
		return
	}
	operationsTotal.WithLabelValues(queueID, operation, outcome).Inc()
}
