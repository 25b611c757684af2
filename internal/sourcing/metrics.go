package sourcing

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcing_requests_total",
		Help: "Sourcing requests by strategy and outcome",
	}, []string{"strategy", "outcome"})

	promRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sourcing_request_seconds",
		Help:    "End-to-end sourcing latency",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"strategy"})

	promPlansEmpty = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sourcing_empty_plans_total",
		Help: "Order lines that produced no allocations",
	})

	promStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sourcing_stage_seconds",
		Help:    "Per-stage latency inside the sourcing pipeline",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"stage"})
)

func recordRequest(strategy, outcome string, elapsed time.Duration) {
	promRequests.WithLabelValues(strategy, outcome).Inc()
	promRequestDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

func recordStage(stage string, elapsed time.Duration) {
	promStageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}
