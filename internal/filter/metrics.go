package filter

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fulfilld/sourcing-service/internal/model"
)

var (
	promExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcing_filter_executions_total",
		Help: "Filter evaluations by outcome (precomputed, computed, error)",
	}, []string{"outcome"})

	promDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sourcing_filter_execution_seconds",
		Help:    "Filter evaluation latency",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .2, .5, 1, 2},
	})

	promRuleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcing_filter_rule_errors_total",
		Help: "Per-location rule evaluation errors by filter",
	}, []string{"filter_id"})
)

// ruleCounters accumulates one filter's evaluation history.
type ruleCounters struct {
	executions      int64
	timeMs          int64
	precomputedHits int64
	computed        int64
	errors          int64
}

// metrics tracks engine counters, in aggregate and per filter. The atomic
// fields back the aggregate snapshot on the hot path; the per-filter map
// sits behind a mutex. The prometheus series mirror the aggregates for
// scraping.
type metrics struct {
	totalExecutions    atomic.Int64
	totalTimeMs        atomic.Int64
	precomputedHits    atomic.Int64
	computedExecutions atomic.Int64
	errors             atomic.Int64

	mu      sync.Mutex
	perRule map[string]*ruleCounters
}

func (m *metrics) rule(filterID string) *ruleCounters {
	if m.perRule == nil {
		m.perRule = make(map[string]*ruleCounters)
	}
	rc, ok := m.perRule[filterID]
	if !ok {
		rc = &ruleCounters{}
		m.perRule[filterID] = rc
	}
	return rc
}

func (m *metrics) recordPrecomputedHit(filterID string, elapsed time.Duration) {
	m.totalExecutions.Add(1)
	m.totalTimeMs.Add(elapsed.Milliseconds())
	m.precomputedHits.Add(1)

	m.mu.Lock()
	rc := m.rule(filterID)
	rc.executions++
	rc.timeMs += elapsed.Milliseconds()
	rc.precomputedHits++
	m.mu.Unlock()

	promExecutions.WithLabelValues("precomputed").Inc()
	promDuration.Observe(elapsed.Seconds())
}

func (m *metrics) recordComputed(filterID string, elapsed time.Duration) {
	m.totalExecutions.Add(1)
	m.totalTimeMs.Add(elapsed.Milliseconds())
	m.computedExecutions.Add(1)

	m.mu.Lock()
	rc := m.rule(filterID)
	rc.executions++
	rc.timeMs += elapsed.Milliseconds()
	rc.computed++
	m.mu.Unlock()

	promExecutions.WithLabelValues("computed").Inc()
	promDuration.Observe(elapsed.Seconds())
}

func (m *metrics) recordError(filterID string, elapsed time.Duration) {
	m.totalExecutions.Add(1)
	m.totalTimeMs.Add(elapsed.Milliseconds())
	m.errors.Add(1)

	m.mu.Lock()
	rc := m.rule(filterID)
	rc.executions++
	rc.timeMs += elapsed.Milliseconds()
	rc.errors++
	m.mu.Unlock()

	promExecutions.WithLabelValues("error").Inc()
	promDuration.Observe(elapsed.Seconds())
}

func (m *metrics) recordRuleError(filterID string) {
	promRuleErrors.WithLabelValues(filterID).Inc()
}

func (m *metrics) snapshot() model.FilterMetricsSnapshot {
	s := model.FilterMetricsSnapshot{
		TotalExecutions:    m.totalExecutions.Load(),
		TotalTimeMs:        m.totalTimeMs.Load(),
		PrecomputedHits:    m.precomputedHits.Load(),
		ComputedExecutions: m.computedExecutions.Load(),
		Errors:             m.errors.Load(),
	}
	if s.TotalExecutions > 0 {
		s.AverageExecutionTime = float64(s.TotalTimeMs) / float64(s.TotalExecutions)
		s.CacheHitRate = float64(s.PrecomputedHits) / float64(s.TotalExecutions)
	}

	m.mu.Lock()
	if len(m.perRule) > 0 {
		s.Filters = make(map[string]model.FilterRuleMetrics, len(m.perRule))
		for id, rc := range m.perRule {
			fm := model.FilterRuleMetrics{
				Executions:         rc.executions,
				TotalTimeMs:        rc.timeMs,
				PrecomputedHits:    rc.precomputedHits,
				ComputedExecutions: rc.computed,
				Errors:             rc.errors,
			}
			if fm.Executions > 0 {
				fm.AverageExecutionTime = float64(fm.TotalTimeMs) / float64(fm.Executions)
			}
			s.Filters[id] = fm
		}
	}
	m.mu.Unlock()
	return s
}
