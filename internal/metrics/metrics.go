package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsync",
			Name:      "sync_runs_total",
			Help:      "Sync task executions by category and outcome.",
		},
		[]string{"category", "outcome"},
	)

	syncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finsync",
			Name:      "sync_duration_seconds",
			Help:      "Duration of sync task executions.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsync",
			Name:      "sync_retries_total",
			Help:      "Retry attempts scheduled per category.",
		},
		[]string{"category"},
	)

	conflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsync",
			Name:      "conflicts_total",
			Help:      "Detected conflicts by type and resolution.",
		},
		[]string{"type", "resolution"},
	)

	activeTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "finsync",
			Name:      "active_tasks",
			Help:      "Number of registered sync tasks.",
		},
	)

	inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "finsync",
			Name:      "in_flight_executions",
			Help:      "Executor runs currently in flight.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(syncRuns, syncDuration, retries, conflicts, activeTasks, inFlight)
	})
}

// ObserveSyncRun records one finished execution.
func ObserveSyncRun(category, outcome string, elapsed time.Duration) {
	syncRuns.WithLabelValues(category, outcome).Inc()
	syncDuration.WithLabelValues(category).Observe(elapsed.Seconds())
}

// IncRetry counts a scheduled retry for a category.
func IncRetry(category string) {
	retries.WithLabelValues(category).Inc()
}

// IncConflict counts a resolved conflict.
func IncConflict(conflictType, resolution string) {
	conflicts.WithLabelValues(conflictType, resolution).Inc()
}

// SetActiveTasks tracks the registry size.
func SetActiveTasks(n int) {
	activeTasks.Set(float64(n))
}

// SetInFlight tracks concurrent executor runs.
func SetInFlight(n int) {
	inFlight.Set(float64(n))
}
