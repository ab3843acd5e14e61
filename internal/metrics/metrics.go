// Package metrics exposes planning and execution counters. Values are
// collected in the default registry and can be written to a node-exporter
// textfile at the end of a run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PlannedActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nestmig_planned_actions_total",
		Help: "Actions registered in migration plans, by kind",
	}, []string{"kind"})

	ConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nestmig_conflict_retries_total",
		Help: "Target renames attempted while resolving conflicts",
	})

	ResolutionFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nestmig_resolution_fallbacks_total",
		Help: "Items kept in place because they could not be read while planning",
	})

	Overrides = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nestmig_overrides_total",
		Help: "Preference and right overrides computed, by kind",
	}, []string{"kind"})

	ExecutedActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nestmig_executed_actions_total",
		Help: "Actions visited by the executor, by outcome",
	}, []string{"outcome"})

	ExecuteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nestmig_action_duration_seconds",
		Help:    "Time spent applying a single action",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	LastPlanSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nestmig_last_plan_actions",
		Help: "Number of actions in the most recently built plan",
	})
)

// WriteFile writes all registered metrics to path in text exposition format
func WriteFile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
