// Package metrics exposes prometheus counters and histograms for engine runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/rankwise/internal/model"
)

var (
	Runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rankwise_runs_total",
		Help: "Engine runs by final status",
	}, []string{"status"})
	TenantFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rankwise_tenant_failures_total",
		Help: "Tenants whose stages aborted during a run",
	})
	EntityFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rankwise_entity_failures_total",
		Help: "Recoverable per-entity failures by kind",
	}, []string{"kind"})
	Recommendations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rankwise_recommendations_total",
		Help: "Recommendation rows written",
	})
	GradeChanges = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rankwise_grade_changes_total",
		Help: "Account grade changes detected",
	})
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rankwise_stage_duration_seconds",
		Help:    "Per-tenant stage duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(Runs, TenantFailures, EntityFailures, Recommendations, GradeChanges, StageDuration)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveStage records how long a stage took since start.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordSummary folds a finished run into the counters.
func RecordSummary(s *model.RunSummary) {
	Runs.WithLabelValues(string(model.RunStatusComplete)).Inc()
	TenantFailures.Add(float64(s.FailedTenants))
	EntityFailures.WithLabelValues("persistence").Add(float64(s.Failures.Persistence))
	EntityFailures.WithLabelValues("data_gap").Add(float64(s.Failures.DataGaps))
	EntityFailures.WithLabelValues("external").Add(float64(s.Failures.External))
	Recommendations.Add(float64(s.Recommendations))
	GradeChanges.Add(float64(len(s.GradeChanges)))
}

// RecordFailedRun counts a run that aborted before completing.
func RecordFailedRun() {
	Runs.WithLabelValues(string(model.RunStatusFailed)).Inc()
}
