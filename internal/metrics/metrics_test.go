package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sells-group/rankwise/internal/model"
)

func TestMetricsExposure(t *testing.T) {
	RecordSummary(&model.RunSummary{
		Recommendations: 4,
		FailedTenants:   1,
		Failures:        model.Failures{Persistence: 1, DataGaps: 2},
		GradeChanges:    []model.GradeChange{{AccountID: "a1"}},
	})
	RecordFailedRun()
	ObserveStage("accounts", time.Now().Add(-1500*time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		`rankwise_runs_total{status="complete"}`,
		`rankwise_runs_total{status="failed"}`,
		"rankwise_tenant_failures_total",
		`rankwise_entity_failures_total{kind="data_gap"}`,
		"rankwise_recommendations_total",
		"rankwise_grade_changes_total",
		`rankwise_stage_duration_seconds_bucket{stage="accounts"`,
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}
