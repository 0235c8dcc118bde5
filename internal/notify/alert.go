package notify

import (
	"fmt"

	"github.com/sells-group/rankwise/internal/model"
)

// AlertType identifies the kind of alert raised from a run summary.
type AlertType string

const (
	AlertTenantFailure      AlertType = "tenant_failure"
	AlertPersistenceFailure AlertType = "persistence_failure"
	AlertExternalFailure    AlertType = "external_failure"
)

// Alert flags a run that completed with degraded output.
type Alert struct {
	Type     AlertType      `json:"type"`
	Severity string         `json:"severity"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// Evaluate returns the alerts raised by a run summary. A clean run yields none.
func Evaluate(s *model.RunSummary) []Alert {
	var alerts []Alert

	if s.FailedTenants > 0 {
		var ids []string
		for _, t := range s.Tenants {
			if t.Error != "" {
				ids = append(ids, t.TenantID)
			}
		}
		alerts = append(alerts, Alert{
			Type:     AlertTenantFailure,
			Severity: "high",
			Message:  fmt.Sprintf("%d of %d tenant(s) aborted on %s", s.FailedTenants, len(s.Tenants), s.RunDate),
			Details:  map[string]any{"tenant_ids": ids},
		})
	}

	if s.Failures.Persistence > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertPersistenceFailure,
			Severity: "high",
			Message:  fmt.Sprintf("%d row(s) failed to persist on %s", s.Failures.Persistence, s.RunDate),
			Details:  map[string]any{"count": s.Failures.Persistence},
		})
	}

	if s.Failures.External > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertExternalFailure,
			Severity: "low",
			Message:  fmt.Sprintf("%d volume lookup(s) fell back to stored values on %s", s.Failures.External, s.RunDate),
			Details:  map[string]any{"count": s.Failures.External},
		})
	}

	return alerts
}
