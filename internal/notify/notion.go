package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rankwise/internal/model"
	"github.com/sells-group/rankwise/pkg/notion"
)

// NotionNotifier records each run and each monthly report as one row of a
// Notion database. Reruns for the same date update the existing row.
type NotionNotifier struct {
	client    notion.Client
	summaryDB string
	reportDB  string
}

// NewNotionNotifier creates a NotionNotifier. An empty database id disables
// that half of the notifier.
func NewNotionNotifier(c notion.Client, summaryDB, reportDB string) *NotionNotifier {
	return &NotionNotifier{client: c, summaryDB: summaryDB, reportDB: reportDB}
}

// Notify implements Notifier.
func (n *NotionNotifier) Notify(ctx context.Context, s *model.RunSummary) error {
	if n.summaryDB == "" {
		return nil
	}
	props := notionapi.Properties{
		"Name":                 notion.Title("Run " + s.RunDate),
		"Run ID":               notion.Text(s.RunID),
		"Accounts":             notion.Number(float64(s.Accounts)),
		"Keywords":             notion.Number(float64(s.Keywords)),
		"Recommendations":      notion.Number(float64(s.Recommendations)),
		"Grade Changes":        notion.Number(float64(len(s.GradeChanges))),
		"Failed Tenants":       notion.Number(float64(s.FailedTenants)),
		"Persistence Failures": notion.Number(float64(s.Failures.Persistence)),
		"Data Gaps":            notion.Number(float64(s.Failures.DataGaps)),
		"External Failures":    notion.Number(float64(s.Failures.External)),
		"Changes":              notion.Text(gradeChangeText(s.GradeChanges)),
	}
	if d, err := time.Parse(time.DateOnly, s.RunDate); err == nil {
		props["Date"] = notion.Date(d)
	}

	if _, err := notion.UpsertRow(ctx, n.client, n.summaryDB, "run:"+s.RunDate, props); err != nil {
		return eris.Wrapf(err, "notify: notion run summary %s", s.RunDate)
	}
	return nil
}

// NotifyMonthly implements Notifier.
func (n *NotionNotifier) NotifyMonthly(ctx context.Context, r *model.MonthlyReport) error {
	if n.reportDB == "" {
		return nil
	}
	props := notionapi.Properties{
		"Name":         notion.Title("Report " + r.Month),
		"Total":        notion.Number(float64(r.Overall.Total)),
		"Accepted":     notion.Number(float64(r.Overall.Accepted)),
		"Evaluated":    notion.Number(float64(r.Overall.Evaluated)),
		"Successes":    notion.Number(float64(r.Overall.Successes)),
		"Success Rate": notion.Number(float64(r.Overall.SuccessRate)),
		"Tenants":      notion.Text(tenantStatsText(r.Tenants)),
	}
	if m, err := time.Parse("2006-01", r.Month); err == nil {
		props["Date"] = notion.Date(m)
	}

	if _, err := notion.UpsertRow(ctx, n.client, n.reportDB, "report:"+r.Month, props); err != nil {
		return eris.Wrapf(err, "notify: notion monthly report %s", r.Month)
	}
	return nil
}

func gradeChangeText(changes []model.GradeChange) string {
	lines := make([]string, 0, len(changes))
	for _, c := range changes {
		lines = append(lines, fmt.Sprintf("%s: %s -> %s (%.1f)", c.AccountName, c.Prev, c.Curr, c.Score))
	}
	return strings.Join(lines, "\n")
}

func tenantStatsText(stats []model.TenantMonthlyStats) string {
	lines := make([]string, 0, len(stats))
	for _, s := range stats {
		lines = append(lines, fmt.Sprintf("%s: %d recs, %d accepted, %d%% success", s.TenantID, s.Total, s.Accepted, s.SuccessRate))
	}
	return strings.Join(lines, "\n")
}
