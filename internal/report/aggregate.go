// Package report rolls a month of recommendations up into outcome statistics.
package report

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rankwise/internal/model"
	"github.com/sells-group/rankwise/internal/store"
)

// MonthFormat is the layout of MonthlyReport.Month.
const MonthFormat = "2006-01"

// RecommendationLister is the read-only store surface the aggregator needs.
type RecommendationLister interface {
	ListRecommendations(ctx context.Context, f store.RecommendationFilter) ([]model.Recommendation, error)
}

// Aggregator builds monthly reports.
type Aggregator struct {
	store RecommendationLister
}

// NewAggregator creates an Aggregator backed by st.
func NewAggregator(st RecommendationLister) *Aggregator {
	return &Aggregator{store: st}
}

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PriorMonth returns the first day of the month before the one holding t.
func PriorMonth(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, -1, 0)
}

// ParseMonth parses a YYYY-MM string.
func ParseMonth(s string) (time.Time, error) {
	m, err := time.Parse(MonthFormat, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "report: parse month %q", s)
	}
	return m, nil
}

// Build aggregates every recommendation dated within the month holding month.
func (a *Aggregator) Build(ctx context.Context, month time.Time) (*model.MonthlyReport, error) {
	from := MonthStart(month)
	to := from.AddDate(0, 1, 0)

	recs, err := a.store.ListRecommendations(ctx, store.RecommendationFilter{From: from, To: to})
	if err != nil {
		return nil, eris.Wrapf(err, "report: list recommendations for %s", from.Format(MonthFormat))
	}

	r := Aggregate(from, recs)
	zap.L().Info("report: monthly report built",
		zap.String("month", r.Month),
		zap.Int("tenants", len(r.Tenants)),
		zap.Int("total", r.Overall.Total),
	)
	return r, nil
}

// Aggregate computes per-tenant and overall statistics for recs.
func Aggregate(month time.Time, recs []model.Recommendation) *model.MonthlyReport {
	byTenant := make(map[string]*model.TenantMonthlyStats)
	overall := model.TenantMonthlyStats{}

	for _, rec := range recs {
		ts, ok := byTenant[rec.TenantID]
		if !ok {
			ts = &model.TenantMonthlyStats{TenantID: rec.TenantID}
			byTenant[rec.TenantID] = ts
		}
		tally(ts, rec)
		tally(&overall, rec)
	}

	report := &model.MonthlyReport{
		Month:   MonthStart(month).Format(MonthFormat),
		Tenants: make([]model.TenantMonthlyStats, 0, len(byTenant)),
	}
	for _, ts := range byTenant {
		ts.SuccessRate = SuccessRate(ts.Successes, ts.Evaluated)
		report.Tenants = append(report.Tenants, *ts)
	}
	sort.Slice(report.Tenants, func(i, j int) bool {
		return report.Tenants[i].TenantID < report.Tenants[j].TenantID
	})

	overall.SuccessRate = SuccessRate(overall.Successes, overall.Evaluated)
	report.Overall = overall
	return report
}

func tally(ts *model.TenantMonthlyStats, rec model.Recommendation) {
	ts.Total++
	if rec.Status == model.RecommendationAccepted {
		ts.Accepted++
	}
	if rec.FeedbackResult != nil {
		ts.Evaluated++
		if rec.FeedbackResult.Success() {
			ts.Successes++
		}
	}
}

// SuccessRate returns successes/evaluated as a whole percentage, 0 when
// nothing was evaluated.
func SuccessRate(successes, evaluated int) int {
	if evaluated == 0 {
		return 0
	}
	return int(math.Round(float64(successes) / float64(evaluated) * 100))
}
