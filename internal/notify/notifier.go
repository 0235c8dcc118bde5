// Package notify delivers run summaries and monthly reports to external sinks.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/rankwise/internal/model"
)

// Notifier receives the end-of-run summary and the monthly report.
type Notifier interface {
	Notify(ctx context.Context, summary *model.RunSummary) error
	NotifyMonthly(ctx context.Context, report *model.MonthlyReport) error
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, summary *model.RunSummary) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyMonthly implements Notifier.
func (m Multi) NotifyMonthly(ctx context.Context, report *model.MonthlyReport) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyMonthly(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes summaries to the global zap logger.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(_ context.Context, s *model.RunSummary) error {
	zap.L().Info("notify: run summary",
		zap.String("run_id", s.RunID),
		zap.String("run_date", s.RunDate),
		zap.Int("accounts", s.Accounts),
		zap.Int("keywords", s.Keywords),
		zap.Int("recommendations", s.Recommendations),
		zap.Int("grade_changes", len(s.GradeChanges)),
		zap.Int("failed_tenants", s.FailedTenants),
		zap.Int("persistence_failures", s.Failures.Persistence),
		zap.Int("data_gaps", s.Failures.DataGaps),
		zap.Int("external_failures", s.Failures.External),
		zap.Int64("duration_ms", s.DurationMs),
	)
	for _, a := range Evaluate(s) {
		zap.L().Warn("notify: "+a.Message, zap.String("type", string(a.Type)), zap.String("severity", a.Severity))
	}
	return nil
}

// NotifyMonthly implements Notifier.
func (LogNotifier) NotifyMonthly(_ context.Context, r *model.MonthlyReport) error {
	zap.L().Info("notify: monthly report",
		zap.String("month", r.Month),
		zap.Int("tenants", len(r.Tenants)),
		zap.Int("total", r.Overall.Total),
		zap.Int("accepted", r.Overall.Accepted),
		zap.Int("evaluated", r.Overall.Evaluated),
		zap.Int("success_rate", r.Overall.SuccessRate),
	)
	return nil
}
