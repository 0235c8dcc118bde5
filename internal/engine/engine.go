// Package engine runs the daily grading and matching batch across tenants.
package engine

import (
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rankwise/internal/metrics"
	"github.com/sells-group/rankwise/internal/model"
	"github.com/sells-group/rankwise/internal/notify"
	"github.com/sells-group/rankwise/internal/report"
	"github.com/sells-group/rankwise/internal/store"
	"github.com/sells-group/rankwise/internal/volume"
	"github.com/sells-group/rankwise/internal/weights"
)

// Stage names used in logs, metrics and TenantResult errors.
const (
	StageAccounts = "accounts"
	StageKeywords = "keywords"
	StageMatch    = "match"
)

// RunRequest parameterizes one engine run.
type RunRequest struct {
	Date         time.Time // run date; zero means today (UTC)
	TenantIDs    []string  // empty means every active tenant
	Concurrency  int       // overrides the orchestrator default when > 0
	ForceMonthly bool      // build the prior-month report regardless of date
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets the sink for run summaries and monthly reports.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithVolumeProvider enables live search-volume refresh during keyword grading.
func WithVolumeProvider(p volume.Provider) Option {
	return func(o *Orchestrator) { o.volume = p }
}

// WithConcurrency sets how many tenants are processed at once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithKeywordWorkers bounds the per-tenant keyword fan-out.
func WithKeywordWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.keywordWorkers = n
		}
	}
}

// WithMonthlyReportDay sets the day of the month on which the prior month's
// report is built. Days outside 1..28 are ignored.
func WithMonthlyReportDay(day int) Option {
	return func(o *Orchestrator) {
		if day >= 1 && day <= 28 {
			o.monthlyDay = day
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator sequences the grading stages for each tenant of a run.
type Orchestrator struct {
	store          store.Store
	weights        weights.Source
	notifier       notify.Notifier
	volume         volume.Provider
	concurrency    int
	keywordWorkers int
	monthlyDay     int
	now            func() time.Time
}

// New creates an Orchestrator. Weights are fetched from src at the start of
// every run.
func New(st store.Store, src weights.Source, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:          st,
		weights:        src,
		notifier:       notify.LogNotifier{},
		concurrency:    1,
		keywordWorkers: 4,
		monthlyDay:     1,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run starts a run-log entry and executes the run to completion.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*model.RunSummary, error) {
	entry, err := o.Start(ctx, req.Date)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, entry, req)
}

// Start records a running entry in the run log. A zero date means today.
func (o *Orchestrator) Start(ctx context.Context, date time.Time) (*model.RunLogEntry, error) {
	if date.IsZero() {
		date = o.now()
	}
	entry, err := o.store.StartRun(ctx, model.Day(date))
	if err != nil {
		return nil, eris.Wrap(err, "engine: start run")
	}
	return entry, nil
}

// Execute performs the run recorded by entry. A weight document that fails to
// load aborts the run before any tenant work and is returned to the caller.
// Tenant failures are recorded in the summary and never returned.
func (o *Orchestrator) Execute(ctx context.Context, entry *model.RunLogEntry, req RunRequest) (*model.RunSummary, error) {
	start := o.now()
	asOf := model.Day(entry.RunDate)
	log := zap.L().With(
		zap.String("component", "engine"),
		zap.String("run_id", entry.ID),
		zap.String("run_date", asOf.Format(time.DateOnly)),
	)

	w, _, err := weights.Load(ctx, o.weights)
	if err != nil {
		o.fail(ctx, log, entry.ID, err)
		return nil, err
	}

	tenants, err := o.selectTenants(ctx, req.TenantIDs)
	if err != nil {
		o.fail(ctx, log, entry.ID, err)
		return nil, err
	}
	log.Info("engine: run started", zap.Int("tenants", len(tenants)), zap.String("weights_hash", weights.Hash(w)))

	concurrency := o.concurrency
	if req.Concurrency > 0 {
		concurrency = req.Concurrency
	}

	outcomes := make([]tenantOutcome, len(tenants))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, t := range tenants {
		g.Go(func() error {
			outcomes[i] = o.runTenant(gCtx, w, t, asOf)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		err = eris.Wrap(err, "engine: run cancelled")
		o.fail(ctx, log, entry.ID, err)
		return nil, err
	}

	summary := summarize(entry, w, outcomes)
	summary.DurationMs = o.now().Sub(start).Milliseconds()

	var runErr error
	if err := o.store.CompleteRun(ctx, entry.ID, summary); err != nil {
		log.Error("engine: failed to complete run log", zap.Error(err))
		runErr = eris.Wrap(err, "engine: complete run")
	}
	metrics.RecordSummary(summary)

	log.Info("engine: run complete",
		zap.Int("accounts", summary.Accounts),
		zap.Int("keywords", summary.Keywords),
		zap.Int("recommendations", summary.Recommendations),
		zap.Int("grade_changes", len(summary.GradeChanges)),
		zap.Int("failed_tenants", summary.FailedTenants),
		zap.Int64("duration_ms", summary.DurationMs),
	)

	if err := o.notifier.Notify(ctx, summary); err != nil {
		log.Error("engine: notify run summary", zap.Error(err))
	}

	if asOf.Day() == o.monthlyDay || req.ForceMonthly {
		o.monthly(ctx, log, asOf)
	}

	return summary, runErr
}

func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, runID string, cause error) {
	log.Error("engine: run failed", zap.Error(cause))
	metrics.RecordFailedRun()
	if err := o.store.FailRun(context.WithoutCancel(ctx), runID, cause.Error()); err != nil {
		log.Error("engine: failed to record run failure", zap.Error(err))
	}
}

func (o *Orchestrator) monthly(ctx context.Context, log *zap.Logger, asOf time.Time) {
	month := report.PriorMonth(asOf)
	r, err := report.NewAggregator(o.store).Build(ctx, month)
	if err != nil {
		log.Error("engine: monthly report", zap.String("month", month.Format(report.MonthFormat)), zap.Error(err))
		return
	}
	if err := o.notifier.NotifyMonthly(ctx, r); err != nil {
		log.Error("engine: notify monthly report", zap.String("month", r.Month), zap.Error(err))
	}
}

// selectTenants returns the active tenants, restricted to ids when given.
// Requested ids that are unknown or inactive come back with Active false so
// the run records them as failed.
func (o *Orchestrator) selectTenants(ctx context.Context, ids []string) ([]model.Tenant, error) {
	active, err := o.store.ListTenants(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "engine: list tenants")
	}
	if len(ids) == 0 {
		return active, nil
	}

	out := make([]model.Tenant, 0, len(ids))
	for _, id := range ids {
		idx := slices.IndexFunc(active, func(t model.Tenant) bool { return t.ID == id })
		if idx < 0 {
			out = append(out, model.Tenant{ID: id})
			continue
		}
		out = append(out, active[idx])
	}
	return out, nil
}
