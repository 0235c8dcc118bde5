package engine

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rankwise/internal/grader"
	"github.com/sells-group/rankwise/internal/matcher"
	"github.com/sells-group/rankwise/internal/metrics"
	"github.com/sells-group/rankwise/internal/model"
	"github.com/sells-group/rankwise/internal/weights"
)

// tenantOutcome carries one tenant's stage results back to the summary.
type tenantOutcome struct {
	result       model.TenantResult
	changes      []model.GradeChange
	distribution map[model.Grade]int
}

// runTenant grades accounts, then keywords, then matches. A stage error
// skips the remaining stages of this tenant only.
func (o *Orchestrator) runTenant(ctx context.Context, w *weights.Config, t model.Tenant, asOf time.Time) tenantOutcome {
	log := zap.L().With(zap.String("component", "engine"), zap.String("tenant_id", t.ID))
	out := tenantOutcome{result: model.TenantResult{TenantID: t.ID}}

	if !t.Active {
		out.result.Error = "tenant not found or inactive"
		log.Warn("engine: skipping tenant", zap.String("reason", out.result.Error))
		return out
	}

	stage := func(name string, fn func() error) bool {
		start := time.Now()
		err := fn()
		metrics.ObserveStage(name, start)
		if err != nil {
			out.result.Error = eris.Wrapf(err, "%s stage", name).Error()
			log.Error("engine: stage failed", zap.String("stage", name), zap.Error(err))
			return false
		}
		log.Info("engine: stage complete",
			zap.String("stage", name),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return true
	}

	ok := stage(StageAccounts, func() error {
		res, err := grader.NewAccountGrader(o.store, w).GradeTenant(ctx, t.ID, asOf)
		if err != nil {
			return err
		}
		out.result.Accounts = len(res.Snapshots)
		out.result.Failures.Add(res.Failures)
		out.changes = res.Changes
		return nil
	})
	if !ok {
		return out
	}

	ok = stage(StageKeywords, func() error {
		opts := []grader.KeywordOption{grader.WithWorkers(o.keywordWorkers)}
		if o.volume != nil {
			opts = append(opts, grader.WithVolumeProvider(o.volume))
		}
		res, err := grader.NewKeywordGrader(o.store, w, opts...).GradeTenant(ctx, t.ID, asOf)
		if err != nil {
			return err
		}
		out.result.Keywords = len(res.Snapshots)
		out.result.Failures.Add(res.Failures)
		out.distribution = res.Distribution
		return nil
	})
	if !ok {
		return out
	}

	stage(StageMatch, func() error {
		res, err := matcher.New(o.store, w).MatchTenant(ctx, t.ID, asOf)
		if err != nil {
			return err
		}
		out.result.Recommendations = len(res.Recommendations)
		out.result.Failures.Add(res.Failures)
		return nil
	})
	return out
}

// summarize folds tenant outcomes, in tenant order, into the run summary.
func summarize(entry *model.RunLogEntry, w *weights.Config, outcomes []tenantOutcome) *model.RunSummary {
	s := &model.RunSummary{
		RunID:                    entry.ID,
		RunDate:                  model.Day(entry.RunDate).Format(time.DateOnly),
		WeightsHash:              weights.Hash(w),
		GradeChanges:             []model.GradeChange{},
		KeywordGradeDistribution: make(map[model.Grade]int, len(model.Grades)),
		Tenants:                  make([]model.TenantResult, 0, len(outcomes)),
	}
	for _, g := range model.Grades {
		s.KeywordGradeDistribution[g] = 0
	}

	for _, oc := range outcomes {
		r := oc.result
		s.Accounts += r.Accounts
		s.Keywords += r.Keywords
		s.Recommendations += r.Recommendations
		s.Failures.Add(r.Failures)
		s.GradeChanges = append(s.GradeChanges, oc.changes...)
		for g, n := range oc.distribution {
			s.KeywordGradeDistribution[g] += n
		}
		if r.Error != "" {
			s.FailedTenants++
		}
		s.Tenants = append(s.Tenants, r)
	}
	return s
}
