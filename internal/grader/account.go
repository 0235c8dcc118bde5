// Package grader computes the daily account grades and keyword difficulty
// grades that feed the recommendation matcher.
package grader

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/rankwise/internal/model"
	"github.com/sells-group/rankwise/internal/resilience"
	"github.com/sells-group/rankwise/internal/weights"
)

// NoPublishHistory is the change reason recorded for accounts with no content.
const NoPublishHistory = "no publish history"

// AccountStore is the persistence the account grader needs.
type AccountStore interface {
	ListAccounts(ctx context.Context, tenantID string) ([]model.PublishingAccount, error)
	ListKeywords(ctx context.Context, tenantID string) ([]model.Keyword, error)
	ListPublishedContent(ctx context.Context, tenantID string) ([]model.PublishedContent, error)
	LatestAccountSnapshotBefore(ctx context.Context, accountID string, date time.Time) (*model.AccountGradeSnapshot, error)
	UpsertAccountSnapshot(ctx context.Context, s *model.AccountGradeSnapshot) error
}

// AccountResult is the outcome of grading one tenant's accounts.
type AccountResult struct {
	Snapshots []model.AccountGradeSnapshot
	Changes   []model.GradeChange
	Failures  model.Failures
}

// AccountGrader grades publishing accounts by search exposure.
type AccountGrader struct {
	store   AccountStore
	weights *weights.Config
	printer *message.Printer
}

// NewAccountGrader creates an AccountGrader for one run's weight document.
func NewAccountGrader(st AccountStore, w *weights.Config) *AccountGrader {
	return &AccountGrader{store: st, weights: w, printer: message.NewPrinter(language.English)}
}

// GradeTenant grades every active account of a tenant as of the given date and
// upserts one snapshot per account. Per-account persistence failures are
// counted and skipped; only roster load failures are returned.
func (g *AccountGrader) GradeTenant(ctx context.Context, tenantID string, asOf time.Time) (*AccountResult, error) {
	log := zap.L().With(zap.String("component", "grader.account"), zap.String("tenant_id", tenantID))
	asOf = model.Day(asOf)

	accounts, err := g.store.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "grader: list accounts")
	}
	keywords, err := g.store.ListKeywords(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "grader: list keywords")
	}
	contents, err := g.store.ListPublishedContent(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "grader: list published content")
	}

	kwByID := make(map[string]*model.Keyword, len(keywords))
	for i := range keywords {
		kwByID[keywords[i].ID] = &keywords[i]
	}
	byAccount := make(map[string][]model.PublishedContent)
	for _, c := range contents {
		if c.PublishedAt.After(endOfDay(asOf)) {
			continue
		}
		byAccount[c.AccountID] = append(byAccount[c.AccountID], c)
	}

	result := &AccountResult{}
	counted := make(map[string]bool)
	for _, acct := range accounts {
		if err := ctx.Err(); err != nil {
			return result, eris.Wrap(err, "grader: accounts canceled")
		}

		snap, gaps := ScoreAccount(acct, byAccount[acct.ID], kwByID, g.weights)
		snap.SnapshotDate = asOf
		for _, gap := range gaps {
			log.Warn("grader: data gap", zap.String("account_id", acct.ID), zap.Error(gap))
			if key, ok := gapKey(gap, kwByID); ok && !counted[key] {
				counted[key] = true
				result.Failures.DataGaps++
			}
		}

		prev, err := g.store.LatestAccountSnapshotBefore(ctx, acct.ID, asOf)
		if err != nil {
			log.Warn("grader: previous snapshot unavailable",
				zap.String("account_id", acct.ID), zap.Error(err))
			result.Failures.DataGaps++
		}
		if prev != nil {
			pg := prev.Grade
			snap.PreviousGrade = &pg
		}
		if snap.TotalPublished > 0 {
			snap.ChangeReason = g.reason(&snap)
		}

		if err := g.store.UpsertAccountSnapshot(ctx, &snap); err != nil {
			perr := resilience.NewPersistenceError(err, "account_grade_snapshots", acct.ID)
			log.Error("grader: upsert account snapshot failed", zap.Error(perr))
			result.Failures.Persistence++
			continue
		}
		result.Snapshots = append(result.Snapshots, snap)

		if prev != nil && prev.Grade != snap.Grade {
			result.Changes = append(result.Changes, model.GradeChange{
				TenantID:    tenantID,
				AccountID:   acct.ID,
				AccountName: acct.DisplayName,
				Prev:        prev.Grade,
				Curr:        snap.Grade,
				Score:       snap.Score,
				Reason:      snap.ChangeReason,
			})
		}
	}

	log.Info("grader: accounts graded",
		zap.Int("accounts", len(result.Snapshots)),
		zap.Int("grade_changes", len(result.Changes)),
		zap.Int("persistence_failures", result.Failures.Persistence),
	)
	return result, nil
}

// ScoreAccount computes an account snapshot from its published content and
// the tenant's keyword roster. It returns the data gaps it defaulted over.
func ScoreAccount(acct model.PublishingAccount, contents []model.PublishedContent, keywords map[string]*model.Keyword, w *weights.Config) (model.AccountGradeSnapshot, []error) {
	snap := model.AccountGradeSnapshot{
		AccountID:      acct.ID,
		TenantID:       acct.TenantID,
		TotalPublished: len(contents),
	}
	if len(contents) == 0 {
		snap.Grade = model.GradeC
		snap.ChangeReason = NoPublishHistory
		return snap, nil
	}

	var gaps []error
	seen := make(map[string]bool)
	var targeted []string
	for _, c := range contents {
		if !seen[c.KeywordID] {
			seen[c.KeywordID] = true
			targeted = append(targeted, c.KeywordID)
		}
	}
	sort.Strings(targeted)

	var (
		volumeSum   float64
		weightedSum float64
		rankSum     int
	)
	for _, id := range targeted {
		kw, ok := keywords[id]
		if !ok {
			gaps = append(gaps, &resilience.DataGapError{Entity: "keyword", ID: id, Field: "roster entry"})
			continue
		}
		if kw.VolumeMissing {
			gaps = append(gaps, &resilience.DataGapError{Entity: "keyword", ID: id, Field: "volume"})
		}
		vol := float64(kw.TotalVolume())
		volumeSum += vol
		if !kw.Ranked() {
			continue
		}
		rank := *kw.OwnRank
		snap.ExposedKeywords++
		rankSum += rank
		weightedSum += vol * visibility(rank)
		if rank <= 3 {
			snap.Top3Count++
		}
		if rank <= 10 {
			snap.Top10Count++
		}
	}

	snap.DistinctKeywords = len(targeted)
	exposureRate := float64(snap.ExposedKeywords) / float64(snap.DistinctKeywords) * 100
	var weightedExposure float64
	if volumeSum > 0 {
		weightedExposure = weightedSum / volumeSum
	}
	snap.ExposureRate = weights.Round1(exposureRate)
	snap.WeightedExposure = weights.Round1(weightedExposure)
	snap.ContentVolumeScore = w.ContentVolumeTiers.Lookup(float64(snap.TotalPublished))
	if snap.ExposedKeywords > 0 {
		snap.AvgRank = weights.Round1(float64(rankSum) / float64(snap.ExposedKeywords))
	}
	snap.Top3Ratio = weights.Round1(float64(snap.Top3Count) / float64(snap.DistinctKeywords) * 100)
	snap.Top10Ratio = weights.Round1(float64(snap.Top10Count) / float64(snap.DistinctKeywords) * 100)

	// Only the stored fields are rounded; the score uses the exact components.
	total := weightedExposure*w.Account.WeightedExposure +
		exposureRate*w.Account.ExposureRate +
		snap.ContentVolumeScore*w.Account.ContentVolume
	snap.Score = weights.Round1(weights.Clamp(total))
	snap.Grade = w.AccountThresholds.Grade(snap.Score)
	return snap, gaps
}

// gapKey identifies a data gap for the tenant's failure count. A keyword gap
// is counted once however many accounts target the keyword, and missing
// volume on a tracked keyword is left to the keyword grader.
func gapKey(gap error, keywords map[string]*model.Keyword) (string, bool) {
	var dg *resilience.DataGapError
	if !errors.As(gap, &dg) {
		return gap.Error(), true
	}
	if dg.Field == "volume" {
		if kw, ok := keywords[dg.ID]; ok && kw.Status.Tracked() {
			return "", false
		}
	}
	return dg.Entity + "|" + dg.ID + "|" + dg.Field, true
}

// visibility maps a SERP rank to 0..100: rank 1 is 100, rank 21 and beyond is 0.
func visibility(rank int) float64 {
	if rank < 1 {
		return 0
	}
	return max(0, float64(21-rank)/20) * 100
}

func (g *AccountGrader) reason(s *model.AccountGradeSnapshot) string {
	return g.printer.Sprintf("exposure rate %.1f%%, weighted exposure %.1f, %d published",
		s.ExposureRate, s.WeightedExposure, s.TotalPublished)
}

func endOfDay(d time.Time) time.Time {
	return d.Add(24*time.Hour - time.Nanosecond)
}
