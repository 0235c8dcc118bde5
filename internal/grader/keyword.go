package grader

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rankwise/internal/model"
	"github.com/sells-group/rankwise/internal/resilience"
	"github.com/sells-group/rankwise/internal/volume"
	"github.com/sells-group/rankwise/internal/weights"
)

// KeywordStore is the persistence the keyword grader needs.
type KeywordStore interface {
	ListKeywords(ctx context.Context, tenantID string) ([]model.Keyword, error)
	UpsertKeywordSnapshot(ctx context.Context, s *model.KeywordDifficultySnapshot) error
}

// KeywordResult is the outcome of grading one tenant's keywords.
type KeywordResult struct {
	Snapshots    []model.KeywordDifficultySnapshot
	Distribution map[model.Grade]int
	Skipped      int // keywords not in a tracked status
	Failures     model.Failures
}

// KeywordGrader grades tracked keywords by competitive difficulty.
type KeywordGrader struct {
	store   KeywordStore
	weights *weights.Config
	volumes volume.Provider
	workers int
}

// KeywordOption configures a KeywordGrader.
type KeywordOption func(*KeywordGrader)

// WithVolumeProvider enables live volume refresh before scoring.
func WithVolumeProvider(p volume.Provider) KeywordOption {
	return func(g *KeywordGrader) {
		g.volumes = p
	}
}

// WithWorkers bounds the number of keywords graded concurrently.
func WithWorkers(n int) KeywordOption {
	return func(g *KeywordGrader) {
		if n > 0 {
			g.workers = n
		}
	}
}

// NewKeywordGrader creates a KeywordGrader for one run's weight document.
func NewKeywordGrader(st KeywordStore, w *weights.Config, opts ...KeywordOption) *KeywordGrader {
	g := &KeywordGrader{store: st, weights: w, workers: 4}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GradeTenant grades every tracked keyword of a tenant as of the given date.
// Keywords are scored in parallel; each snapshot is upserted on its own.
func (g *KeywordGrader) GradeTenant(ctx context.Context, tenantID string, asOf time.Time) (*KeywordResult, error) {
	log := zap.L().With(zap.String("component", "grader.keyword"), zap.String("tenant_id", tenantID))
	asOf = model.Day(asOf)

	keywords, err := g.store.ListKeywords(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "grader: list keywords")
	}

	var tracked []model.Keyword
	for _, kw := range keywords {
		if kw.Status.Tracked() {
			tracked = append(tracked, kw)
		}
	}

	var (
		dataGaps    atomic.Int64
		persistFail atomic.Int64
		external    atomic.Int64
		snapshots   = make([]*model.KeywordDifficultySnapshot, len(tracked))
	)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i := range tracked {
		kw := tracked[i]
		eg.Go(func() error {
			if g.volumes != nil {
				v, err := g.volumes.Lookup(gctx, kw.Text)
				if err != nil {
					log.Warn("grader: volume refresh failed, using stored volume",
						zap.String("keyword_id", kw.ID), zap.Error(err))
					external.Add(1)
				} else {
					kw.VolumeDesktop, kw.VolumeMobile, kw.VolumeMissing = v.Desktop, v.Mobile, false
				}
			}
			if kw.VolumeMissing {
				log.Warn("grader: data gap",
					zap.Error(&resilience.DataGapError{Entity: "keyword", ID: kw.ID, Field: "volume"}))
				dataGaps.Add(1)
			}

			snap := ScoreKeyword(&kw, g.weights)
			snap.SnapshotDate = asOf
			if err := g.store.UpsertKeywordSnapshot(gctx, &snap); err != nil {
				perr := resilience.NewPersistenceError(err, "keyword_difficulty_snapshots", kw.ID)
				log.Error("grader: upsert keyword snapshot failed", zap.Error(perr))
				persistFail.Add(1)
				return nil
			}
			snapshots[i] = &snap
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, eris.Wrap(err, "grader: keyword workers")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "grader: keywords canceled")
	}

	result := &KeywordResult{
		Distribution: make(map[model.Grade]int, len(model.Grades)),
		Skipped:      len(keywords) - len(tracked),
		Failures: model.Failures{
			DataGaps:    int(dataGaps.Load()),
			Persistence: int(persistFail.Load()),
			External:    int(external.Load()),
		},
	}
	for _, s := range snapshots {
		if s == nil {
			continue
		}
		result.Snapshots = append(result.Snapshots, *s)
		result.Distribution[s.Grade]++
	}

	log.Info("grader: keywords graded",
		zap.Int("keywords", len(result.Snapshots)),
		zap.Int("skipped", result.Skipped),
		zap.Int("persistence_failures", result.Failures.Persistence),
		zap.Int("external_failures", result.Failures.External),
	)
	return result, nil
}

// ScoreKeyword computes the difficulty snapshot of one keyword.
func ScoreKeyword(kw *model.Keyword, w *weights.Config) model.KeywordDifficultySnapshot {
	total := kw.TotalVolume()
	snap := model.KeywordDifficultySnapshot{
		KeywordID:        kw.ID,
		TenantID:         kw.TenantID,
		SearchVolume:     total,
		CompetitionLevel: kw.Competition,
		OwnRank:          kw.OwnRank,
	}
	if total > 0 {
		snap.MoRatio = weights.Round1(float64(max(kw.VolumeMobile, 0)) / float64(total) * 100)
	}

	snap.VolumeScore = w.SearchVolumeTiers.Lookup(float64(total))
	snap.CompetitionScore = competitionScore(kw.Competition)
	snap.SerpScore = serpScore(kw.OwnRank, w.OwnRankBonus)

	difficulty := snap.VolumeScore*w.Keyword.Volume +
		snap.CompetitionScore*w.Keyword.Competition +
		snap.SerpScore*w.Keyword.Serp
	snap.DifficultyScore = weights.Round1(weights.Clamp(difficulty))
	snap.Grade = w.KeywordThresholds.Grade(snap.DifficultyScore)
	snap.OpportunityScore = weights.Round1(100 - snap.DifficultyScore)
	return snap
}

func competitionScore(c model.Competition) float64 {
	switch c {
	case model.CompetitionHigh:
		return 100
	case model.CompetitionMedium:
		return 60
	case model.CompetitionLow:
		return 25
	default:
		return 50
	}
}

// serpScore is 60 when unranked or beyond 20, 40 for ranks 11-20, and the
// 50 baseline shifted by ownRankBonus inside the top 10.
func serpScore(ownRank *int, ownRankBonus float64) float64 {
	switch {
	case ownRank == nil || *ownRank < 1:
		return 60
	case *ownRank <= 10:
		return 50 + ownRankBonus
	case *ownRank <= 20:
		return 40
	default:
		return 60
	}
}
