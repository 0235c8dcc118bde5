// Package matcher pairs graded keywords with the best available publishing
// accounts and records an explainable, ranked recommendation per pair.
package matcher

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/rankwise/internal/model"
	"github.com/sells-group/rankwise/internal/resilience"
	"github.com/sells-group/rankwise/internal/weights"
)

// MaxRanked is the most recommendations emitted per keyword.
const MaxRanked = 3

// Store is the persistence the matcher needs.
type Store interface {
	ListAccounts(ctx context.Context, tenantID string) ([]model.PublishingAccount, error)
	ListKeywords(ctx context.Context, tenantID string) ([]model.Keyword, error)
	ListPublishedContent(ctx context.Context, tenantID string) ([]model.PublishedContent, error)
	ListOwnObservations(ctx context.Context, tenantID string) ([]model.SerpObservation, error)
	ListAccountSnapshots(ctx context.Context, tenantID string, date time.Time) ([]model.AccountGradeSnapshot, error)
	ListKeywordSnapshots(ctx context.Context, tenantID string, date time.Time) ([]model.KeywordDifficultySnapshot, error)
	UpsertRecommendation(ctx context.Context, r *model.Recommendation) error
}

// Candidate is an account eligible for matching on the run date.
type Candidate struct {
	Account model.PublishingAccount
	Grade   model.Grade
}

// Result is the outcome of matching one tenant.
type Result struct {
	Recommendations []model.Recommendation
	Keywords        int // keywords considered
	Unmatched       int // keywords with every candidate blocked
	Blocked         int // blocked candidate entries across keywords
	Failures        model.Failures
}

// Matcher produces ranked recommendations for one run's weight document.
type Matcher struct {
	store   Store
	weights *weights.Config
	printer *message.Printer
}

// New creates a Matcher.
func New(st Store, w *weights.Config) *Matcher {
	return &Matcher{store: st, weights: w, printer: message.NewPrinter(language.English)}
}

// LoadSignals reads the tenant's content and observations and builds Signals
// using the configured windows.
func (m *Matcher) LoadSignals(ctx context.Context, tenantID string, asOf time.Time) (*Signals, error) {
	contents, err := m.store.ListPublishedContent(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "matcher: list published content")
	}
	observations, err := m.store.ListOwnObservations(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "matcher: list observations")
	}
	return BuildSignals(contents, observations, asOf, m.weights.RecentDays(), m.weights.FreshnessWindow()), nil
}

// MatchTenant matches every graded keyword of a tenant against its graded
// accounts for the as-of date and upserts the ranked rows.
func (m *Matcher) MatchTenant(ctx context.Context, tenantID string, asOf time.Time) (*Result, error) {
	log := zap.L().With(zap.String("component", "matcher"), zap.String("tenant_id", tenantID))
	asOf = model.Day(asOf)

	signals, err := m.LoadSignals(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	accounts, err := m.store.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "matcher: list accounts")
	}
	accSnaps, err := m.store.ListAccountSnapshots(ctx, tenantID, asOf)
	if err != nil {
		return nil, eris.Wrap(err, "matcher: list account snapshots")
	}
	keywords, err := m.store.ListKeywords(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "matcher: list keywords")
	}
	kwSnaps, err := m.store.ListKeywordSnapshots(ctx, tenantID, asOf)
	if err != nil {
		return nil, eris.Wrap(err, "matcher: list keyword snapshots")
	}

	result := &Result{}

	gradeByAccount := make(map[string]model.Grade, len(accSnaps))
	for _, s := range accSnaps {
		gradeByAccount[s.AccountID] = s.Grade
	}
	var candidates []Candidate
	for _, a := range accounts {
		g, ok := gradeByAccount[a.ID]
		if !ok {
			log.Warn("matcher: data gap",
				zap.Error(&resilience.DataGapError{Entity: "account", ID: a.ID, Field: "snapshot " + asOf.Format(model.DateLayout)}))
			result.Failures.DataGaps++
			continue
		}
		candidates = append(candidates, Candidate{Account: a, Grade: g})
	}

	snapByKeyword := make(map[string]model.KeywordDifficultySnapshot, len(kwSnaps))
	for _, s := range kwSnaps {
		snapByKeyword[s.KeywordID] = s
	}

	for _, kw := range keywords {
		if !kw.Status.Tracked() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, eris.Wrap(err, "matcher: canceled")
		}
		ks, ok := snapByKeyword[kw.ID]
		if !ok {
			log.Warn("matcher: data gap",
				zap.Error(&resilience.DataGapError{Entity: "keyword", ID: kw.ID, Field: "snapshot " + asOf.Format(model.DateLayout)}))
			result.Failures.DataGaps++
			continue
		}
		result.Keywords++

		recs, blocked := m.RankKeyword(tenantID, &kw, &ks, candidates, signals, asOf)
		result.Blocked += len(blocked)
		if len(recs) == 0 {
			result.Unmatched++
			log.Debug("matcher: no unblocked candidates", zap.String("keyword_id", kw.ID), zap.Int("blocked", len(blocked)))
			continue
		}
		for i := range recs {
			if err := m.store.UpsertRecommendation(ctx, &recs[i]); err != nil {
				perr := resilience.NewPersistenceError(err, "recommendations", kw.ID+"/"+recs[i].AccountID)
				log.Error("matcher: upsert recommendation failed", zap.Error(perr))
				result.Failures.Persistence++
				continue
			}
			result.Recommendations = append(result.Recommendations, recs[i])
		}
	}

	log.Info("matcher: tenant matched",
		zap.Int("keywords", result.Keywords),
		zap.Int("recommendations", len(result.Recommendations)),
		zap.Int("unmatched", result.Unmatched),
		zap.Int("blocked", result.Blocked),
	)
	return result, nil
}

type scored struct {
	cand       Candidate
	score      float64
	components map[string]float64
	recent     int
	top3       bool
}

// RankKeyword scores the unblocked candidates for one keyword and returns up
// to MaxRanked recommendations, plus the audit list of blocked candidates.
func (m *Matcher) RankKeyword(tenantID string, kw *model.Keyword, ks *model.KeywordDifficultySnapshot, candidates []Candidate, sig *Signals, asOf time.Time) ([]model.Recommendation, []model.BlockedCandidate) {
	w := m.weights
	blocked := []model.BlockedCandidate{}
	var pool []scored

	for _, c := range candidates {
		key := model.AccountKeyword{AccountID: c.Account.ID, KeywordID: kw.ID}
		var reasons []string
		if w.Blocking.AlreadyExposed && sig.Exposed[key] {
			reasons = append(reasons, "already exposed for this keyword")
		}
		if sig.RecentlyPublished[key] {
			reasons = append(reasons, m.printer.Sprintf("published for this keyword within %d days", w.RecentDays()))
		}
		if len(reasons) > 0 {
			blocked = append(blocked, model.BlockedCandidate{
				AccountID:   c.Account.ID,
				AccountName: c.Account.DisplayName,
				Reason:      strings.Join(reasons, "; "),
			})
			continue
		}

		recent := sig.RecentCounts[c.Account.ID]
		top3 := sig.HasTop3[c.Account.ID]
		components := Components(w, c.Grade, ks.Grade, ks.SearchVolume, recent, top3)
		pool = append(pool, scored{
			cand:       c,
			score:      Score(w, components),
			components: components,
			recent:     recent,
			top3:       top3,
		})
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].score != pool[j].score {
			return pool[i].score > pool[j].score
		}
		if oi, oj := pool[i].cand.Grade.Ordinal(), pool[j].cand.Grade.Ordinal(); oi != oj {
			return oi > oj
		}
		return pool[i].cand.Account.ID < pool[j].cand.Account.ID
	})

	n := min(MaxRanked, len(pool))
	recs := make([]model.Recommendation, 0, n)
	for i := 0; i < n; i++ {
		p := pool[i]
		recs = append(recs, model.Recommendation{
			TenantID:     tenantID,
			KeywordID:    kw.ID,
			AccountID:    p.cand.Account.ID,
			RecDate:      model.Day(asOf),
			MatchScore:   p.score,
			Rank:         i + 1,
			AccountGrade: p.cand.Grade,
			KeywordGrade: ks.Grade,
			Bonuses:      p.components,
			Penalties:    model.Penalties{Blocked: blocked},
			Reason:       m.reason(p, ks),
			Status:       model.RecommendationPending,
		})
	}
	return recs, blocked
}

// Components returns the four raw match components, each on 0..100.
func Components(w *weights.Config, accountGrade, keywordGrade model.Grade, searchVolume, recentPublishes int, hasTop3 bool) map[string]float64 {
	relevance := w.Relevance.Default
	if hasTop3 {
		relevance = w.Relevance.Top3
	}
	return map[string]float64{
		"grade_match": w.GradeMatchScore(accountGrade, keywordGrade),
		"freshness":   w.Freshness(recentPublishes),
		"relevance":   relevance,
		"volume_fit":  w.VolumeBands.Lookup(searchVolume, accountGrade),
	}
}

// Score combines components with the match weights, clamped and rounded.
func Score(w *weights.Config, components map[string]float64) float64 {
	total := components["grade_match"]*w.Match.GradeMatch +
		components["freshness"]*w.Match.Freshness +
		components["relevance"]*w.Match.Relevance +
		components["volume_fit"]*w.Match.VolumeFit
	return weights.Round1(weights.Clamp(total))
}

func (m *Matcher) reason(p scored, ks *model.KeywordDifficultySnapshot) string {
	var b strings.Builder
	b.WriteString(m.printer.Sprintf("grade %s account for grade %s keyword (%d monthly searches)",
		p.cand.Grade, ks.Grade, ks.SearchVolume))
	b.WriteString(m.printer.Sprintf(", %d publishes in the freshness window", p.recent))
	if p.top3 {
		b.WriteString(", has top-3 history")
	}
	return b.String()
}
