// Package store persists the engine's inputs, snapshots, recommendations and
// run log. SQLite is the default backend; Postgres serves shared deployments.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rankwise/internal/db"
	"github.com/sells-group/rankwise/internal/model"
)

// ErrNotFound is returned, wrapped, when a keyed row does not exist.
var ErrNotFound = eris.New("not found")

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}

// RecommendationFilter specifies criteria for listing recommendations.
// From is inclusive and To exclusive; zero values leave a bound open.
type RecommendationFilter struct {
	TenantID  string    `json:"tenant_id,omitempty"`
	KeywordID string    `json:"keyword_id,omitempty"`
	From      time.Time `json:"from,omitempty"`
	To        time.Time `json:"to,omitempty"`
}

// Store defines the persistence interface of the scoring engine.
type Store interface {
	// Rosters (read-only inputs)
	ListTenants(ctx context.Context) ([]model.Tenant, error)
	ListAccounts(ctx context.Context, tenantID string) ([]model.PublishingAccount, error)
	ListKeywords(ctx context.Context, tenantID string) ([]model.Keyword, error)
	ListPublishedContent(ctx context.Context, tenantID string) ([]model.PublishedContent, error)
	ListOwnObservations(ctx context.Context, tenantID string) ([]model.SerpObservation, error)

	// Account grade history
	UpsertAccountSnapshot(ctx context.Context, s *model.AccountGradeSnapshot) error
	LatestAccountSnapshotBefore(ctx context.Context, accountID string, date time.Time) (*model.AccountGradeSnapshot, error)
	ListAccountSnapshots(ctx context.Context, tenantID string, date time.Time) ([]model.AccountGradeSnapshot, error)

	// Keyword difficulty history
	UpsertKeywordSnapshot(ctx context.Context, s *model.KeywordDifficultySnapshot) error
	ListKeywordSnapshots(ctx context.Context, tenantID string, date time.Time) ([]model.KeywordDifficultySnapshot, error)

	// Recommendations
	UpsertRecommendation(ctx context.Context, r *model.Recommendation) error
	ListRecommendations(ctx context.Context, filter RecommendationFilter) ([]model.Recommendation, error)

	// Run log
	StartRun(ctx context.Context, runDate time.Time) (*model.RunLogEntry, error)
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.RunLogEntry, error)

	// Weight documents
	LatestWeightDocument(ctx context.Context) ([]byte, error)
	SaveWeightDocument(ctx context.Context, doc []byte) error

	// Lifecycle
	Seed(ctx context.Context, f *Fixture) error
	Migrate(ctx context.Context) error
	Close() error
}

// Fixture is a bundle of roster rows loaded by `rankwise seed` and tests.
type Fixture struct {
	Tenants      []model.Tenant            `yaml:"tenants" json:"tenants"`
	Accounts     []model.PublishingAccount `yaml:"accounts" json:"accounts"`
	Keywords     []model.Keyword           `yaml:"keywords" json:"keywords"`
	Contents     []model.PublishedContent  `yaml:"contents" json:"contents"`
	Observations []model.SerpObservation   `yaml:"observations" json:"observations"`
}

// Column sets shared by both backends. The recommendation update list leaves
// out status and feedback_result, which external consumers own.
var (
	accountSnapshotColumns = []string{
		"account_id", "snapshot_date", "tenant_id", "total_published", "distinct_keywords",
		"exposed_keywords", "exposure_rate", "weighted_exposure", "content_volume_score",
		"avg_rank", "top3_count", "top10_count", "top3_ratio", "top10_ratio",
		"score", "grade", "previous_grade", "change_reason",
	}
	keywordSnapshotColumns = []string{
		"keyword_id", "snapshot_date", "tenant_id", "search_volume", "competition_level",
		"own_rank", "mo_ratio", "volume_score", "competition_score", "serp_score",
		"difficulty_score", "grade", "opportunity_score",
	}
	recommendationColumns = []string{
		"tenant_id", "keyword_id", "account_id", "rec_date", "match_score", "rank",
		"account_grade", "keyword_grade", "bonuses", "penalties", "reason", "status",
	}
	recommendationUpdateColumns = []string{
		"match_score", "rank", "account_grade", "keyword_grade", "bonuses", "penalties", "reason",
	}
)

func accountSnapshotArgs(s *model.AccountGradeSnapshot, date any) []any {
	var prev any
	if s.PreviousGrade != nil {
		prev = string(*s.PreviousGrade)
	}
	return []any{
		s.AccountID, date, s.TenantID, s.TotalPublished, s.DistinctKeywords,
		s.ExposedKeywords, s.ExposureRate, s.WeightedExposure, s.ContentVolumeScore,
		s.AvgRank, s.Top3Count, s.Top10Count, s.Top3Ratio, s.Top10Ratio,
		s.Score, string(s.Grade), prev, s.ChangeReason,
	}
}

func keywordSnapshotArgs(s *model.KeywordDifficultySnapshot, date any) []any {
	return []any{
		s.KeywordID, date, s.TenantID, s.SearchVolume, string(s.CompetitionLevel),
		nullable(s.OwnRank), s.MoRatio, s.VolumeScore, s.CompetitionScore, s.SerpScore,
		s.DifficultyScore, string(s.Grade), s.OpportunityScore,
	}
}

// nullable dereferences p, mapping nil to SQL NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func gradePtr(s *string) *model.Grade {
	if s == nil || *s == "" {
		return nil
	}
	g := model.Grade(*s)
	return &g
}

func feedbackPtr(s *string) *model.FeedbackResult {
	if s == nil || *s == "" {
		return nil
	}
	f := model.FeedbackResult(*s)
	return &f
}

// Roster upserts used by Seed.
var (
	tenantUpsert = db.UpsertConfig{
		Table:        "tenants",
		Columns:      []string{"id", "name", "active"},
		ConflictKeys: []string{"id"},
	}
	accountUpsert = db.UpsertConfig{
		Table:        "publishing_accounts",
		Columns:      []string{"id", "tenant_id", "display_name", "active"},
		ConflictKeys: []string{"id"},
	}
	keywordUpsert = db.UpsertConfig{
		Table:        "keywords",
		Columns:      []string{"id", "tenant_id", "text", "volume_desktop", "volume_mobile", "competition", "own_rank", "status"},
		ConflictKeys: []string{"id"},
	}
	contentUpsert = db.UpsertConfig{
		Table:        "published_contents",
		Columns:      []string{"id", "account_id", "keyword_id", "tenant_id", "published_at", "status"},
		ConflictKeys: []string{"id"},
	}
)

func tenantArgs(t model.Tenant) []any {
	return []any{t.ID, t.Name, t.Active}
}

func accountArgs(a model.PublishingAccount) []any {
	return []any{a.ID, a.TenantID, a.DisplayName, a.Active}
}

func keywordArgs(k model.Keyword) []any {
	var desktop, mobile any
	if !k.VolumeMissing {
		desktop, mobile = k.VolumeDesktop, k.VolumeMobile
	}
	status := k.Status
	if status == "" {
		status = model.KeywordStatusActive
	}
	return []any{k.ID, k.TenantID, k.Text, desktop, mobile, string(k.Competition), nullable(k.OwnRank), string(status)}
}

func contentArgs(c model.PublishedContent) []any {
	status := c.Status
	if status == "" {
		status = "published"
	}
	return []any{c.ID, c.AccountID, c.KeywordID, c.TenantID, c.PublishedAt.UTC(), status}
}

func marshalAudit(r *model.Recommendation) ([]byte, []byte, error) {
	bonuses := r.Bonuses
	if bonuses == nil {
		bonuses = map[string]float64{}
	}
	b, err := json.Marshal(bonuses)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal bonuses")
	}
	penalties := r.Penalties
	if penalties.Blocked == nil {
		penalties.Blocked = []model.BlockedCandidate{}
	}
	p, err := json.Marshal(penalties)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal penalties")
	}
	return b, p, nil
}

func unmarshalAudit(r *model.Recommendation, bonuses, penalties []byte) error {
	if len(bonuses) > 0 {
		if err := json.Unmarshal(bonuses, &r.Bonuses); err != nil {
			return eris.Wrap(err, "store: unmarshal bonuses")
		}
	}
	if len(penalties) > 0 {
		if err := json.Unmarshal(penalties, &r.Penalties); err != nil {
			return eris.Wrap(err, "store: unmarshal penalties")
		}
	}
	return nil
}
