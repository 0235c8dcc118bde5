package grader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rankwise/internal/model"
	"github.com/sells-group/rankwise/internal/volume"
	"github.com/sells-group/rankwise/internal/weights"
)

// memStore is an in-memory AccountStore and KeywordStore.
type memStore struct {
	mu        sync.Mutex
	accounts  []model.PublishingAccount
	keywords  []model.Keyword
	contents  []model.PublishedContent
	accSnaps  map[string]model.AccountGradeSnapshot // account|date
	kwSnaps   map[string]model.KeywordDifficultySnapshot
	failUpsrt map[string]bool // entity ids whose upsert fails
}

func newMemStore() *memStore {
	return &memStore{
		accSnaps:  make(map[string]model.AccountGradeSnapshot),
		kwSnaps:   make(map[string]model.KeywordDifficultySnapshot),
		failUpsrt: make(map[string]bool),
	}
}

func (m *memStore) ListAccounts(_ context.Context, _ string) ([]model.PublishingAccount, error) {
	return m.accounts, nil
}

func (m *memStore) ListKeywords(_ context.Context, _ string) ([]model.Keyword, error) {
	return m.keywords, nil
}

func (m *memStore) ListPublishedContent(_ context.Context, _ string) ([]model.PublishedContent, error) {
	return m.contents, nil
}

func (m *memStore) LatestAccountSnapshotBefore(_ context.Context, accountID string, date time.Time) (*model.AccountGradeSnapshot, error) {
	var best *model.AccountGradeSnapshot
	for _, s := range m.accSnaps {
		if s.AccountID != accountID || !s.SnapshotDate.Before(date) {
			continue
		}
		if best == nil || s.SnapshotDate.After(best.SnapshotDate) {
			c := s
			best = &c
		}
	}
	return best, nil
}

func (m *memStore) UpsertAccountSnapshot(_ context.Context, s *model.AccountGradeSnapshot) error {
	if m.failUpsrt[s.AccountID] {
		return errors.New("disk full")
	}
	m.accSnaps[s.AccountID+"|"+s.SnapshotDate.Format(model.DateLayout)] = *s
	return nil
}

func (m *memStore) UpsertKeywordSnapshot(_ context.Context, s *model.KeywordDifficultySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpsrt[s.KeywordID] {
		return errors.New("disk full")
	}
	m.kwSnaps[s.KeywordID+"|"+s.SnapshotDate.Format(model.DateLayout)] = *s
	return nil
}

func intPtr(v int) *int { return &v }

var asOf = time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

func content(id, account, keyword string, at time.Time) model.PublishedContent {
	return model.PublishedContent{ID: id, AccountID: account, KeywordID: keyword, TenantID: "t1", PublishedAt: at}
}

// --- Account grading ---

func TestVisibility(t *testing.T) {
	tests := []struct {
		rank int
		want float64
	}{
		{0, 0},
		{1, 100},
		{11, 50},
		{20, 5},
		{21, 0},
		{40, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, visibility(tt.rank), 0.0001, "rank %d", tt.rank)
	}
}

func TestScoreAccount_ZeroPublish(t *testing.T) {
	snap, gaps := ScoreAccount(model.PublishingAccount{ID: "a1", TenantID: "t1"}, nil, nil, weights.Legacy())
	assert.Empty(t, gaps)
	assert.Equal(t, 0.0, snap.Score)
	assert.Equal(t, model.GradeC, snap.Grade)
	assert.Equal(t, NoPublishHistory, snap.ChangeReason)
}

func TestScoreAccount_Components(t *testing.T) {
	keywords := map[string]*model.Keyword{
		"k1": {ID: "k1", VolumeDesktop: 400, VolumeMobile: 600, OwnRank: intPtr(1)},
		"k2": {ID: "k2", VolumeDesktop: 1000},
	}
	contents := []model.PublishedContent{
		content("c1", "a1", "k1", asOf),
		content("c2", "a1", "k2", asOf),
	}

	snap, gaps := ScoreAccount(model.PublishingAccount{ID: "a1", TenantID: "t1"}, contents, keywords, weights.Legacy())
	assert.Empty(t, gaps)
	assert.Equal(t, 2, snap.DistinctKeywords)
	assert.Equal(t, 1, snap.ExposedKeywords)
	assert.InDelta(t, 50.0, snap.WeightedExposure, 0.001)
	assert.InDelta(t, 50.0, snap.ExposureRate, 0.001)
	assert.InDelta(t, 20.0, snap.ContentVolumeScore, 0.001)
	assert.InDelta(t, 1.0, snap.AvgRank, 0.001)
	assert.Equal(t, 1, snap.Top3Count)
	assert.InDelta(t, 50.0, snap.Top10Ratio, 0.001)
	// 50*0.5 + 50*0.3 + 20*0.2
	assert.InDelta(t, 44.0, snap.Score, 0.001)
	assert.Equal(t, model.GradeB, snap.Grade)
}

func TestScoreAccount_DataGaps(t *testing.T) {
	keywords := map[string]*model.Keyword{
		"k1": {ID: "k1", VolumeMissing: true},
	}
	contents := []model.PublishedContent{
		content("c1", "a1", "k1", asOf),
		content("c2", "a1", "ghost", asOf),
	}
	snap, gaps := ScoreAccount(model.PublishingAccount{ID: "a1"}, contents, keywords, weights.Legacy())
	assert.Len(t, gaps, 2)
	assert.Equal(t, 0.0, snap.WeightedExposure)
	assert.Equal(t, model.GradeC, snap.Grade)
}

func TestScoreAccount_MonotonicInWeightedExposure(t *testing.T) {
	w := weights.Legacy()
	prev := -1.0
	for rank := 20; rank >= 1; rank-- {
		keywords := map[string]*model.Keyword{
			"k1": {ID: "k1", VolumeDesktop: 500, OwnRank: intPtr(rank)},
		}
		snap, _ := ScoreAccount(model.PublishingAccount{ID: "a1"},
			[]model.PublishedContent{content("c1", "a1", "k1", asOf)}, keywords, w)
		assert.GreaterOrEqual(t, snap.Score, prev, "rank %d", rank)
		prev = snap.Score
	}
}

func TestScoreAccount_ScoreUsesUnroundedComponents(t *testing.T) {
	tests := []struct {
		name      string
		keywords  map[string]*model.Keyword
		contents  []string
		wantWE    float64
		wantER    float64
		wantScore float64
		wantGrade model.Grade
	}{
		{
			// 53.888*0.5 + 66.666*0.3 + 40*0.2 = 54.94; rounding the parts first gives 55.0
			name: "threshold boundary",
			keywords: map[string]*model.Keyword{
				"k1": {ID: "k1", VolumeDesktop: 1, OwnRank: intPtr(1)},
				"k2": {ID: "k2", VolumeDesktop: 7, OwnRank: intPtr(10)},
				"k3": {ID: "k3", VolumeDesktop: 1},
			},
			contents:  []string{"k1", "k2", "k3", "k1", "k2"},
			wantWE:    53.9,
			wantER:    66.7,
			wantScore: 54.9,
			wantGrade: model.GradeB,
		},
		{
			// 66.666*0.5 + 66.666*0.3 + 20*0.2 = 57.33
			name: "two top ranks and one unranked",
			keywords: map[string]*model.Keyword{
				"k1": {ID: "k1", VolumeDesktop: 1, OwnRank: intPtr(1)},
				"k2": {ID: "k2", VolumeDesktop: 1, OwnRank: intPtr(1)},
				"k3": {ID: "k3", VolumeDesktop: 1},
			},
			contents:  []string{"k1", "k2", "k3"},
			wantWE:    66.7,
			wantER:    66.7,
			wantScore: 57.3,
			wantGrade: model.GradeA,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var contents []model.PublishedContent
			for i, kw := range tt.contents {
				contents = append(contents, content(fmt.Sprintf("c%d", i), "a1", kw, asOf))
			}
			snap, gaps := ScoreAccount(model.PublishingAccount{ID: "a1"}, contents, tt.keywords, weights.Legacy())
			assert.Empty(t, gaps)
			assert.InDelta(t, tt.wantWE, snap.WeightedExposure, 0.001)
			assert.InDelta(t, tt.wantER, snap.ExposureRate, 0.001)
			assert.InDelta(t, tt.wantScore, snap.Score, 0.001)
			assert.Equal(t, tt.wantGrade, snap.Grade)
		})
	}
}

func TestAccountGrader_DataGapsCountedOncePerKeyword(t *testing.T) {
	st := newMemStore()
	st.accounts = []model.PublishingAccount{
		{ID: "a1", TenantID: "t1", Active: true},
		{ID: "a2", TenantID: "t1", Active: true},
	}
	st.keywords = []model.Keyword{
		{ID: "k1", TenantID: "t1", VolumeMissing: true, OwnRank: intPtr(3), Status: model.KeywordStatusActive},
		{ID: "k2", TenantID: "t1", VolumeMissing: true, Status: model.KeywordStatusPaused},
	}
	st.contents = []model.PublishedContent{
		content("c1", "a1", "k1", asOf),
		content("c2", "a1", "k2", asOf),
		content("c3", "a1", "ghost", asOf),
		content("c4", "a2", "k1", asOf),
		content("c5", "a2", "k2", asOf),
		content("c6", "a2", "ghost", asOf),
	}

	g := NewAccountGrader(st, weights.Legacy())
	res, err := g.GradeTenant(context.Background(), "t1", asOf)
	require.NoError(t, err)
	require.Len(t, res.Snapshots, 2)
	// ghost roster entry and paused k2 volume; active k1 is counted by the keyword grader
	assert.Equal(t, 2, res.Failures.DataGaps)
}

func TestAccountGrader_GradeChangeEmittedOnce(t *testing.T) {
	st := newMemStore()
	st.accounts = []model.PublishingAccount{
		{ID: "a1", TenantID: "t1", DisplayName: "Alpha", Active: true},
		{ID: "a2", TenantID: "t1", DisplayName: "Beta", Active: true},
	}
	st.keywords = []model.Keyword{
		{ID: "k1", TenantID: "t1", VolumeDesktop: 1000, OwnRank: intPtr(1), Status: model.KeywordStatusActive},
		{ID: "k2", TenantID: "t1", VolumeDesktop: 1000, Status: model.KeywordStatusActive},
	}
	st.contents = []model.PublishedContent{
		content("c1", "a1", "k1", asOf.Add(-48*time.Hour)),
		content("c2", "a1", "k2", asOf.Add(-24*time.Hour)),
	}
	prevDay := asOf.AddDate(0, 0, -1)
	st.accSnaps["a1|prev"] = model.AccountGradeSnapshot{AccountID: "a1", SnapshotDate: prevDay, Grade: model.GradeA}
	st.accSnaps["a2|prev"] = model.AccountGradeSnapshot{AccountID: "a2", SnapshotDate: prevDay, Grade: model.GradeC}

	g := NewAccountGrader(st, weights.Legacy())
	res, err := g.GradeTenant(context.Background(), "t1", asOf)
	require.NoError(t, err)
	require.Len(t, res.Snapshots, 2)
	require.Len(t, res.Changes, 1)

	change := res.Changes[0]
	assert.Equal(t, "a1", change.AccountID)
	assert.Equal(t, "Alpha", change.AccountName)
	assert.Equal(t, model.GradeA, change.Prev)
	assert.Equal(t, model.GradeB, change.Curr)
	assert.Equal(t, "exposure rate 50.0%, weighted exposure 50.0, 2 published", change.Reason)

	saved := st.accSnaps["a1|2025-03-15"]
	require.NotNil(t, saved.PreviousGrade)
	assert.Equal(t, model.GradeA, *saved.PreviousGrade)
	assert.Equal(t, NoPublishHistory, st.accSnaps["a2|2025-03-15"].ChangeReason)
}

func TestAccountGrader_Idempotent(t *testing.T) {
	st := newMemStore()
	st.accounts = []model.PublishingAccount{{ID: "a1", TenantID: "t1", Active: true}}
	st.keywords = []model.Keyword{{ID: "k1", TenantID: "t1", VolumeDesktop: 10, OwnRank: intPtr(5)}}
	st.contents = []model.PublishedContent{content("c1", "a1", "k1", asOf)}

	g := NewAccountGrader(st, weights.Legacy())
	first, err := g.GradeTenant(context.Background(), "t1", asOf)
	require.NoError(t, err)
	second, err := g.GradeTenant(context.Background(), "t1", asOf)
	require.NoError(t, err)

	assert.Equal(t, first.Snapshots, second.Snapshots)
	assert.Len(t, st.accSnaps, 1)
}

func TestAccountGrader_IgnoresFutureContent(t *testing.T) {
	st := newMemStore()
	st.accounts = []model.PublishingAccount{{ID: "a1", TenantID: "t1", Active: true}}
	st.keywords = []model.Keyword{{ID: "k1", TenantID: "t1", VolumeDesktop: 10}}
	st.contents = []model.PublishedContent{content("c1", "a1", "k1", asOf.AddDate(0, 0, 2))}

	res, err := NewAccountGrader(st, weights.Legacy()).GradeTenant(context.Background(), "t1", asOf)
	require.NoError(t, err)
	require.Len(t, res.Snapshots, 1)
	assert.Equal(t, 0, res.Snapshots[0].TotalPublished)
}

func TestAccountGrader_PersistenceFailureContinues(t *testing.T) {
	st := newMemStore()
	st.accounts = []model.PublishingAccount{
		{ID: "a1", TenantID: "t1", Active: true},
		{ID: "a2", TenantID: "t1", Active: true},
	}
	st.failUpsrt["a1"] = true

	res, err := NewAccountGrader(st, weights.Legacy()).GradeTenant(context.Background(), "t1", asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failures.Persistence)
	require.Len(t, res.Snapshots, 1)
	assert.Equal(t, "a2", res.Snapshots[0].AccountID)
}

// --- Keyword grading ---

func TestScoreKeyword(t *testing.T) {
	kw := &model.Keyword{
		ID: "k1", TenantID: "t1", VolumeDesktop: 1200, VolumeMobile: 3400,
		Competition: model.CompetitionHigh, OwnRank: intPtr(4),
	}
	snap := ScoreKeyword(kw, weights.Legacy())
	assert.Equal(t, 4600, snap.SearchVolume)
	assert.InDelta(t, 55.0, snap.VolumeScore, 0.001)
	assert.InDelta(t, 100.0, snap.CompetitionScore, 0.001)
	assert.InDelta(t, 30.0, snap.SerpScore, 0.001)
	// 55*0.4 + 100*0.35 + 30*0.25
	assert.InDelta(t, 64.5, snap.DifficultyScore, 0.001)
	assert.Equal(t, model.GradeA, snap.Grade)
	assert.InDelta(t, 35.5, snap.OpportunityScore, 0.001)
	assert.InDelta(t, 73.9, snap.MoRatio, 0.001)
}

func TestScoreKeyword_ZeroVolume(t *testing.T) {
	snap := ScoreKeyword(&model.Keyword{ID: "k1"}, weights.Legacy())
	assert.Equal(t, 0.0, snap.MoRatio)
	assert.InDelta(t, 50.0, snap.CompetitionScore, 0.001)
	assert.InDelta(t, 60.0, snap.SerpScore, 0.001)
}

func TestCompetitionScore(t *testing.T) {
	assert.Equal(t, 100.0, competitionScore(model.CompetitionHigh))
	assert.Equal(t, 60.0, competitionScore(model.CompetitionMedium))
	assert.Equal(t, 25.0, competitionScore(model.CompetitionLow))
	assert.Equal(t, 50.0, competitionScore(""))
}

func TestSerpScore(t *testing.T) {
	tests := []struct {
		name string
		rank *int
		want float64
	}{
		{"unranked", nil, 60},
		{"top10", intPtr(10), 30},
		{"page two", intPtr(11), 40},
		{"rank 20", intPtr(20), 40},
		{"deep", intPtr(35), 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serpScore(tt.rank, -20))
		})
	}
}

type stubVolumes struct {
	vols map[string]volume.Volume
}

func (s stubVolumes) Lookup(_ context.Context, text string) (volume.Volume, error) {
	v, ok := s.vols[text]
	if !ok {
		return volume.Volume{}, errors.New("lookup failed")
	}
	return v, nil
}

func TestKeywordGrader_GradeTenant(t *testing.T) {
	st := newMemStore()
	st.keywords = []model.Keyword{
		{ID: "k1", TenantID: "t1", Text: "alpha", VolumeDesktop: 10, Status: model.KeywordStatusActive},
		{ID: "k2", TenantID: "t1", Text: "beta", VolumeDesktop: 20000, VolumeMobile: 40000,
			Competition: model.CompetitionHigh, Status: model.KeywordStatusQueued},
		{ID: "k3", TenantID: "t1", Text: "gamma", Status: model.KeywordStatusPaused},
		{ID: "k4", TenantID: "t1", Text: "delta", VolumeMissing: true, Status: model.KeywordStatusRefresh},
	}
	provider := stubVolumes{vols: map[string]volume.Volume{"alpha": {Desktop: 600, Mobile: 0}}}

	g := NewKeywordGrader(st, weights.Legacy(), WithVolumeProvider(provider), WithWorkers(2))
	res, err := g.GradeTenant(context.Background(), "t1", asOf)
	require.NoError(t, err)

	require.Len(t, res.Snapshots, 3)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, res.Failures.External)
	assert.Equal(t, 1, res.Failures.DataGaps)
	assert.Equal(t, "k1", res.Snapshots[0].KeywordID)
	assert.Equal(t, 600, res.Snapshots[0].SearchVolume)

	total := 0
	for _, n := range res.Distribution {
		total += n
	}
	assert.Equal(t, 3, total)
	assert.Len(t, st.kwSnaps, 3)
}

func TestKeywordGrader_PersistenceFailure(t *testing.T) {
	st := newMemStore()
	st.keywords = []model.Keyword{
		{ID: "k1", TenantID: "t1", Status: model.KeywordStatusActive},
		{ID: "k2", TenantID: "t1", Status: model.KeywordStatusActive},
	}
	st.failUpsrt["k2"] = true

	res, err := NewKeywordGrader(st, weights.Legacy()).GradeTenant(context.Background(), "t1", asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failures.Persistence)
	require.Len(t, res.Snapshots, 1)
}
