package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rankwise/internal/model"
	"github.com/sells-group/rankwise/internal/resilience"
	"github.com/sells-group/rankwise/internal/store"
	"github.com/sells-group/rankwise/internal/weights"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func legacyWeightsFile(t *testing.T) weights.FileSource {
	t.Helper()
	data, err := weights.Marshal(weights.Legacy())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return weights.FileSource{Path: path}
}

func ptr[T any](v T) *T { return &v }

// singleAccountFixture seeds tenant t1 with one account and two tracked
// keywords. The account published for k2 sixty days before the run date, so
// nothing is blocked.
func singleAccountFixture(runDate time.Time) *store.Fixture {
	return &store.Fixture{
		Tenants:  []model.Tenant{{ID: "t1", Name: "Tenant One", Active: true}},
		Accounts: []model.PublishingAccount{{ID: "a1", TenantID: "t1", DisplayName: "Alpha", Active: true}},
		Keywords: []model.Keyword{
			{ID: "k1", TenantID: "t1", Text: "running shoes", VolumeDesktop: 1200, VolumeMobile: 3400,
				Competition: model.CompetitionHigh, Status: model.KeywordStatusActive},
			{ID: "k2", TenantID: "t1", Text: "trail socks", VolumeDesktop: 300, VolumeMobile: 200,
				Competition: model.CompetitionLow, OwnRank: ptr(8), Status: model.KeywordStatusActive},
		},
		Contents: []model.PublishedContent{
			{ID: "c1", AccountID: "a1", KeywordID: "k2", TenantID: "t1", PublishedAt: runDate.AddDate(0, 0, -60)},
		},
	}
}

type captureNotifier struct {
	mu        sync.Mutex
	summaries []*model.RunSummary
	reports   []*model.MonthlyReport
}

func (c *captureNotifier) Notify(_ context.Context, s *model.RunSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries = append(c.summaries, s)
	return nil
}

func (c *captureNotifier) NotifyMonthly(_ context.Context, r *model.MonthlyReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
	return assert.AnError // delivery failures never fail the run
}

func TestOrchestrator_EndToEndSingleAccount(t *testing.T) {
	ctx := context.Background()
	runDate := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	st := newTestStore(t)
	require.NoError(t, st.Seed(ctx, singleAccountFixture(runDate)))

	n := &captureNotifier{}
	o := New(st, legacyWeightsFile(t), WithNotifier(n))

	summary, err := o.Run(ctx, RunRequest{Date: runDate})
	require.NoError(t, err)

	assert.Equal(t, "2026-10-14", summary.RunDate)
	assert.Equal(t, 1, summary.Accounts)
	assert.Equal(t, 2, summary.Keywords)
	assert.Equal(t, 2, summary.Recommendations)
	assert.Equal(t, 0, summary.FailedTenants)
	assert.Equal(t, model.Failures{}, summary.Failures)
	assert.Equal(t, weights.Hash(weights.Legacy()), summary.WeightsHash)
	require.Len(t, summary.Tenants, 1)
	assert.Empty(t, summary.Tenants[0].Error)

	total := 0
	for _, c := range summary.KeywordGradeDistribution {
		total += c
	}
	assert.Equal(t, 2, total)
	assert.Len(t, summary.KeywordGradeDistribution, len(model.Grades))

	recs, err := st.ListRecommendations(ctx, store.RecommendationFilter{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, "a1", r.AccountID)
		assert.Equal(t, 1, r.Rank)
		assert.NotEmpty(t, r.Reason)
	}

	entry, err := st.GetRun(ctx, summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, entry.Status)
	require.NotNil(t, entry.Summary)
	assert.Equal(t, 2, entry.Summary.Recommendations)

	require.Len(t, n.summaries, 1)
	assert.Empty(t, n.reports, "monthly report runs only on the first of the month")

	// Re-running the same date rewrites the same rows.
	again, err := o.Run(ctx, RunRequest{Date: runDate})
	require.NoError(t, err)
	assert.NotEqual(t, summary.RunID, again.RunID)
	assert.Empty(t, again.GradeChanges)

	recs2, err := st.ListRecommendations(ctx, store.RecommendationFilter{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, recs2, 2)
	for i := range recs {
		assert.Equal(t, recs[i].MatchScore, recs2[i].MatchScore)
		assert.Equal(t, recs[i].KeywordID, recs2[i].KeywordID)
	}
}

func TestOrchestrator_GradeChangeAcrossDays(t *testing.T) {
	ctx := context.Background()
	day1 := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	st := newTestStore(t)
	require.NoError(t, st.Seed(ctx, singleAccountFixture(day1)))

	// Plant a prior snapshot with a grade the account cannot reach.
	require.NoError(t, st.UpsertAccountSnapshot(ctx, &model.AccountGradeSnapshot{
		AccountID: "a1", TenantID: "t1", SnapshotDate: day1.AddDate(0, 0, -1), Grade: model.GradeS, Score: 90,
	}))

	o := New(st, legacyWeightsFile(t), WithNotifier(&captureNotifier{}))
	summary, err := o.Run(ctx, RunRequest{Date: day1})
	require.NoError(t, err)
	require.Len(t, summary.GradeChanges, 1)
	assert.Equal(t, model.GradeS, summary.GradeChanges[0].Prev)
	assert.Equal(t, "a1", summary.GradeChanges[0].AccountID)
}

func TestOrchestrator_ConfigurationErrorIsFatal(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.Seed(ctx, singleAccountFixture(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC))))

	n := &captureNotifier{}
	o := New(st, weights.FileSource{Path: filepath.Join(t.TempDir(), "missing.yaml")}, WithNotifier(n))

	entry, err := o.Start(ctx, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	summary, err := o.Execute(ctx, entry, RunRequest{})
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, resilience.IsConfiguration(err))

	got, err := st.GetRun(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)

	snaps, err := st.ListAccountSnapshots(ctx, "t1", time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, snaps, "no tenant work after a configuration error")
	assert.Empty(t, n.summaries)
}

func TestOrchestrator_MalformedWeightsIsConfigurationError(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account: [not, a, map"), 0o600))

	_, err := New(st, weights.FileSource{Path: path}).Run(ctx, RunRequest{Date: time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)})
	require.Error(t, err)
	assert.True(t, resilience.IsConfiguration(err))
}

// failingStore fails the matcher's signal read for one tenant.
type failingStore struct {
	store.Store
	tenantID string
}

func (f failingStore) ListOwnObservations(ctx context.Context, tenantID string) ([]model.SerpObservation, error) {
	if tenantID == f.tenantID {
		return nil, assert.AnError
	}
	return f.Store.ListOwnObservations(ctx, tenantID)
}

func TestOrchestrator_TenantFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	runDate := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	st := newTestStore(t)
	require.NoError(t, st.Seed(ctx, singleAccountFixture(runDate)))

	second := singleAccountFixture(runDate)
	second.Tenants[0].ID = "t2"
	second.Accounts[0].ID, second.Accounts[0].TenantID = "b1", "t2"
	second.Keywords[0].ID, second.Keywords[0].TenantID = "m1", "t2"
	second.Keywords[1].ID, second.Keywords[1].TenantID = "m2", "t2"
	second.Contents[0] = model.PublishedContent{ID: "d1", AccountID: "b1", KeywordID: "m2", TenantID: "t2", PublishedAt: runDate.AddDate(0, 0, -60)}
	require.NoError(t, st.Seed(ctx, second))

	o := New(failingStore{Store: st, tenantID: "t1"}, legacyWeightsFile(t), WithNotifier(&captureNotifier{}), WithConcurrency(2))
	summary, err := o.Run(ctx, RunRequest{Date: runDate})
	require.NoError(t, err)

	require.Len(t, summary.Tenants, 2)
	assert.Equal(t, 1, summary.FailedTenants)
	byID := map[string]model.TenantResult{}
	for _, r := range summary.Tenants {
		byID[r.TenantID] = r
	}
	assert.Contains(t, byID["t1"].Error, "match stage")
	assert.Equal(t, 1, byID["t1"].Accounts, "earlier stages still ran")
	assert.Equal(t, 0, byID["t1"].Recommendations)
	assert.Empty(t, byID["t2"].Error)
	assert.Equal(t, 2, byID["t2"].Recommendations)
	assert.Equal(t, 2, summary.Recommendations)
}

func TestOrchestrator_TenantSubset(t *testing.T) {
	ctx := context.Background()
	runDate := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	st := newTestStore(t)
	require.NoError(t, st.Seed(ctx, singleAccountFixture(runDate)))

	summary, err := New(st, legacyWeightsFile(t)).Run(ctx, RunRequest{Date: runDate, TenantIDs: []string{"t1", "ghost"}})
	require.NoError(t, err)
	require.Len(t, summary.Tenants, 2)
	assert.Equal(t, "t1", summary.Tenants[0].TenantID)
	assert.Equal(t, "ghost", summary.Tenants[1].TenantID)
	assert.Equal(t, "tenant not found or inactive", summary.Tenants[1].Error)
	assert.Equal(t, 1, summary.FailedTenants)
}

func TestOrchestrator_MonthlyReportOnFirstOfMonth(t *testing.T) {
	ctx := context.Background()
	runDate := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	st := newTestStore(t)
	require.NoError(t, st.Seed(ctx, singleAccountFixture(runDate)))
	require.NoError(t, st.UpsertRecommendation(ctx, &model.Recommendation{
		TenantID: "t1", KeywordID: "k1", AccountID: "a1", RecDate: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		MatchScore: 70, Rank: 1, AccountGrade: model.GradeB, KeywordGrade: model.GradeA, Reason: "seeded",
	}))

	n := &captureNotifier{}
	_, err := New(st, legacyWeightsFile(t), WithNotifier(n)).Run(ctx, RunRequest{Date: runDate})
	require.NoError(t, err)

	require.Len(t, n.reports, 1)
	assert.Equal(t, "2026-09", n.reports[0].Month)
	assert.Equal(t, 1, n.reports[0].Overall.Total)
	assert.Equal(t, 0, n.reports[0].Overall.SuccessRate)
}

func TestOrchestrator_ForceMonthly(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	n := &captureNotifier{}
	_, err := New(st, legacyWeightsFile(t), WithNotifier(n)).Run(ctx, RunRequest{
		Date:         time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC),
		ForceMonthly: true,
	})
	require.NoError(t, err)
	require.Len(t, n.reports, 1)
	assert.Equal(t, "2026-09", n.reports[0].Month)
}

func TestOrchestrator_MonthlyReportDay(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	n := &captureNotifier{}
	o := New(st, legacyWeightsFile(t), WithNotifier(n), WithMonthlyReportDay(5))
	_, err := o.Run(ctx, RunRequest{Date: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Empty(t, n.reports)

	_, err = o.Run(ctx, RunRequest{Date: time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, n.reports, 1)
	assert.Equal(t, "2026-09", n.reports[0].Month)
}

func TestOrchestrator_DefaultDateUsesClock(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	clock := func() time.Time { return time.Date(2026, 10, 17, 15, 4, 5, 0, time.UTC) }

	summary, err := New(st, legacyWeightsFile(t), WithClock(clock)).Run(ctx, RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-17", summary.RunDate)
	assert.Empty(t, summary.Tenants)
}
