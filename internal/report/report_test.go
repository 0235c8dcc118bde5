package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/rankwise/internal/model"
	"github.com/sells-group/rankwise/internal/store"
)

func feedback(f model.FeedbackResult) *model.FeedbackResult { return &f }

// monthRecs builds 10 recommendations: 5 accepted, 5 with feedback of which
// 3 reached the first page.
func monthRecs(tenantID string) []model.Recommendation {
	outcomes := []*model.FeedbackResult{
		feedback(model.FeedbackTop3), feedback(model.FeedbackTop10), feedback(model.FeedbackTop3),
		feedback(model.FeedbackTop20), feedback(model.FeedbackUnranked),
		nil, nil, nil, nil, nil,
	}
	recs := make([]model.Recommendation, 0, len(outcomes))
	for i, fb := range outcomes {
		status := model.RecommendationPending
		if i < 5 {
			status = model.RecommendationAccepted
		}
		recs = append(recs, model.Recommendation{
			TenantID:       tenantID,
			KeywordID:      "k" + string(rune('0'+i)),
			AccountID:      "a1",
			RecDate:        time.Date(2026, 9, 1+i, 0, 0, 0, 0, time.UTC),
			Status:         status,
			FeedbackResult: fb,
		})
	}
	return recs
}

func TestAggregate_SuccessRate(t *testing.T) {
	r := Aggregate(time.Date(2026, 9, 17, 0, 0, 0, 0, time.UTC), monthRecs("t1"))

	assert.Equal(t, "2026-09", r.Month)
	require.Len(t, r.Tenants, 1)
	assert.Equal(t, model.TenantMonthlyStats{
		TenantID: "t1", Total: 10, Accepted: 5, Evaluated: 5, Successes: 3, SuccessRate: 60,
	}, r.Tenants[0])
	assert.Equal(t, 60, r.Overall.SuccessRate)
	assert.Equal(t, 10, r.Overall.Total)
}

func TestAggregate_MultipleTenantsSorted(t *testing.T) {
	recs := append(monthRecs("t2"), monthRecs("t1")[:2]...)
	r := Aggregate(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), recs)

	require.Len(t, r.Tenants, 2)
	assert.Equal(t, "t1", r.Tenants[0].TenantID)
	assert.Equal(t, 2, r.Tenants[0].Total)
	assert.Equal(t, 100, r.Tenants[0].SuccessRate)
	assert.Equal(t, 12, r.Overall.Total)
	assert.Equal(t, 7, r.Overall.Evaluated)
	assert.Equal(t, 71, r.Overall.SuccessRate)
}

func TestAggregate_Empty(t *testing.T) {
	r := Aggregate(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), nil)
	assert.Empty(t, r.Tenants)
	assert.Equal(t, 0, r.Overall.SuccessRate)
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		successes, evaluated, want int
	}{
		{3, 5, 60},
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SuccessRate(tt.successes, tt.evaluated))
	}
}

func TestMonthHelpers(t *testing.T) {
	d := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), PriorMonth(d))
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), MonthStart(d))

	m, err := ParseMonth("2026-09")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), m)

	_, err = ParseMonth("September")
	assert.Error(t, err)
}

type fakeLister struct {
	got  store.RecommendationFilter
	recs []model.Recommendation
	err  error
}

func (f *fakeLister) ListRecommendations(_ context.Context, filter store.RecommendationFilter) ([]model.Recommendation, error) {
	f.got = filter
	return f.recs, f.err
}

func TestAggregator_Build(t *testing.T) {
	fl := &fakeLister{recs: monthRecs("t1")}
	r, err := NewAggregator(fl).Build(context.Background(), time.Date(2026, 9, 30, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Empty(t, fl.got.TenantID)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), fl.got.From)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), fl.got.To)
	assert.Equal(t, 60, r.Overall.SuccessRate)

	_, err = NewAggregator(&fakeLister{err: assert.AnError}).Build(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report: list recommendations")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, Aggregate(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), monthRecs("t1"))))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "MONTH"))
	assert.Equal(t, []string{"2026-09", "t1", "10", "5", "5", "3", "60"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"2026-09", OverallLabel, "10", "5", "5", "3", "60"}, strings.Fields(lines[2]))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Aggregate(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), monthRecs("t1"))))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, header, records[0])
	assert.Equal(t, "60", records[1][6])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, Aggregate(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), monthRecs("t1"))))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "2026-09", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "SUCCESS_RATE", sheet.Rows[0].Cells[6].String())
	assert.Equal(t, "t1", sheet.Rows[1].Cells[1].String())
	n, err := sheet.Rows[1].Cells[6].Int()
	require.NoError(t, err)
	assert.Equal(t, 60, n)
}
