package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rankwise/internal/model"
	"github.com/sells-group/rankwise/internal/report"
	"github.com/sells-group/rankwise/internal/weights"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"run", "serve", "report", "weights", "migrate", "seed"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "rankwise", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestWeightsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range weightsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"show", "validate", "save"} {
		assert.True(t, names[name], "expected weights subcommand %q not found", name)
	}
}

func TestRunCommand_Flags(t *testing.T) {
	for _, name := range []string{"date", "tenant", "concurrency", "force-monthly"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "run command should have --%s flag", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestReportCommand_Flags(t *testing.T) {
	flag := reportCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "table", flag.DefValue)
	assert.NotNil(t, reportCmd.Flags().Lookup("month"))
	assert.NotNil(t, reportCmd.Flags().Lookup("out"))
}

func newRunFlagsCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().String("date", "", "")
	cmd.Flags().StringSlice("tenant", nil, "")
	cmd.Flags().Int("concurrency", 0, "")
	cmd.Flags().Bool("force-monthly", false, "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestRunRequestFromFlags(t *testing.T) {
	req, err := runRequestFromFlags(newRunFlagsCmd(t,
		"--date", "2026-10-01", "--tenant", "t1,t2", "--concurrency", "3", "--force-monthly"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), req.Date)
	assert.Equal(t, []string{"t1", "t2"}, req.TenantIDs)
	assert.Equal(t, 3, req.Concurrency)
	assert.True(t, req.ForceMonthly)

	req, err = runRequestFromFlags(newRunFlagsCmd(t))
	require.NoError(t, err)
	assert.True(t, req.Date.IsZero())

	_, err = runRequestFromFlags(newRunFlagsCmd(t, "--date", "10/01/2026"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --date")
}

func TestWriteReport(t *testing.T) {
	r := &model.MonthlyReport{
		Month:   "2026-09",
		Overall: model.TenantMonthlyStats{Total: 10, Accepted: 5, Evaluated: 5, Successes: 3, SuccessRate: 60},
		Tenants: []model.TenantMonthlyStats{{TenantID: "t1", Total: 10, Accepted: 5, Evaluated: 5, Successes: 3, SuccessRate: 60}},
	}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, report.FormatJSON, r))
	assert.Contains(t, buf.String(), `"success_rate": 60`)

	buf.Reset()
	require.NoError(t, writeReport(&buf, report.FormatCSV, r))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	err := writeReport(&buf, report.Format("pdf"), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestReadFixture(t *testing.T) {
	doc := `
tenants:
  - id: t1
    name: Tenant One
    active: true
accounts:
  - id: a1
    tenant_id: t1
    display_name: Alpha
    active: true
keywords:
  - id: k1
    tenant_id: t1
    text: running shoes
    volume_desktop: 1200
    volume_mobile: 3400
    competition: high
    status: active
contents:
  - id: c1
    account_id: a1
    keyword_id: k1
    tenant_id: t1
    published_at: 2026-09-01T10:00:00Z
observations:
  - keyword_id: k1
    account_id: a1
    rank: 4
    is_own: true
    observed_at: 2026-09-10T00:00:00Z
`
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	f, err := readFixture(path)
	require.NoError(t, err)
	require.Len(t, f.Tenants, 1)
	require.Len(t, f.Keywords, 1)
	assert.Equal(t, 4600, f.Keywords[0].TotalVolume())
	assert.Equal(t, model.CompetitionHigh, f.Keywords[0].Competition)
	require.Len(t, f.Observations, 1)
	require.NotNil(t, f.Observations[0].AccountID)
	assert.Equal(t, "a1", *f.Observations[0].AccountID)
	assert.Equal(t, 4, *f.Observations[0].Rank)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), f.Contents[0].PublishedAt.UTC())

	_, err = readFixture(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestShippedFixtureAndWeights(t *testing.T) {
	f, err := readFixture(filepath.Join("..", "testdata", "fixture.yaml"))
	require.NoError(t, err)
	require.Len(t, f.Tenants, 1)
	assert.Len(t, f.Accounts, 2)
	assert.Len(t, f.Keywords, 3)
	assert.Len(t, f.Observations, 3)
	require.NotNil(t, f.Keywords[0].OwnRank)
	assert.Equal(t, 7, *f.Keywords[0].OwnRank)
	assert.Nil(t, f.Observations[2].AccountID)

	data, err := os.ReadFile(filepath.Join("..", "weights.yaml"))
	require.NoError(t, err)
	cfg, err := weights.Parse(data)
	require.NoError(t, err)
	warnings, err := weights.Validate(cfg)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, weights.Hash(weights.Legacy()), weights.Hash(cfg))
}
