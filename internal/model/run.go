package model

import "time"

// RunStatus is the state of an engine run in the run log.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunLogEntry is one row of the persisted run log.
type RunLogEntry struct {
	ID          string      `json:"id"`
	RunDate     time.Time   `json:"run_date"`
	Status      RunStatus   `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Summary     *RunSummary `json:"summary,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Failures counts recoverable per-entity problems observed during a run.
type Failures struct {
	Persistence int `json:"persistence"`
	DataGaps    int `json:"data_gaps"`
	External    int `json:"external"`
}

// Add accumulates o into f.
func (f *Failures) Add(o Failures) {
	f.Persistence += o.Persistence
	f.DataGaps += o.DataGaps
	f.External += o.External
}

// TenantResult holds the per-tenant totals of one run.
type TenantResult struct {
	TenantID        string   `json:"tenant_id"`
	Accounts        int      `json:"accounts"`
	Keywords        int      `json:"keywords"`
	Recommendations int      `json:"recommendations"`
	Failures        Failures `json:"failures"`
	Error           string   `json:"error,omitempty"`
}

// RunSummary is the end-of-run object handed to the notifier.
type RunSummary struct {
	RunID                    string         `json:"run_id"`
	RunDate                  string         `json:"run_date"`
	WeightsHash              string         `json:"weights_hash"`
	Accounts                 int            `json:"accounts"`
	Keywords                 int            `json:"keywords"`
	Recommendations          int            `json:"recommendations"`
	GradeChanges             []GradeChange  `json:"gradeChanges"`
	KeywordGradeDistribution map[Grade]int  `json:"keywordGradeDistribution"`
	Failures                 Failures       `json:"failures"`
	Tenants                  []TenantResult `json:"tenants"`
	FailedTenants            int            `json:"failed_tenants"`
	DurationMs               int64          `json:"duration_ms"`
}

// TenantMonthlyStats aggregates one tenant's recommendation outcomes for a month.
type TenantMonthlyStats struct {
	TenantID    string `json:"tenant_id"`
	Total       int    `json:"total"`
	Accepted    int    `json:"accepted"`
	Evaluated   int    `json:"evaluated"`
	Successes   int    `json:"successes"`
	SuccessRate int    `json:"success_rate"`
}

// MonthlyReport is the prior-month rollup handed to the notifier.
type MonthlyReport struct {
	Month   string               `json:"month"` // YYYY-MM
	Overall TenantMonthlyStats   `json:"overall"`
	Tenants []TenantMonthlyStats `json:"tenants"`
}
