package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/rankwise/internal/db"
	"github.com/sells-group/rankwise/internal/model"
)

// timeLayout is how timestamps are stored in SQLite TEXT columns. Fixed
// width and UTC so lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05Z"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: conn}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tenants (
	id     TEXT PRIMARY KEY,
	name   TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS publishing_accounts (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	active       INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS keywords (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	text           TEXT NOT NULL DEFAULT '',
	volume_desktop INTEGER,
	volume_mobile  INTEGER,
	competition    TEXT NOT NULL DEFAULT '',
	own_rank       INTEGER,
	status         TEXT NOT NULL DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS published_contents (
	id           TEXT PRIMARY KEY,
	account_id   TEXT NOT NULL,
	keyword_id   TEXT NOT NULL,
	tenant_id    TEXT NOT NULL,
	published_at TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'published'
);

CREATE TABLE IF NOT EXISTS serp_observations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	keyword_id  TEXT NOT NULL,
	account_id  TEXT,
	rank        INTEGER,
	observed_at TEXT NOT NULL,
	is_own      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS account_grade_snapshots (
	account_id           TEXT NOT NULL,
	snapshot_date        TEXT NOT NULL,
	tenant_id            TEXT NOT NULL,
	total_published      INTEGER NOT NULL DEFAULT 0,
	distinct_keywords    INTEGER NOT NULL DEFAULT 0,
	exposed_keywords     INTEGER NOT NULL DEFAULT 0,
	exposure_rate        REAL NOT NULL DEFAULT 0,
	weighted_exposure    REAL NOT NULL DEFAULT 0,
	content_volume_score REAL NOT NULL DEFAULT 0,
	avg_rank             REAL,
	top3_count           INTEGER NOT NULL DEFAULT 0,
	top10_count          INTEGER NOT NULL DEFAULT 0,
	top3_ratio           REAL NOT NULL DEFAULT 0,
	top10_ratio          REAL NOT NULL DEFAULT 0,
	score                REAL NOT NULL DEFAULT 0,
	grade                TEXT NOT NULL,
	previous_grade       TEXT,
	change_reason        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (account_id, snapshot_date)
);

CREATE TABLE IF NOT EXISTS keyword_difficulty_snapshots (
	keyword_id        TEXT NOT NULL,
	snapshot_date     TEXT NOT NULL,
	tenant_id         TEXT NOT NULL,
	search_volume     INTEGER NOT NULL DEFAULT 0,
	competition_level TEXT NOT NULL DEFAULT '',
	own_rank          INTEGER,
	mo_ratio          REAL NOT NULL DEFAULT 0,
	volume_score      REAL NOT NULL DEFAULT 0,
	competition_score REAL NOT NULL DEFAULT 0,
	serp_score        REAL NOT NULL DEFAULT 0,
	difficulty_score  REAL NOT NULL DEFAULT 0,
	grade             TEXT NOT NULL,
	opportunity_score REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (keyword_id, snapshot_date)
);

CREATE TABLE IF NOT EXISTS recommendations (
	tenant_id       TEXT NOT NULL,
	keyword_id      TEXT NOT NULL,
	account_id      TEXT NOT NULL,
	rec_date        TEXT NOT NULL,
	match_score     REAL NOT NULL DEFAULT 0,
	rank            INTEGER NOT NULL,
	account_grade   TEXT NOT NULL,
	keyword_grade   TEXT NOT NULL,
	bonuses         TEXT NOT NULL DEFAULT '{}',
	penalties       TEXT NOT NULL DEFAULT '{}',
	reason          TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'pending',
	feedback_result TEXT,
	PRIMARY KEY (tenant_id, keyword_id, account_id, rec_date)
);

CREATE TABLE IF NOT EXISTS weight_configs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	document   TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS engine_runs (
	id           TEXT PRIMARY KEY,
	run_date     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TEXT NOT NULL,
	completed_at TEXT,
	summary      TEXT,
	error        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_accounts_tenant ON publishing_accounts(tenant_id);
CREATE INDEX IF NOT EXISTS idx_keywords_tenant ON keywords(tenant_id);
CREATE INDEX IF NOT EXISTS idx_contents_tenant ON published_contents(tenant_id);
CREATE INDEX IF NOT EXISTS idx_serp_keyword ON serp_observations(keyword_id, observed_at);
CREATE INDEX IF NOT EXISTS idx_account_snapshots_tenant ON account_grade_snapshots(tenant_id, snapshot_date);
CREATE INDEX IF NOT EXISTS idx_keyword_snapshots_tenant ON keyword_difficulty_snapshots(tenant_id, snapshot_date);
CREATE INDEX IF NOT EXISTS idx_recommendations_date ON recommendations(rec_date);
`

var (
	sqliteAccountSnapshotUpsert = db.MustUpsertSQL(db.UpsertConfig{
		Table:        "account_grade_snapshots",
		Columns:      accountSnapshotColumns,
		ConflictKeys: []string{"account_id", "snapshot_date"},
	}, db.SQLite)
	sqliteKeywordSnapshotUpsert = db.MustUpsertSQL(db.UpsertConfig{
		Table:        "keyword_difficulty_snapshots",
		Columns:      keywordSnapshotColumns,
		ConflictKeys: []string{"keyword_id", "snapshot_date"},
	}, db.SQLite)
	sqliteRecommendationUpsert = db.MustUpsertSQL(db.UpsertConfig{
		Table:        "recommendations",
		Columns:      recommendationColumns,
		ConflictKeys: []string{"tenant_id", "keyword_id", "account_id", "rec_date"},
		UpdateCols:   recommendationUpdateColumns,
	}, db.SQLite)
)

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Rosters ---

func (s *SQLiteStore) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, active FROM tenants WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tenants")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Tenant
	for rows.Next() {
		var t model.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tenant")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list tenants iterate")
}

func (s *SQLiteStore) ListAccounts(ctx context.Context, tenantID string) ([]model.PublishingAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, display_name, active FROM publishing_accounts
		 WHERE tenant_id = ? AND active = 1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list accounts for %s", tenantID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.PublishingAccount
	for rows.Next() {
		var a model.PublishingAccount
		if err := rows.Scan(&a.ID, &a.TenantID, &a.DisplayName, &a.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan account")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list accounts iterate")
}

func (s *SQLiteStore) ListKeywords(ctx context.Context, tenantID string) ([]model.Keyword, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, text, volume_desktop, volume_mobile, competition, own_rank, status
		 FROM keywords WHERE tenant_id = ? ORDER BY id`, tenantID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list keywords for %s", tenantID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Keyword
	for rows.Next() {
		var (
			k               model.Keyword
			desktop, mobile sql.NullInt64
			ownRank         sql.NullInt64
		)
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Text, &desktop, &mobile, &k.Competition, &ownRank, &k.Status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan keyword")
		}
		k.VolumeDesktop = int(desktop.Int64)
		k.VolumeMobile = int(mobile.Int64)
		k.VolumeMissing = !desktop.Valid && !mobile.Valid
		if ownRank.Valid {
			r := int(ownRank.Int64)
			k.OwnRank = &r
		}
		out = append(out, k)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list keywords iterate")
}

func (s *SQLiteStore) ListPublishedContent(ctx context.Context, tenantID string) ([]model.PublishedContent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, keyword_id, tenant_id, published_at, status
		 FROM published_contents WHERE tenant_id = ? ORDER BY published_at, id`, tenantID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list content for %s", tenantID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.PublishedContent
	for rows.Next() {
		var (
			c  model.PublishedContent
			at string
		)
		if err := rows.Scan(&c.ID, &c.AccountID, &c.KeywordID, &c.TenantID, &at, &c.Status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan content")
		}
		if c.PublishedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list content iterate")
}

func (s *SQLiteStore) ListOwnObservations(ctx context.Context, tenantID string) ([]model.SerpObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT o.keyword_id, o.account_id, o.rank, o.observed_at, o.is_own
		 FROM serp_observations o JOIN keywords k ON k.id = o.keyword_id
		 WHERE k.tenant_id = ? AND o.is_own = 1
		 ORDER BY o.observed_at, o.id`, tenantID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list observations for %s", tenantID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SerpObservation
	for rows.Next() {
		var (
			o         model.SerpObservation
			accountID sql.NullString
			rank      sql.NullInt64
			at        string
		)
		if err := rows.Scan(&o.KeywordID, &accountID, &rank, &at, &o.IsOwn); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observation")
		}
		if accountID.Valid {
			o.AccountID = &accountID.String
		}
		if rank.Valid {
			r := int(rank.Int64)
			o.Rank = &r
		}
		if o.ObservedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list observations iterate")
}

// --- Account grade history ---

func (s *SQLiteStore) UpsertAccountSnapshot(ctx context.Context, snap *model.AccountGradeSnapshot) error {
	_, err := s.db.ExecContext(ctx, sqliteAccountSnapshotUpsert,
		accountSnapshotArgs(snap, formatDate(snap.SnapshotDate))...)
	return eris.Wrapf(err, "sqlite: upsert account snapshot %s", snap.AccountID)
}

const sqliteAccountSnapshotSelect = `SELECT account_id, snapshot_date, tenant_id, total_published,
	distinct_keywords, exposed_keywords, exposure_rate, weighted_exposure, content_volume_score,
	avg_rank, top3_count, top10_count, top3_ratio, top10_ratio, score, grade, previous_grade,
	change_reason FROM account_grade_snapshots`

func (s *SQLiteStore) LatestAccountSnapshotBefore(ctx context.Context, accountID string, date time.Time) (*model.AccountGradeSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		sqliteAccountSnapshotSelect+` WHERE account_id = ? AND snapshot_date < ?
		ORDER BY snapshot_date DESC LIMIT 1`,
		accountID, formatDate(date),
	)
	snap, err := scanSQLiteAccountSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest account snapshot %s", accountID)
	}
	return snap, nil
}

func (s *SQLiteStore) ListAccountSnapshots(ctx context.Context, tenantID string, date time.Time) ([]model.AccountGradeSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		sqliteAccountSnapshotSelect+` WHERE tenant_id = ? AND snapshot_date = ? ORDER BY account_id`,
		tenantID, formatDate(date),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list account snapshots for %s", tenantID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.AccountGradeSnapshot
	for rows.Next() {
		snap, err := scanSQLiteAccountSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan account snapshot")
		}
		out = append(out, *snap)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list account snapshots iterate")
}

func scanSQLiteAccountSnapshot(row scannable) (*model.AccountGradeSnapshot, error) {
	var (
		snap  model.AccountGradeSnapshot
		date  string
		avg   sql.NullFloat64
		prev  sql.NullString
		grade string
	)
	err := row.Scan(&snap.AccountID, &date, &snap.TenantID, &snap.TotalPublished,
		&snap.DistinctKeywords, &snap.ExposedKeywords, &snap.ExposureRate, &snap.WeightedExposure,
		&snap.ContentVolumeScore, &avg, &snap.Top3Count, &snap.Top10Count, &snap.Top3Ratio,
		&snap.Top10Ratio, &snap.Score, &grade, &prev, &snap.ChangeReason)
	if err != nil {
		return nil, err
	}
	if snap.SnapshotDate, err = model.ParseDay(date); err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse snapshot date %q", date)
	}
	snap.AvgRank = avg.Float64
	snap.Grade = model.Grade(grade)
	if prev.Valid {
		snap.PreviousGrade = gradePtr(&prev.String)
	}
	return &snap, nil
}

// --- Keyword difficulty history ---

func (s *SQLiteStore) UpsertKeywordSnapshot(ctx context.Context, snap *model.KeywordDifficultySnapshot) error {
	_, err := s.db.ExecContext(ctx, sqliteKeywordSnapshotUpsert,
		keywordSnapshotArgs(snap, formatDate(snap.SnapshotDate))...)
	return eris.Wrapf(err, "sqlite: upsert keyword snapshot %s", snap.KeywordID)
}

func (s *SQLiteStore) ListKeywordSnapshots(ctx context.Context, tenantID string, date time.Time) ([]model.KeywordDifficultySnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT keyword_id, snapshot_date, tenant_id, search_volume, competition_level, own_rank,
		 mo_ratio, volume_score, competition_score, serp_score, difficulty_score, grade, opportunity_score
		 FROM keyword_difficulty_snapshots WHERE tenant_id = ? AND snapshot_date = ? ORDER BY keyword_id`,
		tenantID, formatDate(date),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list keyword snapshots for %s", tenantID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.KeywordDifficultySnapshot
	for rows.Next() {
		var (
			snap    model.KeywordDifficultySnapshot
			date    string
			comp    string
			ownRank sql.NullInt64
			grade   string
		)
		if err := rows.Scan(&snap.KeywordID, &date, &snap.TenantID, &snap.SearchVolume, &comp,
			&ownRank, &snap.MoRatio, &snap.VolumeScore, &snap.CompetitionScore, &snap.SerpScore,
			&snap.DifficultyScore, &grade, &snap.OpportunityScore); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan keyword snapshot")
		}
		if snap.SnapshotDate, err = model.ParseDay(date); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse snapshot date %q", date)
		}
		snap.CompetitionLevel = model.Competition(comp)
		snap.Grade = model.Grade(grade)
		if ownRank.Valid {
			r := int(ownRank.Int64)
			snap.OwnRank = &r
		}
		out = append(out, snap)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list keyword snapshots iterate")
}

// --- Recommendations ---

func (s *SQLiteStore) UpsertRecommendation(ctx context.Context, r *model.Recommendation) error {
	bonuses, penalties, err := marshalAudit(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqliteRecommendationUpsert,
		r.TenantID, r.KeywordID, r.AccountID, formatDate(r.RecDate), r.MatchScore, r.Rank,
		string(r.AccountGrade), string(r.KeywordGrade), string(bonuses), string(penalties),
		r.Reason, string(model.RecommendationPending),
	)
	return eris.Wrapf(err, "sqlite: upsert recommendation %s/%s", r.KeywordID, r.AccountID)
}

func (s *SQLiteStore) ListRecommendations(ctx context.Context, filter RecommendationFilter) ([]model.Recommendation, error) {
	query := `SELECT tenant_id, keyword_id, account_id, rec_date, match_score, rank, account_grade,
		keyword_grade, bonuses, penalties, reason, status, feedback_result
		FROM recommendations WHERE 1=1`
	var args []any

	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}
	if filter.KeywordID != "" {
		query += ` AND keyword_id = ?`
		args = append(args, filter.KeywordID)
	}
	if !filter.From.IsZero() {
		query += ` AND rec_date >= ?`
		args = append(args, formatDate(filter.From))
	}
	if !filter.To.IsZero() {
		query += ` AND rec_date < ?`
		args = append(args, formatDate(filter.To))
	}
	query += ` ORDER BY tenant_id, rec_date, keyword_id, rank`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recommendations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Recommendation
	for rows.Next() {
		var (
			r                  model.Recommendation
			date               string
			accGrade, kwGrade  string
			bonuses, penalties string
			feedback           sql.NullString
		)
		if err := rows.Scan(&r.TenantID, &r.KeywordID, &r.AccountID, &date, &r.MatchScore, &r.Rank,
			&accGrade, &kwGrade, &bonuses, &penalties, &r.Reason, &r.Status, &feedback); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recommendation")
		}
		if r.RecDate, err = model.ParseDay(date); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse rec date %q", date)
		}
		r.AccountGrade = model.Grade(accGrade)
		r.KeywordGrade = model.Grade(kwGrade)
		if err := unmarshalAudit(&r, []byte(bonuses), []byte(penalties)); err != nil {
			return nil, err
		}
		if feedback.Valid {
			r.FeedbackResult = feedbackPtr(&feedback.String)
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list recommendations iterate")
}

// --- Run log ---

func (s *SQLiteStore) StartRun(ctx context.Context, runDate time.Time) (*model.RunLogEntry, error) {
	entry := &model.RunLogEntry{
		ID:        uuid.New().String(),
		RunDate:   model.Day(runDate),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO engine_runs (id, run_date, status, started_at) VALUES (?, ?, ?, ?)`,
		entry.ID, formatDate(entry.RunDate), string(entry.Status), formatTime(entry.StartedAt),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: start run")
	}
	return entry, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run summary")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE engine_runs SET status = ?, completed_at = ?, summary = ? WHERE id = ?`,
		string(model.RunStatusComplete), formatTime(time.Now()), string(data), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE engine_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(model.RunStatusFailed), formatTime(time.Now()), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.RunLogEntry, error) {
	var (
		e           model.RunLogEntry
		date        string
		started     string
		completed   sql.NullString
		summaryJSON sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, run_date, status, started_at, completed_at, summary, error FROM engine_runs WHERE id = ?`,
		runID,
	).Scan(&e.ID, &date, &e.Status, &started, &completed, &summaryJSON, &e.Error)
	if err == sql.ErrNoRows {
		return nil, notFound("run", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	if e.RunDate, err = model.ParseDay(date); err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse run date %q", date)
	}
	if e.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if completed.Valid {
		t, err := parseTime(completed.String)
		if err != nil {
			return nil, err
		}
		e.CompletedAt = &t
	}
	if summaryJSON.Valid {
		e.Summary = &model.RunSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), e.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run summary")
		}
	}
	return &e, nil
}

// --- Weight documents ---

func (s *SQLiteStore) LatestWeightDocument(ctx context.Context) ([]byte, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM weight_configs ORDER BY id DESC LIMIT 1`,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest weight document")
	}
	return []byte(doc), nil
}

func (s *SQLiteStore) SaveWeightDocument(ctx context.Context, doc []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO weight_configs (document, created_at) VALUES (?, ?)`,
		string(doc), formatTime(time.Now()),
	)
	return eris.Wrap(err, "sqlite: save weight document")
}

// --- Seeding ---

// Seed upserts roster rows in one transaction. Observations are appended.
func (s *SQLiteStore) Seed(ctx context.Context, f *Fixture) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: seed begin")
	}
	defer tx.Rollback() //nolint:errcheck

	exec := func(query string, args ...any) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	}
	for _, t := range f.Tenants {
		if err := exec(db.MustUpsertSQL(tenantUpsert, db.SQLite), tenantArgs(t)...); err != nil {
			return eris.Wrapf(err, "sqlite: seed tenant %s", t.ID)
		}
	}
	for _, a := range f.Accounts {
		if err := exec(db.MustUpsertSQL(accountUpsert, db.SQLite), accountArgs(a)...); err != nil {
			return eris.Wrapf(err, "sqlite: seed account %s", a.ID)
		}
	}
	for _, k := range f.Keywords {
		if err := exec(db.MustUpsertSQL(keywordUpsert, db.SQLite), keywordArgs(k)...); err != nil {
			return eris.Wrapf(err, "sqlite: seed keyword %s", k.ID)
		}
	}
	for _, c := range f.Contents {
		args := contentArgs(c)
		args[4] = formatTime(c.PublishedAt)
		if err := exec(db.MustUpsertSQL(contentUpsert, db.SQLite), args...); err != nil {
			return eris.Wrapf(err, "sqlite: seed content %s", c.ID)
		}
	}
	for _, o := range f.Observations {
		if err := exec(
			`INSERT INTO serp_observations (keyword_id, account_id, rank, observed_at, is_own) VALUES (?, ?, ?, ?, ?)`,
			o.KeywordID, nullable(o.AccountID), nullable(o.Rank), formatTime(o.ObservedAt), o.IsOwn,
		); err != nil {
			return eris.Wrapf(err, "sqlite: seed observation %s", o.KeywordID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: seed commit")
}

// helpers

func formatDate(t time.Time) string { return model.Day(t).Format(model.DateLayout) }

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: parse timestamp %q", s)
	}
	return t, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}
