package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rankwise/internal/db"
	"github.com/sells-group/rankwise/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var (
	pgAccountSnapshotUpsert = db.MustUpsertSQL(db.UpsertConfig{
		Table:        "account_grade_snapshots",
		Columns:      accountSnapshotColumns,
		ConflictKeys: []string{"account_id", "snapshot_date"},
	}, db.Postgres)
	pgKeywordSnapshotUpsert = db.MustUpsertSQL(db.UpsertConfig{
		Table:        "keyword_difficulty_snapshots",
		Columns:      keywordSnapshotColumns,
		ConflictKeys: []string{"keyword_id", "snapshot_date"},
	}, db.Postgres)
	pgRecommendationUpsert = db.MustUpsertSQL(db.UpsertConfig{
		Table:        "recommendations",
		Columns:      recommendationColumns,
		ConflictKeys: []string{"tenant_id", "keyword_id", "account_id", "rec_date"},
		UpdateCols:   recommendationUpdateColumns,
	}, db.Postgres)
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tenants (
	id     TEXT PRIMARY KEY,
	name   TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS publishing_accounts (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	active       BOOLEAN NOT NULL DEFAULT true
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
	published_at TIMESTAMPTZ NOT NULL,
	status       TEXT NOT NULL DEFAULT 'published'
);

CREATE TABLE IF NOT EXISTS serp_observations (
	id          BIGSERIAL PRIMARY KEY,
	keyword_id  TEXT NOT NULL,
	account_id  TEXT,
	rank        INTEGER,
	observed_at TIMESTAMPTZ NOT NULL,
	is_own      BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS account_grade_snapshots (
	account_id           TEXT NOT NULL,
	snapshot_date        DATE NOT NULL,
	tenant_id            TEXT NOT NULL,
	total_published      INTEGER NOT NULL DEFAULT 0,
	distinct_keywords    INTEGER NOT NULL DEFAULT 0,
	exposed_keywords     INTEGER NOT NULL DEFAULT 0,
	exposure_rate        DOUBLE PRECISION NOT NULL DEFAULT 0,
	weighted_exposure    DOUBLE PRECISION NOT NULL DEFAULT 0,
	content_volume_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_rank             DOUBLE PRECISION NOT NULL DEFAULT 0,
	top3_count           INTEGER NOT NULL DEFAULT 0,
	top10_count          INTEGER NOT NULL DEFAULT 0,
	top3_ratio           DOUBLE PRECISION NOT NULL DEFAULT 0,
	top10_ratio          DOUBLE PRECISION NOT NULL DEFAULT 0,
	score                DOUBLE PRECISION NOT NULL DEFAULT 0,
	grade                TEXT NOT NULL,
	previous_grade       TEXT,
	change_reason        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (account_id, snapshot_date)
);

CREATE TABLE IF NOT EXISTS keyword_difficulty_snapshots (
	keyword_id        TEXT NOT NULL,
	snapshot_date     DATE NOT NULL,
	tenant_id         TEXT NOT NULL,
	search_volume     INTEGER NOT NULL DEFAULT 0,
	competition_level TEXT NOT NULL DEFAULT '',
	own_rank          INTEGER,
	mo_ratio          DOUBLE PRECISION NOT NULL DEFAULT 0,
	volume_score      DOUBLE PRECISION NOT NULL DEFAULT 0,
	competition_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	serp_score        DOUBLE PRECISION NOT NULL DEFAULT 0,
	difficulty_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	grade             TEXT NOT NULL,
	opportunity_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (keyword_id, snapshot_date)
);

CREATE TABLE IF NOT EXISTS recommendations (
	tenant_id       TEXT NOT NULL,
	keyword_id      TEXT NOT NULL,
	account_id      TEXT NOT NULL,
	rec_date        DATE NOT NULL,
	match_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
	rank            INTEGER NOT NULL,
	account_grade   TEXT NOT NULL,
	keyword_grade   TEXT NOT NULL,
	bonuses         JSONB NOT NULL DEFAULT '{}',
	penalties       JSONB NOT NULL DEFAULT '{}',
	reason          TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'pending',
	feedback_result TEXT,
	PRIMARY KEY (tenant_id, keyword_id, account_id, rec_date)
);

CREATE TABLE IF NOT EXISTS weight_configs (
	id         BIGSERIAL PRIMARY KEY,
	document   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS engine_runs (
	id           TEXT PRIMARY KEY,
	run_date     DATE NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	summary      JSONB,
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Rosters ---

func (s *PostgresStore) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, active FROM tenants WHERE active ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tenants")
	}
	defer rows.Close()

	var out []model.Tenant
	for rows.Next() {
		var t model.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tenant")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list tenants iterate")
}

func (s *PostgresStore) ListAccounts(ctx context.Context, tenantID string) ([]model.PublishingAccount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, display_name, active FROM publishing_accounts
		 WHERE tenant_id = $1 AND active ORDER BY id`, tenantID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list accounts for %s", tenantID)
	}
	defer rows.Close()

	var out []model.PublishingAccount
	for rows.Next() {
		var a model.PublishingAccount
		if err := rows.Scan(&a.ID, &a.TenantID, &a.DisplayName, &a.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan account")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list accounts iterate")
}

func (s *PostgresStore) ListKeywords(ctx context.Context, tenantID string) ([]model.Keyword, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, text, volume_desktop, volume_mobile, competition, own_rank, status
		 FROM keywords WHERE tenant_id = $1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list keywords for %s", tenantID)
	}
	defer rows.Close()

	var out []model.Keyword
	for rows.Next() {
		var (
			k                   model.Keyword
			desktop, mobile     *int32
			competition, status string
			ownRank             *int32
		)
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Text, &desktop, &mobile, &competition, &ownRank, &status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan keyword")
		}
		if desktop != nil {
			k.VolumeDesktop = int(*desktop)
		}
		if mobile != nil {
			k.VolumeMobile = int(*mobile)
		}
		k.VolumeMissing = desktop == nil && mobile == nil
		k.Competition = model.Competition(competition)
		k.Status = model.KeywordStatus(status)
		k.OwnRank = intPtr(ownRank)
		out = append(out, k)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list keywords iterate")
}

func (s *PostgresStore) ListPublishedContent(ctx context.Context, tenantID string) ([]model.PublishedContent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, keyword_id, tenant_id, published_at, status
		 FROM published_contents WHERE tenant_id = $1 ORDER BY published_at, id`, tenantID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list content for %s", tenantID)
	}
	defer rows.Close()

	var out []model.PublishedContent
	for rows.Next() {
		var c model.PublishedContent
		if err := rows.Scan(&c.ID, &c.AccountID, &c.KeywordID, &c.TenantID, &c.PublishedAt, &c.Status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan content")
		}
		c.PublishedAt = c.PublishedAt.UTC()
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list content iterate")
}

func (s *PostgresStore) ListOwnObservations(ctx context.Context, tenantID string) ([]model.SerpObservation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT o.keyword_id, o.account_id, o.rank, o.observed_at, o.is_own
		 FROM serp_observations o JOIN keywords k ON k.id = o.keyword_id
		 WHERE k.tenant_id = $1 AND o.is_own
		 ORDER BY o.observed_at, o.id`, tenantID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list observations for %s", tenantID)
	}
	defer rows.Close()

	var out []model.SerpObservation
	for rows.Next() {
		var (
			o    model.SerpObservation
			rank *int32
		)
		if err := rows.Scan(&o.KeywordID, &o.AccountID, &rank, &o.ObservedAt, &o.IsOwn); err != nil {
			return nil, eris.Wrap(err, "postgres: scan observation")
		}
		o.Rank = intPtr(rank)
		o.ObservedAt = o.ObservedAt.UTC()
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list observations iterate")
}

// --- Account grade history ---

func (s *PostgresStore) UpsertAccountSnapshot(ctx context.Context, snap *model.AccountGradeSnapshot) error {
	_, err := s.pool.Exec(ctx, pgAccountSnapshotUpsert,
		accountSnapshotArgs(snap, model.Day(snap.SnapshotDate))...)
	return eris.Wrapf(err, "postgres: upsert account snapshot %s", snap.AccountID)
}

const pgAccountSnapshotSelect = `SELECT account_id, snapshot_date, tenant_id, total_published,
	distinct_keywords, exposed_keywords, exposure_rate, weighted_exposure, content_volume_score,
	avg_rank, top3_count, top10_count, top3_ratio, top10_ratio, score, grade, previous_grade,
	change_reason FROM account_grade_snapshots`

func (s *PostgresStore) LatestAccountSnapshotBefore(ctx context.Context, accountID string, date time.Time) (*model.AccountGradeSnapshot, error) {
	row := s.pool.QueryRow(ctx,
		pgAccountSnapshotSelect+` WHERE account_id = $1 AND snapshot_date < $2
		ORDER BY snapshot_date DESC LIMIT 1`,
		accountID, model.Day(date),
	)
	snap, err := scanPgAccountSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest account snapshot %s", accountID)
	}
	return snap, nil
}

func (s *PostgresStore) ListAccountSnapshots(ctx context.Context, tenantID string, date time.Time) ([]model.AccountGradeSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		pgAccountSnapshotSelect+` WHERE tenant_id = $1 AND snapshot_date = $2 ORDER BY account_id`,
		tenantID, model.Day(date),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list account snapshots for %s", tenantID)
	}
	defer rows.Close()

	var out []model.AccountGradeSnapshot
	for rows.Next() {
		snap, err := scanPgAccountSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan account snapshot")
		}
		out = append(out, *snap)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list account snapshots iterate")
}

func scanPgAccountSnapshot(row scannable) (*model.AccountGradeSnapshot, error) {
	var (
		snap  model.AccountGradeSnapshot
		grade string
		prev  *string
	)
	err := row.Scan(&snap.AccountID, &snap.SnapshotDate, &snap.TenantID, &snap.TotalPublished,
		&snap.DistinctKeywords, &snap.ExposedKeywords, &snap.ExposureRate, &snap.WeightedExposure,
		&snap.ContentVolumeScore, &snap.AvgRank, &snap.Top3Count, &snap.Top10Count, &snap.Top3Ratio,
		&snap.Top10Ratio, &snap.Score, &grade, &prev, &snap.ChangeReason)
	if err != nil {
		return nil, err
	}
	snap.SnapshotDate = model.Day(snap.SnapshotDate)
	snap.Grade = model.Grade(grade)
	snap.PreviousGrade = gradePtr(prev)
	return &snap, nil
}

// --- Keyword difficulty history ---

func (s *PostgresStore) UpsertKeywordSnapshot(ctx context.Context, snap *model.KeywordDifficultySnapshot) error {
	_, err := s.pool.Exec(ctx, pgKeywordSnapshotUpsert,
		keywordSnapshotArgs(snap, model.Day(snap.SnapshotDate))...)
	return eris.Wrapf(err, "postgres: upsert keyword snapshot %s", snap.KeywordID)
}

func (s *PostgresStore) ListKeywordSnapshots(ctx context.Context, tenantID string, date time.Time) ([]model.KeywordDifficultySnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT keyword_id, snapshot_date, tenant_id, search_volume, competition_level, own_rank,
		 mo_ratio, volume_score, competition_score, serp_score, difficulty_score, grade, opportunity_score
		 FROM keyword_difficulty_snapshots WHERE tenant_id = $1 AND snapshot_date = $2 ORDER BY keyword_id`,
		tenantID, model.Day(date),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list keyword snapshots for %s", tenantID)
	}
	defer rows.Close()

	var out []model.KeywordDifficultySnapshot
	for rows.Next() {
		var (
			snap        model.KeywordDifficultySnapshot
			competition string
			grade       string
			ownRank     *int32
		)
		if err := rows.Scan(&snap.KeywordID, &snap.SnapshotDate, &snap.TenantID, &snap.SearchVolume,
			&competition, &ownRank, &snap.MoRatio, &snap.VolumeScore, &snap.CompetitionScore,
			&snap.SerpScore, &snap.DifficultyScore, &grade, &snap.OpportunityScore); err != nil {
			return nil, eris.Wrap(err, "postgres: scan keyword snapshot")
		}
		snap.SnapshotDate = model.Day(snap.SnapshotDate)
		snap.CompetitionLevel = model.Competition(competition)
		snap.Grade = model.Grade(grade)
		snap.OwnRank = intPtr(ownRank)
		out = append(out, snap)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list keyword snapshots iterate")
}

// --- Recommendations ---

func (s *PostgresStore) UpsertRecommendation(ctx context.Context, r *model.Recommendation) error {
	bonuses, penalties, err := marshalAudit(r)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, pgRecommendationUpsert,
		r.TenantID, r.KeywordID, r.AccountID, model.Day(r.RecDate), r.MatchScore, r.Rank,
		string(r.AccountGrade), string(r.KeywordGrade), bonuses, penalties,
		r.Reason, string(model.RecommendationPending),
	)
	return eris.Wrapf(err, "postgres: upsert recommendation %s/%s", r.KeywordID, r.AccountID)
}

// recommendationQuery builds the filtered listing query.
func recommendationQuery(filter RecommendationFilter) (string, []any, error) {
	q := psql.Select(
		"tenant_id", "keyword_id", "account_id", "rec_date", "match_score", "rank",
		"account_grade", "keyword_grade", "bonuses", "penalties", "reason", "status", "feedback_result",
	).From("recommendations")

	if filter.TenantID != "" {
		q = q.Where(sq.Eq{"tenant_id": filter.TenantID})
	}
	if filter.KeywordID != "" {
		q = q.Where(sq.Eq{"keyword_id": filter.KeywordID})
	}
	if !filter.From.IsZero() {
		q = q.Where(sq.GtOrEq{"rec_date": model.Day(filter.From)})
	}
	if !filter.To.IsZero() {
		q = q.Where(sq.Lt{"rec_date": model.Day(filter.To)})
	}
	return q.OrderBy("tenant_id", "rec_date", "keyword_id", "rank").ToSql()
}

func (s *PostgresStore) ListRecommendations(ctx context.Context, filter RecommendationFilter) ([]model.Recommendation, error) {
	query, args, err := recommendationQuery(filter)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build recommendation query")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recommendations")
	}
	defer rows.Close()

	var out []model.Recommendation
	for rows.Next() {
		var (
			r                  model.Recommendation
			accGrade, kwGrade  string
			status             string
			bonuses, penalties []byte
			feedback           *string
		)
		if err := rows.Scan(&r.TenantID, &r.KeywordID, &r.AccountID, &r.RecDate, &r.MatchScore, &r.Rank,
			&accGrade, &kwGrade, &bonuses, &penalties, &r.Reason, &status, &feedback); err != nil {
			return nil, eris.Wrap(err, "postgres: scan recommendation")
		}
		r.RecDate = model.Day(r.RecDate)
		r.AccountGrade = model.Grade(accGrade)
		r.KeywordGrade = model.Grade(kwGrade)
		r.Status = model.RecommendationStatus(status)
		r.FeedbackResult = feedbackPtr(feedback)
		if err := unmarshalAudit(&r, bonuses, penalties); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list recommendations iterate")
}

// --- Run log ---

func (s *PostgresStore) StartRun(ctx context.Context, runDate time.Time) (*model.RunLogEntry, error) {
	entry := &model.RunLogEntry{
		ID:        uuid.New().String(),
		RunDate:   model.Day(runDate),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO engine_runs (id, run_date, status, started_at) VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.RunDate, string(entry.Status), entry.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: start run")
	}
	return entry, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run summary")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE engine_runs SET status = $1, completed_at = now(), summary = $2 WHERE id = $3`,
		string(model.RunStatusComplete), data, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("run", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE engine_runs SET status = $1, completed_at = now(), error = $2 WHERE id = $3`,
		string(model.RunStatusFailed), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("run", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.RunLogEntry, error) {
	var (
		e           model.RunLogEntry
		status      string
		summaryJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, run_date, status, started_at, completed_at, summary, error FROM engine_runs WHERE id = $1`,
		runID,
	).Scan(&e.ID, &e.RunDate, &status, &e.StartedAt, &e.CompletedAt, &summaryJSON, &e.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("run", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	e.RunDate = model.Day(e.RunDate)
	e.Status = model.RunStatus(status)
	if len(summaryJSON) > 0 {
		e.Summary = &model.RunSummary{}
		if err := json.Unmarshal(summaryJSON, e.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run summary")
		}
	}
	return &e, nil
}

// --- Weight documents ---

func (s *PostgresStore) LatestWeightDocument(ctx context.Context) ([]byte, error) {
	var doc string
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM weight_configs ORDER BY id DESC LIMIT 1`,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest weight document")
	}
	return []byte(doc), nil
}

func (s *PostgresStore) SaveWeightDocument(ctx context.Context, doc []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO weight_configs (document) VALUES ($1)`, string(doc))
	return eris.Wrap(err, "postgres: save weight document")
}

// --- Seeding ---

// Seed upserts roster rows in one transaction. Observations are appended.
func (s *PostgresStore) Seed(ctx context.Context, f *Fixture) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: seed begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	exec := func(query string, args ...any) error {
		_, err := tx.Exec(ctx, query, args...)
		return err
	}
	for _, t := range f.Tenants {
		if err := exec(db.MustUpsertSQL(tenantUpsert, db.Postgres), tenantArgs(t)...); err != nil {
			return eris.Wrapf(err, "postgres: seed tenant %s", t.ID)
		}
	}
	for _, a := range f.Accounts {
		if err := exec(db.MustUpsertSQL(accountUpsert, db.Postgres), accountArgs(a)...); err != nil {
			return eris.Wrapf(err, "postgres: seed account %s", a.ID)
		}
	}
	for _, k := range f.Keywords {
		if err := exec(db.MustUpsertSQL(keywordUpsert, db.Postgres), keywordArgs(k)...); err != nil {
			return eris.Wrapf(err, "postgres: seed keyword %s", k.ID)
		}
	}
	for _, c := range f.Contents {
		if err := exec(db.MustUpsertSQL(contentUpsert, db.Postgres), contentArgs(c)...); err != nil {
			return eris.Wrapf(err, "postgres: seed content %s", c.ID)
		}
	}
	for _, o := range f.Observations {
		if err := exec(
			`INSERT INTO serp_observations (keyword_id, account_id, rank, observed_at, is_own) VALUES ($1, $2, $3, $4, $5)`,
			o.KeywordID, nullable(o.AccountID), nullable(o.Rank), o.ObservedAt.UTC(), o.IsOwn,
		); err != nil {
			return eris.Wrapf(err, "postgres: seed observation %s", o.KeywordID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: seed commit")
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}
