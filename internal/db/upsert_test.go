package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertSQL_Postgres(t *testing.T) {
	q, err := UpsertSQL(UpsertConfig{
		Table:        "recommendations",
		Columns:      []string{"tenant_id", "keyword_id", "match_score"},
		ConflictKeys: []string{"tenant_id", "keyword_id"},
	}, Postgres)
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "recommendations" ("tenant_id", "keyword_id", "match_score") VALUES ($1, $2, $3) `+
			`ON CONFLICT ("tenant_id", "keyword_id") DO UPDATE SET "match_score" = excluded."match_score"`,
		q)
}

func TestUpsertSQL_SQLiteExplicitUpdateCols(t *testing.T) {
	q, err := UpsertSQL(UpsertConfig{
		Table:        "recommendations",
		Columns:      []string{"id", "score", "status"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"score"},
	}, SQLite)
	require.NoError(t, err)
	assert.Contains(t, q, "VALUES (?, ?, ?)")
	assert.Contains(t, q, `DO UPDATE SET "score" = excluded."score"`)
	assert.NotContains(t, q, `"status" = excluded`)
}

func TestUpsertSQL_AllKeysDoNothing(t *testing.T) {
	q, err := UpsertSQL(UpsertConfig{
		Table:        "pairs",
		Columns:      []string{"a", "b"},
		ConflictKeys: []string{"a", "b"},
	}, SQLite)
	require.NoError(t, err)
	assert.Contains(t, q, "DO NOTHING")
}

func TestUpsertSQL_NoColumns(t *testing.T) {
	_, err := UpsertSQL(UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, Postgres)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestUpsertSQL_NoConflictKeys(t *testing.T) {
	_, err := UpsertSQL(UpsertConfig{Table: "t", Columns: []string{"id"}}, Postgres)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestMustUpsertSQL_Panics(t *testing.T) {
	assert.Panics(t, func() { MustUpsertSQL(UpsertConfig{Table: "t"}, SQLite) })
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.keywords", `"public"."keywords"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}
