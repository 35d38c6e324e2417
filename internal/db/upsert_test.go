package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var locationsUpsert = UpsertConfig{
	Table:        "civic.locations",
	Columns:      []string{"source", "name", "run_id"},
	ConflictKeys: []string{"source"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, locationsUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_InvalidConfig(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "civic.locations",
		ConflictKeys: []string{"source"},
	}, [][]any{{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "civic.locations",
		Columns: []string{"source"},
	}, [][]any{{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer mock.Close()

	rows := [][]any{
		{"https://x.no/a/", "A", "run-1"},
		{"https://x.no/b/", "B", "run-1"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_civic_locations" (LIKE "civic"."locations" INCLUDING DEFAULTS) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_civic_locations"}, locationsUpsert.Columns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "civic"."locations" ("source", "name", "run_id") SELECT "source", "name", "run_id" FROM "_tmp_upsert_civic_locations" ON CONFLICT ("source") DO UPDATE SET "name" = EXCLUDED."name", "run_id" = EXCLUDED."run_id"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	n, err := BulkUpsert(context.Background(), mock, locationsUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBulkUpsert_CopyFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_civic_locations"}, locationsUpsert.Columns).
		WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, locationsUpsert, [][]any{{"a", "b", "c"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy 1 rows for civic.locations")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"locations"`, sanitizeTable("locations"))
	assert.Equal(t, `"civic"."locations"`, sanitizeTable("civic.locations"))
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"source", "name"`, quoteAndJoin([]string{"source", "name"}))
}

func TestUpsertConfig_UpdateColumns(t *testing.T) {
	assert.Equal(t, []string{"name", "run_id"}, locationsUpsert.updateColumns())

	explicit := locationsUpsert
	explicit.UpdateCols = []string{"name"}
	assert.Equal(t, []string{"name"}, explicit.updateColumns())
	assert.Contains(t, explicit.mergeSQL(), `DO UPDATE SET "name" = EXCLUDED."name"`)
	assert.NotContains(t, explicit.mergeSQL(), `"run_id" = EXCLUDED`)
}
