package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "communes",
		Columns:      []string{"code", "nom"},
		ConflictKeys: []string{"code"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "communes",
		ConflictKeys: []string{"code"},
	}, [][]any{{"75056", "Paris"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "communes",
		Columns: []string{"code", "nom"},
	}, [][]any{{"75056", "Paris"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_communes"`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_communes"}, []string{"code", "nom"}).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "communes"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "communes",
		Columns:      []string{"code", "nom"},
		ConflictKeys: []string{"code"},
	}, [][]any{{"75056", "Paris"}, {"69123", "Lyon"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_communes"}, []string{"code"}).WillReturnError(fmt.Errorf("bad row"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "communes",
		Columns:      []string{"code"},
		ConflictKeys: []string{"code"},
	}, [][]any{{"75056"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for communes")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildUpsertSQL(t *testing.T) {
	sql := buildUpsertSQL(UpsertConfig{
		Table:        "public.communes",
		Columns:      []string{"code", "nom", "contour"},
		ConflictKeys: []string{"code"},
		UpdateCols:   []string{"contour"},
	}, "_tmp")
	assert.Equal(t,
		`INSERT INTO "public"."communes" ("code", "nom", "contour") SELECT "code", "nom", "contour" FROM "_tmp" ON CONFLICT ("code") DO UPDATE SET "contour" = EXCLUDED."contour"`,
		sql)

	sql = buildUpsertSQL(UpsertConfig{
		Table:        "communes",
		Columns:      []string{"code"},
		ConflictKeys: []string{"code"},
	}, "_tmp")
	assert.Contains(t, sql, "ON CONFLICT (\"code\") DO NOTHING")
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}
