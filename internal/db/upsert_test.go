package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	mock := newMock(t)
	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "arr_snapshots",
		Columns:      []string{"snapshot_date", "org_id"},
		ConflictKeys: []string{"snapshot_date", "org_id"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_ConfigErrors(t *testing.T) {
	mock := newMock(t)
	rows := [][]any{{"a"}}

	_, err := BulkUpsert(context.Background(), mock, UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns")

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{Table: "t", Columns: []string{"id"}}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys")
}

func TestBulkUpsert_DoUpdate(t *testing.T) {
	mock := newMock(t)
	rows := [][]any{{"org-1", 100.0}, {"org-2", 200.0}}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_org_totals" \(LIKE "org_totals" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_org_totals"}, []string{"org_id", "arr"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "org_totals" .* ON CONFLICT \("org_id"\) DO UPDATE SET "arr" = EXCLUDED\."arr"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "org_totals",
		Columns:      []string{"org_id", "arr"},
		ConflictKeys: []string{"org_id"},
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBulkUpsert_DoNothingReportsInserted(t *testing.T) {
	mock := newMock(t)
	rows := [][]any{{"2025-06-30", "org-1"}, {"2025-06-30", "org-2"}}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_arr_snapshots"}, []string{"snapshot_date", "org_id"}).
		WillReturnResult(2)
	mock.ExpectExec(`ON CONFLICT \("snapshot_date", "org_id"\) DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "arr_snapshots",
		Columns:      []string{"snapshot_date", "org_id"},
		ConflictKeys: []string{"snapshot_date", "org_id"},
		DoNothing:    true,
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only newly inserted rows count")
}
