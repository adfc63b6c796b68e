package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/revenue-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_GetRetention_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT snapshot_date, base_orgs, churned_orgs`).
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetRetention(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRetention_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	snapDate := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
	computedAt := time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT snapshot_date, base_orgs, churned_orgs`).
		WillReturnRows(pgxmock.NewRows([]string{
			"snapshot_date", "base_orgs", "churned_orgs", "sum_bom_arr", "sum_eom_arr",
			"nrr", "grr", "logo_churn_rate", "gross_arr_churn_rate", "full_arr_churn_rate", "computed_at",
		}).AddRow(snapDate, 12, 2, 24000.0, 25200.0, 1.05, 0.96, 0.1667, 0.04, 0.08, computedAt))

	got, err := s.GetRetention(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snapDate, got.SnapshotDate)
	assert.Equal(t, 12, got.BaseOrgs)
	assert.Equal(t, 1.05, got.NRR)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceRetention(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO retention_summary`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sum := model.RetentionSummary{
		SnapshotDate: time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
		BaseOrgs:     12,
		NRR:          1.05,
		ComputedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.ReplaceRetention(context.Background(), sum))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRollups(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM org_rollups ORDER BY org_key`).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"org_key":"org-1","org_name":"Acme","stage":"paid","arr_total":1200}`)))

	got, err := s.ListRollups(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "org-1", got[0].OrgKey)
	assert.Equal(t, model.StagePaid, got[0].Stage)
	assert.Equal(t, 1200.0, got[0].ARRTotal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceWaterfall(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "waterfall_facts"`).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"waterfall_facts"}, waterfallColumns).
		WillReturnResult(2)
	mock.ExpectCommit()

	facts := []model.WaterfallFact{
		{SnapshotDate: time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC), Cohort: "2025-01", OrgID: "org-1", Metric: model.MetricSOM, Amount: 1000},
		{SnapshotDate: time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC), Cohort: "2025-01", OrgID: "org-1", Metric: model.MetricEOM, Amount: 1000},
	}
	require.NoError(t, s.ReplaceWaterfall(context.Background(), facts))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendSnapshots(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_arr_snapshots"}, snapshotColumns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "arr_snapshots" .* ON CONFLICT .* DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	snaps := []model.SnapshotRow{
		{SnapshotDate: time.Date(2025, time.May, 31, 0, 0, 0, 0, time.UTC), OrgID: "org-1", BOMARR: 1000, EOMARR: 1100},
		{SnapshotDate: time.Date(2025, time.May, 31, 0, 0, 0, 0, time.UTC), OrgID: "org-2", BOMARR: 500, EOMARR: 0},
	}
	n, err := s.AppendSnapshots(context.Background(), snaps)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "count reflects rows actually inserted, not rows offered")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RunLifecycle(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE runs SET status = \$1, completed_at = \$2, rows_in = \$3`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	run, err := s.StartRun(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)

	err = s.CompleteRun(context.Background(), run.ID, 100, 20, []model.StepResult{
		{Name: "aggregate", Status: model.StepStatusOK},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AcquireRunLock_Timeout(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// The lock is held elsewhere for the whole window.
	for i := 0; i < 4; i++ {
		mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
			WillReturnRows(pgxmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))
	}

	err := s.AcquireRunLock(context.Background(), 500*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run lock not acquired")
}

func TestPostgresStore_AcquireRunLock_Immediate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(pgxmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock`).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.AcquireRunLock(context.Background(), time.Second))
	require.NoError(t, s.ReleaseRunLock(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
