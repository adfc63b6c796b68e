package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/revenue-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSQLiteStore_RollupsRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	rollups := []model.OrgRollup{
		{OrgKey: "org-1", OrgID: "org-1", OrgName: "Acme", Stage: model.StagePaid, ARRTotal: 1200, MRRTotal: 100},
		{OrgKey: "email:jo@acme.com", Unmapped: true, Stage: model.StageFreeTrial},
	}
	require.NoError(t, s.ReplaceRollups(ctx, rollups))

	got, err := s.ListRollups(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Sorted by org_key: "email:..." < "org-1".
	assert.Equal(t, "email:jo@acme.com", got[0].OrgKey)
	assert.True(t, got[0].Unmapped)
	assert.Equal(t, "Acme", got[1].OrgName)
	assert.Equal(t, 1200.0, got[1].ARRTotal)

	// Replace overwrites, never accumulates.
	require.NoError(t, s.ReplaceRollups(ctx, rollups[:1]))
	got, err = s.ListRollups(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteStore_WaterfallRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	facts := []model.WaterfallFact{
		{SnapshotDate: date(2025, time.June, 30), Cohort: "2025-01", OrgID: "org-1", Metric: model.MetricSOM, Amount: 1000},
		{SnapshotDate: date(2025, time.June, 30), Cohort: "2025-01", OrgID: "org-1", Metric: model.MetricChurn, Amount: 1000},
	}
	require.NoError(t, s.ReplaceWaterfall(ctx, facts))

	got, err := s.ListWaterfall(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, date(2025, time.June, 30), got[0].SnapshotDate)
	assert.Equal(t, "2025-01", got[0].Cohort)
}

func TestSQLiteStore_RetentionRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	got, err := s.GetRetention(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty store returns no summary")

	sum := model.RetentionSummary{
		SnapshotDate:  date(2025, time.June, 30),
		BaseOrgs:      10,
		ChurnedOrgs:   1,
		SumBOM:        10000,
		SumEOM:        10500,
		NRR:           1.05,
		GRR:           0.97,
		LogoChurnRate: 0.1,
		ComputedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.ReplaceRetention(ctx, sum))

	got, err = s.GetRetention(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sum.SnapshotDate, got.SnapshotDate)
	assert.Equal(t, 1.05, got.NRR)

	// A second write replaces the single row.
	sum.NRR = 1.10
	require.NoError(t, s.ReplaceRetention(ctx, sum))
	got, err = s.GetRetention(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.10, got.NRR)
}

func TestSQLiteStore_AppendSnapshotsIdempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	snaps := []model.SnapshotRow{
		{SnapshotDate: date(2025, time.May, 31), OrgID: "org-1", BOMARR: 1000, EOMARR: 1100},
		{SnapshotDate: date(2025, time.May, 31), OrgID: "org-2", BOMARR: 500, EOMARR: 0},
	}

	n, err := s.AppendSnapshots(ctx, snaps)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-appending the same keys inserts nothing.
	n, err = s.AppendSnapshots(ctx, snaps)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// A new month appends alongside the old one.
	n, err = s.AppendSnapshots(ctx, []model.SnapshotRow{
		{SnapshotDate: date(2025, time.June, 30), OrgID: "org-1", BOMARR: 1100, EOMARR: 1200},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	keys, err := s.SnapshotKeys(ctx)
	require.NoError(t, err)
	assert.True(t, keys["2025-05-31|org-1"])
	assert.True(t, keys["2025-06-30|org-1"])
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := s.StartRun(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	steps := []model.StepResult{
		{Name: "aggregate", Status: model.StepStatusOK, RowsIn: 100, RowsOut: 20},
	}
	require.NoError(t, s.CompleteRun(ctx, run.ID, 100, 20, steps))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, 100, runs[0].RowsIn)
	assert.NotNil(t, runs[0].CompletedAt)
	require.Len(t, runs[0].Steps, 1)
	assert.Equal(t, "aggregate", runs[0].Steps[0].Name)
}

func TestSQLiteStore_FailRun(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := s.StartRun(ctx)
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, run.ID, "ingest: table \"subscriptions\" missing required column \"status\""))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "missing required column")
}

func TestSQLiteStore_RunLockContention(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.AcquireRunLock(ctx, time.Second))

	// Second acquisition against the held lock times out hard.
	err := s.AcquireRunLock(ctx, 300*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run lock not acquired")

	require.NoError(t, s.ReleaseRunLock(ctx))
	require.NoError(t, s.AcquireRunLock(ctx, time.Second))
}
