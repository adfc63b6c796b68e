package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/revenue-cli/internal/config"
	"github.com/sells-group/revenue-cli/internal/engine"
	"github.com/sells-group/revenue-cli/internal/ingest"
	"github.com/sells-group/revenue-cli/internal/model"
)

// testConfig returns a config pointing at an empty temp input dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store:  config.StoreConfig{Driver: "sqlite", DatabaseURL: ":memory:"},
		Input:  config.InputConfig{Dir: t.TempDir()},
		Engine: config.EngineConfig{TrialDays: 14, ProjectionMonths: 12, SeatCredit: 10, LockTimeoutSecs: 5},
		Server: config.ServerConfig{Port: 0},
	}
}

func TestPersistOutputs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	in := &ingest.Inputs{
		Snapshots: []model.SnapshotRow{
			{SnapshotDate: time.Date(2025, time.May, 31, 0, 0, 0, 0, time.UTC), OrgID: "org-1", BOMARR: 1000, EOMARR: 1100},
		},
	}
	out := &engine.Outputs{
		Rollups: []model.OrgRollup{
			{OrgKey: "org-1", OrgName: "Acme", Stage: model.StagePaid, ARRTotal: 1100, MRRTotal: 91.67},
		},
		Waterfall: []model.WaterfallFact{
			{SnapshotDate: time.Date(2025, time.May, 31, 0, 0, 0, 0, time.UTC), Cohort: "2025-01", OrgID: "org-1", Metric: model.MetricSOM, Amount: 1000},
		},
		Retention: model.RetentionSummary{
			SnapshotDate: time.Date(2025, time.May, 31, 0, 0, 0, 0, time.UTC),
			BaseOrgs:     1,
			NRR:          1.1,
			ComputedAt:   time.Now().UTC(),
		},
	}

	require.NoError(t, persistOutputs(ctx, st, in, out))

	rollups, err := st.ListRollups(ctx)
	require.NoError(t, err)
	require.Len(t, rollups, 1)
	assert.Equal(t, "Acme", rollups[0].OrgName)

	facts, err := st.ListWaterfall(ctx)
	require.NoError(t, err)
	assert.Len(t, facts, 1)

	sum, err := st.GetRetention(ctx)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.InDelta(t, 1.1, sum.NRR, 0.001)

	snaps, err := st.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	// Persisting again replaces outputs and skips known snapshot keys.
	require.NoError(t, persistOutputs(ctx, st, in, out))
	snaps, err = st.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}
