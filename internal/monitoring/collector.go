// Package monitoring reports pipeline health from the run log and the
// persisted analytics outputs.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/revenue-cli/internal/model"
	"github.com/sells-group/revenue-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal      int     `json:"runs_total"`
	RunsComplete   int     `json:"runs_complete"`
	RunsFailed     int     `json:"runs_failed"`
	RunsRunning    int     `json:"runs_running"`
	RunFailRate    float64 `json:"run_fail_rate"`
	LastRunID      string  `json:"last_run_id,omitempty"`
	LastRunStatus  string  `json:"last_run_status,omitempty"`
	LastRunRowsIn  int     `json:"last_run_rows_in"`
	LastRunRowsOut int     `json:"last_run_rows_out"`

	// Output shape.
	OrgCount      int            `json:"org_count"`
	UnmappedCount int            `json:"unmapped_count"`
	StageCounts   map[string]int `json:"stage_counts,omitempty"`
	ARRTotal      float64        `json:"arr_total"`
	MRRTotal      float64        `json:"mrr_total"`

	// Latest retention summary, if one has been computed.
	Retention *model.RetentionSummary `json:"retention,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the output store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of pipeline metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, 1000)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for i, r := range runs {
		if i == 0 {
			snap.LastRunID = r.ID
			snap.LastRunStatus = string(r.Status)
			snap.LastRunRowsIn = r.RowsIn
			snap.LastRunRowsOut = r.RowsOut
		}
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
	}
	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}

	rollups, err := c.store.ListRollups(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list rollups")
	}
	snap.OrgCount = len(rollups)
	if len(rollups) > 0 {
		snap.StageCounts = make(map[string]int)
	}
	for _, r := range rollups {
		snap.StageCounts[string(r.Stage)]++
		if r.Unmapped {
			snap.UnmappedCount++
		}
		snap.ARRTotal += r.ARRTotal
		snap.MRRTotal += r.MRRTotal
	}

	retention, err := c.store.GetRetention(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: get retention")
	}
	snap.Retention = retention

	return snap, nil
}
