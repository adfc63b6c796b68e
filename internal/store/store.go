// Package store persists engine outputs. Rollups, waterfall facts, and
// the retention summary are overwritten every run; ARR snapshot history is
// append-only and idempotent on (snapshot_date, org_id). A single
// advisory run lock serializes whole-pipeline invocations against the
// same output destination.
package store

import (
	"context"
	"time"

	"github.com/sells-group/revenue-cli/internal/model"
)

// Store defines the persistence interface for the revenue engine.
type Store interface {
	// Per-run output tables (overwrite-in-place).
	ReplaceRollups(ctx context.Context, rollups []model.OrgRollup) error
	ListRollups(ctx context.Context) ([]model.OrgRollup, error)
	ReplaceWaterfall(ctx context.Context, facts []model.WaterfallFact) error
	ListWaterfall(ctx context.Context) ([]model.WaterfallFact, error)
	ReplaceRetention(ctx context.Context, summary model.RetentionSummary) error
	GetRetention(ctx context.Context) (*model.RetentionSummary, error)

	// Append-only snapshot history. AppendSnapshots returns the number of
	// rows actually inserted; re-appending existing keys is a no-op.
	SnapshotKeys(ctx context.Context) (map[string]bool, error)
	AppendSnapshots(ctx context.Context, rows []model.SnapshotRow) (int, error)
	ListSnapshots(ctx context.Context) ([]model.SnapshotRow, error)

	// Run log.
	StartRun(ctx context.Context) (*model.RunEntry, error)
	CompleteRun(ctx context.Context, runID string, rowsIn, rowsOut int, steps []model.StepResult) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]model.RunEntry, error)

	// Advisory run lock with a bounded wait; failure to acquire within
	// the timeout is a hard error, not a retry.
	AcquireRunLock(ctx context.Context, timeout time.Duration) error
	ReleaseRunLock(ctx context.Context) error

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}

// lockPollInterval is how often lock acquisition re-checks while waiting
// out its bounded timeout.
const lockPollInterval = 250 * time.Millisecond
