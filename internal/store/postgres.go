package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/revenue-cli/internal/db"
	"github.com/sells-group/revenue-cli/internal/model"
)

// runLockKey is the advisory lock key that serializes pipeline runs
// against one Postgres output destination.
const runLockKey = 74210911

// PostgresStore implements Store on top of a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects to Postgres using the given connection string.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests use this with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS org_rollups (
	org_key    TEXT PRIMARY KEY,
	org_id     TEXT,
	org_name   TEXT,
	stage      TEXT NOT NULL,
	arr_total  DOUBLE PRECISION NOT NULL,
	mrr_total  DOUBLE PRECISION NOT NULL,
	unmapped   BOOLEAN NOT NULL DEFAULT FALSE,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS waterfall_facts (
	snapshot_date DATE NOT NULL,
	cohort        TEXT NOT NULL,
	org_id        TEXT NOT NULL,
	metric        TEXT NOT NULL,
	amount        DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS retention_summary (
	id                   INT PRIMARY KEY CHECK (id = 1),
	snapshot_date        DATE NOT NULL,
	base_orgs            INT NOT NULL,
	churned_orgs         INT NOT NULL,
	sum_bom_arr          DOUBLE PRECISION NOT NULL,
	sum_eom_arr          DOUBLE PRECISION NOT NULL,
	nrr                  DOUBLE PRECISION NOT NULL,
	grr                  DOUBLE PRECISION NOT NULL,
	logo_churn_rate      DOUBLE PRECISION NOT NULL,
	gross_arr_churn_rate DOUBLE PRECISION NOT NULL,
	full_arr_churn_rate  DOUBLE PRECISION NOT NULL,
	computed_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS arr_snapshots (
	snapshot_date DATE NOT NULL,
	org_id        TEXT NOT NULL,
	bom_arr       DOUBLE PRECISION NOT NULL,
	eom_arr       DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (snapshot_date, org_id)
);

CREATE TABLE IF NOT EXISTS runs (
	id           UUID PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	rows_in      INT NOT NULL DEFAULT 0,
	rows_out     INT NOT NULL DEFAULT 0,
	error        TEXT,
	steps        JSONB
);

CREATE INDEX IF NOT EXISTS idx_waterfall_cohort ON waterfall_facts(cohort);
CREATE INDEX IF NOT EXISTS idx_waterfall_org ON waterfall_facts(org_id);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

// Migrate creates the output schema, guarded by an advisory lock so
// concurrent processes do not race DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_lock($1)", runLockKey); err != nil {
		return eris.Wrap(err, "postgres: migrate: advisory lock")
	}
	defer s.pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", runLockKey) //nolint:errcheck

	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Rollups ---

var rollupColumns = []string{"org_key", "org_id", "org_name", "stage", "arr_total", "mrr_total", "unmapped", "data", "updated_at"}

func (s *PostgresStore) ReplaceRollups(ctx context.Context, rollups []model.OrgRollup) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(rollups))
	for _, r := range rollups {
		data, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal rollup %s", r.OrgKey)
		}
		rows = append(rows, []any{
			r.OrgKey, r.OrgID, r.OrgName, string(r.Stage), r.ARRTotal, r.MRRTotal,
			r.Unmapped, data, now,
		})
	}
	_, err := db.ReplaceAll(ctx, s.pool, "org_rollups", rollupColumns, rows)
	return err
}

func (s *PostgresStore) ListRollups(ctx context.Context) ([]model.OrgRollup, error) {
	rows, err := s.pool.Query(ctx, "SELECT data FROM org_rollups ORDER BY org_key")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rollups")
	}
	defer rows.Close()

	var out []model.OrgRollup
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rollup")
		}
		var r model.OrgRollup
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal rollup")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Waterfall ---

var waterfallColumns = []string{"snapshot_date", "cohort", "org_id", "metric", "amount"}

func (s *PostgresStore) ReplaceWaterfall(ctx context.Context, facts []model.WaterfallFact) error {
	rows := make([][]any, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, []any{f.SnapshotDate, f.Cohort, f.OrgID, string(f.Metric), f.Amount})
	}
	_, err := db.ReplaceAll(ctx, s.pool, "waterfall_facts", waterfallColumns, rows)
	return err
}

func (s *PostgresStore) ListWaterfall(ctx context.Context) ([]model.WaterfallFact, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT snapshot_date, cohort, org_id, metric, amount FROM waterfall_facts ORDER BY org_id, metric")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list waterfall")
	}
	defer rows.Close()

	var out []model.WaterfallFact
	for rows.Next() {
		var f model.WaterfallFact
		var metric string
		if err := rows.Scan(&f.SnapshotDate, &f.Cohort, &f.OrgID, &metric, &f.Amount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan waterfall fact")
		}
		f.Metric = model.WaterfallMetric(metric)
		out = append(out, f)
	}
	return out, rows.Err()
}

// --- Retention ---

func (s *PostgresStore) ReplaceRetention(ctx context.Context, sum model.RetentionSummary) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO retention_summary
		 (id, snapshot_date, base_orgs, churned_orgs, sum_bom_arr, sum_eom_arr, nrr, grr,
		  logo_churn_rate, gross_arr_churn_rate, full_arr_churn_rate, computed_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		  snapshot_date = EXCLUDED.snapshot_date,
		  base_orgs = EXCLUDED.base_orgs,
		  churned_orgs = EXCLUDED.churned_orgs,
		  sum_bom_arr = EXCLUDED.sum_bom_arr,
		  sum_eom_arr = EXCLUDED.sum_eom_arr,
		  nrr = EXCLUDED.nrr,
		  grr = EXCLUDED.grr,
		  logo_churn_rate = EXCLUDED.logo_churn_rate,
		  gross_arr_churn_rate = EXCLUDED.gross_arr_churn_rate,
		  full_arr_churn_rate = EXCLUDED.full_arr_churn_rate,
		  computed_at = EXCLUDED.computed_at`,
		sum.SnapshotDate, sum.BaseOrgs, sum.ChurnedOrgs, sum.SumBOM, sum.SumEOM,
		sum.NRR, sum.GRR, sum.LogoChurnRate, sum.GrossARRChurn, sum.FullARRChurn, sum.ComputedAt)
	return eris.Wrap(err, "postgres: replace retention")
}

func (s *PostgresStore) GetRetention(ctx context.Context) (*model.RetentionSummary, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT snapshot_date, base_orgs, churned_orgs, sum_bom_arr, sum_eom_arr, nrr, grr,
		        logo_churn_rate, gross_arr_churn_rate, full_arr_churn_rate, computed_at
		 FROM retention_summary WHERE id = 1`)

	var sum model.RetentionSummary
	err := row.Scan(&sum.SnapshotDate, &sum.BaseOrgs, &sum.ChurnedOrgs, &sum.SumBOM, &sum.SumEOM,
		&sum.NRR, &sum.GRR, &sum.LogoChurnRate, &sum.GrossARRChurn, &sum.FullARRChurn, &sum.ComputedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get retention")
	}
	return &sum, nil
}

// --- Snapshots ---

var snapshotColumns = []string{"snapshot_date", "org_id", "bom_arr", "eom_arr"}

func (s *PostgresStore) SnapshotKeys(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, "SELECT snapshot_date, org_id FROM arr_snapshots")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: snapshot keys")
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var date time.Time
		var orgID string
		if err := rows.Scan(&date, &orgID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot key")
		}
		keys[date.Format("2006-01-02")+"|"+orgID] = true
	}
	return keys, rows.Err()
}

func (s *PostgresStore) AppendSnapshots(ctx context.Context, snaps []model.SnapshotRow) (int, error) {
	rows := make([][]any, 0, len(snaps))
	for _, r := range snaps {
		rows = append(rows, []any{r.SnapshotDate, r.OrgID, r.BOMARR, r.EOMARR})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "arr_snapshots",
		Columns:      snapshotColumns,
		ConflictKeys: []string{"snapshot_date", "org_id"},
		DoNothing:    true,
	}, rows)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context) ([]model.SnapshotRow, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT snapshot_date, org_id, bom_arr, eom_arr FROM arr_snapshots ORDER BY snapshot_date, org_id")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var out []model.SnapshotRow
	for rows.Next() {
		var r model.SnapshotRow
		if err := rows.Scan(&r.SnapshotDate, &r.OrgID, &r.BOMARR, &r.EOMARR); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Run log ---

func (s *PostgresStore) StartRun(ctx context.Context) (*model.RunEntry, error) {
	entry := &model.RunEntry{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		"INSERT INTO runs (id, status, started_at) VALUES ($1, $2, $3)",
		entry.ID, string(entry.Status), entry.StartedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: start run")
	}
	return entry, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, rowsIn, rowsOut int, steps []model.StepResult) error {
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal steps")
	}
	_, err = s.pool.Exec(ctx,
		"UPDATE runs SET status = $1, completed_at = $2, rows_in = $3, rows_out = $4, steps = $5 WHERE id = $6",
		string(model.RunStatusComplete), time.Now().UTC(), rowsIn, rowsOut, stepsJSON, runID)
	return eris.Wrapf(err, "postgres: complete run %s", runID)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE runs SET status = $1, completed_at = $2, error = $3 WHERE id = $4",
		string(model.RunStatusFailed), time.Now().UTC(), errMsg, runID)
	return eris.Wrapf(err, "postgres: fail run %s", runID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, started_at, completed_at, rows_in, rows_out, error, steps
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []model.RunEntry
	for rows.Next() {
		var e model.RunEntry
		var status string
		var completedAt *time.Time
		var errStr *string
		var stepsJSON []byte
		if err := rows.Scan(&e.ID, &status, &e.StartedAt, &completedAt, &e.RowsIn, &e.RowsOut, &errStr, &stepsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		e.Status = model.RunStatus(status)
		e.CompletedAt = completedAt
		if errStr != nil {
			e.Error = *errStr
		}
		if len(stepsJSON) > 0 {
			_ = json.Unmarshal(stepsJSON, &e.Steps)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Run lock ---

func (s *PostgresStore) AcquireRunLock(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		var acquired bool
		row := s.pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", runLockKey)
		if err := row.Scan(&acquired); err != nil {
			return eris.Wrap(err, "postgres: acquire run lock")
		}
		if acquired {
			return nil
		}
		if time.Now().After(deadline) {
			return eris.Errorf("postgres: run lock not acquired within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "postgres: acquire run lock")
		case <-time.After(lockPollInterval):
		}
	}
}

func (s *PostgresStore) ReleaseRunLock(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", runLockKey)
	return eris.Wrap(err, "postgres: release run lock")
}
