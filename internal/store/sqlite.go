package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/revenue-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// sqliteLockTTL bounds how long a crashed run can hold the lock row.
const sqliteLockTTL = 15 * time.Minute

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS org_rollups (
	org_key    TEXT PRIMARY KEY,
	org_id     TEXT,
	org_name   TEXT,
	stage      TEXT NOT NULL,
	arr_total  REAL NOT NULL,
	mrr_total  REAL NOT NULL,
	unmapped   INTEGER NOT NULL DEFAULT 0,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS waterfall_facts (
	snapshot_date DATE NOT NULL,
	cohort        TEXT NOT NULL,
	org_id        TEXT NOT NULL,
	metric        TEXT NOT NULL,
	amount        REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS retention_summary (
	id                   INTEGER PRIMARY KEY CHECK (id = 1),
	snapshot_date        DATE NOT NULL,
	base_orgs            INTEGER NOT NULL,
	churned_orgs         INTEGER NOT NULL,
	sum_bom_arr          REAL NOT NULL,
	sum_eom_arr          REAL NOT NULL,
	nrr                  REAL NOT NULL,
	grr                  REAL NOT NULL,
	logo_churn_rate      REAL NOT NULL,
	gross_arr_churn_rate REAL NOT NULL,
	full_arr_churn_rate  REAL NOT NULL,
	computed_at          DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS arr_snapshots (
	snapshot_date DATE NOT NULL,
	org_id        TEXT NOT NULL,
	bom_arr       REAL NOT NULL,
	eom_arr       REAL NOT NULL,
	PRIMARY KEY (snapshot_date, org_id)
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	rows_in      INTEGER NOT NULL DEFAULT 0,
	rows_out     INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	steps        TEXT
);

CREATE TABLE IF NOT EXISTS run_lock (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	acquired_at DATETIME NOT NULL,
	expires_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_waterfall_cohort ON waterfall_facts(cohort);
CREATE INDEX IF NOT EXISTS idx_waterfall_org ON waterfall_facts(org_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Rollups ---

func (s *SQLiteStore) ReplaceRollups(ctx context.Context, rollups []model.OrgRollup) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: replace rollups: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM org_rollups`); err != nil {
		return eris.Wrap(err, "sqlite: replace rollups: delete")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO org_rollups (org_key, org_id, org_name, stage, arr_total, mrr_total, unmapped, data, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: replace rollups: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, r := range rollups {
		data, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal rollup %s", r.OrgKey)
		}
		if _, err := stmt.ExecContext(ctx,
			r.OrgKey, r.OrgID, r.OrgName, string(r.Stage), r.ARRTotal, r.MRRTotal,
			boolToInt(r.Unmapped), string(data), now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert rollup %s", r.OrgKey)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: replace rollups: commit")
}

func (s *SQLiteStore) ListRollups(ctx context.Context) ([]model.OrgRollup, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM org_rollups ORDER BY org_key`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rollups")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.OrgRollup
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rollup")
		}
		var r model.OrgRollup
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal rollup")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Waterfall ---

func (s *SQLiteStore) ReplaceWaterfall(ctx context.Context, facts []model.WaterfallFact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: replace waterfall: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM waterfall_facts`); err != nil {
		return eris.Wrap(err, "sqlite: replace waterfall: delete")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO waterfall_facts (snapshot_date, cohort, org_id, metric, amount) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: replace waterfall: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	for _, f := range facts {
		if _, err := stmt.ExecContext(ctx,
			f.SnapshotDate.Format("2006-01-02"), f.Cohort, f.OrgID, string(f.Metric), f.Amount,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert waterfall fact for %s", f.OrgID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: replace waterfall: commit")
}

func (s *SQLiteStore) ListWaterfall(ctx context.Context) ([]model.WaterfallFact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot_date, cohort, org_id, metric, amount FROM waterfall_facts ORDER BY org_id, metric`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list waterfall")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.WaterfallFact
	for rows.Next() {
		var f model.WaterfallFact
		var date string
		var metric string
		if err := rows.Scan(&date, &f.Cohort, &f.OrgID, &metric, &f.Amount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan waterfall fact")
		}
		t, err := time.ParseInLocation("2006-01-02", date, time.UTC)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse waterfall date %q", date)
		}
		f.SnapshotDate = t
		f.Metric = model.WaterfallMetric(metric)
		out = append(out, f)
	}
	return out, rows.Err()
}

// --- Retention ---

func (s *SQLiteStore) ReplaceRetention(ctx context.Context, sum model.RetentionSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO retention_summary
		 (id, snapshot_date, base_orgs, churned_orgs, sum_bom_arr, sum_eom_arr, nrr, grr,
		  logo_churn_rate, gross_arr_churn_rate, full_arr_churn_rate, computed_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		  snapshot_date = excluded.snapshot_date,
		  base_orgs = excluded.base_orgs,
		  churned_orgs = excluded.churned_orgs,
		  sum_bom_arr = excluded.sum_bom_arr,
		  sum_eom_arr = excluded.sum_eom_arr,
		  nrr = excluded.nrr,
		  grr = excluded.grr,
		  logo_churn_rate = excluded.logo_churn_rate,
		  gross_arr_churn_rate = excluded.gross_arr_churn_rate,
		  full_arr_churn_rate = excluded.full_arr_churn_rate,
		  computed_at = excluded.computed_at`,
		sum.SnapshotDate.Format("2006-01-02"), sum.BaseOrgs, sum.ChurnedOrgs,
		sum.SumBOM, sum.SumEOM, sum.NRR, sum.GRR,
		sum.LogoChurnRate, sum.GrossARRChurn, sum.FullARRChurn, sum.ComputedAt,
	)
	return eris.Wrap(err, "sqlite: replace retention")
}

func (s *SQLiteStore) GetRetention(ctx context.Context) (*model.RetentionSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT snapshot_date, base_orgs, churned_orgs, sum_bom_arr, sum_eom_arr, nrr, grr,
		        logo_churn_rate, gross_arr_churn_rate, full_arr_churn_rate, computed_at
		 FROM retention_summary WHERE id = 1`)

	var sum model.RetentionSummary
	var date string
	err := row.Scan(&date, &sum.BaseOrgs, &sum.ChurnedOrgs, &sum.SumBOM, &sum.SumEOM,
		&sum.NRR, &sum.GRR, &sum.LogoChurnRate, &sum.GrossARRChurn, &sum.FullARRChurn, &sum.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get retention")
	}
	t, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse retention date %q", date)
	}
	sum.SnapshotDate = t
	return &sum, nil
}

// --- Snapshots ---

func (s *SQLiteStore) SnapshotKeys(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT snapshot_date, org_id FROM arr_snapshots`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: snapshot keys")
	}
	defer rows.Close() //nolint:errcheck

	keys := make(map[string]bool)
	for rows.Next() {
		var date, orgID string
		if err := rows.Scan(&date, &orgID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot key")
		}
		keys[date+"|"+orgID] = true
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) AppendSnapshots(ctx context.Context, snaps []model.SnapshotRow) (int, error) {
	existing, err := s.SnapshotKeys(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: append snapshots: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO arr_snapshots (snapshot_date, org_id, bom_arr, eom_arr) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: append snapshots: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	inserted := 0
	for _, row := range snaps {
		if existing[row.Key()] {
			continue
		}
		res, err := stmt.ExecContext(ctx,
			row.SnapshotDate.Format("2006-01-02"), row.OrgID, row.BOMARR, row.EOMARR)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: append snapshot %s", row.Key())
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: append snapshots: commit")
	}
	return inserted, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]model.SnapshotRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot_date, org_id, bom_arr, eom_arr FROM arr_snapshots ORDER BY snapshot_date, org_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SnapshotRow
	for rows.Next() {
		var row model.SnapshotRow
		var date string
		if err := rows.Scan(&date, &row.OrgID, &row.BOMARR, &row.EOMARR); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		t, err := time.ParseInLocation("2006-01-02", date, time.UTC)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse snapshot date %q", date)
		}
		row.SnapshotDate = t
		out = append(out, row)
	}
	return out, rows.Err()
}

// --- Run log ---

func (s *SQLiteStore) StartRun(ctx context.Context) (*model.RunEntry, error) {
	entry := &model.RunEntry{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		entry.ID, string(entry.Status), entry.StartedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: start run")
	}
	return entry, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, rowsIn, rowsOut int, steps []model.StepResult) error {
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal steps")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, rows_in = ?, rows_out = ?, steps = ? WHERE id = ?`,
		string(model.RunStatusComplete), time.Now().UTC(), rowsIn, rowsOut, string(stepsJSON), runID)
	return eris.Wrapf(err, "sqlite: complete run %s", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(model.RunStatusFailed), time.Now().UTC(), errMsg, runID)
	return eris.Wrapf(err, "sqlite: fail run %s", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, completed_at, rows_in, rows_out, error, steps
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RunEntry
	for rows.Next() {
		var e model.RunEntry
		var status string
		var completedAt sql.NullTime
		var errStr, stepsJSON sql.NullString
		if err := rows.Scan(&e.ID, &status, &e.StartedAt, &completedAt, &e.RowsIn, &e.RowsOut, &errStr, &stepsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		e.Status = model.RunStatus(status)
		if completedAt.Valid {
			t := completedAt.Time
			e.CompletedAt = &t
		}
		if errStr.Valid {
			e.Error = errStr.String
		}
		if stepsJSON.Valid && stepsJSON.String != "" {
			_ = json.Unmarshal([]byte(stepsJSON.String), &e.Steps)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Run lock ---

func (s *SQLiteStore) AcquireRunLock(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		now := time.Now().UTC()
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO run_lock (id, acquired_at, expires_at) VALUES (1, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   acquired_at = excluded.acquired_at,
			   expires_at = excluded.expires_at
			 WHERE run_lock.expires_at <= ?`,
			now, now.Add(sqliteLockTTL), now)
		if err != nil {
			return eris.Wrap(err, "sqlite: acquire run lock")
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return eris.Errorf("sqlite: run lock not acquired within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "sqlite: acquire run lock")
		case <-time.After(lockPollInterval):
		}
	}
}

func (s *SQLiteStore) ReleaseRunLock(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM run_lock WHERE id = 1`)
	return eris.Wrap(err, "sqlite: release run lock")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
