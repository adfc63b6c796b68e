// Package engine orchestrates the revenue analytics pipeline over one
// in-memory input snapshot. It performs no I/O: callers load inputs, hold
// the run lock, and persist outputs.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/revenue-cli/internal/identity"
	"github.com/sells-group/revenue-cli/internal/ingest"
	"github.com/sells-group/revenue-cli/internal/model"
	"github.com/sells-group/revenue-cli/internal/projection"
	"github.com/sells-group/revenue-cli/internal/retention"
	"github.com/sells-group/revenue-cli/internal/rollup"
	"github.com/sells-group/revenue-cli/internal/waterfall"
)

// Options holds the engine tunables.
type Options struct {
	SeatCredit       float64
	TrialDays        int
	ProjectionMonths int
	Clock            func() time.Time // injectable for tests; defaults to time.Now
}

// Outputs is the full result of one engine run, computed entirely in
// memory before any output table is written.
type Outputs struct {
	Rollups      []model.OrgRollup        `json:"rollups"`
	Retention    model.RetentionSummary   `json:"retention"`
	Waterfall    []model.WaterfallFact    `json:"waterfall"`
	CohortTotals []model.WaterfallTotals  `json:"cohort_totals"`
	OrgTotals    []model.WaterfallTotals  `json:"org_totals"`
	Projection   model.MRRSeries          `json:"projection"`
	Steps        []model.StepResult       `json:"steps"`
}

// RowsOut sums the primary output row counts for run logging.
func (o *Outputs) RowsOut() int {
	return len(o.Rollups) + len(o.Waterfall) + len(o.Projection.Orgs)
}

// Engine runs the pipeline.
type Engine struct {
	opts Options
	agg  *rollup.Aggregator
	proj *projection.Projector
}

// New builds an engine with defaults applied.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{
		opts: opts,
		agg:  rollup.NewAggregator(opts.SeatCredit, opts.TrialDays),
		proj: projection.NewProjector(opts.SeatCredit, opts.ProjectionMonths),
	}
}

// Run executes every step in order. Each step appends a StepResult with
// its row counts and elapsed time; the run either completes fully or
// returns an error with prior outputs untouched by the caller.
func (e *Engine) Run(ctx context.Context, in *ingest.Inputs) (*Outputs, error) {
	log := zap.L().With(zap.String("component", "engine"))
	now := e.opts.Clock().UTC()
	out := &Outputs{}

	step := func(name string, rowsIn int, fn func() int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		rowsOut := fn()
		res := model.StepResult{
			Name:    name,
			Status:  model.StepStatusOK,
			RowsIn:  rowsIn,
			RowsOut: rowsOut,
			Elapsed: time.Since(start).Milliseconds(),
		}
		out.Steps = append(out.Steps, res)
		log.Info("step complete",
			zap.String("step", name),
			zap.Int("rows_in", rowsIn),
			zap.Int("rows_out", rowsOut),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	}

	// Normalization happened at ingest; surface its skip counts as a step.
	for _, name := range []string{
		ingest.TableSubscriptions, ingest.TableOrganizations,
		ingest.TableMemberships, ingest.TableUsers,
		ingest.TableSnapshots, ingest.TableRedemptions,
	} {
		if stats, ok := in.Stats[name]; ok {
			out.Steps = append(out.Steps, model.StepResult{
				Name:    "normalize:" + name,
				Status:  model.StepStatusOK,
				RowsIn:  stats.Rows,
				RowsOut: stats.Kept,
				Skipped: stats.Skipped + stats.Excluded,
			})
		}
	}

	resolver := identity.NewResolver(in.Users, in.Memberships, in.Orgs)

	if err := step("aggregate", len(in.Subscriptions), func() int {
		out.Rollups = e.agg.Aggregate(in.Subscriptions, resolver, in.Redemptions)
		return len(out.Rollups)
	}); err != nil {
		return nil, err
	}

	if err := step("retention", len(in.Snapshots), func() int {
		out.Retention = retention.Compute(in.Snapshots, now)
		return out.Retention.BaseOrgs
	}); err != nil {
		return nil, err
	}

	if err := step("waterfall", len(in.Snapshots), func() int {
		cohorts := make(map[string]string, len(out.Rollups))
		for _, r := range out.Rollups {
			cohorts[r.OrgKey] = r.CohortMonth()
		}
		out.Waterfall = waterfall.DecomposeLatest(in.Snapshots, cohorts)
		out.CohortTotals = waterfall.AggregateByCohort(out.Waterfall)
		out.OrgTotals = waterfall.AggregateByOrg(out.Waterfall)
		return len(out.Waterfall)
	}); err != nil {
		return nil, err
	}

	if err := step("project", len(in.Subscriptions), func() int {
		orgKey := func(sub model.SubscriptionFact) string {
			key, _ := identity.OrgKey(sub, resolver.Resolve(sub))
			return key
		}
		out.Projection = e.proj.Project(in.Subscriptions, out.Rollups, orgKey, now)
		return len(out.Projection.Orgs)
	}); err != nil {
		return nil, err
	}

	return out, nil
}

// DeriveSnapshot builds the current-month snapshot rows from fresh
// rollups: eom_arr is the org's current ARR, bom_arr carries the prior
// month's eom_arr when a history row exists, else the current ARR. Only
// orgs with revenue now or in the prior month produce rows.
func DeriveSnapshot(rollups []model.OrgRollup, history []model.SnapshotRow, month time.Time) []model.SnapshotRow {
	month = projection.MonthStart(month)
	prior := rollup.AddMonths(month, -1)

	// History rows may be dated anywhere in the month (the backfill path
	// keeps end-of-month dates verbatim), so match by calendar month.
	priorEOM := make(map[string]float64)
	for _, row := range history {
		if projection.MonthStart(row.SnapshotDate).Equal(prior) {
			priorEOM[row.OrgID] = row.EOMARR
		}
	}

	var rows []model.SnapshotRow
	for _, r := range rollups {
		bom, hadPrior := priorEOM[r.OrgKey]
		if !hadPrior {
			bom = r.ARRTotal
		}
		if r.ARRTotal == 0 && bom == 0 {
			continue
		}
		rows = append(rows, model.SnapshotRow{
			SnapshotDate: month,
			OrgID:        r.OrgKey,
			BOMARR:       bom,
			EOMARR:       r.ARRTotal,
		})
	}
	return rows
}
