package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/revenue-cli/internal/engine"
	"github.com/sells-group/revenue-cli/internal/ingest"
)

var (
	runInputDir string
	runDryRun   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full analytics pipeline",
	Long:  "Loads the input tables, computes rollups, retention, waterfall, and projection, and replaces the output tables.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		dir := runInputDir
		if dir == "" {
			dir = cfg.Input.Dir
		}

		inputs, err := ingest.LoadInputs(ctx, dir, cfg.Input.AliasesFile)
		if err != nil {
			return err
		}

		eng := engine.New(engine.Options{
			SeatCredit:       cfg.Engine.SeatCredit,
			TrialDays:        cfg.Engine.TrialDays,
			ProjectionMonths: cfg.Engine.ProjectionMonths,
		})

		// Dry runs never touch the store: compute and print.
		if runDryRun {
			out, err := eng.Run(ctx, inputs)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lockTimeout := time.Duration(cfg.Engine.LockTimeoutSecs) * time.Second
		if err := st.AcquireRunLock(ctx, lockTimeout); err != nil {
			return err
		}
		defer st.ReleaseRunLock(ctx) //nolint:errcheck

		run, err := st.StartRun(ctx)
		if err != nil {
			return err
		}
		log := zap.L().With(zap.String("component", "run"), zap.String("run_id", run.ID))
		log.Info("run started", zap.Int("rows_in", inputs.TotalRows()))

		out, err := eng.Run(ctx, inputs)
		if err != nil {
			if failErr := st.FailRun(ctx, run.ID, err.Error()); failErr != nil {
				log.Error("record run failure", zap.Error(failErr))
			}
			return err
		}

		if err := persistOutputs(ctx, st, inputs, out); err != nil {
			if failErr := st.FailRun(ctx, run.ID, err.Error()); failErr != nil {
				log.Error("record run failure", zap.Error(failErr))
			}
			return err
		}

		if err := st.CompleteRun(ctx, run.ID, inputs.TotalRows(), out.RowsOut(), out.Steps); err != nil {
			return err
		}

		log.Info("run complete",
			zap.Int("orgs", len(out.Rollups)),
			zap.Int("waterfall_facts", len(out.Waterfall)),
			zap.Int("projected_orgs", len(out.Projection.Orgs)),
			zap.Float64("nrr", out.Retention.NRR),
		)
		return nil
	},
}

// persistOutputs replaces the per-run output tables and appends any input
// snapshot rows the history does not already hold.
func persistOutputs(ctx context.Context, st storeWriter, in *ingest.Inputs, out *engine.Outputs) error {
	if err := st.ReplaceRollups(ctx, out.Rollups); err != nil {
		return eris.Wrap(err, "persist rollups")
	}
	if err := st.ReplaceWaterfall(ctx, out.Waterfall); err != nil {
		return eris.Wrap(err, "persist waterfall")
	}
	if err := st.ReplaceRetention(ctx, out.Retention); err != nil {
		return eris.Wrap(err, "persist retention")
	}
	inserted, err := st.AppendSnapshots(ctx, in.Snapshots)
	if err != nil {
		return eris.Wrap(err, "persist snapshots")
	}
	if inserted > 0 {
		zap.L().Info("snapshot history extended", zap.Int("rows", inserted))
	}
	return nil
}

func init() {
	runCmd.Flags().StringVar(&runInputDir, "input", "", "input directory (default from config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "compute and print outputs as JSON without writing the store")
	rootCmd.AddCommand(runCmd)
}
