package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/revenue-cli/internal/engine"
	"github.com/sells-group/revenue-cli/internal/ingest"
)

var (
	snapshotInputDir string
	snapshotTake     bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Backfill or take ARR snapshots",
	Long: "Without flags, appends the snapshot rows from the input tables to history, skipping " +
		"(snapshot_date, org_id) pairs already present. With --take, derives the current month's " +
		"rows from the stored rollups instead.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if snapshotTake {
			rollups, err := st.ListRollups(ctx)
			if err != nil {
				return err
			}
			if len(rollups) == 0 {
				return eris.New("snapshot: no stored rollups; run the pipeline first")
			}
			history, err := st.ListSnapshots(ctx)
			if err != nil {
				return err
			}
			rows := engine.DeriveSnapshot(rollups, history, time.Now().UTC())
			inserted, err := st.AppendSnapshots(ctx, rows)
			if err != nil {
				return err
			}
			zap.L().Info("snapshot taken",
				zap.Int("derived", len(rows)),
				zap.Int("inserted", inserted),
			)
			fmt.Printf("Derived %d rows, inserted %d new.\n", len(rows), inserted)
			return nil
		}

		dir := snapshotInputDir
		if dir == "" {
			dir = cfg.Input.Dir
		}
		inputs, err := ingest.LoadInputs(ctx, dir, cfg.Input.AliasesFile)
		if err != nil {
			return err
		}

		inserted, err := st.AppendSnapshots(ctx, inputs.Snapshots)
		if err != nil {
			return err
		}
		zap.L().Info("snapshot history backfilled",
			zap.Int("offered", len(inputs.Snapshots)),
			zap.Int("inserted", inserted),
		)
		fmt.Printf("Offered %d rows, inserted %d new.\n", len(inputs.Snapshots), inserted)
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotInputDir, "input", "", "input directory (default from config)")
	snapshotCmd.Flags().BoolVar(&snapshotTake, "take", false, "derive the current month's snapshot from stored rollups")
	rootCmd.AddCommand(snapshotCmd)
}
