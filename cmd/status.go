package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/revenue-cli/internal/monitoring"
)

var (
	statusHours int
	statusJSON  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline health and output shape",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := monitoring.NewCollector(st).Collect(ctx, statusHours)
		if err != nil {
			return err
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "Runs (last %dh):\t%d\n", snap.LookbackHours, snap.RunsTotal)
		_, _ = fmt.Fprintf(w, "  Complete:\t%d\n", snap.RunsComplete)
		_, _ = fmt.Fprintf(w, "  Failed:\t%d\n", snap.RunsFailed)
		_, _ = fmt.Fprintf(w, "  Running:\t%d\n", snap.RunsRunning)
		if snap.LastRunID != "" {
			_, _ = fmt.Fprintf(w, "Last run:\t%s (%s)\n", truncateID(snap.LastRunID), snap.LastRunStatus)
		}
		_, _ = fmt.Fprintf(w, "Orgs:\t%d\n", snap.OrgCount)
		_, _ = fmt.Fprintf(w, "  Unmapped:\t%d\n", snap.UnmappedCount)
		stages := make([]string, 0, len(snap.StageCounts))
		for stage := range snap.StageCounts {
			stages = append(stages, stage)
		}
		sort.Strings(stages)
		for _, stage := range stages {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", stage, snap.StageCounts[stage])
		}
		_, _ = fmt.Fprintf(w, "ARR total:\t%.2f\n", snap.ARRTotal)
		_, _ = fmt.Fprintf(w, "MRR total:\t%.2f\n", snap.MRRTotal)
		if snap.Retention != nil {
			_, _ = fmt.Fprintf(w, "NRR:\t%.4f\n", snap.Retention.NRR)
			_, _ = fmt.Fprintf(w, "GRR:\t%.4f\n", snap.Retention.GRR)
		}
		_ = w.Flush()
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusHours, "hours", 24, "lookback window for run metrics")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(statusCmd)
}
