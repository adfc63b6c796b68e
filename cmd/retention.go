package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/revenue-cli/internal/model"
	"github.com/sells-group/revenue-cli/internal/retention"
)

var retentionRecompute bool

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Show the retention and churn summary",
	Long:  "Prints the stored retention summary. With --recompute, recomputes it from the stored snapshot history first.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var sum *model.RetentionSummary
		if retentionRecompute {
			rows, err := st.ListSnapshots(ctx)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return eris.New("retention: no snapshot history")
			}
			computed := retention.Compute(rows, time.Now().UTC())
			if err := st.ReplaceRetention(ctx, computed); err != nil {
				return err
			}
			sum = &computed
		} else {
			sum, err = st.GetRetention(ctx)
			if err != nil {
				return err
			}
			if sum == nil {
				return eris.New("retention: no stored summary; run the pipeline or pass --recompute")
			}
		}

		formatRetention(sum)
		return nil
	},
}

func formatRetention(sum *model.RetentionSummary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Snapshot date:\t%s\n", sum.SnapshotDate.Format("2006-01-02"))
	_, _ = fmt.Fprintf(w, "Base orgs:\t%d\n", sum.BaseOrgs)
	_, _ = fmt.Fprintf(w, "Churned orgs:\t%d\n", sum.ChurnedOrgs)
	_, _ = fmt.Fprintf(w, "Sum BOM ARR:\t%.2f\n", sum.SumBOM)
	_, _ = fmt.Fprintf(w, "Sum EOM ARR:\t%.2f\n", sum.SumEOM)
	_, _ = fmt.Fprintf(w, "NRR:\t%.4f\n", sum.NRR)
	_, _ = fmt.Fprintf(w, "GRR:\t%.4f\n", sum.GRR)
	_, _ = fmt.Fprintf(w, "Logo churn:\t%.4f\n", sum.LogoChurnRate)
	_, _ = fmt.Fprintf(w, "Gross ARR churn:\t%.4f\n", sum.GrossARRChurn)
	_, _ = fmt.Fprintf(w, "Full ARR churn:\t%.4f\n", sum.FullARRChurn)
	_, _ = fmt.Fprintf(w, "Computed at:\t%s\n", sum.ComputedAt.Format(time.RFC3339))
	_ = w.Flush()
}

func init() {
	retentionCmd.Flags().BoolVar(&retentionRecompute, "recompute", false, "recompute from stored snapshot history")
	rootCmd.AddCommand(retentionCmd)
}
