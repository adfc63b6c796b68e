package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/revenue-cli/internal/model"
	"github.com/sells-group/revenue-cli/internal/waterfall"
)

var waterfallBy string

var waterfallCmd = &cobra.Command{
	Use:   "waterfall",
	Short: "Show the ARR waterfall",
	Long:  "Aggregates the stored waterfall facts by cohort or by org and prints the SOM/upgrade/downgrade/churn/EOM decomposition.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		facts, err := st.ListWaterfall(ctx)
		if err != nil {
			return err
		}
		if len(facts) == 0 {
			fmt.Fprintln(os.Stderr, "No waterfall facts stored. Run the pipeline first.")
			return nil
		}

		var totals []model.WaterfallTotals
		switch waterfallBy {
		case "cohort":
			totals = waterfall.AggregateByCohort(facts)
		case "org":
			totals = waterfall.AggregateByOrg(facts)
		default:
			return eris.Errorf("waterfall: --by must be cohort or org, got %q", waterfallBy)
		}

		formatWaterfall(os.Stdout, waterfallBy, totals)
		return nil
	},
}

func formatWaterfall(out io.Writer, by string, totals []model.WaterfallTotals) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "%s\tSOM\tUPGRADE\tDOWNGRADE\tCHURN\tEOM\n", byHeader(by))
	for _, t := range totals {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			t.Key, t.SOM, t.Upgrade, t.Downgrade, t.Churn, t.EOM)
	}
	_ = w.Flush()
}

func byHeader(by string) string {
	if by == "org" {
		return "ORG"
	}
	return "COHORT"
}

func init() {
	waterfallCmd.Flags().StringVar(&waterfallBy, "by", "cohort", "aggregation axis: cohort or org")
	rootCmd.AddCommand(waterfallCmd)
}
