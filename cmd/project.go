package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/revenue-cli/internal/engine"
	"github.com/sells-group/revenue-cli/internal/ingest"
	"github.com/sells-group/revenue-cli/internal/model"
)

var (
	projectInputDir string
	projectMonths   int
	projectOrg      string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project MRR per org per month",
	Long:  "Builds the month-by-month MRR projection from the input tables, from the earliest active subscription through the projection horizon.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		dir := projectInputDir
		if dir == "" {
			dir = cfg.Input.Dir
		}
		inputs, err := ingest.LoadInputs(ctx, dir, cfg.Input.AliasesFile)
		if err != nil {
			return err
		}

		months := cfg.Engine.ProjectionMonths
		if projectMonths > 0 {
			months = projectMonths
		}
		eng := engine.New(engine.Options{
			SeatCredit:       cfg.Engine.SeatCredit,
			TrialDays:        cfg.Engine.TrialDays,
			ProjectionMonths: months,
		})
		out, err := eng.Run(ctx, inputs)
		if err != nil {
			return err
		}

		if projectOrg != "" {
			return formatOrgSeries(os.Stdout, out.Projection, projectOrg)
		}
		formatProjectionTotals(os.Stdout, out.Projection)
		return nil
	},
}

// formatProjectionTotals prints the month axis with total MRR summed
// across all projected orgs.
func formatProjectionTotals(out io.Writer, series model.MRRSeries) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "MONTH\tORGS\tTOTAL_MRR\n")
	for i, month := range series.Months {
		var total float64
		var active int
		for _, org := range series.Orgs {
			if org.Values[i] > 0 {
				active++
			}
			total += org.Values[i]
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.2f\n", month.Format("2006-01"), active, total)
	}
	_ = w.Flush()
}

// formatOrgSeries prints one org's projected values.
func formatOrgSeries(out io.Writer, series model.MRRSeries, orgKey string) error {
	for _, org := range series.Orgs {
		if org.OrgKey != orgKey {
			continue
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "MONTH\tMRR\n")
		for i, month := range series.Months {
			_, _ = fmt.Fprintf(w, "%s\t%.2f\n", month.Format("2006-01"), org.Values[i])
		}
		return w.Flush()
	}
	return eris.Errorf("project: org %q not in projection", orgKey)
}

func init() {
	projectCmd.Flags().StringVar(&projectInputDir, "input", "", "input directory (default from config)")
	projectCmd.Flags().IntVar(&projectMonths, "months", 0, "projection horizon in months (default from config)")
	projectCmd.Flags().StringVar(&projectOrg, "org", "", "show a single org's series by org key")
	rootCmd.AddCommand(projectCmd)
}
