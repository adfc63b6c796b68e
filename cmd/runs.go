package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/revenue-cli/internal/model"
)

var (
	runsLimit int
	runsJSON  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List pipeline run history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, runsLimit)
		if err != nil {
			return err
		}

		if runsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.RunEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tDURATION\tROWS_IN\tROWS_OUT\tERROR")
	_, _ = fmt.Fprintln(w, "--\t------\t-------\t--------\t-------\t--------\t-----")

	for _, r := range runs {
		dur := ""
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		errMsg := r.Error
		if len(errMsg) > 40 {
			errMsg = errMsg[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			truncateID(r.ID),
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
			r.RowsIn,
			r.RowsOut,
			errMsg,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "max number of runs to display")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(runsCmd)
}
