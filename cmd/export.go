package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/revenue-cli/internal/model"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored outputs to an XLSX workbook",
	Long:  "Writes the stored rollups, waterfall, retention summary, and snapshot history to one workbook, one sheet per output.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rollups, err := st.ListRollups(ctx)
		if err != nil {
			return err
		}
		facts, err := st.ListWaterfall(ctx)
		if err != nil {
			return err
		}
		retention, err := st.GetRetention(ctx)
		if err != nil {
			return err
		}
		snapshots, err := st.ListSnapshots(ctx)
		if err != nil {
			return err
		}

		file := xlsx.NewFile()
		if err := addRollupSheet(file, rollups); err != nil {
			return err
		}
		if err := addWaterfallSheet(file, facts); err != nil {
			return err
		}
		if err := addRetentionSheet(file, retention); err != nil {
			return err
		}
		if err := addSnapshotSheet(file, snapshots); err != nil {
			return err
		}

		if err := file.Save(exportOut); err != nil {
			return eris.Wrapf(err, "export: save %s", exportOut)
		}
		zap.L().Info("export written",
			zap.String("path", exportOut),
			zap.Int("rollups", len(rollups)),
			zap.Int("waterfall_facts", len(facts)),
			zap.Int("snapshots", len(snapshots)),
		)
		fmt.Printf("Wrote %s\n", exportOut)
		return nil
	},
}

// headerRow adds a title-cased header row from snake_case column names.
func headerRow(sheet *xlsx.Sheet, cols []string) {
	caser := cases.Title(language.English)
	row := sheet.AddRow()
	for _, col := range cols {
		row.AddCell().Value = caser.String(strings.ReplaceAll(col, "_", " "))
	}
}

func addRollupSheet(file *xlsx.File, rollups []model.OrgRollup) error {
	sheet, err := file.AddSheet("Rollups")
	if err != nil {
		return eris.Wrap(err, "export: add rollups sheet")
	}
	headerRow(sheet, []string{
		"org_key", "org_name", "stage", "unmapped", "owner_email",
		"paid_arr", "promo_arr", "free_arr", "arr_total", "mrr_total",
		"trial_start", "trial_end", "cohort",
	})
	for _, r := range rollups {
		row := sheet.AddRow()
		row.AddCell().Value = r.OrgKey
		row.AddCell().Value = r.OrgName
		row.AddCell().Value = string(r.Stage)
		row.AddCell().SetBool(r.Unmapped)
		row.AddCell().Value = r.OwnerEmail
		row.AddCell().SetFloat(r.Paid.ARR)
		row.AddCell().SetFloat(r.Promo.ARR)
		row.AddCell().SetFloat(r.Free.ARR)
		row.AddCell().SetFloat(r.ARRTotal)
		row.AddCell().SetFloat(r.MRRTotal)
		row.AddCell().Value = formatDate(r.TrialStart)
		row.AddCell().Value = formatDate(r.TrialEnd)
		row.AddCell().Value = r.CohortMonth()
	}
	return nil
}

func addWaterfallSheet(file *xlsx.File, facts []model.WaterfallFact) error {
	sheet, err := file.AddSheet("Waterfall")
	if err != nil {
		return eris.Wrap(err, "export: add waterfall sheet")
	}
	headerRow(sheet, []string{"snapshot_date", "cohort", "org_id", "metric", "amount"})
	for _, f := range facts {
		row := sheet.AddRow()
		row.AddCell().Value = f.SnapshotDate.Format("2006-01-02")
		row.AddCell().Value = f.Cohort
		row.AddCell().Value = f.OrgID
		row.AddCell().Value = string(f.Metric)
		row.AddCell().SetFloat(f.Amount)
	}
	return nil
}

func addRetentionSheet(file *xlsx.File, sum *model.RetentionSummary) error {
	sheet, err := file.AddSheet("Retention")
	if err != nil {
		return eris.Wrap(err, "export: add retention sheet")
	}
	headerRow(sheet, []string{
		"snapshot_date", "base_orgs", "churned_orgs", "sum_bom_arr", "sum_eom_arr",
		"nrr", "grr", "logo_churn_rate", "gross_arr_churn_rate", "full_arr_churn_rate",
	})
	if sum == nil {
		return nil
	}
	row := sheet.AddRow()
	row.AddCell().Value = sum.SnapshotDate.Format("2006-01-02")
	row.AddCell().SetInt(sum.BaseOrgs)
	row.AddCell().SetInt(sum.ChurnedOrgs)
	row.AddCell().SetFloat(sum.SumBOM)
	row.AddCell().SetFloat(sum.SumEOM)
	row.AddCell().SetFloat(sum.NRR)
	row.AddCell().SetFloat(sum.GRR)
	row.AddCell().SetFloat(sum.LogoChurnRate)
	row.AddCell().SetFloat(sum.GrossARRChurn)
	row.AddCell().SetFloat(sum.FullARRChurn)
	return nil
}

func addSnapshotSheet(file *xlsx.File, rows []model.SnapshotRow) error {
	sheet, err := file.AddSheet("Snapshots")
	if err != nil {
		return eris.Wrap(err, "export: add snapshots sheet")
	}
	headerRow(sheet, []string{"snapshot_date", "org_id", "bom_arr", "eom_arr"})
	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().Value = r.SnapshotDate.Format("2006-01-02")
		row.AddCell().Value = r.OrgID
		row.AddCell().SetFloat(r.BOMARR)
		row.AddCell().SetFloat(r.EOMARR)
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "revenue.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
