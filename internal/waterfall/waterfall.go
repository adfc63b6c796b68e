// Package waterfall decomposes period-over-period ARR movement into
// SOM/Upgrade/Downgrade/Churn/EOM facts and aggregates them by trial
// cohort and by organization.
package waterfall

import (
	"sort"
	"time"

	"github.com/sells-group/revenue-cli/internal/model"
)

// Decompose converts one snapshot row into its five metric facts. Exactly
// one of Upgrade/Downgrade/Churn is non-zero (or all three are zero when
// the period is flat), so EOM = SOM + Upgrade - Downgrade - Churn always
// reconciles.
func Decompose(row model.SnapshotRow, cohort string) []model.WaterfallFact {
	var upgrade, downgrade, churn float64
	switch {
	case row.EOMARR > row.BOMARR:
		upgrade = row.EOMARR - row.BOMARR
	case row.BOMARR > 0 && row.EOMARR == 0:
		churn = row.BOMARR
	case row.EOMARR > 0 && row.EOMARR < row.BOMARR:
		downgrade = row.BOMARR - row.EOMARR
	}

	amounts := map[model.WaterfallMetric]float64{
		model.MetricSOM:       row.BOMARR,
		model.MetricUpgrade:   upgrade,
		model.MetricDowngrade: downgrade,
		model.MetricChurn:     churn,
		model.MetricEOM:       row.EOMARR,
	}

	facts := make([]model.WaterfallFact, 0, 5)
	for _, metric := range model.Metrics() {
		facts = append(facts, model.WaterfallFact{
			SnapshotDate: row.SnapshotDate,
			Cohort:       cohort,
			OrgID:        row.OrgID,
			Metric:       metric,
			Amount:       amounts[metric],
		})
	}
	return facts
}

// DecomposeLatest emits facts for every row at the latest snapshot date
// only; older snapshots stay in history for the retention calculator but
// are not re-decomposed. cohorts maps org id to its trial-cohort month;
// orgs absent from the map fall into the "unknown" cohort.
func DecomposeLatest(rows []model.SnapshotRow, cohorts map[string]string) []model.WaterfallFact {
	var latest = latestDate(rows)
	if latest.IsZero() {
		return nil
	}

	var facts []model.WaterfallFact
	for _, row := range rows {
		if !row.SnapshotDate.Equal(latest) {
			continue
		}
		cohort, ok := cohorts[row.OrgID]
		if !ok {
			cohort = "unknown"
		}
		facts = append(facts, Decompose(row, cohort)...)
	}
	return facts
}

// AggregateByCohort sums the five metrics per cohort month, sorted by key.
func AggregateByCohort(facts []model.WaterfallFact) []model.WaterfallTotals {
	return aggregate(facts, func(f model.WaterfallFact) string { return f.Cohort })
}

// AggregateByOrg sums the five metrics per org, sorted by key.
func AggregateByOrg(facts []model.WaterfallFact) []model.WaterfallTotals {
	return aggregate(facts, func(f model.WaterfallFact) string { return f.OrgID })
}

func aggregate(facts []model.WaterfallFact, keyFn func(model.WaterfallFact) string) []model.WaterfallTotals {
	byKey := make(map[string]*model.WaterfallTotals)
	for _, f := range facts {
		key := keyFn(f)
		t, ok := byKey[key]
		if !ok {
			t = &model.WaterfallTotals{Key: key}
			byKey[key] = t
		}
		switch f.Metric {
		case model.MetricSOM:
			t.SOM += f.Amount
		case model.MetricUpgrade:
			t.Upgrade += f.Amount
		case model.MetricDowngrade:
			t.Downgrade += f.Amount
		case model.MetricChurn:
			t.Churn += f.Amount
		case model.MetricEOM:
			t.EOM += f.Amount
		}
	}

	out := make([]model.WaterfallTotals, 0, len(byKey))
	for _, t := range byKey {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func latestDate(rows []model.SnapshotRow) time.Time {
	var latest time.Time
	for _, row := range rows {
		if row.SnapshotDate.After(latest) {
			latest = row.SnapshotDate
		}
	}
	return latest
}
