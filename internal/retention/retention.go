// Package retention computes net/gross revenue retention and churn rates
// from the latest ARR snapshot.
package retention

import (
	"math"
	"time"

	"github.com/sells-group/revenue-cli/internal/model"
)

// LatestDate returns the maximum snapshot date present, or a zero time
// when there are no rows.
func LatestDate(rows []model.SnapshotRow) time.Time {
	var latest time.Time
	for _, row := range rows {
		if row.SnapshotDate.After(latest) {
			latest = row.SnapshotDate
		}
	}
	return latest
}

// Compute derives the retention summary as of the latest snapshot date.
//
// The base population is orgs with bom_arr > 0 at that date. NRR includes
// expansion; GRR caps each org at 100%. An org churned iff its eom_arr
// dropped to zero or below while its bom_arr was positive. Every
// denominator is zero-guarded: an empty base yields all-zero ratios.
func Compute(rows []model.SnapshotRow, now time.Time) model.RetentionSummary {
	latest := LatestDate(rows)
	sum := model.RetentionSummary{SnapshotDate: latest, ComputedAt: now.UTC()}
	if latest.IsZero() {
		return sum
	}

	var sumBOM, sumEOM, sumRetained, sumLost, sumChurnedBOM float64
	for _, row := range rows {
		if !row.SnapshotDate.Equal(latest) || row.BOMARR <= 0 {
			continue
		}
		sum.BaseOrgs++
		sumBOM += row.BOMARR
		sumEOM += row.EOMARR
		sumRetained += math.Min(row.BOMARR, row.EOMARR)
		sumLost += math.Max(0, row.BOMARR-row.EOMARR)
		if row.EOMARR <= 0 {
			sum.ChurnedOrgs++
			sumChurnedBOM += row.BOMARR
		}
	}

	sum.SumBOM = sumBOM
	sum.SumEOM = sumEOM
	if sum.BaseOrgs == 0 || sumBOM == 0 {
		return sum
	}

	sum.NRR = sumEOM / sumBOM
	sum.GRR = sumRetained / sumBOM
	sum.LogoChurnRate = float64(sum.ChurnedOrgs) / float64(sum.BaseOrgs)
	sum.GrossARRChurn = sumLost / sumBOM
	sum.FullARRChurn = sumChurnedBOM / sumBOM
	return sum
}
