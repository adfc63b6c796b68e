// Package rollup folds normalized subscription facts into one engine-owned
// aggregate per organization: revenue totals, lifecycle stage evidence,
// trial windows, and earliest-event timestamps.
package rollup

import (
	"math"
	"strings"

	"github.com/sells-group/revenue-cli/internal/model"
)

// seatCreditKeyword marks a manual seat-discount override in the discount
// reason field.
const seatCreditKeyword = "seat"

// Revenue converts one subscription into (mrr, arr). A yearly amount is
// the ARR directly; a monthly amount is the MRR directly. A manual
// seat-discount override subtracts a fixed per-seat credit before the
// conversion, floored at zero.
func Revenue(sub model.SubscriptionFact, seatCredit float64) (mrr, arr float64) {
	amount := sub.Amount
	if seatCredit > 0 && sub.Quantity > 0 &&
		strings.Contains(strings.ToLower(sub.DiscountReason), seatCreditKeyword) {
		amount = math.Max(0, amount-seatCredit*float64(sub.Quantity))
	}

	if sub.Interval == model.IntervalYear {
		return round2(amount / 12), round2(amount)
	}
	return round2(amount), round2(amount * 12)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
