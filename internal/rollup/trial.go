package rollup

import (
	"time"

	"github.com/sells-group/revenue-cli/internal/model"
)

// DefaultTrialDays is the standard trial length when no discount extension
// applies.
const DefaultTrialDays = 14

// TrialEnd computes the trial end for an org from its trial start and
// subscription facts.
//
// The standard window is trialStart + standardDays. A subscription with a
// 100% discount of positive finite month duration whose own start falls
// inside the standard window (inclusive) extends the trial to its start
// plus the discount months; when several qualify, the one with the
// earliest start governs — not the largest discount. The result is never
// earlier than the standard end.
func TrialEnd(trialStart time.Time, subs []model.SubscriptionFact, standardDays int) time.Time {
	standardEnd := trialStart.Add(time.Duration(standardDays) * 24 * time.Hour)

	var ext *model.SubscriptionFact
	for i, sub := range subs {
		if sub.DiscountPercent != 100 || sub.DiscountMonths <= 0 {
			continue
		}
		if sub.DiscountDuration == model.DurationForever {
			continue
		}
		if sub.CreatedAt == nil {
			continue
		}
		start := sub.CreatedAt.UTC()
		if start.Before(trialStart) || start.After(standardEnd) {
			continue
		}
		if ext == nil || start.Before(ext.CreatedAt.UTC()) {
			ext = &subs[i]
		}
	}

	if ext == nil {
		return standardEnd
	}

	end := AddMonths(ext.CreatedAt.UTC(), ext.DiscountMonths)
	if end.Before(standardEnd) {
		return standardEnd
	}
	return end
}

// AddMonths adds n calendar months to t, clamping to the last day of the
// target month when the day-of-month does not exist there (Jan 31 + 1
// month -> Feb 28/29). time.AddDate would roll over into March instead.
func AddMonths(t time.Time, n int) time.Time {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	// First of the target month, then clamp the day.
	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), time.UTC)
}
