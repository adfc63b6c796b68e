// Package projection builds the forward monthly-recurring-revenue series
// per organization across a rolling calendar-month axis.
package projection

import (
	"sort"
	"time"

	"github.com/sells-group/revenue-cli/internal/model"
	"github.com/sells-group/revenue-cli/internal/rollup"
)

// Projector projects active subscription MRR month by month.
type Projector struct {
	SeatCredit    float64
	HorizonMonths int // months to project past "now"
}

// NewProjector applies a default 12-month horizon.
func NewProjector(seatCredit float64, horizonMonths int) *Projector {
	if horizonMonths <= 0 {
		horizonMonths = 12
	}
	return &Projector{SeatCredit: seatCredit, HorizonMonths: horizonMonths}
}

// MonthStart truncates t to the first of its month at UTC midnight.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// monthsBetween counts whole calendar months from a to b (a <= b).
func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// Project builds the series. The month axis spans from the earliest
// active subscription start to now + horizon. orgKey assigns each
// subscription to its rollup key; rollups supply display names and the
// churned-to-zero population (orgs with a recorded owner but no active
// subscription are still emitted, at zero, so they read as churned rather
// than vanishing).
func (p *Projector) Project(
	subs []model.SubscriptionFact,
	rollups []model.OrgRollup,
	orgKey func(model.SubscriptionFact) string,
	now time.Time,
) model.MRRSeries {
	nowMonth := MonthStart(now)

	// Axis start: earliest active subscription start month.
	axisStart := nowMonth
	var active []model.SubscriptionFact
	for _, sub := range subs {
		if !sub.Active() || sub.CreatedAt == nil {
			continue
		}
		active = append(active, sub)
		if m := MonthStart(*sub.CreatedAt); m.Before(axisStart) {
			axisStart = m
		}
	}

	total := monthsBetween(axisStart, nowMonth) + p.HorizonMonths + 1
	months := make([]time.Time, total)
	for i := range months {
		months[i] = rollup.AddMonths(axisStart, i)
	}

	series := make(map[string][]float64)
	for _, sub := range active {
		key := orgKey(sub)
		values, ok := series[key]
		if !ok {
			values = make([]float64, total)
			series[key] = values
		}

		base, _ := rollup.Revenue(sub, p.SeatCredit)
		startIdx := monthsBetween(axisStart, MonthStart(*sub.CreatedAt))
		for i := startIdx; i < total; i++ {
			if suppressed(sub, i-startIdx) {
				continue
			}
			values[i] += base
		}
	}

	// Churned orgs with a recorded owner stay on the chart at zero.
	names := make(map[string]string, len(rollups))
	for _, r := range rollups {
		names[r.OrgKey] = r.OrgName
		if r.OwnerEmail == "" {
			continue
		}
		if _, ok := series[r.OrgKey]; !ok {
			series[r.OrgKey] = make([]float64, total)
		}
	}

	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	orgs := make([]model.OrgSeries, 0, len(keys))
	for _, k := range keys {
		orgs = append(orgs, model.OrgSeries{OrgKey: k, OrgName: names[k], Values: series[k]})
	}
	return model.MRRSeries{Months: months, Orgs: orgs}
}

// suppressed reports whether a 100%-discount free-month window is still
// active at the given offset from the subscription's start month.
func suppressed(sub model.SubscriptionFact, offset int) bool {
	if sub.DiscountPercent != 100 {
		return false
	}
	if sub.DiscountDuration == model.DurationForever {
		return true
	}
	return sub.DiscountMonths > 0 && offset < sub.DiscountMonths
}
