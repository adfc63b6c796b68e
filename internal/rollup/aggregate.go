package rollup

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/revenue-cli/internal/identity"
	"github.com/sells-group/revenue-cli/internal/model"
)

// Aggregator folds resolved subscription facts into per-org rollups.
type Aggregator struct {
	SeatCredit float64
	TrialDays  int
}

// NewAggregator applies defaults for zero-valued tunables.
func NewAggregator(seatCredit float64, trialDays int) *Aggregator {
	if trialDays <= 0 {
		trialDays = DefaultTrialDays
	}
	return &Aggregator{SeatCredit: seatCredit, TrialDays: trialDays}
}

// bucket classifies one subscription for aggregation.
type bucket int

const (
	bucketNone bucket = iota
	bucketPaid
	bucketPromo
	bucketFree
)

// classify applies the bucket rules. A 100%-forever comped subscription is
// excluded entirely regardless of status.
func classify(sub model.SubscriptionFact) bucket {
	if sub.FullyComped() {
		return bucketNone
	}
	switch {
	case sub.Active():
		return bucketPaid
	case sub.Trialing() && sub.HasPaymentMethod:
		return bucketPromo
	case sub.Trialing():
		return bucketFree
	default:
		return bucketNone
	}
}

// orgAccum carries per-org working state during the fold.
type orgAccum struct {
	rollup model.OrgRollup
	subs   []model.SubscriptionFact
}

// Aggregate resolves every subscription to an org key and folds it into
// that org's rollup, then derives trial windows and stages. Output is
// sorted by org key for deterministic downstream runs.
func (a *Aggregator) Aggregate(
	subs []model.SubscriptionFact,
	resolver *identity.Resolver,
	redemptions []model.PromoRedemption,
) []model.OrgRollup {
	accums := make(map[string]*orgAccum)

	var unmappedCount int
	for _, sub := range subs {
		res := resolver.Resolve(sub)
		key, unmapped := identity.OrgKey(sub, res)
		if unmapped {
			unmappedCount++
		}

		acc, ok := accums[key]
		if !ok {
			acc = &orgAccum{rollup: model.OrgRollup{OrgKey: key, Unmapped: unmapped}}
			if org, found := resolver.Org(key); found {
				acc.rollup.OrgID = org.ID
				acc.rollup.OrgName = org.Name
				if org.CreatedAt != nil {
					t := org.CreatedAt.UTC()
					acc.rollup.TrialStart = &t
				}
			} else if sub.OrgName != "" {
				acc.rollup.OrgName = sub.OrgName
			}
			accums[key] = acc
		}
		acc.subs = append(acc.subs, sub)

		if acc.rollup.OwnerEmail == "" && res.Resolved {
			acc.rollup.OwnerEmail = res.Email
			acc.rollup.OwnerName = res.DisplayName
		}

		a.fold(&acc.rollup, sub)
	}

	// Promo-redemption evidence joins by real org id.
	redeemed := make(map[string][]model.PromoRedemption)
	for _, red := range redemptions {
		redeemed[red.OrgID] = append(redeemed[red.OrgID], red)
	}

	out := make([]model.OrgRollup, 0, len(accums))
	for key, acc := range accums {
		r := &acc.rollup

		for _, red := range redeemed[key] {
			r.PromoEligible = true
			// Manual trial extensions arrive as trial-prefixed redemption codes.
			if strings.HasPrefix(strings.ToLower(red.PromoCode), "trial") {
				r.TrialExtended = true
			}
		}

		a.deriveTrialWindow(r, acc.subs)
		r.Stage = ClassifyStage(r.HasPaid, r.HasPromo, r.HasFree)
		r.ARRTotal = round2(r.Paid.ARR + r.Promo.ARR + r.Free.ARR)
		r.MRRTotal = round2(r.Paid.MRR + r.Promo.MRR + r.Free.MRR)
		out = append(out, *r)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].OrgKey < out[j].OrgKey })

	if unmappedCount > 0 {
		zap.L().Warn("rollup: subscriptions routed to synthetic org keys",
			zap.Int("unmapped", unmappedCount))
	}
	return out
}

// fold accumulates one subscription into the rollup's totals and evidence.
func (a *Aggregator) fold(r *model.OrgRollup, sub model.SubscriptionFact) {
	b := classify(sub)
	if b == bucketNone {
		return
	}

	mrr, arr := Revenue(sub, a.SeatCredit)

	switch b {
	case bucketPaid:
		r.Paid.Add(arr, mrr, sub.Quantity)
		r.HasPaid = true
		if sub.MoneyMoved() {
			r.HasConfirmedPaid = true
		}
		r.FirstPaidAt = earliest(r.FirstPaidAt, sub.CreatedAt)
	case bucketPromo:
		r.Promo.Add(arr, mrr, sub.Quantity)
		r.HasPromo = true
		r.FirstPromoAt = earliest(r.FirstPromoAt, sub.CreatedAt)
	case bucketFree:
		r.Free.Add(arr, mrr, sub.Quantity)
		r.HasFree = true
		r.FirstFreeAt = earliest(r.FirstFreeAt, sub.CreatedAt)
	}

	// Promo-trial eligibility evidence from the subscription itself.
	if sub.PromoCode != "" || sub.DiscountPercent > 0 || sub.DiscountDuration == model.DurationNumbered {
		r.PromoEligible = true
	}
}

// deriveTrialWindow sets trial start (org creation, falling back to the
// earliest subscription) and the computed trial end.
func (a *Aggregator) deriveTrialWindow(r *model.OrgRollup, subs []model.SubscriptionFact) {
	if r.TrialStart == nil {
		var first *time.Time
		for _, sub := range subs {
			first = earliest(first, sub.CreatedAt)
		}
		r.TrialStart = first
	}
	if r.TrialStart == nil {
		return
	}
	end := TrialEnd(r.TrialStart.UTC(), subs, a.TrialDays)
	r.TrialEnd = &end
}

// earliest returns the earlier of two optional timestamps.
func earliest(cur, candidate *time.Time) *time.Time {
	if candidate == nil {
		return cur
	}
	if cur == nil || candidate.Before(*cur) {
		t := candidate.UTC()
		return &t
	}
	return cur
}
