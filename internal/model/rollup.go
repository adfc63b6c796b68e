package model

import "time"

// Stage is the lifecycle stage of an organization, derived from rollup
// evidence. Exactly one stage holds for any org.
type Stage string

const (
	StagePaid       Stage = "paid"
	StagePromoTrial Stage = "promo_trial"
	StageFreeTrial  Stage = "free_trial"
	StageOther      Stage = "other"
)

// BucketTotals accumulates revenue totals for one classification bucket
// (paid, promo trial, or free trial) within an org rollup.
type BucketTotals struct {
	ARR           float64 `json:"arr"`
	MRR           float64 `json:"mrr"`
	Seats         int     `json:"seats"`
	Subscriptions int     `json:"subscription_count"`
}

// Add folds one subscription's derived revenue into the bucket.
func (b *BucketTotals) Add(arr, mrr float64, seats int) {
	b.ARR += arr
	b.MRR += mrr
	b.Seats += seats
	b.Subscriptions++
}

// OrgRollup is the engine-owned per-org aggregate, rebuilt every run.
// Invariant: ARRTotal == Paid.ARR + Promo.ARR + Free.ARR.
type OrgRollup struct {
	OrgKey     string `json:"org_key"` // resolved org id or synthetic fallback key
	OrgID      string `json:"org_id,omitempty"`
	OrgName    string `json:"org_name,omitempty"`
	Unmapped   bool   `json:"unmapped,omitempty"` // true when OrgKey is synthetic
	OwnerEmail string `json:"owner_email,omitempty"`
	OwnerName  string `json:"owner_name,omitempty"`

	Stage Stage `json:"stage"`

	Paid  BucketTotals `json:"paid"`
	Promo BucketTotals `json:"promo"`
	Free  BucketTotals `json:"free"`

	ARRTotal float64 `json:"arr_total"`
	MRRTotal float64 `json:"mrr_total"`

	HasPaid          bool `json:"has_paid"`
	HasPromo         bool `json:"has_promo"`
	HasFree          bool `json:"has_free"`
	HasConfirmedPaid bool `json:"has_paid_with_money_moved"`

	PromoEligible bool `json:"promo_eligible"`
	TrialExtended bool `json:"trial_extended"`

	FirstPaidAt  *time.Time `json:"first_paid_at,omitempty"`
	FirstPromoAt *time.Time `json:"first_promo_at,omitempty"`
	FirstFreeAt  *time.Time `json:"first_free_at,omitempty"`

	TrialStart *time.Time `json:"trial_start,omitempty"`
	TrialEnd   *time.Time `json:"trial_end,omitempty"`
}

// CohortMonth returns the trial-cohort month key ("2006-01") used for
// waterfall grouping. Falls back to the earliest evidence timestamp when
// the org has no trial start.
func (r OrgRollup) CohortMonth() string {
	t := r.TrialStart
	if t == nil {
		for _, c := range []*time.Time{r.FirstFreeAt, r.FirstPromoAt, r.FirstPaidAt} {
			if c != nil {
				t = c
				break
			}
		}
	}
	if t == nil {
		return "unknown"
	}
	return t.UTC().Format("2006-01")
}
