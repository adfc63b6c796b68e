// Package model defines the typed facts and derived records flowing through
// the revenue engine. Facts are built once during ingestion and never
// mutated; derived fields (MRR, ARR, stage) live on engine-owned records.
package model

import "time"

// SubscriptionStatus is the raw billing-provider status of a subscription.
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusTrialing SubscriptionStatus = "trialing"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusPastDue  SubscriptionStatus = "past_due"
)

// Interval is the normalized billing interval bucket.
type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// DiscountDuration describes how long a coupon applies.
type DiscountDuration string

const (
	DurationOnce     DiscountDuration = "once"
	DurationForever  DiscountDuration = "forever"
	DurationNumbered DiscountDuration = "numbered"
)

// SubscriptionFact is one normalized billing subscription row. Amounts are
// in the smallest display unit (dollars, not cents), rounded to two
// decimals at parse time.
type SubscriptionFact struct {
	ID                string             `json:"id"`
	Status            SubscriptionStatus `json:"status"`
	Interval          Interval           `json:"interval"`
	IntervalCount     int                `json:"interval_count"`
	Amount            float64            `json:"amount"`
	Quantity          int                `json:"quantity"`
	DiscountPercent   float64            `json:"discount_percent"`
	DiscountDuration  DiscountDuration   `json:"discount_duration"`
	DiscountMonths    int                `json:"discount_duration_months"`
	DiscountReason    string             `json:"discount_reason,omitempty"`
	PromoCode         string             `json:"promo_code,omitempty"`
	HasPaymentMethod  bool               `json:"has_payment_method"`
	CreatedAt         *time.Time         `json:"created_at,omitempty"`
	FirstPaymentAt    *time.Time         `json:"first_payment_at,omitempty"` // nil = no money has ever moved
	PeriodStart       *time.Time         `json:"current_period_start,omitempty"`
	PeriodEnd         *time.Time         `json:"current_period_end,omitempty"`
	CanceledAt        *time.Time         `json:"canceled_at,omitempty"`
	CustomerEmail     string             `json:"customer_email"`
	OrgID             string             `json:"org_id,omitempty"`   // optional direct org reference
	OrgName           string             `json:"org_name,omitempty"` // optional, fallback key material
}

// Active reports whether the subscription is currently billing.
func (s SubscriptionFact) Active() bool {
	return s.Status == StatusActive
}

// Trialing reports whether the subscription is in a trial state.
func (s SubscriptionFact) Trialing() bool {
	return s.Status == StatusTrialing
}

// FullyComped reports whether the subscription carries a 100% forever
// discount. Comped subscriptions are a courtesy, not revenue or a trial
// funnel entry, and are excluded from every total.
func (s SubscriptionFact) FullyComped() bool {
	return s.DiscountPercent == 100 && s.DiscountDuration == DurationForever
}

// MoneyMoved reports whether a payment has ever been recorded.
func (s SubscriptionFact) MoneyMoved() bool {
	return s.FirstPaymentAt != nil
}
