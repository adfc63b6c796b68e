package ingest

import (
	"go.uber.org/zap"

	"github.com/sells-group/revenue-cli/internal/model"
)

// subscriptionAliases lists the header spellings each canonical
// subscription column may appear under across billing exports.
var subscriptionAliases = Aliases{
	"id":                       {"id", "subscription_id", "sub_id"},
	"status":                   {"status", "subscription_status"},
	"interval":                 {"interval", "billing_interval", "plan_interval"},
	"interval_count":           {"interval_count"},
	"amount":                   {"amount", "plan_amount", "price"},
	"quantity":                 {"quantity", "seats", "seat_count"},
	"discount_percent":         {"discount_percent", "percent_off", "discount"},
	"discount_duration":        {"discount_duration", "coupon_duration"},
	"discount_duration_months": {"discount_duration_months", "duration_in_months", "coupon_months"},
	"discount_reason":          {"discount_reason", "coupon_reason"},
	"promo_code":               {"promo_code", "coupon", "coupon_code", "promotion_code"},
	"has_payment_method":       {"has_payment_method", "payment_method_on_file", "default_payment_method"},
	"created_at":               {"created_at", "created", "start_date"},
	"first_payment_at":         {"first_payment_at", "first_paid_at", "first_charge_at"},
	"current_period_start":     {"current_period_start", "period_start"},
	"current_period_end":       {"current_period_end", "period_end"},
	"canceled_at":              {"canceled_at", "cancelled_at"},
	"customer_email":           {"customer_email", "email", "billing_email"},
	"org_id":                   {"org_id", "organization_id", "workspace_id"},
	"org_name":                 {"org_name", "organization_name", "company"},
	"exclude":                  {"exclude", "excluded", "exclude_from_ring", "exclude_from_analytics"},
}

// requiredSubscriptionCols are the canonical columns that must be present
// for a subscriptions table to be usable at all.
var requiredSubscriptionCols = []string{
	"id", "status", "interval", "amount", "customer_email",
}

// ParseSubscriptions normalizes a raw subscriptions table into typed
// facts. Rows carrying the explicit exclude flag are dropped before any
// further processing; rows without an id are skipped and counted.
func ParseSubscriptions(t *Table, overrides Aliases) ([]model.SubscriptionFact, ParseStats, error) {
	t.Bind(subscriptionAliases.merge(overrides))
	if err := t.Require(requiredSubscriptionCols...); err != nil {
		return nil, ParseStats{}, err
	}

	stats := ParseStats{Rows: len(t.Rows)}
	facts := make([]model.SubscriptionFact, 0, len(t.Rows))
	for _, row := range t.Rows {
		id := t.Get(row, "id")
		if id == "" {
			stats.Skipped++
			continue
		}
		if parseBool(t.Get(row, "exclude")) {
			stats.Excluded++
			continue
		}

		months := parseIntOr(t.Get(row, "discount_duration_months"), 0)
		f := model.SubscriptionFact{
			ID:               id,
			Status:           model.SubscriptionStatus(normalizeHeader(t.Get(row, "status"))),
			Interval:         normalizeInterval(t.Get(row, "interval")),
			IntervalCount:    parseIntOr(t.Get(row, "interval_count"), 1),
			Amount:           round2(parseFloatOr(t.Get(row, "amount"), 0)),
			Quantity:         parseIntOr(t.Get(row, "quantity"), 1),
			DiscountPercent:  parseFloatOr(t.Get(row, "discount_percent"), 0),
			DiscountMonths:   months,
			DiscountDuration: normalizeDuration(t.Get(row, "discount_duration"), months),
			DiscountReason:   t.Get(row, "discount_reason"),
			PromoCode:        t.Get(row, "promo_code"),
			HasPaymentMethod: parseBool(t.Get(row, "has_payment_method")),
			CreatedAt:        parseTimePtr(t.Get(row, "created_at")),
			FirstPaymentAt:   parseTimePtr(t.Get(row, "first_payment_at")),
			PeriodStart:      parseTimePtr(t.Get(row, "current_period_start")),
			PeriodEnd:        parseTimePtr(t.Get(row, "current_period_end")),
			CanceledAt:       parseTimePtr(t.Get(row, "canceled_at")),
			CustomerEmail:    NormalizeEmail(t.Get(row, "customer_email")),
			OrgID:            t.Get(row, "org_id"),
			OrgName:          t.Get(row, "org_name"),
		}
		facts = append(facts, f)
		stats.Kept++
	}

	if stats.Excluded > 0 || stats.Skipped > 0 {
		zap.L().Info("ingest: subscriptions parsed",
			zap.Int("kept", stats.Kept),
			zap.Int("excluded", stats.Excluded),
			zap.Int("skipped", stats.Skipped),
		)
	}
	return facts, stats, nil
}
