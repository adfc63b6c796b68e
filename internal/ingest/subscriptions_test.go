package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/revenue-cli/internal/model"
)

func subscriptionTable(rows [][]string) *Table {
	return NewTable("subscriptions", []string{
		"Subscription ID", "Status", "Interval", "Amount", "Quantity",
		"Percent Off", "Coupon Duration", "Duration In Months", "Coupon",
		"Has Payment Method", "Created At", "Customer Email", "Org ID", "Exclude",
	}, rows)
}

func TestParseSubscriptions(t *testing.T) {
	tbl := subscriptionTable([][]string{
		{"sub_1", "Active", "year", "1,200.00", "3", "", "", "", "", "true", "2025-01-05", "Jo+billing@Acme.com", "org-1", ""},
		{"sub_2", "trialing", "month", "$99", "", "100", "repeating", "3", "LAUNCH", "", "2025-02-01", "kim@beta.io", "", ""},
		{"sub_3", "active", "month", "50", "1", "", "", "", "", "", "", "x@y.com", "", "true"},
		{"", "active", "month", "10", "", "", "", "", "", "", "", "ghost@z.com", "", ""},
	})

	facts, stats, err := ParseSubscriptions(tbl, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Rows)
	assert.Equal(t, 2, stats.Kept)
	assert.Equal(t, 1, stats.Excluded)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, facts, 2)

	first := facts[0]
	assert.Equal(t, "sub_1", first.ID)
	assert.Equal(t, model.StatusActive, first.Status)
	assert.Equal(t, model.IntervalYear, first.Interval)
	assert.Equal(t, 1200.0, first.Amount)
	assert.Equal(t, 3, first.Quantity)
	assert.True(t, first.HasPaymentMethod)
	assert.Equal(t, "jo@acme.com", first.CustomerEmail)
	assert.Equal(t, "org-1", first.OrgID)
	require.NotNil(t, first.CreatedAt)
	assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), *first.CreatedAt)

	second := facts[1]
	assert.Equal(t, model.StatusTrialing, second.Status)
	assert.Equal(t, 99.0, second.Amount)
	assert.Equal(t, 1, second.Quantity) // default
	assert.Equal(t, 100.0, second.DiscountPercent)
	assert.Equal(t, model.DurationNumbered, second.DiscountDuration)
	assert.Equal(t, 3, second.DiscountMonths)
	assert.Equal(t, "LAUNCH", second.PromoCode)
	assert.False(t, second.HasPaymentMethod)
}

func TestParseSubscriptions_MissingRequiredColumn(t *testing.T) {
	tbl := NewTable("subscriptions", []string{"id", "interval", "amount", "customer_email"}, nil)

	_, _, err := ParseSubscriptions(tbl, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required column "status"`)
}

func TestParseSubscriptions_AliasOverride(t *testing.T) {
	tbl := NewTable("subscriptions",
		[]string{"id", "status", "interval", "total_price", "customer_email"},
		[][]string{{"sub_1", "active", "month", "49.99", "a@b.com"}})

	// Default aliases do not know total_price.
	_, _, err := ParseSubscriptions(tbl, nil)
	require.Error(t, err)

	facts, _, err := ParseSubscriptions(tbl, Aliases{"amount": {"total_price"}})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, 49.99, facts[0].Amount)
}
