package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func tsp(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestRoleRank(t *testing.T) {
	assert.True(t, RoleOwner.Rank() < RoleAdmin.Rank())
	assert.True(t, RoleAdmin.Rank() < RoleManager.Rank())
	assert.True(t, RoleManager.Rank() < RoleMember.Rank())
	assert.Equal(t, RoleOther.Rank(), Role("vp of nothing").Rank())

	assert.True(t, RoleOwner.Elevated())
	assert.True(t, RoleAdmin.Elevated())
	assert.False(t, RoleMember.Elevated())
}

func TestFullyComped(t *testing.T) {
	assert.True(t, SubscriptionFact{DiscountPercent: 100, DiscountDuration: DurationForever}.FullyComped())
	assert.False(t, SubscriptionFact{DiscountPercent: 100, DiscountDuration: DurationNumbered}.FullyComped())
	assert.False(t, SubscriptionFact{DiscountPercent: 50, DiscountDuration: DurationForever}.FullyComped())
}

func TestBucketTotalsAdd(t *testing.T) {
	var b BucketTotals
	b.Add(1200, 100, 2)
	b.Add(600, 50, 1)
	assert.Equal(t, BucketTotals{ARR: 1800, MRR: 150, Seats: 3, Subscriptions: 2}, b)
}

func TestCohortMonth(t *testing.T) {
	assert.Equal(t, "2025-01", OrgRollup{TrialStart: tsp(2025, time.January, 15)}.CohortMonth())
	// Evidence fallback order: free, then promo, then paid.
	assert.Equal(t, "2025-03", OrgRollup{FirstFreeAt: tsp(2025, time.March, 1), FirstPaidAt: tsp(2025, time.May, 1)}.CohortMonth())
	assert.Equal(t, "2025-05", OrgRollup{FirstPaidAt: tsp(2025, time.May, 1)}.CohortMonth())
	assert.Equal(t, "unknown", OrgRollup{}.CohortMonth())
}

func TestSnapshotRowKey(t *testing.T) {
	row := SnapshotRow{
		SnapshotDate: time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
		OrgID:        "org-1",
	}
	assert.Equal(t, "2025-06-30|org-1", row.Key())
}
