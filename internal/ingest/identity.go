package ingest

import (
	"github.com/sells-group/revenue-cli/internal/model"
)

var orgAliases = Aliases{
	"org_id":     {"org_id", "organization_id", "id", "workspace_id"},
	"org_name":   {"org_name", "organization_name", "name", "company"},
	"created_at": {"created_at", "created"},
}

// ParseOrgs normalizes the organizations table. Rows without an org id are
// skipped and counted.
func ParseOrgs(t *Table, overrides Aliases) ([]model.Org, ParseStats, error) {
	t.Bind(orgAliases.merge(overrides))
	if err := t.Require("org_id", "org_name"); err != nil {
		return nil, ParseStats{}, err
	}

	stats := ParseStats{Rows: len(t.Rows)}
	orgs := make([]model.Org, 0, len(t.Rows))
	for _, row := range t.Rows {
		id := t.Get(row, "org_id")
		if id == "" {
			stats.Skipped++
			continue
		}
		orgs = append(orgs, model.Org{
			ID:        id,
			Name:      t.Get(row, "org_name"),
			CreatedAt: parseTimePtr(t.Get(row, "created_at")),
		})
		stats.Kept++
	}
	return orgs, stats, nil
}

var membershipAliases = Aliases{
	"org_id":        {"org_id", "organization_id", "workspace_id"},
	"user_identity": {"user_identity", "user_id", "member_id"},
	"email":         {"email", "user_email"},
	"role":          {"role", "member_role"},
	"created_at":    {"created_at", "joined_at"},
}

// ParseMemberships normalizes the memberships relation. Roles collapse to
// the ordered set used for resolver tie-breaking; emails are normalized
// once here and never re-normalized downstream.
func ParseMemberships(t *Table, overrides Aliases) ([]model.Membership, ParseStats, error) {
	t.Bind(membershipAliases.merge(overrides))
	if err := t.Require("org_id", "user_identity", "role"); err != nil {
		return nil, ParseStats{}, err
	}

	stats := ParseStats{Rows: len(t.Rows)}
	members := make([]model.Membership, 0, len(t.Rows))
	for _, row := range t.Rows {
		orgID := t.Get(row, "org_id")
		userID := t.Get(row, "user_identity")
		if orgID == "" || userID == "" {
			stats.Skipped++
			continue
		}
		members = append(members, model.Membership{
			OrgID:        orgID,
			UserIdentity: userID,
			Email:        NormalizeEmail(t.Get(row, "email")),
			Role:         normalizeRole(t.Get(row, "role")),
			CreatedAt:    parseTimePtr(t.Get(row, "created_at")),
		})
		stats.Kept++
	}
	return members, stats, nil
}

var userAliases = Aliases{
	"user_identity":   {"user_identity", "user_id", "id"},
	"email":           {"email", "user_email"},
	"display_name":    {"display_name", "name", "full_name"},
	"org_id":          {"org_id", "organization_id"},
	"subscription_id": {"subscription_id", "sub_id"},
}

// ParseUsers normalizes the user-identity table.
func ParseUsers(t *Table, overrides Aliases) ([]model.UserIdentity, ParseStats, error) {
	t.Bind(userAliases.merge(overrides))
	if err := t.Require("user_identity", "email"); err != nil {
		return nil, ParseStats{}, err
	}

	stats := ParseStats{Rows: len(t.Rows)}
	users := make([]model.UserIdentity, 0, len(t.Rows))
	for _, row := range t.Rows {
		id := t.Get(row, "user_identity")
		email := NormalizeEmail(t.Get(row, "email"))
		if id == "" && email == "" {
			stats.Skipped++
			continue
		}
		users = append(users, model.UserIdentity{
			ID:             id,
			Email:          email,
			DisplayName:    t.Get(row, "display_name"),
			OrgID:          t.Get(row, "org_id"),
			SubscriptionID: t.Get(row, "subscription_id"),
		})
		stats.Kept++
	}
	return users, stats, nil
}

var redemptionAliases = Aliases{
	"org_id":      {"org_id", "organization_id"},
	"redeemed_at": {"redeemed_at", "created_at"},
	"promo_code":  {"promo_code", "code", "coupon"},
}

// ParseRedemptions normalizes the optional promo-redemptions table.
func ParseRedemptions(t *Table, overrides Aliases) ([]model.PromoRedemption, ParseStats, error) {
	t.Bind(redemptionAliases.merge(overrides))
	if err := t.Require("org_id", "promo_code"); err != nil {
		return nil, ParseStats{}, err
	}

	stats := ParseStats{Rows: len(t.Rows)}
	reds := make([]model.PromoRedemption, 0, len(t.Rows))
	for _, row := range t.Rows {
		orgID := t.Get(row, "org_id")
		if orgID == "" {
			stats.Skipped++
			continue
		}
		reds = append(reds, model.PromoRedemption{
			OrgID:      orgID,
			RedeemedAt: parseTimePtr(t.Get(row, "redeemed_at")),
			PromoCode:  t.Get(row, "promo_code"),
		})
		stats.Kept++
	}
	return reds, stats, nil
}
