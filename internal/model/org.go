package model

import "time"

// Org is an organization/workspace from the identity provider. Referenced
// but never mutated by the engine; CreatedAt doubles as the trial start.
type Org struct {
	ID        string     `json:"org_id"`
	Name      string     `json:"org_name"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Role is a membership role normalized to a small ordered set used for
// tie-breaking during identity resolution.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
	RoleOther   Role = "other"
)

// Rank orders roles for tie-breaking; lower is better.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 0
	case RoleAdmin:
		return 1
	case RoleManager:
		return 2
	case RoleMember:
		return 3
	default:
		return 4
	}
}

// Elevated reports whether the role carries owner/admin-level access.
func (r Role) Elevated() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Membership links a user identity to an org with a role.
type Membership struct {
	OrgID        string     `json:"org_id"`
	UserIdentity string     `json:"user_identity"`
	Email        string     `json:"email"` // normalized at ingest
	Role         Role       `json:"role"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// UserIdentity is one identity-provider user row. OrgID and SubscriptionID
// are optional direct references used by the resolver.
type UserIdentity struct {
	ID             string `json:"user_identity"`
	Email          string `json:"email"` // normalized at ingest
	DisplayName    string `json:"display_name,omitempty"`
	OrgID          string `json:"org_id,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

// PromoRedemption is an external promo-redemption record matched to an org.
type PromoRedemption struct {
	OrgID      string     `json:"org_id"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
	PromoCode  string     `json:"promo_code"`
}
