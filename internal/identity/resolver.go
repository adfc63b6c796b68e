// Package identity joins subscriptions to their most likely owning
// organization and human contact. All tie-breaks are deterministic so
// repeated runs over the same snapshot produce identical rollups.
package identity

import (
	"sort"

	"github.com/sells-group/revenue-cli/internal/ingest"
	"github.com/sells-group/revenue-cli/internal/model"
)

// Resolution is the tagged result of resolving one subscription. An
// unresolved subscription keeps empty fields and a reason; the caller
// routes it to a synthetic key so revenue is never silently dropped.
type Resolution struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	OrgID       string `json:"org_id"`
	Resolved    bool   `json:"resolved"`
	Reason      string `json:"reason,omitempty"`
}

// Resolver holds the per-run identity indexes. Build once per run from the
// normalized inputs; it never reaches outside them.
type Resolver struct {
	bySubID     map[string][]model.UserIdentity
	byEmail     map[string][]model.UserIdentity
	memberships map[string][]model.Membership // user identity -> memberships
	orgsByID    map[string]model.Org
}

// NewResolver indexes users, memberships, and orgs for resolution.
// Membership rows missing a user_identity link are also indexed by their
// normalized email so email-only identity providers still join.
func NewResolver(users []model.UserIdentity, memberships []model.Membership, orgs []model.Org) *Resolver {
	r := &Resolver{
		bySubID:     make(map[string][]model.UserIdentity),
		byEmail:     make(map[string][]model.UserIdentity),
		memberships: make(map[string][]model.Membership),
		orgsByID:    make(map[string]model.Org, len(orgs)),
	}

	for _, u := range users {
		if u.SubscriptionID != "" {
			r.bySubID[u.SubscriptionID] = append(r.bySubID[u.SubscriptionID], u)
		}
		if u.Email != "" {
			r.byEmail[u.Email] = append(r.byEmail[u.Email], u)
		}
	}
	for _, m := range memberships {
		if m.UserIdentity != "" {
			r.memberships[m.UserIdentity] = append(r.memberships[m.UserIdentity], m)
		}
	}
	for _, o := range orgs {
		r.orgsByID[o.ID] = o
	}
	return r
}

// Org returns the org record for an id, if known.
func (r *Resolver) Org(id string) (model.Org, bool) {
	o, ok := r.orgsByID[id]
	return o, ok
}

// bestRole returns the best (lowest-ranked) membership role a user holds.
func (r *Resolver) bestRole(u model.UserIdentity) model.Role {
	best := model.RoleOther
	for _, m := range r.memberships[u.ID] {
		if m.Role.Rank() < best.Rank() {
			best = m.Role
		}
	}
	return best
}

// orgFor picks the organization for a chosen candidate: their memberships
// ordered by role rank then org id, falling back to the candidate's direct
// org reference when no membership exists.
func (r *Resolver) orgFor(u model.UserIdentity) string {
	ms := r.memberships[u.ID]
	if len(ms) == 0 {
		return u.OrgID
	}
	best := ms[0]
	for _, m := range ms[1:] {
		if m.Role.Rank() < best.Role.Rank() ||
			(m.Role.Rank() == best.Role.Rank() && m.OrgID < best.OrgID) {
			best = m
		}
	}
	return best.OrgID
}

// Resolve picks the owning contact and org for a subscription.
//
// Candidate gathering prefers the explicit subscription-id link and falls
// back to normalized-email matching. When the billing email matches a
// candidate exactly, non-matching candidates are discarded. Remaining ties
// break on membership role (owner/admin over plain member), then on
// lexicographic email order — never "first seen".
func (r *Resolver) Resolve(sub model.SubscriptionFact) Resolution {
	cands := r.bySubID[sub.ID]
	if len(cands) == 0 && sub.CustomerEmail != "" {
		cands = r.byEmail[sub.CustomerEmail]
	}
	if len(cands) == 0 {
		return Resolution{Reason: "no identity records match subscription id or email"}
	}

	billing := ingest.NormalizeEmail(sub.CustomerEmail)
	if billing != "" {
		var exact []model.UserIdentity
		for _, c := range cands {
			if c.Email == billing {
				exact = append(exact, c)
			}
		}
		if len(exact) > 0 {
			cands = exact
		}
	}

	sort.Slice(cands, func(i, j int) bool {
		ri, rj := r.bestRole(cands[i]), r.bestRole(cands[j])
		if ri.Elevated() != rj.Elevated() {
			return ri.Elevated()
		}
		return cands[i].Email < cands[j].Email
	})
	picked := cands[0]

	return Resolution{
		Email:       picked.Email,
		DisplayName: picked.DisplayName,
		OrgID:       r.orgFor(picked),
		Resolved:    true,
	}
}

// OrgKey derives the aggregation key for a subscription from its
// resolution: resolved org id, then normalized email, then org name, then
// subscription id — first non-empty wins. Synthetic keys are marked
// unmapped so downstream review can find them; revenue is never dropped.
func OrgKey(sub model.SubscriptionFact, res Resolution) (key string, unmapped bool) {
	if res.OrgID != "" {
		return res.OrgID, false
	}
	if sub.OrgID != "" {
		return sub.OrgID, false
	}
	if email := ingest.NormalizeEmail(sub.CustomerEmail); email != "" {
		return "email:" + email, true
	}
	if sub.OrgName != "" {
		return "name:" + sub.OrgName, true
	}
	return "sub:" + sub.ID, true
}
