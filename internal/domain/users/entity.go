package users

// Org is the slice of an organization the pipeline needs.
type Org struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// OrgMembership links a user to an organization with a role.
type OrgMembership struct {
	Role string `json:"role"`
	Org  Org    `json:"org"`
}

// User as resolved by authentication, with org memberships preloaded.
type User struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	Name        string          `json:"name,omitempty"`
	Memberships []OrgMembership `json:"orgMemberships"`
}

// DefaultOrg picks the org the user owns, else the first membership, else nil.
func (u *User) DefaultOrg() *Org {
	for i := range u.Memberships {
		if u.Memberships[i].Role == "OWNER" {
			return &u.Memberships[i].Org
		}
	}
	if len(u.Memberships) > 0 {
		return &u.Memberships[0].Org
	}
	return nil
}

// HasOrgAccess reports whether the user is a member of the org (any role).
func (u *User) HasOrgAccess(orgID string) bool {
	for _, m := range u.Memberships {
		if m.Org.ID == orgID {
			return true
		}
	}
	return false
}
