package domain

// GranteeType distinguishes how a permission entry names its grantee.
type GranteeType string

const (
	// GranteeEmail identifies a grantee by email address.
	GranteeEmail GranteeType = "email"
	// GranteeUserGroup identifies a grantee by user-group id.
	GranteeUserGroup GranteeType = "userGroup"
)

// PermissionEntry is a requested, not yet persisted grant. Identifier is an
// email address for GranteeEmail and a user-group id for GranteeUserGroup.
type PermissionEntry struct {
	Identifier string
	Type       GranteeType
	Role       Role
	Name       string
}

// AccessGrant is one persisted access row.
//
// Event grants always carry a concrete UserID; UserGroupID records provenance
// when the grant came from expanding a group. Event-group grants carry
// exactly one of UserID or UserGroupID: group membership is resolved lazily
// at read time so later membership changes take effect without re-granting.
type AccessGrant struct {
	TargetID    string
	UserID      string
	UserGroupID string
	Role        Role
}

// AccessUser is one direct user entry in a query-time access view.
type AccessUser struct {
	UserID string
	Email  string
	Name   string
	Role   Role
}

// AccessUserGroup is one user-group entry in a query-time access view.
type AccessUserGroup struct {
	ID   string
	Name string
	Role Role
}

// AccessResult is the current access state for an event or event group.
type AccessResult struct {
	Users      []AccessUser
	UserGroups []AccessUserGroup
}

// UserByID returns the direct user entry with the given id, if present.
func (r AccessResult) UserByID(userID string) (AccessUser, bool) {
	for _, u := range r.Users {
		if u.UserID == userID {
			return u, true
		}
	}
	return AccessUser{}, false
}

// UserGroupByID returns the user-group entry with the given id, if present.
func (r AccessResult) UserGroupByID(groupID string) (AccessUserGroup, bool) {
	for _, g := range r.UserGroups {
		if g.ID == groupID {
			return g, true
		}
	}
	return AccessUserGroup{}, false
}
