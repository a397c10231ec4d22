package domain

import apperrors "github.com/meetgrid/meetgrid/internal/platform/errors"

// ChangeKind is the closed set of pending access mutations.
type ChangeKind int

const (
	// ChangeAddUser queues a direct user grant.
	ChangeAddUser ChangeKind = iota + 1
	// ChangeAddUserGroup queues a user-group grant.
	ChangeAddUserGroup
	// ChangeRemoveUser queues removal of a direct user grant.
	ChangeRemoveUser
	// ChangeRemoveUserGroup queues removal of a user-group grant.
	ChangeRemoveUserGroup
	// ChangeUpdateUserRole queues a role change on a direct user grant.
	ChangeUpdateUserRole
	// ChangeUpdateUserGroupRole queues a role change on a user-group grant.
	ChangeUpdateUserGroupRole
)

// String implements fmt.Stringer for per-change failure reporting.
func (k ChangeKind) String() string {
	switch k {
	case ChangeAddUser:
		return "add-user"
	case ChangeAddUserGroup:
		return "add-user-group"
	case ChangeRemoveUser:
		return "remove-user"
	case ChangeRemoveUserGroup:
		return "remove-user-group"
	case ChangeUpdateUserRole:
		return "update-user-role"
	case ChangeUpdateUserGroupRole:
		return "update-user-group-role"
	default:
		return "unknown"
	}
}

// ErrInvalidChange indicates a pending change missing its required fields.
var ErrInvalidChange = apperrors.New(apperrors.CodeInvalidArgument, "invalid pending change")

// Change is one unsaved access mutation accumulated client-side and applied
// in a batch on explicit save. ID is scoped to the list that produced it.
//
// UserID/Email/Name are set for the user-targeted kinds, GroupID/GroupName
// for the group-targeted kinds. Role carries the requested role for adds and
// role updates; OldRole carries the pre-change role for role updates so the
// list can collapse a change back to the original.
type Change struct {
	ID        int
	Kind      ChangeKind
	UserID    string
	Email     string
	Name      string
	GroupID   string
	GroupName string
	Role      Role
	OldRole   Role
}

// TargetsUser reports whether the change addresses a direct user grant.
func (c Change) TargetsUser() bool {
	switch c.Kind {
	case ChangeAddUser, ChangeRemoveUser, ChangeUpdateUserRole:
		return true
	case ChangeAddUserGroup, ChangeRemoveUserGroup, ChangeUpdateUserGroupRole:
		return false
	default:
		return false
	}
}

// Validate checks the change carries the fields its kind requires.
func (c Change) Validate() error {
	switch c.Kind {
	case ChangeAddUser, ChangeUpdateUserRole:
		if c.UserID == "" || !c.Role.Valid() {
			return ErrInvalidChange
		}
	case ChangeRemoveUser:
		if c.UserID == "" {
			return ErrInvalidChange
		}
	case ChangeAddUserGroup, ChangeUpdateUserGroupRole:
		if c.GroupID == "" || !c.Role.Valid() {
			return ErrInvalidChange
		}
	case ChangeRemoveUserGroup:
		if c.GroupID == "" {
			return ErrInvalidChange
		}
	default:
		return ErrInvalidChange
	}
	return nil
}
