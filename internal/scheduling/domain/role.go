// Package domain holds the scheduling core types: roles, access grants,
// pending changes, and the event/group records they attach to.
package domain

// Role orders grantee capability on an event or event group.
type Role int

const (
	// RoleRead grants read-only visibility.
	RoleRead Role = 1
	// RoleReadWrite grants editing capability.
	RoleReadWrite Role = 2
	// RoleAdmin grants management capability, including access edits.
	RoleAdmin Role = 3
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleRead || r == RoleReadWrite || r == RoleAdmin
}

// String implements fmt.Stringer for logs and error metadata.
func (r Role) String() string {
	switch r {
	case RoleRead:
		return "read"
	case RoleReadWrite:
		return "read_write"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// HigherRole returns the role that strictly dominates, resolving conflicting
// grants for the same grantee.
func HigherRole(a, b Role) Role {
	if a > b {
		return a
	}
	return b
}

// CanWrite reports whether r allows editing the target resource.
func CanWrite(r Role) bool {
	return r >= RoleReadWrite
}

// IsAdmin reports whether r allows managing the target resource.
func IsAdmin(r Role) bool {
	return r == RoleAdmin
}
