// Package storage defines the persistence boundary for the scheduling core.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/meetgrid/meetgrid/internal/scheduling/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
)

// UserStore persists resolved identity records.
type UserStore interface {
	PutUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
	// GetUsersByEmails resolves many emails in one query. The result map is
	// keyed by lowercased email; unknown emails are simply absent.
	GetUsersByEmails(ctx context.Context, emails []string) (map[string]domain.User, error)
	// GetUsersByIDs loads many users in one query, keyed by id.
	GetUsersByIDs(ctx context.Context, userIDs []string) (map[string]domain.User, error)
}

// UserGroupStore persists user groups and their memberships.
type UserGroupStore interface {
	PutUserGroup(ctx context.Context, g domain.UserGroup) error
	GetUserGroup(ctx context.Context, groupID string) (domain.UserGroup, error)
	GetUserGroupsByIDs(ctx context.Context, groupIDs []string) (map[string]domain.UserGroup, error)
	UpdateUserGroupOwner(ctx context.Context, groupID string, newOwnerID string, updatedAt time.Time) error
	AddUserGroupMember(ctx context.Context, groupID string, userID string, addedAt time.Time) error
	RemoveUserGroupMember(ctx context.Context, groupID string, userID string) error
	ListUserGroupMembers(ctx context.Context, groupID string) ([]string, error)
	// ListMembersByGroupIDs expands many groups in one query, keyed by group id.
	ListMembersByGroupIDs(ctx context.Context, groupIDs []string) (map[string][]string, error)
}

// EventStore persists event records.
type EventStore interface {
	PutEvent(ctx context.Context, e domain.Event) error
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	UpdateEventGroup(ctx context.Context, eventID string, eventGroupID string, updatedAt time.Time) error
	// ListEventsVisibleToUser returns events the user owns, is granted on, or
	// can see through an event-group grant (direct or via group membership).
	// filterClause/filterParams, when non-empty, are ANDed into the query.
	ListEventsVisibleToUser(ctx context.Context, userID string, filterClause string, filterParams []any) ([]domain.Event, error)
}

// EventGroupStore persists event-group records.
type EventGroupStore interface {
	PutEventGroup(ctx context.Context, g domain.EventGroup) error
	GetEventGroup(ctx context.Context, groupID string) (domain.EventGroup, error)
	UpdateEventGroupOwner(ctx context.Context, groupID string, newOwnerID string, updatedAt time.Time) error
	DeleteEventGroup(ctx context.Context, groupID string) error
}

// AccessStore persists access-grant rows for events and event groups.
//
// Event rows always carry a user id (group grants are expanded at grant time,
// keeping the group id as provenance). Event-group rows carry exactly one of
// user id or user-group id.
type AccessStore interface {
	ListEventAccess(ctx context.Context, eventID string) ([]domain.AccessGrant, error)
	UpsertEventAccess(ctx context.Context, grants []domain.AccessGrant, at time.Time) error
	UpdateEventAccessRole(ctx context.Context, eventID string, userID string, role domain.Role, at time.Time) error
	UpdateEventAccessRoleByGroup(ctx context.Context, eventID string, userGroupID string, role domain.Role, at time.Time) error
	DeleteEventAccessUser(ctx context.Context, eventID string, userID string) error
	DeleteEventAccessByGroup(ctx context.Context, eventID string, userGroupID string) ([]string, error)

	ListEventGroupAccess(ctx context.Context, eventGroupID string) ([]domain.AccessGrant, error)
	UpsertEventGroupAccess(ctx context.Context, grants []domain.AccessGrant, at time.Time) error
	UpdateEventGroupAccessUserRole(ctx context.Context, eventGroupID string, userID string, role domain.Role, at time.Time) error
	UpdateEventGroupAccessGroupRole(ctx context.Context, eventGroupID string, userGroupID string, role domain.Role, at time.Time) error
	DeleteEventGroupAccessUser(ctx context.Context, eventGroupID string, userID string) error
	DeleteEventGroupAccessGroup(ctx context.Context, eventGroupID string, userGroupID string) error
}

// Store bundles every scheduling persistence concern one backend provides.
type Store interface {
	UserStore
	UserGroupStore
	EventStore
	EventGroupStore
	AccessStore
}
