// Package pending accumulates unsaved access changes and projects the state
// a save would produce onto the last-fetched server snapshot.
package pending

import (
	"github.com/meetgrid/meetgrid/internal/scheduling/domain"
)

// List holds ordered unsaved changes against one access snapshot.
//
// The list owns its change id counter, so ids are meaningful only within one
// editing session and never collide across instances.
type List struct {
	original domain.AccessResult
	changes  []domain.Change
	nextID   int
}

// NewList starts an editing session over the given server snapshot.
func NewList(original domain.AccessResult) *List {
	return &List{original: cloneResult(original), nextID: 1}
}

// Changes returns the accumulated changes in insertion order.
func (l *List) Changes() []domain.Change {
	out := make([]domain.Change, len(l.changes))
	copy(out, l.changes)
	return out
}

// Len reports how many changes are pending.
func (l *List) Len() int {
	return len(l.changes)
}

// Clear discards all pending changes, keeping the snapshot.
func (l *List) Clear() {
	l.changes = nil
}

// Reset replaces the snapshot after a save and re-fetch, discarding changes.
func (l *List) Reset(original domain.AccessResult) {
	l.original = cloneResult(original)
	l.changes = nil
}

// AddUser queues a direct user grant.
//
// Re-adding a user with a pending remove cancels the remove; if the requested
// role differs from the user's original role the add becomes a role change.
// Re-adding a user already in the snapshot at the same role is a no-op.
func (l *List) AddUser(user domain.AccessUser) {
	if idx := l.findChange(func(c domain.Change) bool {
		return c.Kind == domain.ChangeAddUser && c.UserID == user.UserID
	}); idx >= 0 {
		l.changes[idx].Role = user.Role
		return
	}

	if _, ok := l.original.UserByID(user.UserID); ok {
		l.dropChange(func(c domain.Change) bool {
			return c.Kind == domain.ChangeRemoveUser && c.UserID == user.UserID
		})
		l.UpdateUserRole(user.UserID, user.Role)
		return
	}

	l.append(domain.Change{
		Kind:   domain.ChangeAddUser,
		UserID: user.UserID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
	})
}

// AddUserGroup queues a user-group grant, symmetric to AddUser.
func (l *List) AddUserGroup(group domain.AccessUserGroup) {
	if idx := l.findChange(func(c domain.Change) bool {
		return c.Kind == domain.ChangeAddUserGroup && c.GroupID == group.ID
	}); idx >= 0 {
		l.changes[idx].Role = group.Role
		return
	}

	if _, ok := l.original.UserGroupByID(group.ID); ok {
		l.dropChange(func(c domain.Change) bool {
			return c.Kind == domain.ChangeRemoveUserGroup && c.GroupID == group.ID
		})
		l.UpdateUserGroupRole(group.ID, group.Role)
		return
	}

	l.append(domain.Change{
		Kind:      domain.ChangeAddUserGroup,
		GroupID:   group.ID,
		GroupName: group.Name,
		Role:      group.Role,
	})
}

// RemoveUser queues removal of a direct user grant.
//
// Removing a user with a pending add cancels the add instead of queuing a
// remove, since the user never existed server-side. Any pending role change
// for the user is dropped either way.
func (l *List) RemoveUser(userID string) {
	hadPendingAdd := l.dropChange(func(c domain.Change) bool {
		return c.Kind == domain.ChangeAddUser && c.UserID == userID
	})
	l.dropChange(func(c domain.Change) bool {
		return c.Kind == domain.ChangeUpdateUserRole && c.UserID == userID
	})
	if hadPendingAdd {
		return
	}

	original, ok := l.original.UserByID(userID)
	if !ok {
		return
	}
	l.append(domain.Change{
		Kind:    domain.ChangeRemoveUser,
		UserID:  original.UserID,
		Email:   original.Email,
		Name:    original.Name,
		OldRole: original.Role,
	})
}

// RemoveUserGroup queues removal of a user-group grant, symmetric to RemoveUser.
func (l *List) RemoveUserGroup(groupID string) {
	hadPendingAdd := l.dropChange(func(c domain.Change) bool {
		return c.Kind == domain.ChangeAddUserGroup && c.GroupID == groupID
	})
	l.dropChange(func(c domain.Change) bool {
		return c.Kind == domain.ChangeUpdateUserGroupRole && c.GroupID == groupID
	})
	if hadPendingAdd {
		return
	}

	original, ok := l.original.UserGroupByID(groupID)
	if !ok {
		return
	}
	l.append(domain.Change{
		Kind:      domain.ChangeRemoveUserGroup,
		GroupID:   original.ID,
		GroupName: original.Name,
		OldRole:   original.Role,
	})
}

// UpdateUserRole queues a role change on a direct user grant.
//
// A change back to the user's original role removes the pending change
// entirely instead of retaining a no-op.
func (l *List) UpdateUserRole(userID string, newRole domain.Role) {
	if idx := l.findChange(func(c domain.Change) bool {
		return c.Kind == domain.ChangeAddUser && c.UserID == userID
	}); idx >= 0 {
		l.changes[idx].Role = newRole
		return
	}

	original, ok := l.original.UserByID(userID)
	if !ok {
		return
	}
	if newRole == original.Role {
		l.dropChange(func(c domain.Change) bool {
			return c.Kind == domain.ChangeUpdateUserRole && c.UserID == userID
		})
		return
	}

	if idx := l.findChange(func(c domain.Change) bool {
		return c.Kind == domain.ChangeUpdateUserRole && c.UserID == userID
	}); idx >= 0 {
		l.changes[idx].Role = newRole
		return
	}
	l.append(domain.Change{
		Kind:    domain.ChangeUpdateUserRole,
		UserID:  original.UserID,
		Email:   original.Email,
		Name:    original.Name,
		Role:    newRole,
		OldRole: original.Role,
	})
}

// UpdateUserGroupRole queues a role change on a user-group grant, symmetric
// to UpdateUserRole.
func (l *List) UpdateUserGroupRole(groupID string, newRole domain.Role) {
	if idx := l.findChange(func(c domain.Change) bool {
		return c.Kind == domain.ChangeAddUserGroup && c.GroupID == groupID
	}); idx >= 0 {
		l.changes[idx].Role = newRole
		return
	}

	original, ok := l.original.UserGroupByID(groupID)
	if !ok {
		return
	}
	if newRole == original.Role {
		l.dropChange(func(c domain.Change) bool {
			return c.Kind == domain.ChangeUpdateUserGroupRole && c.GroupID == groupID
		})
		return
	}

	if idx := l.findChange(func(c domain.Change) bool {
		return c.Kind == domain.ChangeUpdateUserGroupRole && c.GroupID == groupID
	}); idx >= 0 {
		l.changes[idx].Role = newRole
		return
	}
	l.append(domain.Change{
		Kind:      domain.ChangeUpdateUserGroupRole,
		GroupID:   original.ID,
		GroupName: original.Name,
		Role:      newRole,
		OldRole:   original.Role,
	})
}

// Effective projects the pending changes over the snapshot.
func (l *List) Effective() EffectiveState {
	return Project(l.original, l.changes)
}

func (l *List) append(change domain.Change) {
	change.ID = l.nextID
	l.nextID++
	l.changes = append(l.changes, change)
}

func (l *List) findChange(match func(domain.Change) bool) int {
	for idx, change := range l.changes {
		if match(change) {
			return idx
		}
	}
	return -1
}

func (l *List) dropChange(match func(domain.Change) bool) bool {
	dropped := false
	kept := l.changes[:0]
	for _, change := range l.changes {
		if match(change) {
			dropped = true
			continue
		}
		kept = append(kept, change)
	}
	l.changes = kept
	return dropped
}

func cloneResult(in domain.AccessResult) domain.AccessResult {
	out := domain.AccessResult{
		Users:      make([]domain.AccessUser, len(in.Users)),
		UserGroups: make([]domain.AccessUserGroup, len(in.UserGroups)),
	}
	copy(out.Users, in.Users)
	copy(out.UserGroups, in.UserGroups)
	return out
}
