package pending

import "github.com/meetgrid/meetgrid/internal/scheduling/domain"

// RoleChange tracks one grantee's role moving from Old to New.
type RoleChange struct {
	Old domain.Role
	New domain.Role
}

// EffectiveState is the access view a save would produce: the projected
// users and groups plus tracking sets for what was added, removed, or
// re-roled relative to the snapshot.
type EffectiveState struct {
	Users               []domain.AccessUser
	UserGroups          []domain.AccessUserGroup
	AddedUserIDs        map[string]bool
	AddedUserGroupIDs   map[string]bool
	RemovedUserIDs      map[string]bool
	RemovedUserGroupIDs map[string]bool
	UserRoleChanges     map[string]RoleChange
	GroupRoleChanges    map[string]RoleChange
}

// Project folds changes over original in insertion order.
//
// The fold is pure: the same snapshot and change list always yield the same
// projection, so callers may recompute it on every render.
func Project(original domain.AccessResult, changes []domain.Change) EffectiveState {
	state := EffectiveState{
		Users:               make([]domain.AccessUser, len(original.Users)),
		UserGroups:          make([]domain.AccessUserGroup, len(original.UserGroups)),
		AddedUserIDs:        make(map[string]bool),
		AddedUserGroupIDs:   make(map[string]bool),
		RemovedUserIDs:      make(map[string]bool),
		RemovedUserGroupIDs: make(map[string]bool),
		UserRoleChanges:     make(map[string]RoleChange),
		GroupRoleChanges:    make(map[string]RoleChange),
	}
	copy(state.Users, original.Users)
	copy(state.UserGroups, original.UserGroups)

	for _, change := range changes {
		switch change.Kind {
		case domain.ChangeAddUser:
			if idx := indexOfUser(state.Users, change.UserID); idx < 0 {
				state.Users = append(state.Users, domain.AccessUser{
					UserID: change.UserID,
					Email:  change.Email,
					Name:   change.Name,
					Role:   change.Role,
				})
			} else {
				state.Users[idx].Role = change.Role
			}
			state.AddedUserIDs[change.UserID] = true
			delete(state.RemovedUserIDs, change.UserID)

		case domain.ChangeAddUserGroup:
			if idx := indexOfGroup(state.UserGroups, change.GroupID); idx < 0 {
				state.UserGroups = append(state.UserGroups, domain.AccessUserGroup{
					ID:   change.GroupID,
					Name: change.GroupName,
					Role: change.Role,
				})
			} else {
				state.UserGroups[idx].Role = change.Role
			}
			state.AddedUserGroupIDs[change.GroupID] = true
			delete(state.RemovedUserGroupIDs, change.GroupID)

		case domain.ChangeRemoveUser:
			if idx := indexOfUser(state.Users, change.UserID); idx >= 0 {
				state.Users = append(state.Users[:idx], state.Users[idx+1:]...)
			}
			state.RemovedUserIDs[change.UserID] = true
			delete(state.AddedUserIDs, change.UserID)
			delete(state.UserRoleChanges, change.UserID)

		case domain.ChangeRemoveUserGroup:
			if idx := indexOfGroup(state.UserGroups, change.GroupID); idx >= 0 {
				state.UserGroups = append(state.UserGroups[:idx], state.UserGroups[idx+1:]...)
			}
			state.RemovedUserGroupIDs[change.GroupID] = true
			delete(state.AddedUserGroupIDs, change.GroupID)
			delete(state.GroupRoleChanges, change.GroupID)

		case domain.ChangeUpdateUserRole:
			if idx := indexOfUser(state.Users, change.UserID); idx >= 0 {
				state.Users[idx].Role = change.Role
			}
			state.UserRoleChanges[change.UserID] = RoleChange{Old: change.OldRole, New: change.Role}

		case domain.ChangeUpdateUserGroupRole:
			if idx := indexOfGroup(state.UserGroups, change.GroupID); idx >= 0 {
				state.UserGroups[idx].Role = change.Role
			}
			state.GroupRoleChanges[change.GroupID] = RoleChange{Old: change.OldRole, New: change.Role}
		}
	}

	return state
}

func indexOfUser(users []domain.AccessUser, userID string) int {
	for idx, u := range users {
		if u.UserID == userID {
			return idx
		}
	}
	return -1
}

func indexOfGroup(groups []domain.AccessUserGroup, groupID string) int {
	for idx, g := range groups {
		if g.ID == groupID {
			return idx
		}
	}
	return -1
}
