package service

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/meetgrid/meetgrid/internal/platform/errors"
	"github.com/meetgrid/meetgrid/internal/scheduling/domain"
	"github.com/meetgrid/meetgrid/internal/scheduling/storage"
)

var (
	// ErrPersonalGroupProtected rejects transfer or deletion of the
	// auto-created personal event group.
	ErrPersonalGroupProtected = apperrors.New(apperrors.CodePersonalGroupProtected, "personal event group cannot be transferred or deleted")
	// ErrTransfereeNotMember rejects transferring ownership to an outsider.
	ErrTransfereeNotMember = apperrors.New(apperrors.CodeTransfereeNotMember, "new owner must already be a member or grantee")
)

// CreateUserGroup creates a user group owned by the caller. The creator is
// added as the first member so ownership transfer always has a candidate.
func (s *Service) CreateUserGroup(ctx context.Context, callerUserID string, name string) (domain.UserGroup, error) {
	group, err := domain.CreateUserGroup(domain.CreateUserGroupInput{Name: name, CreatedBy: callerUserID}, s.clock, s.newID)
	if err != nil {
		return domain.UserGroup{}, err
	}
	if err := s.store.PutUserGroup(ctx, group); err != nil {
		return domain.UserGroup{}, apperrors.Wrap(apperrors.CodeInternal, "store user group", err)
	}
	if err := s.store.AddUserGroupMember(ctx, group.ID, callerUserID, group.CreatedAt); err != nil {
		return domain.UserGroup{}, apperrors.Wrap(apperrors.CodeInternal, "add creator membership", err)
	}
	return group, nil
}

// AddUserGroupMember adds a user to a group the caller owns.
func (s *Service) AddUserGroupMember(ctx context.Context, callerUserID string, groupID string, userID string) error {
	group, err := s.verifyUserGroupOwnership(ctx, groupID, callerUserID)
	if err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "member user id is required")
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "user not found")
		}
		return apperrors.Wrap(apperrors.CodeInternal, "resolve member", err)
	}
	if err := s.store.AddUserGroupMember(ctx, groupID, userID, s.nowUTC()); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "add member", err)
	}
	s.notify(ctx, NotifyInput{
		RecipientUserIDs: []string{userID},
		Action:           "member_added",
		SubjectType:      SubjectUserGroup,
		SubjectID:        group.ID,
		SubjectTitle:     group.Name,
		ActorUserID:      callerUserID,
	})
	return nil
}

// RemoveUserGroupMember removes a member from a group the caller owns. The
// owner's own membership is structurally un-removable.
func (s *Service) RemoveUserGroupMember(ctx context.Context, callerUserID string, groupID string, userID string) error {
	group, err := s.verifyUserGroupOwnership(ctx, groupID, callerUserID)
	if err != nil {
		return err
	}
	if userID == group.CreatedBy {
		return ErrOwnerUnremovable
	}
	if err := s.store.RemoveUserGroupMember(ctx, groupID, userID); err != nil {
		return mapStorageErr("remove member", err)
	}
	s.notify(ctx, NotifyInput{
		RecipientUserIDs: []string{userID},
		Action:           "member_removed",
		SubjectType:      SubjectUserGroup,
		SubjectID:        group.ID,
		SubjectTitle:     group.Name,
		ActorUserID:      callerUserID,
	})
	return nil
}

// LeaveUserGroup removes the caller's own membership. The owner cannot
// leave; ownership has to be transferred first.
func (s *Service) LeaveUserGroup(ctx context.Context, callerUserID string, groupID string) error {
	group, err := s.store.GetUserGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errUserGroupDenied
		}
		return apperrors.Wrap(apperrors.CodeInternal, "load user group", err)
	}
	if callerUserID == group.CreatedBy {
		return ErrOwnerUnremovable
	}
	if err := s.store.RemoveUserGroupMember(ctx, groupID, callerUserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errUserGroupDenied
		}
		return apperrors.Wrap(apperrors.CodeInternal, "leave group", err)
	}
	return nil
}

// TransferUserGroupOwnership reassigns created_by on a user group. The new
// owner must already be a member.
func (s *Service) TransferUserGroupOwnership(ctx context.Context, callerUserID string, groupID string, newOwnerUserID string) error {
	group, err := s.verifyUserGroupOwnership(ctx, groupID, callerUserID)
	if err != nil {
		return err
	}
	members, err := s.store.ListUserGroupMembers(ctx, groupID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "list members", err)
	}
	if !containsString(members, newOwnerUserID) {
		return ErrTransfereeNotMember
	}
	if err := s.store.UpdateUserGroupOwner(ctx, groupID, newOwnerUserID, s.nowUTC()); err != nil {
		return mapStorageErr("transfer ownership", err)
	}
	s.notify(ctx, NotifyInput{
		RecipientUserIDs: []string{newOwnerUserID},
		Action:           "ownership_transferred",
		SubjectType:      SubjectUserGroup,
		SubjectID:        group.ID,
		SubjectTitle:     group.Name,
		ActorUserID:      callerUserID,
	})
	return nil
}

// TransferEventGroupOwnership reassigns created_by on an event group. The
// new owner must already be a grantee, directly or through a granted user
// group. The personal group is excluded structurally.
func (s *Service) TransferEventGroupOwnership(ctx context.Context, callerUserID string, groupID string, newOwnerUserID string) error {
	group, err := s.verifyEventGroupOwnership(ctx, groupID, callerUserID)
	if err != nil {
		return err
	}
	if group.Personal {
		return ErrPersonalGroupProtected
	}

	grantee, err := s.isEventGroupGrantee(ctx, groupID, newOwnerUserID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "check grantee", err)
	}
	if !grantee {
		return ErrTransfereeNotMember
	}

	if err := s.store.UpdateEventGroupOwner(ctx, groupID, newOwnerUserID, s.nowUTC()); err != nil {
		return mapStorageErr("transfer ownership", err)
	}
	s.notify(ctx, NotifyInput{
		RecipientUserIDs: []string{newOwnerUserID},
		Action:           "ownership_transferred",
		SubjectType:      SubjectEventGroup,
		SubjectID:        group.ID,
		SubjectTitle:     group.Name,
		ActorUserID:      callerUserID,
	})
	return nil
}

// DeleteEventGroup deletes an event group the caller owns. The personal
// group is protected; a group that still holds events is a conflict.
func (s *Service) DeleteEventGroup(ctx context.Context, callerUserID string, groupID string) error {
	group, err := s.verifyEventGroupOwnership(ctx, groupID, callerUserID)
	if err != nil {
		return err
	}
	if group.Personal {
		return ErrPersonalGroupProtected
	}
	if err := s.store.DeleteEventGroup(ctx, groupID); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return apperrors.New(apperrors.CodeConflict, "event group still contains events")
		}
		return mapStorageErr("delete event group", err)
	}
	return nil
}

// isEventGroupGrantee reports whether the user holds any grant on the event
// group, directly or through a granted user group's membership.
func (s *Service) isEventGroupGrantee(ctx context.Context, groupID string, userID string) (bool, error) {
	rows, err := s.store.ListEventGroupAccess(ctx, groupID)
	if err != nil {
		return false, err
	}
	var grantedGroupIDs []string
	for _, row := range rows {
		if row.UserID == userID {
			return true, nil
		}
		if row.UserGroupID != "" {
			grantedGroupIDs = append(grantedGroupIDs, row.UserGroupID)
		}
	}
	if len(grantedGroupIDs) == 0 {
		return false, nil
	}
	members, err := s.store.ListMembersByGroupIDs(ctx, grantedGroupIDs)
	if err != nil {
		return false, err
	}
	for _, memberIDs := range members {
		if containsString(memberIDs, userID) {
			return true, nil
		}
	}
	return false, nil
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
