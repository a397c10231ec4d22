package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	apperrors "github.com/meetgrid/meetgrid/internal/platform/errors"
	"github.com/meetgrid/meetgrid/internal/scheduling/domain"
	"github.com/meetgrid/meetgrid/internal/scheduling/storage"
)

// ErrOwnerUnremovable rejects removing the resource owner; ownership is
// ambient and not represented by a grant row.
var ErrOwnerUnremovable = apperrors.New(apperrors.CodeOwnerUnremovable, "cannot remove the owner")

var errGrantNotFound = apperrors.New(apperrors.CodeNotFound, "grant not found")

// FailedChange pairs a change with the error that stopped it.
type FailedChange struct {
	Change domain.Change
	Err    error
}

// ApplyResult reports per-change outcomes of one batch apply. Changes are
// applied independently; one failure never blocks the rest, so partial
// progress is preserved and surfaced.
type ApplyResult struct {
	Successful []domain.Change
	Failed     []FailedChange
}

// ApplyEventChanges applies a client-accumulated change list to an event the
// caller owns. Callers must re-fetch the access view afterwards; the result
// carries outcomes only, keeping staleness explicit.
func (s *Service) ApplyEventChanges(ctx context.Context, callerUserID string, eventID string, changes []domain.Change) (ApplyResult, error) {
	event, err := s.verifyEventOwnership(ctx, eventID, callerUserID)
	if err != nil {
		return ApplyResult{}, err
	}
	current, err := s.fetchEventAccess(ctx, eventID)
	if err != nil {
		return ApplyResult{}, apperrors.Wrap(apperrors.CodeInternal, "load current access", err)
	}

	granted := map[string]bool{}
	for _, u := range current.Users {
		granted[u.UserID] = true
	}

	result := ApplyResult{Successful: []domain.Change{}, Failed: []FailedChange{}}
	affected := newAffectedSet()
	for _, change := range changes {
		if err := s.applyEventChange(ctx, event, change, granted, affected); err != nil {
			result.Failed = append(result.Failed, FailedChange{Change: change, Err: err})
			continue
		}
		result.Successful = append(result.Successful, change)
	}

	s.notify(ctx, NotifyInput{
		RecipientUserIDs: affected.ids(),
		Action:           "access_updated",
		SubjectType:      SubjectEvent,
		SubjectID:        event.ID,
		SubjectTitle:     event.Title,
		ActorUserID:      callerUserID,
	})
	return result, nil
}

func (s *Service) applyEventChange(ctx context.Context, event domain.Event, change domain.Change, granted map[string]bool, affected *affectedSet) error {
	if err := change.Validate(); err != nil {
		return err
	}
	now := s.nowUTC()

	switch change.Kind {
	case domain.ChangeAddUser:
		// Re-adding an existing grantee (or the ambient owner) is a no-op
		// success, not a duplicate row.
		if change.UserID == event.CreatedBy || granted[change.UserID] {
			return nil
		}
		grant := domain.AccessGrant{TargetID: event.ID, UserID: change.UserID, Role: change.Role}
		if err := s.store.UpsertEventAccess(ctx, []domain.AccessGrant{grant}, now); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "add user grant", err)
		}
		granted[change.UserID] = true
		affected.add(change.UserID)
		return nil

	case domain.ChangeAddUserGroup:
		entry := domain.PermissionEntry{Identifier: change.GroupID, Type: domain.GranteeUserGroup, Role: change.Role}
		resolution, err := s.ResolveForEvent(ctx, event.ID, []domain.PermissionEntry{entry})
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "resolve user group", err)
		}
		if len(resolution.Unresolved) > 0 {
			return apperrors.New(apperrors.CodeNotFound, "user group not found")
		}
		grants := make([]domain.AccessGrant, 0, len(resolution.Grants))
		for _, grant := range resolution.Grants {
			if grant.UserID == event.CreatedBy || granted[grant.UserID] {
				continue
			}
			grants = append(grants, grant)
		}
		if len(grants) == 0 {
			return nil
		}
		if err := s.store.UpsertEventAccess(ctx, grants, now); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "add group grants", err)
		}
		for _, grant := range grants {
			granted[grant.UserID] = true
			affected.add(grant.UserID)
		}
		return nil

	case domain.ChangeRemoveUser:
		if change.UserID == event.CreatedBy {
			return ErrOwnerUnremovable
		}
		if err := s.store.DeleteEventAccessUser(ctx, event.ID, change.UserID); err != nil {
			return mapStorageErr("remove user grant", err)
		}
		delete(granted, change.UserID)
		affected.add(change.UserID)
		return nil

	case domain.ChangeRemoveUserGroup:
		removed, err := s.store.DeleteEventAccessByGroup(ctx, event.ID, change.GroupID)
		if err != nil {
			return mapStorageErr("remove group grants", err)
		}
		if len(removed) == 0 {
			return errGrantNotFound
		}
		for _, userID := range removed {
			delete(granted, userID)
			affected.add(userID)
		}
		return nil

	case domain.ChangeUpdateUserRole:
		if err := s.store.UpdateEventAccessRole(ctx, event.ID, change.UserID, change.Role, now); err != nil {
			return mapStorageErr("update user role", err)
		}
		affected.add(change.UserID)
		return nil

	case domain.ChangeUpdateUserGroupRole:
		if err := s.store.UpdateEventAccessRoleByGroup(ctx, event.ID, change.GroupID, change.Role, now); err != nil {
			return mapStorageErr("update group role", err)
		}
		return nil

	default:
		return domain.ErrInvalidChange
	}
}

// ApplyEventGroupChanges applies a change list to an event group the caller
// owns. Group grants stay unexpanded, so group-only changes produce no
// individual notifications; only changes landing on a concrete user do.
func (s *Service) ApplyEventGroupChanges(ctx context.Context, callerUserID string, groupID string, changes []domain.Change) (ApplyResult, error) {
	group, err := s.verifyEventGroupOwnership(ctx, groupID, callerUserID)
	if err != nil {
		return ApplyResult{}, err
	}
	current, err := s.fetchEventGroupAccess(ctx, groupID)
	if err != nil {
		return ApplyResult{}, apperrors.Wrap(apperrors.CodeInternal, "load current access", err)
	}

	grantedUsers := map[string]bool{}
	for _, u := range current.Users {
		grantedUsers[u.UserID] = true
	}
	grantedGroups := map[string]bool{}
	for _, g := range current.UserGroups {
		grantedGroups[g.ID] = true
	}

	result := ApplyResult{Successful: []domain.Change{}, Failed: []FailedChange{}}
	affected := newAffectedSet()
	for _, change := range changes {
		if err := s.applyEventGroupChange(ctx, group, change, grantedUsers, grantedGroups, affected); err != nil {
			result.Failed = append(result.Failed, FailedChange{Change: change, Err: err})
			continue
		}
		result.Successful = append(result.Successful, change)
	}

	s.notify(ctx, NotifyInput{
		RecipientUserIDs: affected.ids(),
		Action:           "access_updated",
		SubjectType:      SubjectEventGroup,
		SubjectID:        group.ID,
		SubjectTitle:     group.Name,
		ActorUserID:      callerUserID,
	})
	return result, nil
}

func (s *Service) applyEventGroupChange(ctx context.Context, group domain.EventGroup, change domain.Change, grantedUsers, grantedGroups map[string]bool, affected *affectedSet) error {
	if err := change.Validate(); err != nil {
		return err
	}
	now := s.nowUTC()

	switch change.Kind {
	case domain.ChangeAddUser:
		if change.UserID == group.CreatedBy || grantedUsers[change.UserID] {
			return nil
		}
		grant := domain.AccessGrant{TargetID: group.ID, UserID: change.UserID, Role: change.Role}
		if err := s.store.UpsertEventGroupAccess(ctx, []domain.AccessGrant{grant}, now); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "add user grant", err)
		}
		grantedUsers[change.UserID] = true
		affected.add(change.UserID)
		return nil

	case domain.ChangeAddUserGroup:
		if grantedGroups[change.GroupID] {
			return nil
		}
		entry := domain.PermissionEntry{Identifier: change.GroupID, Type: domain.GranteeUserGroup, Role: change.Role}
		resolution, err := s.ResolveForEventGroup(ctx, group.ID, []domain.PermissionEntry{entry})
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "resolve user group", err)
		}
		if len(resolution.Unresolved) > 0 {
			return apperrors.New(apperrors.CodeNotFound, "user group not found")
		}
		if err := s.store.UpsertEventGroupAccess(ctx, resolution.Grants, now); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "add group grant", err)
		}
		grantedGroups[change.GroupID] = true
		return nil

	case domain.ChangeRemoveUser:
		if change.UserID == group.CreatedBy {
			return ErrOwnerUnremovable
		}
		if err := s.store.DeleteEventGroupAccessUser(ctx, group.ID, change.UserID); err != nil {
			return mapStorageErr("remove user grant", err)
		}
		delete(grantedUsers, change.UserID)
		affected.add(change.UserID)
		return nil

	case domain.ChangeRemoveUserGroup:
		if err := s.store.DeleteEventGroupAccessGroup(ctx, group.ID, change.GroupID); err != nil {
			return mapStorageErr("remove group grant", err)
		}
		delete(grantedGroups, change.GroupID)
		return nil

	case domain.ChangeUpdateUserRole:
		if err := s.store.UpdateEventGroupAccessUserRole(ctx, group.ID, change.UserID, change.Role, now); err != nil {
			return mapStorageErr("update user role", err)
		}
		affected.add(change.UserID)
		return nil

	case domain.ChangeUpdateUserGroupRole:
		if err := s.store.UpdateEventGroupAccessGroupRole(ctx, group.ID, change.GroupID, change.Role, now); err != nil {
			return mapStorageErr("update group role", err)
		}
		return nil

	default:
		return domain.ErrInvalidChange
	}
}

// notify fans out affected users to the notifier. Best-effort: failures are
// logged and never fail the mutation that triggered them.
func (s *Service) notify(ctx context.Context, input NotifyInput) {
	if s.notifier == nil || len(input.RecipientUserIDs) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, input); err != nil {
		log.Printf("notify %s %s: %v", input.SubjectType, input.SubjectID, err)
	}
}

func mapStorageErr(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return errGrantNotFound
	}
	return apperrors.Wrap(apperrors.CodeInternal, fmt.Sprintf("%s failed", op), err)
}

// affectedSet accumulates distinct user ids touched by a batch, in order.
type affectedSet struct {
	seen map[string]bool
	list []string
}

func newAffectedSet() *affectedSet {
	return &affectedSet{seen: map[string]bool{}}
}

func (a *affectedSet) add(userID string) {
	if userID == "" || a.seen[userID] {
		return
	}
	a.seen[userID] = true
	a.list = append(a.list, userID)
}

func (a *affectedSet) ids() []string {
	return a.list
}
