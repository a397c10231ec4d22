package service

import (
	"context"
	"fmt"
	"log"

	apperrors "github.com/meetgrid/meetgrid/internal/platform/errors"
	"github.com/meetgrid/meetgrid/internal/scheduling/domain"
)

// Ownership guard failures are deliberately ambiguous between "does not
// exist" and "exists but not yours" so existence never leaks to
// unauthorized callers.
var (
	errEventDenied      = apperrors.New(apperrors.CodeAccessDenied, "event not found or access denied")
	errEventGroupDenied = apperrors.New(apperrors.CodeAccessDenied, "event group not found or access denied")
	errUserGroupDenied  = apperrors.New(apperrors.CodeAccessDenied, "user group not found or access denied")
)

// verifyEventOwnership authorizes the caller iff they created the event.
// Being a grantee does not satisfy ownership.
func (s *Service) verifyEventOwnership(ctx context.Context, eventID string, callerUserID string) (domain.Event, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Event{}, errEventDenied
	}
	if event.CreatedBy != callerUserID {
		return domain.Event{}, errEventDenied
	}
	return event, nil
}

func (s *Service) verifyEventGroupOwnership(ctx context.Context, groupID string, callerUserID string) (domain.EventGroup, error) {
	group, err := s.store.GetEventGroup(ctx, groupID)
	if err != nil {
		return domain.EventGroup{}, errEventGroupDenied
	}
	if group.CreatedBy != callerUserID {
		return domain.EventGroup{}, errEventGroupDenied
	}
	return group, nil
}

func (s *Service) verifyUserGroupOwnership(ctx context.Context, groupID string, callerUserID string) (domain.UserGroup, error) {
	group, err := s.store.GetUserGroup(ctx, groupID)
	if err != nil {
		return domain.UserGroup{}, errUserGroupDenied
	}
	if group.CreatedBy != callerUserID {
		return domain.UserGroup{}, errUserGroupDenied
	}
	return group, nil
}

// EventAccess returns the current access state for an event the caller owns.
// Query failures after the ownership check degrade to an empty result so the
// caller can render an empty state instead of crashing.
func (s *Service) EventAccess(ctx context.Context, callerUserID string, eventID string) (domain.AccessResult, error) {
	if _, err := s.verifyEventOwnership(ctx, eventID, callerUserID); err != nil {
		return domain.AccessResult{}, err
	}

	result, err := s.fetchEventAccess(ctx, eventID)
	if err != nil {
		log.Printf("event access query degraded for %s: %v", eventID, err)
		return domain.AccessResult{Users: []domain.AccessUser{}, UserGroups: []domain.AccessUserGroup{}}, nil
	}
	return result, nil
}

// EventGroupAccess returns the current access state for an event group the
// caller owns, with the same soft-fail behavior as EventAccess.
func (s *Service) EventGroupAccess(ctx context.Context, callerUserID string, groupID string) (domain.AccessResult, error) {
	if _, err := s.verifyEventGroupOwnership(ctx, groupID, callerUserID); err != nil {
		return domain.AccessResult{}, err
	}

	result, err := s.fetchEventGroupAccess(ctx, groupID)
	if err != nil {
		log.Printf("event group access query degraded for %s: %v", groupID, err)
		return domain.AccessResult{Users: []domain.AccessUser{}, UserGroups: []domain.AccessUserGroup{}}, nil
	}
	return result, nil
}

// fetchEventAccess builds the access view for an event. Event rows always
// carry a concrete user id, so the view has user entries only.
func (s *Service) fetchEventAccess(ctx context.Context, eventID string) (domain.AccessResult, error) {
	rows, err := s.store.ListEventAccess(ctx, eventID)
	if err != nil {
		return domain.AccessResult{}, fmt.Errorf("list event access: %w", err)
	}
	users, err := s.userEntries(ctx, rows)
	if err != nil {
		return domain.AccessResult{}, err
	}
	return domain.AccessResult{Users: users, UserGroups: []domain.AccessUserGroup{}}, nil
}

// fetchEventGroupAccess builds the access view for an event group: direct
// user rows plus unexpanded user-group rows.
func (s *Service) fetchEventGroupAccess(ctx context.Context, groupID string) (domain.AccessResult, error) {
	rows, err := s.store.ListEventGroupAccess(ctx, groupID)
	if err != nil {
		return domain.AccessResult{}, fmt.Errorf("list event group access: %w", err)
	}

	var userRows, groupRows []domain.AccessGrant
	for _, row := range rows {
		if row.UserID != "" {
			userRows = append(userRows, row)
		} else {
			groupRows = append(groupRows, row)
		}
	}

	users, err := s.userEntries(ctx, userRows)
	if err != nil {
		return domain.AccessResult{}, err
	}

	groups := []domain.AccessUserGroup{}
	if len(groupRows) > 0 {
		groupIDs := make([]string, 0, len(groupRows))
		for _, row := range groupRows {
			groupIDs = append(groupIDs, row.UserGroupID)
		}
		known, err := s.store.GetUserGroupsByIDs(ctx, groupIDs)
		if err != nil {
			return domain.AccessResult{}, fmt.Errorf("resolve group identities: %w", err)
		}
		for _, row := range groupRows {
			group, ok := known[row.UserGroupID]
			if !ok {
				continue
			}
			groups = append(groups, domain.AccessUserGroup{
				ID:   group.ID,
				Name: group.Name,
				Role: roleOrDefault(row.Role),
			})
		}
	}

	return domain.AccessResult{Users: users, UserGroups: groups}, nil
}

// userEntries zips grant rows against identity records, keeping row order.
func (s *Service) userEntries(ctx context.Context, rows []domain.AccessGrant) ([]domain.AccessUser, error) {
	users := []domain.AccessUser{}
	if len(rows) == 0 {
		return users, nil
	}
	userIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.UserID)
	}
	known, err := s.store.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve user identities: %w", err)
	}
	for _, row := range rows {
		user, ok := known[row.UserID]
		if !ok {
			continue
		}
		users = append(users, domain.AccessUser{
			UserID: user.ID,
			Email:  user.Email,
			Name:   user.Name,
			Role:   roleOrDefault(row.Role),
		})
	}
	return users, nil
}

func roleOrDefault(role domain.Role) domain.Role {
	if !role.Valid() {
		return domain.RoleRead
	}
	return role
}
