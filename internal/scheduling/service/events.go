package service

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/meetgrid/meetgrid/internal/platform/errors"
	"github.com/meetgrid/meetgrid/internal/scheduling/domain"
	"github.com/meetgrid/meetgrid/internal/scheduling/filter"
	"github.com/meetgrid/meetgrid/internal/scheduling/storage"
)

// ErrDestinationNotVisible rejects moving an event into a group the caller
// cannot see, which would strand it.
var ErrDestinationNotVisible = apperrors.New(apperrors.CodeDestinationNotVisible, "destination event group is not visible to you")

// RegisterUserInput carries the fields for a new identity record.
type RegisterUserInput struct {
	Email string
	Name  string
}

// RegisterUser creates a user along with their personal event group. The
// personal group is a structural singleton; it can never be transferred or
// deleted.
func (s *Service) RegisterUser(ctx context.Context, input RegisterUserInput) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return domain.User{}, apperrors.New(apperrors.CodeInvalidArgument, "email is required")
	}

	userID, err := s.newID()
	if err != nil {
		return domain.User{}, apperrors.Wrap(apperrors.CodeInternal, "generate user id", err)
	}
	now := s.nowUTC()
	user := domain.User{
		ID:        userID,
		Email:     email,
		Name:      strings.TrimSpace(input.Name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.PutUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return domain.User{}, apperrors.New(apperrors.CodeConflict, "email is already registered")
		}
		return domain.User{}, apperrors.Wrap(apperrors.CodeInternal, "store user", err)
	}

	personal, err := domain.CreateEventGroup(domain.CreateEventGroupInput{
		Name:      "Personal",
		CreatedBy: userID,
		Personal:  true,
	}, s.clock, s.newID)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.store.PutEventGroup(ctx, personal); err != nil {
		return domain.User{}, apperrors.Wrap(apperrors.CodeInternal, "store personal group", err)
	}
	return user, nil
}

// CreateEventGroup creates a regular event group owned by the caller.
func (s *Service) CreateEventGroup(ctx context.Context, callerUserID string, name string) (domain.EventGroup, error) {
	group, err := domain.CreateEventGroup(domain.CreateEventGroupInput{Name: name, CreatedBy: callerUserID}, s.clock, s.newID)
	if err != nil {
		return domain.EventGroup{}, err
	}
	if err := s.store.PutEventGroup(ctx, group); err != nil {
		return domain.EventGroup{}, apperrors.Wrap(apperrors.CodeInternal, "store event group", err)
	}
	return group, nil
}

// CreateEventInput carries the caller-supplied fields for a new event.
type CreateEventInput struct {
	Title        string
	EventGroupID string
	StartsAt     time.Time
	EndsAt       time.Time
}

// CreateEvent creates an event in a group the caller owns or can write to.
func (s *Service) CreateEvent(ctx context.Context, callerUserID string, input CreateEventInput) (domain.Event, error) {
	role, visible, err := s.eventGroupRoleFor(ctx, input.EventGroupID, callerUserID)
	if err != nil {
		return domain.Event{}, apperrors.Wrap(apperrors.CodeInternal, "check destination group", err)
	}
	if !visible || !domain.CanWrite(role) {
		return domain.Event{}, errEventGroupDenied
	}

	event, err := domain.CreateEvent(domain.CreateEventInput{
		Title:        input.Title,
		EventGroupID: input.EventGroupID,
		CreatedBy:    callerUserID,
		StartsAt:     input.StartsAt,
		EndsAt:       input.EndsAt,
	}, s.clock, s.newID)
	if err != nil {
		return domain.Event{}, err
	}
	if err := s.store.PutEvent(ctx, event); err != nil {
		return domain.Event{}, apperrors.Wrap(apperrors.CodeInternal, "store event", err)
	}
	return event, nil
}

// MoveEventToGroup reassigns an event the caller owns to another event
// group. The caller needs at least read visibility on the destination.
// Direct per-event grants stay untouched; the event additionally inherits
// visibility from the new group's grantees.
func (s *Service) MoveEventToGroup(ctx context.Context, callerUserID string, eventID string, newGroupID string) error {
	event, err := s.verifyEventOwnership(ctx, eventID, callerUserID)
	if err != nil {
		return err
	}
	if event.EventGroupID == newGroupID {
		return nil
	}

	_, visible, err := s.eventGroupRoleFor(ctx, newGroupID, callerUserID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "check destination group", err)
	}
	if !visible {
		return ErrDestinationNotVisible
	}

	if err := s.store.UpdateEventGroup(ctx, eventID, newGroupID, s.nowUTC()); err != nil {
		return mapStorageErr("move event", err)
	}
	return nil
}

// ListEvents returns events visible to the caller, optionally narrowed by an
// AIP-160 filter expression over event fields.
func (s *Service) ListEvents(ctx context.Context, callerUserID string, filterExpr string) ([]domain.Event, error) {
	cond, err := filter.ParseEventFilter(filterExpr)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid filter", err)
	}
	events, err := s.store.ListEventsVisibleToUser(ctx, callerUserID, cond.Clause, cond.Params)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "list events", err)
	}
	return events, nil
}

// eventGroupRoleFor resolves the caller's effective role on an event group:
// the highest of ownership (admin), a direct grant, and grants via user
// groups the caller belongs to. visible is false when no relation exists.
func (s *Service) eventGroupRoleFor(ctx context.Context, groupID string, userID string) (domain.Role, bool, error) {
	group, err := s.store.GetEventGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if group.CreatedBy == userID {
		return domain.RoleAdmin, true, nil
	}

	rows, err := s.store.ListEventGroupAccess(ctx, groupID)
	if err != nil {
		return 0, false, err
	}
	var best domain.Role
	var grantedGroupIDs []string
	grantedGroupRoles := map[string]domain.Role{}
	for _, row := range rows {
		if row.UserID == userID {
			best = domain.HigherRole(best, row.Role)
		}
		if row.UserGroupID != "" {
			grantedGroupIDs = append(grantedGroupIDs, row.UserGroupID)
			grantedGroupRoles[row.UserGroupID] = domain.HigherRole(grantedGroupRoles[row.UserGroupID], row.Role)
		}
	}
	if len(grantedGroupIDs) > 0 {
		members, err := s.store.ListMembersByGroupIDs(ctx, grantedGroupIDs)
		if err != nil {
			return 0, false, err
		}
		for memberGroupID, memberIDs := range members {
			if containsString(memberIDs, userID) {
				best = domain.HigherRole(best, grantedGroupRoles[memberGroupID])
			}
		}
	}
	if best == 0 {
		return 0, false, nil
	}
	return best, true, nil
}
