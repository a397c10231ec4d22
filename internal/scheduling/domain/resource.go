package domain

import (
	"strings"
	"time"

	apperrors "github.com/meetgrid/meetgrid/internal/platform/errors"
)

var (
	// ErrEventTitleEmpty indicates an event needs a non-empty title.
	ErrEventTitleEmpty = apperrors.New(apperrors.CodeEventTitleEmpty, "event title is required")
	// ErrEventInvalidTimeSpan indicates an event must end after it starts.
	ErrEventInvalidTimeSpan = apperrors.New(apperrors.CodeEventInvalidTimeSpan, "event must end after it starts")
	// ErrEventGroupNameEmpty indicates an event group needs a non-empty name.
	ErrEventGroupNameEmpty = apperrors.New(apperrors.CodeEventGroupNameEmpty, "event group name is required")
	// ErrUserGroupNameEmpty indicates a user group needs a non-empty name.
	ErrUserGroupNameEmpty = apperrors.New(apperrors.CodeUserGroupNameEmpty, "user group name is required")
	// ErrCreatorRequired indicates a resource needs a creating user.
	ErrCreatorRequired = apperrors.New(apperrors.CodeInvalidArgument, "creator user id is required")
)

// User is one resolved identity record.
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event is a scheduled item inside an event group.
type Event struct {
	ID           string
	Title        string
	EventGroupID string
	CreatedBy    string
	StartsAt     time.Time
	EndsAt       time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EventGroup is a named collection of events sharing one access boundary.
// Personal marks the auto-created singleton that cannot be transferred or
// deleted; it is a structural flag, not a name match.
type EventGroup struct {
	ID        string
	Name      string
	CreatedBy string
	Personal  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserGroup is a named collection of users reusable as a grantee.
type UserGroup struct {
	ID        string
	Name      string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateEventInput carries the caller-supplied fields for a new event.
type CreateEventInput struct {
	Title        string
	EventGroupID string
	CreatedBy    string
	StartsAt     time.Time
	EndsAt       time.Time
}

// CreateEvent validates input and constructs an event record.
func CreateEvent(input CreateEventInput, clock func() time.Time, newID func() (string, error)) (Event, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Event{}, ErrEventTitleEmpty
	}
	if strings.TrimSpace(input.CreatedBy) == "" {
		return Event{}, ErrCreatorRequired
	}
	if !input.EndsAt.After(input.StartsAt) {
		return Event{}, ErrEventInvalidTimeSpan
	}

	eventID, err := newID()
	if err != nil {
		return Event{}, err
	}
	now := clock().UTC()
	return Event{
		ID:           eventID,
		Title:        title,
		EventGroupID: strings.TrimSpace(input.EventGroupID),
		CreatedBy:    strings.TrimSpace(input.CreatedBy),
		StartsAt:     input.StartsAt.UTC(),
		EndsAt:       input.EndsAt.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CreateEventGroupInput carries the caller-supplied fields for a new event group.
type CreateEventGroupInput struct {
	Name      string
	CreatedBy string
	Personal  bool
}

// CreateEventGroup validates input and constructs an event-group record.
func CreateEventGroup(input CreateEventGroupInput, clock func() time.Time, newID func() (string, error)) (EventGroup, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return EventGroup{}, ErrEventGroupNameEmpty
	}
	if strings.TrimSpace(input.CreatedBy) == "" {
		return EventGroup{}, ErrCreatorRequired
	}

	groupID, err := newID()
	if err != nil {
		return EventGroup{}, err
	}
	now := clock().UTC()
	return EventGroup{
		ID:        groupID,
		Name:      name,
		CreatedBy: strings.TrimSpace(input.CreatedBy),
		Personal:  input.Personal,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CreateUserGroupInput carries the caller-supplied fields for a new user group.
type CreateUserGroupInput struct {
	Name      string
	CreatedBy string
}

// CreateUserGroup validates input and constructs a user-group record.
func CreateUserGroup(input CreateUserGroupInput, clock func() time.Time, newID func() (string, error)) (UserGroup, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return UserGroup{}, ErrUserGroupNameEmpty
	}
	if strings.TrimSpace(input.CreatedBy) == "" {
		return UserGroup{}, ErrCreatorRequired
	}

	groupID, err := newID()
	if err != nil {
		return UserGroup{}, err
	}
	now := clock().UTC()
	return UserGroup{
		ID:        groupID,
		Name:      name,
		CreatedBy: strings.TrimSpace(input.CreatedBy),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
