// Package domain holds the notification inbox records and the emitter that
// fans access changes out to affected users.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/meetgrid/meetgrid/internal/platform/id"
)

var (
	// ErrNotFound indicates a notification record was not found.
	ErrNotFound = errors.New("notification not found")
	// ErrConflict indicates a write conflicted with existing uniqueness constraints.
	ErrConflict = errors.New("notification conflict")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("notification store is not configured")
	// ErrRecipientUserIDRequired indicates recipient identity is required.
	ErrRecipientUserIDRequired = errors.New("recipient user id is required")
	// ErrNotificationIDRequired indicates notification ID is required.
	ErrNotificationIDRequired = errors.New("notification id is required")
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Notification captures one user-targeted notification item.
type Notification struct {
	ID              string
	RecipientUserID string
	MessageType     MessageType
	Title           string
	PayloadJSON     string
	DedupeKey       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ReadAt          *time.Time
}

// NotificationPage is a paged recipient inbox view.
type NotificationPage struct {
	Notifications []Notification
	NextPageToken string
}

// Payload is the serialized body of one access-change notification.
type Payload struct {
	Action       string `json:"action"`
	SubjectID    string `json:"subject_id"`
	SubjectTitle string `json:"subject_title"`
	ActorUserID  string `json:"actor_user_id"`
}

// EmitInput describes one access-change fan-out to a set of users.
type EmitInput struct {
	RecipientUserIDs []string
	ActorUserID      string
	MessageType      MessageType
	Title            string
	Action           string
	SubjectID        string
	SubjectTitle     string
	DedupeKey        string
}

// ListInboxInput configures recipient inbox listing.
type ListInboxInput struct {
	RecipientUserID string
	PageSize        int
	PageToken       string
}

// MarkReadInput identifies one recipient notification to acknowledge.
type MarkReadInput struct {
	RecipientUserID string
	NotificationID  string
}

// Store is the domain persistence boundary for notification records.
type Store interface {
	PutNotification(ctx context.Context, notification Notification) error
	GetNotificationByRecipientAndDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (Notification, error)
	ListNotificationsByRecipient(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (NotificationPage, error)
	CountUnreadNotificationsByRecipient(ctx context.Context, recipientUserID string) (int, error)
	MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (Notification, error)
}

// Broadcaster pushes one notification to a live channel. Delivery is
// fire-and-forget; a failed broadcast never rolls back the durable row.
type Broadcaster interface {
	Broadcast(ctx context.Context, notification Notification) error
}

// Service persists notification rows and attempts realtime broadcast.
type Service struct {
	store       Store
	broadcaster Broadcaster
	clock       func() time.Time
	newID       func() (string, error)
}

// NewService constructs the notification emitter and inbox use-cases.
// broadcaster may be nil to skip realtime delivery.
func NewService(store Store, broadcaster Broadcaster, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store:       store,
		broadcaster: broadcaster,
		clock:       clock,
		newID:       newID,
	}
}

// Emit persists one notification per recipient and broadcasts each
// best-effort. The actor never receives their own change. Per-recipient
// persistence failures are collected; delivery to the rest continues.
func (s *Service) Emit(ctx context.Context, input EmitInput) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}

	payload := Payload{
		Action:       strings.TrimSpace(input.Action),
		SubjectID:    strings.TrimSpace(input.SubjectID),
		SubjectTitle: strings.TrimSpace(input.SubjectTitle),
		ActorUserID:  strings.TrimSpace(input.ActorUserID),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var failures []error
	seen := map[string]bool{}
	for _, recipientID := range input.RecipientUserIDs {
		recipientID = strings.TrimSpace(recipientID)
		if recipientID == "" || seen[recipientID] {
			continue
		}
		seen[recipientID] = true
		if recipientID == payload.ActorUserID {
			continue
		}

		notification, err := s.createNotification(ctx, recipientID, input, string(payloadJSON))
		if err != nil {
			failures = append(failures, err)
			continue
		}
		if s.broadcaster != nil {
			if err := s.broadcaster.Broadcast(ctx, notification); err != nil {
				log.Printf("broadcast notification %s: %v", notification.ID, err)
			}
		}
	}
	return errors.Join(failures...)
}

func (s *Service) createNotification(ctx context.Context, recipientID string, input EmitInput, payloadJSON string) (Notification, error) {
	dedupeKey := strings.TrimSpace(input.DedupeKey)
	if dedupeKey != "" {
		existing, err := s.store.GetNotificationByRecipientAndDedupeKey(ctx, recipientID, dedupeKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Notification{}, err
		}
	}

	notificationID, err := s.newID()
	if err != nil {
		return Notification{}, err
	}
	now := s.nowUTC()
	notification := Notification{
		ID:              notificationID,
		RecipientUserID: recipientID,
		MessageType:     input.MessageType,
		Title:           strings.TrimSpace(input.Title),
		PayloadJSON:     payloadJSON,
		DedupeKey:       dedupeKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.PutNotification(ctx, notification); err != nil {
		if dedupeKey != "" && errors.Is(err, ErrConflict) {
			existing, lookupErr := s.store.GetNotificationByRecipientAndDedupeKey(ctx, recipientID, dedupeKey)
			if lookupErr == nil {
				return existing, nil
			}
		}
		return Notification{}, err
	}
	return notification, nil
}

// ListInbox lists recipient inbox notifications newest first.
func (s *Service) ListInbox(ctx context.Context, input ListInboxInput) (NotificationPage, error) {
	if s == nil || s.store == nil {
		return NotificationPage{}, ErrStoreNotConfigured
	}
	recipientUserID := strings.TrimSpace(input.RecipientUserID)
	if recipientUserID == "" {
		return NotificationPage{}, ErrRecipientUserIDRequired
	}
	pageSize := input.PageSize
	switch {
	case pageSize <= 0:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}
	return s.store.ListNotificationsByRecipient(ctx, recipientUserID, pageSize, strings.TrimSpace(input.PageToken))
}

// CountUnread returns the number of unread inbox items for one recipient.
func (s *Service) CountUnread(ctx context.Context, recipientUserID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return 0, ErrRecipientUserIDRequired
	}
	return s.store.CountUnreadNotificationsByRecipient(ctx, recipientUserID)
}

// MarkRead marks one recipient notification as read.
func (s *Service) MarkRead(ctx context.Context, input MarkReadInput) (Notification, error) {
	if s == nil || s.store == nil {
		return Notification{}, ErrStoreNotConfigured
	}
	recipientUserID := strings.TrimSpace(input.RecipientUserID)
	if recipientUserID == "" {
		return Notification{}, ErrRecipientUserIDRequired
	}
	notificationID := strings.TrimSpace(input.NotificationID)
	if notificationID == "" {
		return Notification{}, ErrNotificationIDRequired
	}
	return s.store.MarkNotificationRead(ctx, recipientUserID, notificationID, s.nowUTC())
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
