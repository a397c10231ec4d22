package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

type memoryStore struct {
	notifications []Notification
	putErr        error
}

func (m *memoryStore) PutNotification(_ context.Context, notification Notification) error {
	if m.putErr != nil {
		return m.putErr
	}
	for _, existing := range m.notifications {
		if existing.RecipientUserID == notification.RecipientUserID &&
			notification.DedupeKey != "" && existing.DedupeKey == notification.DedupeKey {
			return ErrConflict
		}
	}
	m.notifications = append(m.notifications, notification)
	return nil
}

func (m *memoryStore) GetNotificationByRecipientAndDedupeKey(_ context.Context, recipientUserID string, dedupeKey string) (Notification, error) {
	for _, existing := range m.notifications {
		if existing.RecipientUserID == recipientUserID && existing.DedupeKey == dedupeKey {
			return existing, nil
		}
	}
	return Notification{}, ErrNotFound
}

func (m *memoryStore) ListNotificationsByRecipient(_ context.Context, recipientUserID string, pageSize int, _ string) (NotificationPage, error) {
	page := NotificationPage{}
	for _, existing := range m.notifications {
		if existing.RecipientUserID == recipientUserID && len(page.Notifications) < pageSize {
			page.Notifications = append(page.Notifications, existing)
		}
	}
	return page, nil
}

func (m *memoryStore) CountUnreadNotificationsByRecipient(_ context.Context, recipientUserID string) (int, error) {
	count := 0
	for _, existing := range m.notifications {
		if existing.RecipientUserID == recipientUserID && existing.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (m *memoryStore) MarkNotificationRead(_ context.Context, recipientUserID string, notificationID string, readAt time.Time) (Notification, error) {
	for i, existing := range m.notifications {
		if existing.RecipientUserID == recipientUserID && existing.ID == notificationID {
			at := readAt
			m.notifications[i].ReadAt = &at
			return m.notifications[i], nil
		}
	}
	return Notification{}, ErrNotFound
}

type recordingBroadcaster struct {
	delivered []Notification
	err       error
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, notification Notification) error {
	if b.err != nil {
		return b.err
	}
	b.delivered = append(b.delivered, notification)
	return nil
}

func fixedIDs() func() (string, error) {
	next := 0
	return func() (string, error) {
		next++
		return fmt.Sprintf("n-%03d", next), nil
	}
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
}

func TestEmitExcludesActor(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	broadcaster := &recordingBroadcaster{}
	svc := NewService(store, broadcaster, fixedClock(), fixedIDs())

	err := svc.Emit(context.Background(), EmitInput{
		RecipientUserIDs: []string{"actor", "other", "other", "actor"},
		ActorUserID:      "actor",
		MessageType:      MessageTypeEventAction,
		Title:            "Planning",
		Action:           "access_updated",
		SubjectID:        "ev1",
		SubjectTitle:     "Planning",
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	if len(store.notifications) != 1 {
		t.Fatalf("expected one durable row, got %d", len(store.notifications))
	}
	row := store.notifications[0]
	if row.RecipientUserID != "other" {
		t.Fatalf("expected only the other user, got %s", row.RecipientUserID)
	}
	if row.MessageType != MessageTypeEventAction {
		t.Fatalf("unexpected message type %s", row.MessageType)
	}
	if !strings.Contains(row.PayloadJSON, `"action":"access_updated"`) {
		t.Fatalf("unexpected payload %s", row.PayloadJSON)
	}
	if len(broadcaster.delivered) != 1 || broadcaster.delivered[0].ID != row.ID {
		t.Fatalf("expected one broadcast for the stored row, got %+v", broadcaster.delivered)
	}
}

func TestEmitBroadcastFailureKeepsDurableRow(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	broadcaster := &recordingBroadcaster{err: errors.New("socket closed")}
	svc := NewService(store, broadcaster, fixedClock(), fixedIDs())

	err := svc.Emit(context.Background(), EmitInput{
		RecipientUserIDs: []string{"u1"},
		ActorUserID:      "actor",
		MessageType:      MessageTypeEventGroupAction,
		Action:           "access_updated",
		SubjectID:        "eg1",
	})
	if err != nil {
		t.Fatalf("broadcast failure must not fail the emit: %v", err)
	}
	if len(store.notifications) != 1 {
		t.Fatalf("expected the durable row to survive, got %d", len(store.notifications))
	}
}

func TestEmitDedupeKeyReturnsExisting(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	svc := NewService(store, nil, fixedClock(), fixedIDs())

	input := EmitInput{
		RecipientUserIDs: []string{"u1"},
		ActorUserID:      "actor",
		MessageType:      MessageTypeUserGroupAction,
		Action:           "member_added",
		SubjectID:        "ug1",
		DedupeKey:        "ug1:member_added:u1",
	}
	if err := svc.Emit(context.Background(), input); err != nil {
		t.Fatalf("first emit: %v", err)
	}
	if err := svc.Emit(context.Background(), input); err != nil {
		t.Fatalf("second emit: %v", err)
	}
	if len(store.notifications) != 1 {
		t.Fatalf("expected dedupe to suppress the second row, got %d", len(store.notifications))
	}
}

func TestEmitCollectsPersistenceFailures(t *testing.T) {
	t.Parallel()

	store := &memoryStore{putErr: errors.New("disk full")}
	svc := NewService(store, nil, fixedClock(), fixedIDs())

	err := svc.Emit(context.Background(), EmitInput{
		RecipientUserIDs: []string{"u1", "u2"},
		ActorUserID:      "actor",
		MessageType:      MessageTypeSystem,
		Action:           "announce",
	})
	if err == nil {
		t.Fatal("expected persistence failures to surface")
	}
}

func TestInboxLifecycle(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	svc := NewService(store, nil, fixedClock(), fixedIDs())
	if err := svc.Emit(context.Background(), EmitInput{
		RecipientUserIDs: []string{"u1"},
		ActorUserID:      "actor",
		MessageType:      MessageTypeEventAction,
		Action:           "access_updated",
		SubjectID:        "ev1",
	}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	unread, err := svc.CountUnread(context.Background(), "u1")
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if unread != 1 {
		t.Fatalf("expected one unread, got %d", unread)
	}

	page, err := svc.ListInbox(context.Background(), ListInboxInput{RecipientUserID: "u1"})
	if err != nil {
		t.Fatalf("list inbox: %v", err)
	}
	if len(page.Notifications) != 1 {
		t.Fatalf("expected one inbox item, got %d", len(page.Notifications))
	}

	marked, err := svc.MarkRead(context.Background(), MarkReadInput{RecipientUserID: "u1", NotificationID: page.Notifications[0].ID})
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if marked.ReadAt == nil {
		t.Fatal("expected read timestamp")
	}

	unread, err = svc.CountUnread(context.Background(), "u1")
	if err != nil {
		t.Fatalf("recount unread: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected zero unread, got %d", unread)
	}
}

func TestParseMessageType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want MessageType
	}{
		{"EVENT_ACTION", MessageTypeEventAction},
		{"event_group_action", MessageTypeEventGroupAction},
		{" user_group_action ", MessageTypeUserGroupAction},
		{"SYSTEM", MessageTypeSystem},
		{"whatever", MessageTypeSystem},
	}
	for _, tc := range cases {
		if got := ParseMessageType(tc.raw); got != tc.want {
			t.Fatalf("ParseMessageType(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}
