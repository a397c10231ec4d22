package domain

import "strings"

// MessageType tags a notification payload by the subject it concerns.
type MessageType string

const (
	// MessageTypeEventAction concerns one event.
	MessageTypeEventAction MessageType = "EVENT_ACTION"
	// MessageTypeEventGroupAction concerns one event group.
	MessageTypeEventGroupAction MessageType = "EVENT_GROUP_ACTION"
	// MessageTypeUserGroupAction concerns one user group.
	MessageTypeUserGroupAction MessageType = "USER_GROUP_ACTION"
	// MessageTypeSystem carries system-originated announcements.
	MessageTypeSystem MessageType = "SYSTEM"
)

// ParseMessageType normalizes a raw tag into a known message type,
// defaulting to system for anything unrecognized.
func ParseMessageType(raw string) MessageType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(MessageTypeEventAction):
		return MessageTypeEventAction
	case string(MessageTypeEventGroupAction):
		return MessageTypeEventGroupAction
	case string(MessageTypeUserGroupAction):
		return MessageTypeUserGroupAction
	default:
		return MessageTypeSystem
	}
}
