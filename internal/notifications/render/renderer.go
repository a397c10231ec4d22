// Package render produces localized, channel-aware copy for stored
// notification records.
package render

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/message"

	"github.com/meetgrid/meetgrid/internal/notifications/domain"
)

const (
	defaultGenericTitle        = "Notification"
	defaultGenericBody         = "You have a new notification."
	defaultGenericEmailSubject = "MeetGrid notification"
	defaultUnnamedSubject      = "a shared item"
)

// Channel identifies where one notification artifact is rendered.
type Channel string

const (
	// ChannelInApp renders copy for the inbox view.
	ChannelInApp Channel = "in_app"
	// ChannelEmail renders copy for email delivery.
	ChannelEmail Channel = "email"
)

// Input is one channel render request for a stored notification.
type Input struct {
	MessageType domain.MessageType
	PayloadJSON string
	Channel     Channel
}

// Output is localized copy derived from one notification.
type Output struct {
	Title        string
	BodyText     string
	EmailSubject string
}

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// Render returns localized copy for one notification.
func Render(loc Localizer, input Input) Output {
	switch input.MessageType {
	case domain.MessageTypeEventAction:
		return renderAccessChange(loc, input, "notification.event_action")
	case domain.MessageTypeEventGroupAction:
		return renderAccessChange(loc, input, "notification.event_group_action")
	case domain.MessageTypeUserGroupAction:
		return renderAccessChange(loc, input, "notification.user_group_action")
	default:
		return genericOutput(loc)
	}
}

func renderAccessChange(loc Localizer, input Input, keyPrefix string) Output {
	payload := domain.Payload{}
	if raw := strings.TrimSpace(input.PayloadJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return genericOutput(loc)
		}
	}

	subject := strings.TrimSpace(payload.SubjectTitle)
	if subject == "" {
		subject = localizeWithFallback(loc, "notification.subject.unnamed", defaultUnnamedSubject)
	}

	titleKey := keyPrefix + "." + actionToken(payload.Action) + ".title"
	bodyKey := keyPrefix + "." + actionToken(payload.Action) + ".body"
	title := localize(loc, titleKey)
	body := localize(loc, bodyKey, subject)
	if title == titleKey || body == bodyKey {
		return genericOutput(loc)
	}

	emailSubject := title
	if input.Channel == ChannelEmail {
		emailSubject = localizeWithFallback(loc, "notification.generic.email_subject", defaultGenericEmailSubject)
	}
	return Output{
		Title:        title,
		BodyText:     body,
		EmailSubject: emailSubject,
	}
}

func genericOutput(loc Localizer) Output {
	title := localizeWithFallback(loc, "notification.generic.title", defaultGenericTitle)
	body := localizeWithFallback(loc, "notification.generic.body", defaultGenericBody)
	subject := localizeWithFallback(loc, "notification.generic.email_subject", defaultGenericEmailSubject)

	return Output{
		Title:        title,
		BodyText:     body,
		EmailSubject: subject,
	}
}

func actionToken(raw string) string {
	token := strings.ToLower(strings.TrimSpace(raw))
	switch token {
	case "access_updated", "member_added", "member_removed", "ownership_transferred":
		return token
	default:
		return "generic"
	}
}

func localize(loc Localizer, key message.Reference, args ...any) string {
	if loc == nil {
		if asString, ok := key.(string); ok {
			return asString
		}
		return ""
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}
