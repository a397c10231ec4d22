package app

import (
	"context"
	"encoding/json"

	notifdomain "github.com/meetgrid/meetgrid/internal/notifications/domain"
	"github.com/meetgrid/meetgrid/internal/notifications/render"
	"github.com/meetgrid/meetgrid/internal/scheduling/service"
)

// InboxNotifier bridges scheduling access changes into the recipient inbox.
// It translates subject types into message types and renders the stored
// title at emit time so inbox rows stay readable even without a localizer.
type InboxNotifier struct {
	inbox     *notifdomain.Service
	localizer render.Localizer
}

// NewInboxNotifier wires the notification service behind the scheduling
// Notifier port. localizer may be nil.
func NewInboxNotifier(inbox *notifdomain.Service, localizer render.Localizer) *InboxNotifier {
	return &InboxNotifier{inbox: inbox, localizer: localizer}
}

// Notify implements service.Notifier. Actor exclusion and recipient
// de-duplication happen downstream in the emitter.
func (n *InboxNotifier) Notify(ctx context.Context, input service.NotifyInput) error {
	if n == nil || n.inbox == nil {
		return nil
	}

	messageType := messageTypeForSubject(input.SubjectType)
	payloadJSON, err := json.Marshal(notifdomain.Payload{
		Action:       input.Action,
		SubjectID:    input.SubjectID,
		SubjectTitle: input.SubjectTitle,
		ActorUserID:  input.ActorUserID,
	})
	if err != nil {
		return err
	}
	rendered := render.Render(n.localizer, render.Input{
		MessageType: messageType,
		PayloadJSON: string(payloadJSON),
		Channel:     render.ChannelInApp,
	})

	return n.inbox.Emit(ctx, notifdomain.EmitInput{
		RecipientUserIDs: input.RecipientUserIDs,
		ActorUserID:      input.ActorUserID,
		MessageType:      messageType,
		Title:            rendered.Title,
		Action:           input.Action,
		SubjectID:        input.SubjectID,
		SubjectTitle:     input.SubjectTitle,
	})
}

func messageTypeForSubject(subjectType string) notifdomain.MessageType {
	switch subjectType {
	case service.SubjectEvent:
		return notifdomain.MessageTypeEventAction
	case service.SubjectEventGroup:
		return notifdomain.MessageTypeEventGroupAction
	case service.SubjectUserGroup:
		return notifdomain.MessageTypeUserGroupAction
	default:
		return notifdomain.MessageTypeSystem
	}
}
