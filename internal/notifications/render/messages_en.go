package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "notification.generic.title", defaultGenericTitle)
	message.SetString(lang, "notification.generic.body", defaultGenericBody)
	message.SetString(lang, "notification.generic.email_subject", defaultGenericEmailSubject)
	message.SetString(lang, "notification.subject.unnamed", defaultUnnamedSubject)

	message.SetString(lang, "notification.event_action.access_updated.title", "Event access updated")
	message.SetString(lang, "notification.event_action.access_updated.body", "Your access to the event %q changed.")
	message.SetString(lang, "notification.event_group_action.access_updated.title", "Calendar access updated")
	message.SetString(lang, "notification.event_group_action.access_updated.body", "Your access to the event group %q changed.")
	message.SetString(lang, "notification.event_group_action.ownership_transferred.title", "You now own an event group")
	message.SetString(lang, "notification.event_group_action.ownership_transferred.body", "Ownership of the event group %q was transferred to you.")
	message.SetString(lang, "notification.user_group_action.member_added.title", "Added to a user group")
	message.SetString(lang, "notification.user_group_action.member_added.body", "You were added to the user group %q.")
	message.SetString(lang, "notification.user_group_action.member_removed.title", "Removed from a user group")
	message.SetString(lang, "notification.user_group_action.member_removed.body", "You were removed from the user group %q.")
	message.SetString(lang, "notification.user_group_action.ownership_transferred.title", "You now own a user group")
	message.SetString(lang, "notification.user_group_action.ownership_transferred.body", "Ownership of the user group %q was transferred to you.")
}
