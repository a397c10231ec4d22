package httpjson

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	notifdomain "github.com/meetgrid/meetgrid/internal/notifications/domain"
	"github.com/meetgrid/meetgrid/internal/notifications/render"
	apperrors "github.com/meetgrid/meetgrid/internal/platform/errors"
	"github.com/meetgrid/meetgrid/internal/scheduling/pending"
	"github.com/meetgrid/meetgrid/internal/scheduling/service"
	"github.com/meetgrid/meetgrid/internal/scheduling/session"
)

// Handler serves the scheduler JSON API.
type Handler struct {
	scheduling *service.Service
	inbox      *notifdomain.Service
	sessions   session.Config
	localizer  render.Localizer
}

// NewHandler builds an API handler over the scheduling service and the
// recipient inbox. localizer may be nil; notification copy then falls back
// to built-in English strings.
func NewHandler(scheduling *service.Service, inbox *notifdomain.Service, sessions session.Config, localizer render.Localizer) *Handler {
	return &Handler{
		scheduling: scheduling,
		inbox:      inbox,
		sessions:   sessions,
		localizer:  localizer,
	}
}

// RegisterRoutes mounts every API route on mux. All routes except user
// registration require a bearer session token; registration is called by the
// identity provider when a user first signs in.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	if mux == nil || h == nil {
		return
	}

	mux.HandleFunc(http.MethodPost+" /v1/users", h.handleRegisterUser)
	mux.HandleFunc(http.MethodPost+" /v1/users/check", h.requireSession(h.handleCheckEmails))

	mux.HandleFunc(http.MethodPost+" /v1/events", h.requireSession(h.handleCreateEvent))
	mux.HandleFunc(http.MethodGet+" /v1/events", h.requireSession(h.handleListEvents))
	mux.HandleFunc(http.MethodPost+" /v1/events/{id}/move", h.requireSession(h.handleMoveEvent))
	mux.HandleFunc(http.MethodGet+" /v1/events/{id}/access", h.requireSession(h.handleEventAccess))
	mux.HandleFunc(http.MethodPost+" /v1/events/{id}/access/apply", h.requireSession(h.handleApplyEventChanges))
	mux.HandleFunc(http.MethodPost+" /v1/events/{id}/access/preview", h.requireSession(h.handlePreviewEventChanges))

	mux.HandleFunc(http.MethodPost+" /v1/event-groups", h.requireSession(h.handleCreateEventGroup))
	mux.HandleFunc(http.MethodDelete+" /v1/event-groups/{id}", h.requireSession(h.handleDeleteEventGroup))
	mux.HandleFunc(http.MethodGet+" /v1/event-groups/{id}/access", h.requireSession(h.handleEventGroupAccess))
	mux.HandleFunc(http.MethodPost+" /v1/event-groups/{id}/access/apply", h.requireSession(h.handleApplyEventGroupChanges))
	mux.HandleFunc(http.MethodPost+" /v1/event-groups/{id}/access/preview", h.requireSession(h.handlePreviewEventGroupChanges))
	mux.HandleFunc(http.MethodPost+" /v1/event-groups/{id}/transfer", h.requireSession(h.handleTransferEventGroup))

	mux.HandleFunc(http.MethodPost+" /v1/user-groups", h.requireSession(h.handleCreateUserGroup))
	mux.HandleFunc(http.MethodPost+" /v1/user-groups/{id}/members", h.requireSession(h.handleAddUserGroupMember))
	mux.HandleFunc(http.MethodDelete+" /v1/user-groups/{id}/members/{userID}", h.requireSession(h.handleRemoveUserGroupMember))
	mux.HandleFunc(http.MethodPost+" /v1/user-groups/{id}/leave", h.requireSession(h.handleLeaveUserGroup))
	mux.HandleFunc(http.MethodPost+" /v1/user-groups/{id}/transfer", h.requireSession(h.handleTransferUserGroup))

	mux.HandleFunc(http.MethodGet+" /v1/notifications", h.requireSession(h.handleListNotifications))
	mux.HandleFunc(http.MethodGet+" /v1/notifications/unread", h.requireSession(h.handleUnreadCount))
	mux.HandleFunc(http.MethodPost+" /v1/notifications/{id}/read", h.requireSession(h.handleMarkNotificationRead))
}

func (h *Handler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	user, err := h.scheduling.RegisterUser(r.Context(), service.RegisterUserInput{Email: body.Email, Name: body.Name})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, toUserView(user))
}

func (h *Handler) handleCheckEmails(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Emails []string `json:"emails"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	checks, err := h.scheduling.CheckExist(r.Context(), body.Emails)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]emailCheckView, 0, len(checks))
	for _, check := range checks {
		views = append(views, emailCheckView(check))
	}
	writeData(w, http.StatusOK, views)
}

func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title        string    `json:"title"`
		EventGroupID string    `json:"event_group_id"`
		StartsAt     time.Time `json:"starts_at"`
		EndsAt       time.Time `json:"ends_at"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	event, err := h.scheduling.CreateEvent(r.Context(), CallerUserID(r.Context()), service.CreateEventInput{
		Title:        body.Title,
		EventGroupID: body.EventGroupID,
		StartsAt:     body.StartsAt,
		EndsAt:       body.EndsAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, toEventView(event))
}

// handleListEvents lists events visible to the caller, optionally narrowed by
// an AIP-160 filter expression in the filter query parameter, for example
// event_group_id = "g1" AND starts_at >= timestamp("2026-01-01T00:00:00Z").
func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.scheduling.ListEvents(r.Context(), CallerUserID(r.Context()), r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]eventView, 0, len(events))
	for _, event := range events {
		views = append(views, toEventView(event))
	}
	writeData(w, http.StatusOK, views)
}

func (h *Handler) handleMoveEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EventGroupID string `json:"event_group_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.scheduling.MoveEventToGroup(r.Context(), CallerUserID(r.Context()), r.PathValue("id"), body.EventGroupID); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, struct{}{})
}

func (h *Handler) handleEventAccess(w http.ResponseWriter, r *http.Request) {
	result, err := h.scheduling.EventAccess(r.Context(), CallerUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, toAccessView(result))
}

func (h *Handler) handleApplyEventChanges(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Changes []changePayload `json:"changes"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := h.scheduling.ApplyEventChanges(r.Context(), CallerUserID(r.Context()), r.PathValue("id"), toChanges(body.Changes))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, toApplyResultView(result))
}

// handlePreviewEventChanges folds a change list over the current access state
// without persisting anything, so clients can show the effective outcome
// before an explicit save.
func (h *Handler) handlePreviewEventChanges(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Changes []changePayload `json:"changes"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	original, err := h.scheduling.EventAccess(r.Context(), CallerUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, toEffectiveView(pending.Project(original, toChanges(body.Changes))))
}

func (h *Handler) handleCreateEventGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	group, err := h.scheduling.CreateEventGroup(r.Context(), CallerUserID(r.Context()), body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, toEventGroupView(group))
}

func (h *Handler) handleDeleteEventGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduling.DeleteEventGroup(r.Context(), CallerUserID(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, struct{}{})
}

func (h *Handler) handleEventGroupAccess(w http.ResponseWriter, r *http.Request) {
	result, err := h.scheduling.EventGroupAccess(r.Context(), CallerUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, toAccessView(result))
}

func (h *Handler) handleApplyEventGroupChanges(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Changes []changePayload `json:"changes"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := h.scheduling.ApplyEventGroupChanges(r.Context(), CallerUserID(r.Context()), r.PathValue("id"), toChanges(body.Changes))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, toApplyResultView(result))
}

func (h *Handler) handlePreviewEventGroupChanges(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Changes []changePayload `json:"changes"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	original, err := h.scheduling.EventGroupAccess(r.Context(), CallerUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, toEffectiveView(pending.Project(original, toChanges(body.Changes))))
}

func (h *Handler) handleTransferEventGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NewOwnerUserID string `json:"new_owner_user_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.scheduling.TransferEventGroupOwnership(r.Context(), CallerUserID(r.Context()), r.PathValue("id"), body.NewOwnerUserID); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, struct{}{})
}

func (h *Handler) handleCreateUserGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	group, err := h.scheduling.CreateUserGroup(r.Context(), CallerUserID(r.Context()), body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, toUserGroupView(group))
}

func (h *Handler) handleAddUserGroupMember(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.scheduling.AddUserGroupMember(r.Context(), CallerUserID(r.Context()), r.PathValue("id"), body.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, struct{}{})
}

func (h *Handler) handleRemoveUserGroupMember(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduling.RemoveUserGroupMember(r.Context(), CallerUserID(r.Context()), r.PathValue("id"), r.PathValue("userID")); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, struct{}{})
}

func (h *Handler) handleLeaveUserGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduling.LeaveUserGroup(r.Context(), CallerUserID(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, struct{}{})
}

func (h *Handler) handleTransferUserGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NewOwnerUserID string `json:"new_owner_user_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.scheduling.TransferUserGroupOwnership(r.Context(), CallerUserID(r.Context()), r.PathValue("id"), body.NewOwnerUserID); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, struct{}{})
}

// mapInboxErr lifts the inbox sentinel errors into coded errors so the
// envelope reports the right status instead of a generic 500.
func mapInboxErr(err error) error {
	switch {
	case errors.Is(err, notifdomain.ErrNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, "notification not found", err)
	case errors.Is(err, notifdomain.ErrRecipientUserIDRequired),
		errors.Is(err, notifdomain.ErrNotificationIDRequired):
		return apperrors.Wrap(apperrors.CodeInvalidArgument, err.Error(), err)
	default:
		return err
	}
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageSize := 0
	if raw := strings.TrimSpace(query.Get("page_size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "page_size must be a non-negative integer"))
			return
		}
		pageSize = parsed
	}

	page, err := h.inbox.ListInbox(r.Context(), notifdomain.ListInboxInput{
		RecipientUserID: CallerUserID(r.Context()),
		PageSize:        pageSize,
		PageToken:       query.Get("page_token"),
	})
	if err != nil {
		writeError(w, mapInboxErr(err))
		return
	}

	view := inboxView{
		Notifications: make([]notificationView, 0, len(page.Notifications)),
		NextPageToken: page.NextPageToken,
	}
	for _, notification := range page.Notifications {
		view.Notifications = append(view.Notifications, toNotificationView(notification, h.localizer))
	}
	writeData(w, http.StatusOK, view)
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.inbox.CountUnread(r.Context(), CallerUserID(r.Context()))
	if err != nil {
		writeError(w, mapInboxErr(err))
		return
	}
	writeData(w, http.StatusOK, struct {
		Unread int `json:"unread"`
	}{Unread: count})
}

func (h *Handler) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	notification, err := h.inbox.MarkRead(r.Context(), notifdomain.MarkReadInput{
		RecipientUserID: CallerUserID(r.Context()),
		NotificationID:  r.PathValue("id"),
	})
	if err != nil {
		writeError(w, mapInboxErr(err))
		return
	}
	writeData(w, http.StatusOK, toNotificationView(notification, h.localizer))
}
