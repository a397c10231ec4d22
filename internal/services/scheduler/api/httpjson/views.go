package httpjson

import (
	"time"

	notifdomain "github.com/meetgrid/meetgrid/internal/notifications/domain"
	"github.com/meetgrid/meetgrid/internal/notifications/render"
	"github.com/meetgrid/meetgrid/internal/scheduling/domain"
	"github.com/meetgrid/meetgrid/internal/scheduling/pending"
	"github.com/meetgrid/meetgrid/internal/scheduling/service"
)

// Wire views keep the JSON surface decoupled from domain structs. Roles
// travel as their numeric level (1 read, 2 read-write, 3 admin) and
// timestamps as RFC 3339 UTC.

type userView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type eventView struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	EventGroupID string    `json:"event_group_id"`
	CreatedBy    string    `json:"created_by"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
}

type eventGroupView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
	Personal  bool   `json:"personal"`
}

type userGroupView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
}

type accessUserView struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   int    `json:"role"`
}

type accessGroupView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role int    `json:"role"`
}

type accessView struct {
	Users      []accessUserView  `json:"users"`
	UserGroups []accessGroupView `json:"user_groups"`
}

type emailCheckView struct {
	Email  string `json:"email"`
	Exist  bool   `json:"exist"`
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
}

// changePayload is the wire form of one pending access mutation. Kind uses
// the same tokens the apply result echoes back: add-user, add-user-group,
// remove-user, remove-user-group, update-user-role, update-user-group-role.
type changePayload struct {
	Kind      string `json:"kind"`
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	GroupID   string `json:"group_id,omitempty"`
	GroupName string `json:"group_name,omitempty"`
	Role      int    `json:"role,omitempty"`
	OldRole   int    `json:"old_role,omitempty"`
}

type failedChangeView struct {
	Change changePayload `json:"change"`
	Error  string        `json:"error"`
}

type applyResultView struct {
	Successful []changePayload    `json:"successful"`
	Failed     []failedChangeView `json:"failed"`
}

type notificationView struct {
	ID          string     `json:"id"`
	MessageType string     `json:"message_type"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

type inboxView struct {
	Notifications []notificationView `json:"notifications"`
	NextPageToken string             `json:"next_page_token,omitempty"`
}

func changeKindFromToken(token string) domain.ChangeKind {
	switch token {
	case "add-user":
		return domain.ChangeAddUser
	case "add-user-group":
		return domain.ChangeAddUserGroup
	case "remove-user":
		return domain.ChangeRemoveUser
	case "remove-user-group":
		return domain.ChangeRemoveUserGroup
	case "update-user-role":
		return domain.ChangeUpdateUserRole
	case "update-user-group-role":
		return domain.ChangeUpdateUserGroupRole
	default:
		return 0
	}
}

// toChanges assigns sequential ids so the apply result can point back at the
// submitted list. Unknown kinds pass through and surface as per-change
// validation failures instead of rejecting the whole batch.
func toChanges(payloads []changePayload) []domain.Change {
	changes := make([]domain.Change, 0, len(payloads))
	for i, p := range payloads {
		changes = append(changes, domain.Change{
			ID:        i + 1,
			Kind:      changeKindFromToken(p.Kind),
			UserID:    p.UserID,
			Email:     p.Email,
			Name:      p.Name,
			GroupID:   p.GroupID,
			GroupName: p.GroupName,
			Role:      domain.Role(p.Role),
			OldRole:   domain.Role(p.OldRole),
		})
	}
	return changes
}

func toChangePayload(c domain.Change) changePayload {
	return changePayload{
		Kind:      c.Kind.String(),
		UserID:    c.UserID,
		Email:     c.Email,
		Name:      c.Name,
		GroupID:   c.GroupID,
		GroupName: c.GroupName,
		Role:      int(c.Role),
		OldRole:   int(c.OldRole),
	}
}

func toUserView(u domain.User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name}
}

func toEventView(e domain.Event) eventView {
	return eventView{
		ID:           e.ID,
		Title:        e.Title,
		EventGroupID: e.EventGroupID,
		CreatedBy:    e.CreatedBy,
		StartsAt:     e.StartsAt,
		EndsAt:       e.EndsAt,
	}
}

func toEventGroupView(g domain.EventGroup) eventGroupView {
	return eventGroupView{ID: g.ID, Name: g.Name, CreatedBy: g.CreatedBy, Personal: g.Personal}
}

func toUserGroupView(g domain.UserGroup) userGroupView {
	return userGroupView{ID: g.ID, Name: g.Name, CreatedBy: g.CreatedBy}
}

func toAccessView(result domain.AccessResult) accessView {
	view := accessView{
		Users:      make([]accessUserView, 0, len(result.Users)),
		UserGroups: make([]accessGroupView, 0, len(result.UserGroups)),
	}
	for _, u := range result.Users {
		view.Users = append(view.Users, accessUserView{UserID: u.UserID, Email: u.Email, Name: u.Name, Role: int(u.Role)})
	}
	for _, g := range result.UserGroups {
		view.UserGroups = append(view.UserGroups, accessGroupView{ID: g.ID, Name: g.Name, Role: int(g.Role)})
	}
	return view
}

func toEffectiveView(state pending.EffectiveState) accessView {
	return toAccessView(domain.AccessResult{Users: state.Users, UserGroups: state.UserGroups})
}

func toApplyResultView(result service.ApplyResult) applyResultView {
	view := applyResultView{
		Successful: make([]changePayload, 0, len(result.Successful)),
		Failed:     make([]failedChangeView, 0, len(result.Failed)),
	}
	for _, c := range result.Successful {
		view.Successful = append(view.Successful, toChangePayload(c))
	}
	for _, f := range result.Failed {
		view.Failed = append(view.Failed, failedChangeView{Change: toChangePayload(f.Change), Error: f.Err.Error()})
	}
	return view
}

func toNotificationView(n notifdomain.Notification, loc render.Localizer) notificationView {
	rendered := render.Render(loc, render.Input{
		MessageType: n.MessageType,
		PayloadJSON: n.PayloadJSON,
		Channel:     render.ChannelInApp,
	})

	view := notificationView{
		ID:          n.ID,
		MessageType: string(n.MessageType),
		Title:       n.Title,
		Body:        rendered.BodyText,
		CreatedAt:   n.CreatedAt,
		ReadAt:      n.ReadAt,
	}
	if view.Title == "" {
		view.Title = rendered.Title
	}
	return view
}
