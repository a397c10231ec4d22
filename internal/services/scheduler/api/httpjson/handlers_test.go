package httpjson_test

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	notifdomain "github.com/meetgrid/meetgrid/internal/notifications/domain"
	notifsqlite "github.com/meetgrid/meetgrid/internal/notifications/storage/sqlite"
	"github.com/meetgrid/meetgrid/internal/scheduling/service"
	"github.com/meetgrid/meetgrid/internal/scheduling/session"
	schedsqlite "github.com/meetgrid/meetgrid/internal/scheduling/storage/sqlite"
	"github.com/meetgrid/meetgrid/internal/services/scheduler/api/httpjson"
	"github.com/meetgrid/meetgrid/internal/services/scheduler/app"
)

type fixture struct {
	mux  *http.ServeMux
	priv ed25519.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	store, err := schedsqlite.Open(filepath.Join(dir, "scheduler.db"))
	if err != nil {
		t.Fatalf("open scheduler store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	notifStore, err := notifsqlite.Open(filepath.Join(dir, "notifications.db"))
	if err != nil {
		t.Fatalf("open notifications store: %v", err)
	}
	t.Cleanup(func() { _ = notifStore.Close() })

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	localizer := message.NewPrinter(language.AmericanEnglish)
	inbox := notifdomain.NewService(notifStore, nil, nil, nil)
	scheduling := service.New(store, app.NewInboxNotifier(inbox, localizer), nil, nil)

	mux := http.NewServeMux()
	httpjson.RegisterRoutes(mux, httpjson.NewHandler(scheduling, inbox, session.Config{
		Issuer:   "meetgrid",
		Audience: "scheduler",
		Key:      pub,
	}, localizer))

	return &fixture{mux: mux, priv: priv}
}

func (f *fixture) token(t *testing.T, userID string) string {
	t.Helper()

	now := time.Now()
	claims := struct {
		jwt.RegisteredClaims
		UserID string `json:"user_id"`
	}{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "meetgrid",
			Audience:  jwt.ClaimStrings{"scheduler"},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(f.priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

func (f *fixture) mustDo(t *testing.T, method, path, token string, body any, out any) {
	t.Helper()

	rec, env := f.do(t, method, path, token, body)
	if rec.Code >= http.StatusBadRequest || !env.Success {
		t.Fatalf("%s %s: status %d, error %q", method, path, rec.Code, env.Error)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (f *fixture) registerUser(t *testing.T, email, name string) userPayload {
	t.Helper()

	var user userPayload
	f.mustDo(t, http.MethodPost, "/v1/users", "", map[string]string{"email": email, "name": name}, &user)
	return user
}

func (f *fixture) createEventGroup(t *testing.T, token, name string) string {
	t.Helper()

	var group struct {
		ID string `json:"id"`
	}
	f.mustDo(t, http.MethodPost, "/v1/event-groups", token, map[string]string{"name": name}, &group)
	return group.ID
}

func (f *fixture) createEvent(t *testing.T, token, groupID, title string) string {
	t.Helper()

	var event struct {
		ID string `json:"id"`
	}
	f.mustDo(t, http.MethodPost, "/v1/events", token, map[string]any{
		"title":          title,
		"event_group_id": groupID,
		"starts_at":      time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		"ends_at":        time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC),
	}, &event)
	return event.ID
}

type accessPayload struct {
	Users []struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
		Role   int    `json:"role"`
	} `json:"users"`
	UserGroups []struct {
		ID   string `json:"id"`
		Role int    `json:"role"`
	} `json:"user_groups"`
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/v1/events", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if env.Success {
		t.Fatal("expected failure envelope")
	}

	rec, _ = f.do(t, http.MethodGet, "/v1/events", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestRegisterAndCheckEmails(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.registerUser(t, "Owner@Example.com", "Owner")
	if owner.Email != "owner@example.com" {
		t.Fatalf("expected lowercased email, got %q", owner.Email)
	}

	var checks []struct {
		Email  string `json:"email"`
		Exist  bool   `json:"exist"`
		UserID string `json:"user_id"`
	}
	f.mustDo(t, http.MethodPost, "/v1/users/check", f.token(t, owner.ID), map[string][]string{
		"emails": {"owner@example.com", "ghost@example.com"},
	}, &checks)

	if len(checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(checks))
	}
	if !checks[0].Exist || checks[0].UserID != owner.ID {
		t.Fatalf("expected owner to exist, got %+v", checks[0])
	}
	if checks[1].Exist {
		t.Fatalf("expected ghost email to be missing, got %+v", checks[1])
	}
}

func TestEventAccessFlow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.registerUser(t, "owner@example.com", "Owner")
	member := f.registerUser(t, "member@example.com", "Member")
	ownerToken := f.token(t, owner.ID)
	memberToken := f.token(t, member.ID)

	groupID := f.createEventGroup(t, ownerToken, "Team Calendar")
	eventID := f.createEvent(t, ownerToken, groupID, "Planning")

	var applied struct {
		Successful []json.RawMessage `json:"successful"`
		Failed     []json.RawMessage `json:"failed"`
	}
	f.mustDo(t, http.MethodPost, "/v1/events/"+eventID+"/access/apply", ownerToken, map[string]any{
		"changes": []map[string]any{
			{"kind": "add-user", "user_id": member.ID, "role": 2},
		},
	}, &applied)
	if len(applied.Successful) != 1 || len(applied.Failed) != 0 {
		t.Fatalf("expected 1 success, got %d successes %d failures", len(applied.Successful), len(applied.Failed))
	}

	var access accessPayload
	f.mustDo(t, http.MethodGet, "/v1/events/"+eventID+"/access", ownerToken, nil, &access)
	if len(access.Users) != 1 || access.Users[0].UserID != member.ID || access.Users[0].Role != 2 {
		t.Fatalf("unexpected access view: %+v", access)
	}

	// A non-owner cannot inspect access, and the denial does not reveal
	// whether the event exists.
	rec, env := f.do(t, http.MethodGet, "/v1/events/"+eventID+"/access", memberToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if env.Error != "event not found or access denied" {
		t.Fatalf("unexpected denial message %q", env.Error)
	}

	// The grant produced an inbox notification for the member.
	var inbox struct {
		Notifications []struct {
			ID          string `json:"id"`
			MessageType string `json:"message_type"`
			Title       string `json:"title"`
			Body        string `json:"body"`
		} `json:"notifications"`
	}
	f.mustDo(t, http.MethodGet, "/v1/notifications", memberToken, nil, &inbox)
	if len(inbox.Notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(inbox.Notifications))
	}
	notification := inbox.Notifications[0]
	if notification.MessageType != "EVENT_ACTION" {
		t.Fatalf("unexpected message type %q", notification.MessageType)
	}
	if notification.Title == "" || notification.Body == "" {
		t.Fatalf("expected rendered copy, got %+v", notification)
	}
	if !strings.Contains(notification.Body, "Planning") {
		t.Fatalf("expected body to mention the event, got %q", notification.Body)
	}

	var unread struct {
		Unread int `json:"unread"`
	}
	f.mustDo(t, http.MethodGet, "/v1/notifications/unread", memberToken, nil, &unread)
	if unread.Unread != 1 {
		t.Fatalf("expected 1 unread, got %d", unread.Unread)
	}

	f.mustDo(t, http.MethodPost, "/v1/notifications/"+notification.ID+"/read", memberToken, nil, nil)
	f.mustDo(t, http.MethodGet, "/v1/notifications/unread", memberToken, nil, &unread)
	if unread.Unread != 0 {
		t.Fatalf("expected 0 unread after mark, got %d", unread.Unread)
	}
}

func TestApplyReportsPerChangeOutcomes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.registerUser(t, "owner@example.com", "Owner")
	member := f.registerUser(t, "member@example.com", "Member")
	ownerToken := f.token(t, owner.ID)

	groupID := f.createEventGroup(t, ownerToken, "Team Calendar")
	eventID := f.createEvent(t, ownerToken, groupID, "Planning")

	var applied struct {
		Successful []struct {
			Kind string `json:"kind"`
		} `json:"successful"`
		Failed []struct {
			Change struct {
				Kind string `json:"kind"`
			} `json:"change"`
			Error string `json:"error"`
		} `json:"failed"`
	}
	f.mustDo(t, http.MethodPost, "/v1/events/"+eventID+"/access/apply", ownerToken, map[string]any{
		"changes": []map[string]any{
			{"kind": "add-user", "user_id": member.ID, "role": 1},
			{"kind": "remove-user", "user_id": owner.ID},
		},
	}, &applied)

	if len(applied.Successful) != 1 || applied.Successful[0].Kind != "add-user" {
		t.Fatalf("unexpected successes: %+v", applied.Successful)
	}
	if len(applied.Failed) != 1 || applied.Failed[0].Change.Kind != "remove-user" {
		t.Fatalf("unexpected failures: %+v", applied.Failed)
	}
	if applied.Failed[0].Error != "cannot remove the owner" {
		t.Fatalf("unexpected failure reason %q", applied.Failed[0].Error)
	}
}

func TestPreviewDoesNotPersist(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.registerUser(t, "owner@example.com", "Owner")
	member := f.registerUser(t, "member@example.com", "Member")
	ownerToken := f.token(t, owner.ID)

	groupID := f.createEventGroup(t, ownerToken, "Team Calendar")
	eventID := f.createEvent(t, ownerToken, groupID, "Planning")

	var preview accessPayload
	f.mustDo(t, http.MethodPost, "/v1/events/"+eventID+"/access/preview", ownerToken, map[string]any{
		"changes": []map[string]any{
			{"kind": "add-user", "user_id": member.ID, "email": "member@example.com", "role": 3},
		},
	}, &preview)
	if len(preview.Users) != 1 || preview.Users[0].UserID != member.ID || preview.Users[0].Role != 3 {
		t.Fatalf("unexpected preview: %+v", preview)
	}

	var access accessPayload
	f.mustDo(t, http.MethodGet, "/v1/events/"+eventID+"/access", ownerToken, nil, &access)
	if len(access.Users) != 0 {
		t.Fatalf("preview must not persist, got %+v", access.Users)
	}
}

func TestListEventsWithFilterParam(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.registerUser(t, "owner@example.com", "Owner")
	ownerToken := f.token(t, owner.ID)

	groupID := f.createEventGroup(t, ownerToken, "Team Calendar")
	f.createEvent(t, ownerToken, groupID, "Planning")
	f.createEvent(t, ownerToken, groupID, "Retro")

	var events []struct {
		ID string `json:"id"`
	}
	query := "?filter=" + "event_group_id%20%3D%20%22" + groupID + "%22"
	f.mustDo(t, http.MethodGet, "/v1/events"+query, ownerToken, nil, &events)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	rec, _ := f.do(t, http.MethodGet, "/v1/events?filter=bogus%20%3D%20%22x%22", ownerToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown filter field, got %d", rec.Code)
	}
}

func TestUserGroupLifecycleOverHTTP(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.registerUser(t, "owner@example.com", "Owner")
	member := f.registerUser(t, "member@example.com", "Member")
	ownerToken := f.token(t, owner.ID)

	var group struct {
		ID string `json:"id"`
	}
	f.mustDo(t, http.MethodPost, "/v1/user-groups", ownerToken, map[string]string{"name": "Core Team"}, &group)

	f.mustDo(t, http.MethodPost, "/v1/user-groups/"+group.ID+"/members", ownerToken, map[string]string{"user_id": member.ID}, nil)
	f.mustDo(t, http.MethodPost, "/v1/user-groups/"+group.ID+"/transfer", ownerToken, map[string]string{"new_owner_user_id": member.ID}, nil)

	// Ownership moved, so the former owner loses management rights.
	rec, env := f.do(t, http.MethodPost, "/v1/user-groups/"+group.ID+"/members", ownerToken, map[string]string{"user_id": owner.ID})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 after transfer, got %d", rec.Code)
	}
	if env.Error != "user group not found or access denied" {
		t.Fatalf("unexpected denial message %q", env.Error)
	}
}

func TestDeleteEventGroupWithEventsConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.registerUser(t, "owner@example.com", "Owner")
	ownerToken := f.token(t, owner.ID)

	groupID := f.createEventGroup(t, ownerToken, "Team Calendar")
	f.createEvent(t, ownerToken, groupID, "Planning")

	rec, env := f.do(t, http.MethodDelete, "/v1/event-groups/"+groupID, ownerToken, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if env.Error != "event group still contains events" {
		t.Fatalf("unexpected error %q", env.Error)
	}
}
