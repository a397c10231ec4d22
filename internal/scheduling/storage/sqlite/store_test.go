package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/meetgrid/meetgrid/internal/scheduling/domain"
	"github.com/meetgrid/meetgrid/internal/scheduling/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "scheduling.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedUser(t *testing.T, store *Store, id, email, name string, at time.Time) {
	t.Helper()
	err := store.PutUser(context.Background(), domain.User{
		ID: id, Email: email, Name: name, CreatedAt: at, UpdatedAt: at,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(" "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestUserDirectoryBatchLookups(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedUser(t, store, "u1", "Alice@X.com", "Alice", now)
	seedUser(t, store, "u2", "bob@x.com", "Bob", now)

	byEmail, err := store.GetUsersByEmails(context.Background(), []string{"alice@x.com", "BOB@x.com", "ghost@x.com", ""})
	if err != nil {
		t.Fatalf("get users by emails: %v", err)
	}
	if len(byEmail) != 2 {
		t.Fatalf("expected two resolved users, got %d", len(byEmail))
	}
	if byEmail["alice@x.com"].ID != "u1" {
		t.Fatalf("expected lowercased email key, got %+v", byEmail)
	}

	byID, err := store.GetUsersByIDs(context.Background(), []string{"u1", "u2", "missing"})
	if err != nil {
		t.Fatalf("get users by ids: %v", err)
	}
	if len(byID) != 2 || byID["u2"].Name != "Bob" {
		t.Fatalf("unexpected lookup result %+v", byID)
	}

	if _, err := store.GetUser(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserGroupMembership(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedUser(t, store, "u1", "a@x.com", "A", now)
	seedUser(t, store, "u2", "b@x.com", "B", now)
	seedUser(t, store, "u3", "c@x.com", "C", now)

	groups := []domain.UserGroup{
		{ID: "g1", Name: "Team", CreatedBy: "u1", CreatedAt: now, UpdatedAt: now},
		{ID: "g2", Name: "Ops", CreatedBy: "u1", CreatedAt: now, UpdatedAt: now},
	}
	for _, g := range groups {
		if err := store.PutUserGroup(context.Background(), g); err != nil {
			t.Fatalf("put user group %s: %v", g.ID, err)
		}
	}
	memberships := []struct {
		group string
		user  string
	}{
		{"g1", "u1"}, {"g1", "u2"}, {"g2", "u3"},
	}
	for _, m := range memberships {
		if err := store.AddUserGroupMember(context.Background(), m.group, m.user, now); err != nil {
			t.Fatalf("add member %s/%s: %v", m.group, m.user, err)
		}
	}
	// Re-adding is a no-op, not a conflict.
	if err := store.AddUserGroupMember(context.Background(), "g1", "u1", now.Add(time.Hour)); err != nil {
		t.Fatalf("re-add member: %v", err)
	}

	expanded, err := store.ListMembersByGroupIDs(context.Background(), []string{"g1", "g2", "missing"})
	if err != nil {
		t.Fatalf("expand groups: %v", err)
	}
	if len(expanded["g1"]) != 2 || len(expanded["g2"]) != 1 {
		t.Fatalf("unexpected expansion %+v", expanded)
	}

	if err := store.RemoveUserGroupMember(context.Background(), "g1", "u2"); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if err := store.RemoveUserGroupMember(context.Background(), "g1", "u2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second removal, got %v", err)
	}

	byID, err := store.GetUserGroupsByIDs(context.Background(), []string{"g1", "g2"})
	if err != nil {
		t.Fatalf("get groups by ids: %v", err)
	}
	if byID["g2"].Name != "Ops" {
		t.Fatalf("unexpected group lookup %+v", byID)
	}
}

func TestEventGroupLifecycle(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedUser(t, store, "u1", "a@x.com", "A", now)
	seedUser(t, store, "u2", "b@x.com", "B", now)

	group := domain.EventGroup{ID: "eg1", Name: "Personal", CreatedBy: "u1", Personal: true, CreatedAt: now, UpdatedAt: now}
	if err := store.PutEventGroup(context.Background(), group); err != nil {
		t.Fatalf("put event group: %v", err)
	}

	got, err := store.GetEventGroup(context.Background(), "eg1")
	if err != nil {
		t.Fatalf("get event group: %v", err)
	}
	if !got.Personal {
		t.Fatal("expected personal flag round-tripped")
	}

	if err := store.UpdateEventGroupOwner(context.Background(), "eg1", "u2", now.Add(time.Hour)); err != nil {
		t.Fatalf("transfer owner: %v", err)
	}
	got, err = store.GetEventGroup(context.Background(), "eg1")
	if err != nil {
		t.Fatalf("reload event group: %v", err)
	}
	if got.CreatedBy != "u2" {
		t.Fatalf("expected new owner u2, got %s", got.CreatedBy)
	}

	if err := store.DeleteEventGroup(context.Background(), "eg1"); err != nil {
		t.Fatalf("delete event group: %v", err)
	}
	if _, err := store.GetEventGroup(context.Background(), "eg1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func seedCalendar(t *testing.T, store *Store, now time.Time) {
	t.Helper()
	seedUser(t, store, "owner", "owner@x.com", "Owner", now)
	seedUser(t, store, "direct", "direct@x.com", "Direct", now)
	seedUser(t, store, "member", "member@x.com", "Member", now)
	seedUser(t, store, "outsider", "outsider@x.com", "Outsider", now)

	if err := store.PutUserGroup(context.Background(), domain.UserGroup{ID: "ug1", Name: "Team", CreatedBy: "owner", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("put user group: %v", err)
	}
	if err := store.AddUserGroupMember(context.Background(), "ug1", "member", now); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := store.PutEventGroup(context.Background(), domain.EventGroup{ID: "eg1", Name: "Work", CreatedBy: "owner", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("put event group: %v", err)
	}
	if err := store.PutEvent(context.Background(), domain.Event{
		ID: "ev1", Title: "Planning", EventGroupID: "eg1", CreatedBy: "owner",
		StartsAt: now, EndsAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("put event: %v", err)
	}
}

func TestEventAccessRows(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedCalendar(t, store, now)

	grants := []domain.AccessGrant{
		{TargetID: "ev1", UserID: "direct", Role: domain.RoleRead},
		{TargetID: "ev1", UserID: "member", UserGroupID: "ug1", Role: domain.RoleReadWrite},
	}
	if err := store.UpsertEventAccess(context.Background(), grants, now); err != nil {
		t.Fatalf("upsert event access: %v", err)
	}

	// Conflicting re-grant takes the new role; last writer wins.
	regrant := []domain.AccessGrant{{TargetID: "ev1", UserID: "direct", Role: domain.RoleAdmin}}
	if err := store.UpsertEventAccess(context.Background(), regrant, now.Add(time.Minute)); err != nil {
		t.Fatalf("re-upsert event access: %v", err)
	}

	rows, err := store.ListEventAccess(context.Background(), "ev1")
	if err != nil {
		t.Fatalf("list event access: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected two rows, got %d", len(rows))
	}
	byUser := map[string]domain.AccessGrant{}
	for _, row := range rows {
		byUser[row.UserID] = row
	}
	if byUser["direct"].Role != domain.RoleAdmin {
		t.Fatalf("expected upsert to take the new role, got %s", byUser["direct"].Role)
	}
	if byUser["member"].UserGroupID != "ug1" {
		t.Fatal("expected provenance group id preserved")
	}

	if err := store.UpdateEventAccessRoleByGroup(context.Background(), "ev1", "ug1", domain.RoleRead, now.Add(time.Hour)); err != nil {
		t.Fatalf("update role by group: %v", err)
	}
	removed, err := store.DeleteEventAccessByGroup(context.Background(), "ev1", "ug1")
	if err != nil {
		t.Fatalf("delete by group: %v", err)
	}
	if len(removed) != 1 || removed[0] != "member" {
		t.Fatalf("expected removed member id, got %v", removed)
	}

	if err := store.DeleteEventAccessUser(context.Background(), "ev1", "direct"); err != nil {
		t.Fatalf("delete direct access: %v", err)
	}
	if err := store.DeleteEventAccessUser(context.Background(), "ev1", "direct"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat delete, got %v", err)
	}
}

func TestEventGroupAccessRows(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedCalendar(t, store, now)

	grants := []domain.AccessGrant{
		{TargetID: "eg1", UserID: "direct", Role: domain.RoleRead},
		{TargetID: "eg1", UserGroupID: "ug1", Role: domain.RoleReadWrite},
	}
	if err := store.UpsertEventGroupAccess(context.Background(), grants, now); err != nil {
		t.Fatalf("upsert event group access: %v", err)
	}

	rows, err := store.ListEventGroupAccess(context.Background(), "eg1")
	if err != nil {
		t.Fatalf("list event group access: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected two rows, got %d", len(rows))
	}
	var userRow, groupRow domain.AccessGrant
	for _, row := range rows {
		if row.UserID != "" {
			userRow = row
		} else {
			groupRow = row
		}
	}
	if userRow.UserID != "direct" || groupRow.UserGroupID != "ug1" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	if err := store.UpdateEventGroupAccessGroupRole(context.Background(), "eg1", "ug1", domain.RoleAdmin, now.Add(time.Hour)); err != nil {
		t.Fatalf("update group role: %v", err)
	}
	if err := store.DeleteEventGroupAccessUser(context.Background(), "eg1", "direct"); err != nil {
		t.Fatalf("delete user grant: %v", err)
	}
	if err := store.DeleteEventGroupAccessGroup(context.Background(), "eg1", "ug1"); err != nil {
		t.Fatalf("delete group grant: %v", err)
	}
	if err := store.DeleteEventGroupAccessGroup(context.Background(), "eg1", "ug1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat delete, got %v", err)
	}
}

func TestListEventsVisibleToUser(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedCalendar(t, store, now)

	// direct grant on the event; group grant on the event group for ug1.
	if err := store.UpsertEventAccess(context.Background(), []domain.AccessGrant{
		{TargetID: "ev1", UserID: "direct", Role: domain.RoleRead},
	}, now); err != nil {
		t.Fatalf("grant direct: %v", err)
	}
	if err := store.UpsertEventGroupAccess(context.Background(), []domain.AccessGrant{
		{TargetID: "eg1", UserGroupID: "ug1", Role: domain.RoleRead},
	}, now); err != nil {
		t.Fatalf("grant group: %v", err)
	}

	cases := []struct {
		user string
		want int
	}{
		{"owner", 1},
		{"direct", 1},
		{"member", 1},
		{"outsider", 0},
	}
	for _, tc := range cases {
		events, err := store.ListEventsVisibleToUser(context.Background(), tc.user, "", nil)
		if err != nil {
			t.Fatalf("list for %s: %v", tc.user, err)
		}
		if len(events) != tc.want {
			t.Fatalf("user %s: expected %d events, got %d", tc.user, tc.want, len(events))
		}
	}

	// Filter clause narrows further.
	events, err := store.ListEventsVisibleToUser(context.Background(), "owner", "e.starts_at >= ?", []any{now.Add(time.Hour).UnixMilli()})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected filter to exclude the event, got %d", len(events))
	}
}

func TestMoveEventBetweenGroups(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedCalendar(t, store, now)
	if err := store.PutEventGroup(context.Background(), domain.EventGroup{ID: "eg2", Name: "Side", CreatedBy: "owner", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("put second group: %v", err)
	}

	if err := store.UpdateEventGroup(context.Background(), "ev1", "eg2", now.Add(time.Hour)); err != nil {
		t.Fatalf("move event: %v", err)
	}
	event, err := store.GetEvent(context.Background(), "ev1")
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if event.EventGroupID != "eg2" {
		t.Fatalf("expected event moved to eg2, got %s", event.EventGroupID)
	}
}
