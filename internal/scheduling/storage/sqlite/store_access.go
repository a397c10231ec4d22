package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/meetgrid/meetgrid/internal/scheduling/domain"
)

// ListEventAccess returns every grant row for one event.
func (s *Store) ListEventAccess(ctx context.Context, eventID string) ([]domain.AccessGrant, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT event_id, user_id, user_group_id, role
FROM event_access
WHERE event_id = ?
ORDER BY created_at, user_id
`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query event access: %w", err)
	}
	defer rows.Close()
	return collectGrants(rows)
}

// UpsertEventAccess writes expanded per-user event grants; an existing row
// for the same (event, user) takes the new role and provenance.
func (s *Store) UpsertEventAccess(ctx context.Context, grants []domain.AccessGrant, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	for _, grant := range grants {
		if grant.UserID == "" {
			return fmt.Errorf("event grant requires a user id")
		}
		_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO event_access (event_id, user_id, user_group_id, role, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (event_id, user_id) DO UPDATE SET
    user_group_id = excluded.user_group_id,
    role = excluded.role,
    updated_at = excluded.updated_at
`, grant.TargetID, grant.UserID, nullable(grant.UserGroupID), int(grant.Role), toMillis(at), toMillis(at))
		if err != nil {
			return fmt.Errorf("upsert event access: %w", err)
		}
	}
	return nil
}

// UpdateEventAccessRole sets the role on one direct event grant.
func (s *Store) UpdateEventAccessRole(ctx context.Context, eventID string, userID string, role domain.Role, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE event_access SET role = ?, updated_at = ? WHERE event_id = ? AND user_id = ?
`, int(role), toMillis(at), eventID, userID)
	if err != nil {
		return fmt.Errorf("update event access role: %w", err)
	}
	return requireRowAffected(result)
}

// UpdateEventAccessRoleByGroup sets the role on every event grant that came
// from expanding the given user group.
func (s *Store) UpdateEventAccessRoleByGroup(ctx context.Context, eventID string, userGroupID string, role domain.Role, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE event_access SET role = ?, updated_at = ? WHERE event_id = ? AND user_group_id = ?
`, int(role), toMillis(at), eventID, userGroupID)
	if err != nil {
		return fmt.Errorf("update event access role by group: %w", err)
	}
	return requireRowAffected(result)
}

// DeleteEventAccessUser drops one direct event grant.
func (s *Store) DeleteEventAccessUser(ctx context.Context, eventID string, userID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM event_access WHERE event_id = ? AND user_id = ?
`, eventID, userID)
	if err != nil {
		return fmt.Errorf("delete event access: %w", err)
	}
	return requireRowAffected(result)
}

// DeleteEventAccessByGroup drops every event grant with the given group
// provenance and returns the user ids whose access went away.
func (s *Store) DeleteEventAccessByGroup(ctx context.Context, eventID string, userGroupID string) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
DELETE FROM event_access WHERE event_id = ? AND user_group_id = ?
RETURNING user_id
`, eventID, userGroupID)
	if err != nil {
		return nil, fmt.Errorf("delete event access by group: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan removed user id: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, rows.Err()
}

// ListEventGroupAccess returns every grant row for one event group.
func (s *Store) ListEventGroupAccess(ctx context.Context, eventGroupID string) ([]domain.AccessGrant, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT event_group_id, COALESCE(user_id, ''), user_group_id, role
FROM event_group_access
WHERE event_group_id = ?
ORDER BY created_at, rowid
`, eventGroupID)
	if err != nil {
		return nil, fmt.Errorf("query event group access: %w", err)
	}
	defer rows.Close()
	return collectGrants(rows)
}

// UpsertEventGroupAccess writes unexpanded event-group grants.
func (s *Store) UpsertEventGroupAccess(ctx context.Context, grants []domain.AccessGrant, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	for _, grant := range grants {
		switch {
		case grant.UserID != "" && grant.UserGroupID != "":
			return fmt.Errorf("event group grant requires exactly one grantee")
		case grant.UserID != "":
			_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO event_group_access (event_group_id, user_id, user_group_id, role, created_at, updated_at)
VALUES (?, ?, NULL, ?, ?, ?)
ON CONFLICT (event_group_id, user_id) WHERE user_id IS NOT NULL DO UPDATE SET
    role = excluded.role,
    updated_at = excluded.updated_at
`, grant.TargetID, grant.UserID, int(grant.Role), toMillis(at), toMillis(at))
			if err != nil {
				return fmt.Errorf("upsert event group user access: %w", err)
			}
		case grant.UserGroupID != "":
			_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO event_group_access (event_group_id, user_id, user_group_id, role, created_at, updated_at)
VALUES (?, NULL, ?, ?, ?, ?)
ON CONFLICT (event_group_id, user_group_id) WHERE user_group_id IS NOT NULL DO UPDATE SET
    role = excluded.role,
    updated_at = excluded.updated_at
`, grant.TargetID, grant.UserGroupID, int(grant.Role), toMillis(at), toMillis(at))
			if err != nil {
				return fmt.Errorf("upsert event group group access: %w", err)
			}
		default:
			return fmt.Errorf("event group grant requires a grantee")
		}
	}
	return nil
}

// UpdateEventGroupAccessUserRole sets the role on one direct event-group grant.
func (s *Store) UpdateEventGroupAccessUserRole(ctx context.Context, eventGroupID string, userID string, role domain.Role, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE event_group_access SET role = ?, updated_at = ? WHERE event_group_id = ? AND user_id = ?
`, int(role), toMillis(at), eventGroupID, userID)
	if err != nil {
		return fmt.Errorf("update event group user role: %w", err)
	}
	return requireRowAffected(result)
}

// UpdateEventGroupAccessGroupRole sets the role on one group event-group grant.
func (s *Store) UpdateEventGroupAccessGroupRole(ctx context.Context, eventGroupID string, userGroupID string, role domain.Role, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE event_group_access SET role = ?, updated_at = ? WHERE event_group_id = ? AND user_group_id = ?
`, int(role), toMillis(at), eventGroupID, userGroupID)
	if err != nil {
		return fmt.Errorf("update event group group role: %w", err)
	}
	return requireRowAffected(result)
}

// DeleteEventGroupAccessUser drops one direct event-group grant.
func (s *Store) DeleteEventGroupAccessUser(ctx context.Context, eventGroupID string, userID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM event_group_access WHERE event_group_id = ? AND user_id = ?
`, eventGroupID, userID)
	if err != nil {
		return fmt.Errorf("delete event group user access: %w", err)
	}
	return requireRowAffected(result)
}

// DeleteEventGroupAccessGroup drops one group event-group grant.
func (s *Store) DeleteEventGroupAccessGroup(ctx context.Context, eventGroupID string, userGroupID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM event_group_access WHERE event_group_id = ? AND user_group_id = ?
`, eventGroupID, userGroupID)
	if err != nil {
		return fmt.Errorf("delete event group group access: %w", err)
	}
	return requireRowAffected(result)
}

func collectGrants(rows *sql.Rows) ([]domain.AccessGrant, error) {
	var grants []domain.AccessGrant
	for rows.Next() {
		var (
			grant   domain.AccessGrant
			groupID sql.NullString
			role    int
		)
		if err := rows.Scan(&grant.TargetID, &grant.UserID, &groupID, &role); err != nil {
			return nil, fmt.Errorf("scan access grant: %w", err)
		}
		grant.UserGroupID = groupID.String
		grant.Role = domain.Role(role)
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
