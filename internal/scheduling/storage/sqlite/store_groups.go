package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meetgrid/meetgrid/internal/scheduling/domain"
	"github.com/meetgrid/meetgrid/internal/scheduling/storage"
)

// PutUserGroup persists one user-group record.
func (s *Store) PutUserGroup(ctx context.Context, g domain.UserGroup) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(g.ID) == "" {
		return fmt.Errorf("user group id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO user_groups (id, name, created_by, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    created_by = excluded.created_by,
    updated_at = excluded.updated_at
`, g.ID, strings.TrimSpace(g.Name), g.CreatedBy, toMillis(g.CreatedAt), toMillis(g.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put user group: %w", err)
	}
	return nil
}

// GetUserGroup loads one user-group record by id.
func (s *Store) GetUserGroup(ctx context.Context, groupID string) (domain.UserGroup, error) {
	if err := s.ready(ctx); err != nil {
		return domain.UserGroup{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, created_by, created_at, updated_at
FROM user_groups
WHERE id = ?
`, groupID)
	return scanUserGroup(row)
}

// GetUserGroupsByIDs loads many user groups in one query, keyed by id.
func (s *Store) GetUserGroupsByIDs(ctx context.Context, groupIDs []string) (map[string]domain.UserGroup, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if len(groupIDs) == 0 {
		return map[string]domain.UserGroup{}, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, name, created_by, created_at, updated_at
FROM user_groups
WHERE id IN (`+placeholders(len(groupIDs))+`)
`, toAnySlice(groupIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query user groups by ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.UserGroup, len(groupIDs))
	for rows.Next() {
		group, err := scanUserGroup(rows)
		if err != nil {
			return nil, err
		}
		out[group.ID] = group
	}
	return out, rows.Err()
}

// UpdateUserGroupOwner reassigns created_by on one user group.
func (s *Store) UpdateUserGroupOwner(ctx context.Context, groupID string, newOwnerID string, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE user_groups SET created_by = ?, updated_at = ? WHERE id = ?
`, newOwnerID, toMillis(updatedAt), groupID)
	if err != nil {
		return fmt.Errorf("update user group owner: %w", err)
	}
	return requireRowAffected(result)
}

// AddUserGroupMember records membership; re-adding is a no-op.
func (s *Store) AddUserGroupMember(ctx context.Context, groupID string, userID string, addedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT OR IGNORE INTO user_group_members (user_group_id, user_id, added_at)
VALUES (?, ?, ?)
`, groupID, userID, toMillis(addedAt))
	if err != nil {
		return fmt.Errorf("add user group member: %w", err)
	}
	return nil
}

// RemoveUserGroupMember drops one membership row.
func (s *Store) RemoveUserGroupMember(ctx context.Context, groupID string, userID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM user_group_members WHERE user_group_id = ? AND user_id = ?
`, groupID, userID)
	if err != nil {
		return fmt.Errorf("remove user group member: %w", err)
	}
	return requireRowAffected(result)
}

// ListUserGroupMembers returns the member user ids of one group.
func (s *Store) ListUserGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	members, err := s.ListMembersByGroupIDs(ctx, []string{groupID})
	if err != nil {
		return nil, err
	}
	return members[groupID], nil
}

// ListMembersByGroupIDs expands many groups in one query, keyed by group id.
func (s *Store) ListMembersByGroupIDs(ctx context.Context, groupIDs []string) (map[string][]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if len(groupIDs) == 0 {
		return map[string][]string{}, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT user_group_id, user_id
FROM user_group_members
WHERE user_group_id IN (`+placeholders(len(groupIDs))+`)
ORDER BY user_group_id, added_at
`, toAnySlice(groupIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string, len(groupIDs))
	for rows.Next() {
		var groupID, userID string
		if err := rows.Scan(&groupID, &userID); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		out[groupID] = append(out[groupID], userID)
	}
	return out, rows.Err()
}

// PutEventGroup persists one event-group record.
func (s *Store) PutEventGroup(ctx context.Context, g domain.EventGroup) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(g.ID) == "" {
		return fmt.Errorf("event group id is required")
	}

	personal := 0
	if g.Personal {
		personal = 1
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO event_groups (id, name, created_by, is_personal, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    created_by = excluded.created_by,
    is_personal = excluded.is_personal,
    updated_at = excluded.updated_at
`, g.ID, strings.TrimSpace(g.Name), g.CreatedBy, personal, toMillis(g.CreatedAt), toMillis(g.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put event group: %w", err)
	}
	return nil
}

// GetEventGroup loads one event-group record by id.
func (s *Store) GetEventGroup(ctx context.Context, groupID string) (domain.EventGroup, error) {
	if err := s.ready(ctx); err != nil {
		return domain.EventGroup{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, created_by, is_personal, created_at, updated_at
FROM event_groups
WHERE id = ?
`, groupID)

	var (
		group     domain.EventGroup
		personal  int
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&group.ID, &group.Name, &group.CreatedBy, &personal, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EventGroup{}, storage.ErrNotFound
		}
		return domain.EventGroup{}, fmt.Errorf("scan event group: %w", err)
	}
	group.Personal = personal == 1
	group.CreatedAt = fromMillis(createdAt)
	group.UpdatedAt = fromMillis(updatedAt)
	return group, nil
}

// UpdateEventGroupOwner reassigns created_by on one event group.
func (s *Store) UpdateEventGroupOwner(ctx context.Context, groupID string, newOwnerID string, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE event_groups SET created_by = ?, updated_at = ? WHERE id = ?
`, newOwnerID, toMillis(updatedAt), groupID)
	if err != nil {
		return fmt.Errorf("update event group owner: %w", err)
	}
	return requireRowAffected(result)
}

// DeleteEventGroup drops one event group and, by cascade, its access rows.
func (s *Store) DeleteEventGroup(ctx context.Context, groupID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM event_groups WHERE id = ?`, groupID)
	if err != nil {
		// Events reference the group without cascade; deleting a non-empty
		// group trips the foreign key.
		if isForeignKeyViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("delete event group: %w", err)
	}
	return requireRowAffected(result)
}

func scanUserGroup(scanner rowScanner) (domain.UserGroup, error) {
	var (
		group     domain.UserGroup
		createdAt int64
		updatedAt int64
	)
	err := scanner.Scan(&group.ID, &group.Name, &group.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserGroup{}, storage.ErrNotFound
		}
		return domain.UserGroup{}, fmt.Errorf("scan user group: %w", err)
	}
	group.CreatedAt = fromMillis(createdAt)
	group.UpdatedAt = fromMillis(updatedAt)
	return group, nil
}

func requireRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
