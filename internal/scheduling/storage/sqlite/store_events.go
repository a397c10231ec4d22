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

// PutEvent persists one event record.
func (s *Store) PutEvent(ctx context.Context, e domain.Event) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("event id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO events (id, title, event_group_id, created_by, starts_at, ends_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    title = excluded.title,
    event_group_id = excluded.event_group_id,
    starts_at = excluded.starts_at,
    ends_at = excluded.ends_at,
    updated_at = excluded.updated_at
`, e.ID, e.Title, e.EventGroupID, e.CreatedBy,
		toMillis(e.StartsAt), toMillis(e.EndsAt), toMillis(e.CreatedAt), toMillis(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put event: %w", err)
	}
	return nil
}

// GetEvent loads one event record by id.
func (s *Store) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Event{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, title, event_group_id, created_by, starts_at, ends_at, created_at, updated_at
FROM events
WHERE id = ?
`, eventID)
	return scanEvent(row)
}

// UpdateEventGroup moves one event into another event group.
func (s *Store) UpdateEventGroup(ctx context.Context, eventID string, eventGroupID string, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE events SET event_group_id = ?, updated_at = ? WHERE id = ?
`, eventGroupID, toMillis(updatedAt), eventID)
	if err != nil {
		return fmt.Errorf("update event group: %w", err)
	}
	return requireRowAffected(result)
}

const visibleEventsQuery = `
SELECT DISTINCT e.id, e.title, e.event_group_id, e.created_by, e.starts_at, e.ends_at, e.created_at, e.updated_at
FROM events e
LEFT JOIN event_access ea
    ON ea.event_id = e.id AND ea.user_id = ?1
LEFT JOIN event_groups eg
    ON eg.id = e.event_group_id
LEFT JOIN event_group_access ega_user
    ON ega_user.event_group_id = e.event_group_id AND ega_user.user_id = ?1
LEFT JOIN event_group_access ega_group
    ON ega_group.event_group_id = e.event_group_id AND ega_group.user_group_id IS NOT NULL
LEFT JOIN user_group_members ugm
    ON ugm.user_group_id = ega_group.user_group_id AND ugm.user_id = ?1
WHERE (e.created_by = ?1
    OR eg.created_by = ?1
    OR ea.user_id IS NOT NULL
    OR ega_user.user_id IS NOT NULL
    OR ugm.user_id IS NOT NULL)
`

// ListEventsVisibleToUser returns events the user owns or can see through a
// direct grant, an event-group grant, or user-group membership on an
// event-group grant. filterClause is ANDed in when present.
func (s *Store) ListEventsVisibleToUser(ctx context.Context, userID string, filterClause string, filterParams []any) ([]domain.Event, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	query := visibleEventsQuery
	args := []any{userID}
	if strings.TrimSpace(filterClause) != "" {
		query += " AND (" + filterClause + ")"
		args = append(args, filterParams...)
	}
	query += " ORDER BY e.starts_at, e.id"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query visible events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(scanner rowScanner) (domain.Event, error) {
	var (
		event     domain.Event
		startsAt  int64
		endsAt    int64
		createdAt int64
		updatedAt int64
	)
	err := scanner.Scan(&event.ID, &event.Title, &event.EventGroupID, &event.CreatedBy,
		&startsAt, &endsAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Event{}, storage.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("scan event: %w", err)
	}
	event.StartsAt = fromMillis(startsAt)
	event.EndsAt = fromMillis(endsAt)
	event.CreatedAt = fromMillis(createdAt)
	event.UpdatedAt = fromMillis(updatedAt)
	return event, nil
}
