// Package sqlite provides SQLite-backed persistence for notification state.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/meetgrid/meetgrid/internal/notifications/domain"
	"github.com/meetgrid/meetgrid/internal/notifications/storage/sqlite/migrations"
	"github.com/meetgrid/meetgrid/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for notification records.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a notifications SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// PutNotification persists one notification inbox row.
func (s *Store) PutNotification(ctx context.Context, notification domain.Notification) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(notification.ID) == "" {
		return fmt.Errorf("notification id is required")
	}
	if strings.TrimSpace(notification.RecipientUserID) == "" {
		return fmt.Errorf("recipient user id is required")
	}

	var readAt any
	if notification.ReadAt != nil {
		readAt = toMillis(*notification.ReadAt)
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO notifications (id, recipient_user_id, message_type, title, payload_json, dedupe_key, created_at, updated_at, read_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		notification.ID,
		notification.RecipientUserID,
		string(notification.MessageType),
		notification.Title,
		notification.PayloadJSON,
		notification.DedupeKey,
		toMillis(notification.CreatedAt),
		toMillis(notification.UpdatedAt),
		readAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
			return domain.ErrConflict
		}
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

// GetNotificationByRecipientAndDedupeKey loads one recipient notification by dedupe key.
func (s *Store) GetNotificationByRecipientAndDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (domain.Notification, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Notification{}, err
	}
	if strings.TrimSpace(dedupeKey) == "" {
		return domain.Notification{}, domain.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, recipient_user_id, message_type, title, payload_json, dedupe_key, created_at, updated_at, read_at
FROM notifications
WHERE recipient_user_id = ? AND dedupe_key = ?
`, recipientUserID, dedupeKey)
	notification, err := scanNotification(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Notification{}, domain.ErrNotFound
		}
		return domain.Notification{}, fmt.Errorf("get notification by dedupe key: %w", err)
	}
	return notification, nil
}

// ListNotificationsByRecipient lists one recipient inbox newest-first with
// cursor pagination; the page token is the id of the last seen row.
func (s *Store) ListNotificationsByRecipient(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (domain.NotificationPage, error) {
	if err := s.ready(ctx); err != nil {
		return domain.NotificationPage{}, err
	}
	if pageSize <= 0 {
		return domain.NotificationPage{}, fmt.Errorf("page size must be greater than zero")
	}

	limit := pageSize + 1
	var rows *sql.Rows
	var err error
	if pageToken == "" {
		rows, err = s.sqlDB.QueryContext(ctx, `
SELECT id, recipient_user_id, message_type, title, payload_json, dedupe_key, created_at, updated_at, read_at
FROM notifications
WHERE recipient_user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, recipientUserID, limit)
	} else {
		var tokenCreatedAt int64
		scanErr := s.sqlDB.QueryRowContext(ctx, `
SELECT created_at FROM notifications WHERE recipient_user_id = ? AND id = ?
`, recipientUserID, pageToken).Scan(&tokenCreatedAt)
		if scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return domain.NotificationPage{}, nil
			}
			return domain.NotificationPage{}, fmt.Errorf("resolve page token: %w", scanErr)
		}
		rows, err = s.sqlDB.QueryContext(ctx, `
SELECT id, recipient_user_id, message_type, title, payload_json, dedupe_key, created_at, updated_at, read_at
FROM notifications
WHERE recipient_user_id = ?
  AND (created_at < ? OR (created_at = ? AND id < ?))
ORDER BY created_at DESC, id DESC
LIMIT ?
`, recipientUserID, tokenCreatedAt, tokenCreatedAt, pageToken, limit)
	}
	if err != nil {
		return domain.NotificationPage{}, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	page := domain.NotificationPage{}
	for rows.Next() {
		notification, scanErr := scanNotification(rows.Scan)
		if scanErr != nil {
			return domain.NotificationPage{}, fmt.Errorf("scan notification: %w", scanErr)
		}
		page.Notifications = append(page.Notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return domain.NotificationPage{}, fmt.Errorf("iterate notifications: %w", err)
	}
	if len(page.Notifications) > pageSize {
		page.Notifications = page.Notifications[:pageSize]
		page.NextPageToken = page.Notifications[pageSize-1].ID
	}
	return page, nil
}

// CountUnreadNotificationsByRecipient returns unread inbox count for one recipient.
func (s *Store) CountUnreadNotificationsByRecipient(ctx context.Context, recipientUserID string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(1) FROM notifications WHERE recipient_user_id = ? AND read_at IS NULL
`, recipientUserID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead marks one recipient notification as read.
func (s *Store) MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (domain.Notification, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Notification{}, err
	}

	// Marking an already-read row again is a no-op; the reload below settles
	// whether the row exists at all.
	_, err := s.sqlDB.ExecContext(ctx, `
UPDATE notifications SET read_at = ?, updated_at = ?
WHERE recipient_user_id = ? AND id = ? AND read_at IS NULL
`, toMillis(readAt), toMillis(readAt), recipientUserID, notificationID)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("mark notification read: %w", err)
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, recipient_user_id, message_type, title, payload_json, dedupe_key, created_at, updated_at, read_at
FROM notifications
WHERE recipient_user_id = ? AND id = ?
`, recipientUserID, notificationID)
	notification, err := scanNotification(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Notification{}, domain.ErrNotFound
		}
		return domain.Notification{}, fmt.Errorf("reload notification: %w", err)
	}
	return notification, nil
}

func scanNotification(scan func(dest ...any) error) (domain.Notification, error) {
	var (
		notification domain.Notification
		messageType  string
		createdAt    int64
		updatedAt    int64
		readAt       sql.NullInt64
	)
	err := scan(
		&notification.ID,
		&notification.RecipientUserID,
		&messageType,
		&notification.Title,
		&notification.PayloadJSON,
		&notification.DedupeKey,
		&createdAt,
		&updatedAt,
		&readAt,
	)
	if err != nil {
		return domain.Notification{}, err
	}
	notification.MessageType = domain.MessageType(messageType)
	notification.CreatedAt = fromMillis(createdAt)
	notification.UpdatedAt = fromMillis(updatedAt)
	if readAt.Valid {
		at := fromMillis(readAt.Int64)
		notification.ReadAt = &at
	}
	return notification, nil
}
