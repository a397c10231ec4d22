// Package sqlite provides SQLite-backed persistence for the scheduling core.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/meetgrid/meetgrid/internal/platform/storage/sqlitemigrate"
	"github.com/meetgrid/meetgrid/internal/scheduling/domain"
	"github.com/meetgrid/meetgrid/internal/scheduling/storage"
	"github.com/meetgrid/meetgrid/internal/scheduling/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store implements scheduling persistence over a single SQLite file, so
// directory, grouping, and access state share transaction and visibility
// boundaries.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a scheduling SQLite store at the provided path and applies
// bundled migrations.
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

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
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

// placeholders renders "?, ?, ?" for an IN (...) clause of n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for idx, value := range values {
		out[idx] = value
	}
	return out
}

// PutUser persists one identity record, updating email and name on conflict.
func (s *Store) PutUser(ctx context.Context, u domain.User) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" {
		return fmt.Errorf("user email is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (id, email, display_name, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    email = excluded.email,
    display_name = excluded.display_name,
    updated_at = excluded.updated_at
`, u.ID, email, strings.TrimSpace(u.Name), toMillis(u.CreatedAt), toMillis(u.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser loads one identity record by id.
func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	if err := s.ready(ctx); err != nil {
		return domain.User{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, email, display_name, created_at, updated_at
FROM users
WHERE id = ?
`, userID)
	return scanUser(row)
}

// GetUsersByEmails resolves many emails in one query, keyed by lowercased email.
func (s *Store) GetUsersByEmails(ctx context.Context, emails []string) (map[string]domain.User, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	normalized := make([]string, 0, len(emails))
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			normalized = append(normalized, email)
		}
	}
	if len(normalized) == 0 {
		return map[string]domain.User{}, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, email, display_name, created_at, updated_at
FROM users
WHERE email IN (`+placeholders(len(normalized))+`)
`, toAnySlice(normalized)...)
	if err != nil {
		return nil, fmt.Errorf("query users by emails: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.User, len(normalized))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[user.Email] = user
	}
	return out, rows.Err()
}

// GetUsersByIDs loads many users in one query, keyed by id.
func (s *Store) GetUsersByIDs(ctx context.Context, userIDs []string) (map[string]domain.User, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return map[string]domain.User{}, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, email, display_name, created_at, updated_at
FROM users
WHERE id IN (`+placeholders(len(userIDs))+`)
`, toAnySlice(userIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query users by ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.User, len(userIDs))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[user.ID] = user
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(scanner rowScanner) (domain.User, error) {
	var (
		user      domain.User
		createdAt int64
		updatedAt int64
	)
	err := scanner.Scan(&user.ID, &user.Email, &user.Name, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, storage.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return user, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "foreign key constraint failed")
}
