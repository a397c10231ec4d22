package service

import (
	"context"
	"strings"

	apperrors "github.com/meetgrid/meetgrid/internal/platform/errors"
)

// EmailCheck is the validation-gate verdict for one email address.
type EmailCheck struct {
	Email  string
	Exist  bool
	UserID string
	Name   string
}

// CheckExist batch-validates email addresses before they become permission
// entries. Every add-by-email flow goes through this gate first, so the
// permission resolver never has to surface resolution failures itself.
func (s *Service) CheckExist(ctx context.Context, emails []string) ([]EmailCheck, error) {
	trimmed := make([]string, 0, len(emails))
	for _, email := range emails {
		if value := strings.TrimSpace(email); value != "" {
			trimmed = append(trimmed, value)
		}
	}

	users, err := s.store.GetUsersByEmails(ctx, trimmed)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "resolve emails", err)
	}

	checks := make([]EmailCheck, 0, len(trimmed))
	for _, email := range trimmed {
		check := EmailCheck{Email: email}
		if user, ok := users[strings.ToLower(email)]; ok {
			check.Exist = true
			check.UserID = user.ID
			check.Name = user.Name
		}
		checks = append(checks, check)
	}
	return checks, nil
}
