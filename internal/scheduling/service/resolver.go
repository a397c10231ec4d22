package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/meetgrid/meetgrid/internal/scheduling/domain"
)

// Resolution is the outcome of turning permission entries into grant rows.
// Unresolved lists the identifiers that matched no user or user group, so
// callers that skip the email validation gate still get a signal instead of
// silent data loss.
type Resolution struct {
	Grants     []domain.AccessGrant
	Unresolved []string
}

// ResolveForEvent converts permission entries into per-user grant rows for an
// event. User-group entries are expanded into one row per member at grant
// time, keeping the group id as provenance.
func (s *Service) ResolveForEvent(ctx context.Context, eventID string, entries []domain.PermissionEntry) (Resolution, error) {
	emails, groups := partitionEntries(entries)

	resolution := Resolution{}
	users, err := s.resolveEmails(ctx, emails)
	if err != nil {
		return Resolution{}, err
	}
	for _, entry := range emails {
		user, ok := users[strings.ToLower(strings.TrimSpace(entry.Identifier))]
		if !ok {
			resolution.Unresolved = append(resolution.Unresolved, entry.Identifier)
			continue
		}
		resolution.Grants = append(resolution.Grants, domain.AccessGrant{
			TargetID: eventID,
			UserID:   user.ID,
			Role:     entry.Role,
		})
	}

	if len(groups) > 0 {
		groupIDs := make([]string, 0, len(groups))
		for _, entry := range groups {
			groupIDs = append(groupIDs, entry.Identifier)
		}
		members, err := s.store.ListMembersByGroupIDs(ctx, groupIDs)
		if err != nil {
			return Resolution{}, fmt.Errorf("expand user groups: %w", err)
		}
		known, err := s.store.GetUserGroupsByIDs(ctx, groupIDs)
		if err != nil {
			return Resolution{}, fmt.Errorf("resolve user groups: %w", err)
		}
		for _, entry := range groups {
			if _, ok := known[entry.Identifier]; !ok {
				resolution.Unresolved = append(resolution.Unresolved, entry.Identifier)
				continue
			}
			for _, memberID := range members[entry.Identifier] {
				resolution.Grants = append(resolution.Grants, domain.AccessGrant{
					TargetID:    eventID,
					UserID:      memberID,
					UserGroupID: entry.Identifier,
					Role:        entry.Role,
				})
			}
		}
	}

	return resolution, nil
}

// ResolveForEventGroup converts permission entries into grant rows for an
// event group. User-group entries stay as group references; membership is
// resolved lazily at read time so later membership changes take effect
// without re-granting.
func (s *Service) ResolveForEventGroup(ctx context.Context, eventGroupID string, entries []domain.PermissionEntry) (Resolution, error) {
	emails, groups := partitionEntries(entries)

	resolution := Resolution{}
	users, err := s.resolveEmails(ctx, emails)
	if err != nil {
		return Resolution{}, err
	}
	for _, entry := range emails {
		user, ok := users[strings.ToLower(strings.TrimSpace(entry.Identifier))]
		if !ok {
			resolution.Unresolved = append(resolution.Unresolved, entry.Identifier)
			continue
		}
		resolution.Grants = append(resolution.Grants, domain.AccessGrant{
			TargetID: eventGroupID,
			UserID:   user.ID,
			Role:     entry.Role,
		})
	}

	if len(groups) > 0 {
		groupIDs := make([]string, 0, len(groups))
		for _, entry := range groups {
			groupIDs = append(groupIDs, entry.Identifier)
		}
		known, err := s.store.GetUserGroupsByIDs(ctx, groupIDs)
		if err != nil {
			return Resolution{}, fmt.Errorf("resolve user groups: %w", err)
		}
		for _, entry := range groups {
			if _, ok := known[entry.Identifier]; !ok {
				resolution.Unresolved = append(resolution.Unresolved, entry.Identifier)
				continue
			}
			resolution.Grants = append(resolution.Grants, domain.AccessGrant{
				TargetID:    eventGroupID,
				UserGroupID: entry.Identifier,
				Role:        entry.Role,
			})
		}
	}

	return resolution, nil
}

func partitionEntries(entries []domain.PermissionEntry) (emails []domain.PermissionEntry, groups []domain.PermissionEntry) {
	for _, entry := range entries {
		switch entry.Type {
		case domain.GranteeEmail:
			emails = append(emails, entry)
		case domain.GranteeUserGroup:
			groups = append(groups, entry)
		}
	}
	return emails, groups
}

func (s *Service) resolveEmails(ctx context.Context, entries []domain.PermissionEntry) (map[string]domain.User, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	emails := make([]string, 0, len(entries))
	for _, entry := range entries {
		emails = append(emails, entry.Identifier)
	}
	users, err := s.store.GetUsersByEmails(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("resolve emails: %w", err)
	}
	return users, nil
}
