// Package service orchestrates the scheduling access-control use-cases:
// permission resolution, access queries, ownership guards, batch change
// application, and the fan-out of affected users to the notifier.
package service

import (
	"context"
	"time"

	"github.com/meetgrid/meetgrid/internal/platform/id"
	"github.com/meetgrid/meetgrid/internal/scheduling/storage"
)

// Subject types carried on notifier fan-out.
const (
	SubjectEvent      = "event"
	SubjectEventGroup = "event_group"
	SubjectUserGroup  = "user_group"
)

// NotifyInput describes one access mutation fan-out. Recipient filtering
// (actor exclusion, de-duplication) is the notifier's concern.
type NotifyInput struct {
	RecipientUserIDs []string
	Action           string
	SubjectType      string
	SubjectID        string
	SubjectTitle     string
	ActorUserID      string
}

// Notifier receives affected-user fan-out after successful access mutations.
// Delivery is best-effort; the service logs and moves on when it fails.
type Notifier interface {
	Notify(ctx context.Context, input NotifyInput) error
}

// Service implements the scheduling use-cases over one storage backend.
type Service struct {
	store    storage.Store
	notifier Notifier
	clock    func() time.Time
	newID    func() (string, error)
}

// New constructs the scheduling service. notifier may be nil to disable
// fan-out; clock and newID default to time.Now and the platform generator.
func New(store storage.Store, notifier Notifier, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store:    store,
		notifier: notifier,
		clock:    clock,
		newID:    newID,
	}
}

func (s *Service) nowUTC() time.Time {
	return s.clock().UTC()
}
