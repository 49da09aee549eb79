// README: Best-effort notification dispatch (row insert + FCM push).
package notification

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"roadaid/internal/types"
)

// PushSender delivers a notification to the user's device.
type PushSender interface {
	Send(ctx context.Context, n Notification) error
}

// Service persists notification records and pushes them to the user's device.
// Dispatch is best-effort: failures are logged and never surfaced to the
// triggering operation. The one exception is the emergency escalation path,
// which writes its notification row through CreateIn inside its own
// transaction and only uses Push here.
type Service struct {
	store *Store
	push  PushSender
}

func NewService(store *Store, push PushSender) *Service {
	return &Service{store: store, push: push}
}

// Notify records and pushes a notification without blocking the caller's
// transaction on the outcome.
func (s *Service) Notify(ctx context.Context, n Notification) {
	if n.ID == "" {
		n.ID = types.NewID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if s.store != nil {
		if err := s.store.Create(ctx, &n); err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": n.UserID,
				"type":    n.Type,
			}).WithError(err).Warn("notification record failed")
		}
	}
	s.Push(ctx, n)
}

// Push delivers the notification to the user's device, if FCM is configured.
// Delivery runs in the background, detached from the caller's context, so the
// triggering operation never waits on an FCM round trip.
func (s *Service) Push(ctx context.Context, n Notification) {
	if s.push == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := s.push.Send(ctx, n); err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": n.UserID,
				"type":    n.Type,
			}).WithError(err).Warn("notification push failed")
		}
	}()
}
