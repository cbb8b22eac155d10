// Package notify delivers in-app messages to users. The store sink is the
// record of truth; other sinks relay the same message to outside listeners.
package notify

import (
	"context"
	stderrors "errors"

	"github.com/electvote/electvote/internal/clock"
	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/repository"
	"github.com/electvote/electvote/internal/timewindow"
)

// Sink receives a message addressed to a user
type Sink interface {
	Notify(ctx context.Context, userID int64, message string) error
}

// Store writes notifications to the notifications table
type Store struct {
	repo  repository.NotificationRepository
	clock clock.Clock
}

// NewStore creates a store-backed sink
func NewStore(repo repository.NotificationRepository, clk clock.Clock) *Store {
	return &Store{repo: repo, clock: clk}
}

// Notify stores an unread notification for the user
func (s *Store) Notify(ctx context.Context, userID int64, message string) error {
	_, err := s.repo.CreateNotification(ctx, &models.Notification{
		UserID:    userID,
		Message:   message,
		CreatedAt: timewindow.FormatInstant(s.clock.Now()),
	})
	return err
}

// Fanout delivers to every sink in order. All sinks are attempted; the
// failures are joined.
type Fanout []Sink

// Notify implements Sink
func (f Fanout) Notify(ctx context.Context, userID int64, message string) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, userID, message); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
