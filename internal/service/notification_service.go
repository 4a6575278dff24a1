package service

import (
	"context"
	"fmt"
	"log"

	"taskhive/internal/model"
	"taskhive/internal/notify"
)

type NotificationWriter interface {
	Insert(ctx context.Context, n *model.Notification) (model.Notification, error)
}

// NotificationService persists notifications and pushes them to the
// recipient's devices.
type NotificationService struct {
	repo   NotificationWriter
	pusher notify.Pusher
}

// NewNotificationService returns a service that only persists when pusher is
// nil.
func NewNotificationService(repo NotificationWriter, pusher notify.Pusher) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher}
}

// Send inserts the notification. Push delivery is best-effort: its failure
// is logged and not returned.
func (s *NotificationService) Send(ctx context.Context, n model.Notification) error {
	saved, err := s.repo.Insert(ctx, &n)
	if err != nil {
		return fmt.Errorf("insert %s notification for %s: %w", n.Type, n.RecipientID, err)
	}
	if s.pusher == nil {
		return nil
	}
	if err := s.pusher.Push(ctx, saved.RecipientID, saved.Title(), saved.Message); err != nil {
		log.Printf("[warn] push %s to %s: %v", saved.Type, saved.RecipientID, err)
	}
	return nil
}
