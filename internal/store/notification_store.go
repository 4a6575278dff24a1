package store

import (
	"context"
	"fmt"
	"log"

	"taskhive/internal/model"
	"taskhive/internal/realtime"
	"taskhive/internal/repository"
)

// notificationPage is how many notifications Fetch loads.
const notificationPage = 50

// NotificationStore mirrors the current identity's notifications.
type NotificationStore struct {
	notes   *Collection[model.Notification]
	backend NotificationBackend
	feed    Feed
	ids     Identity
	local   LocalNotifier

	loading loading
	subs    subscriptions
}

func NewNotificationStore(backend NotificationBackend, feed Feed, ids Identity, local LocalNotifier) *NotificationStore {
	return &NotificationStore{
		notes:   NewCollection[model.Notification](),
		backend: backend,
		feed:    feed,
		ids:     ids,
		local:   local,
	}
}

func (s *NotificationStore) Fetch(ctx context.Context) error {
	defer s.loading.begin()()
	id, err := s.ids.Identity()
	if err != nil {
		return err
	}
	since := s.notes.Mark()
	rows, err := s.backend.ListForUser(ctx, id.UserID, notificationPage)
	if err != nil {
		return fmt.Errorf("fetch notifications: %w", err)
	}
	s.notes.Apply(Event[model.Notification]{Kind: Reset, Rows: rows, Since: since})
	return nil
}

func (s *NotificationStore) List() []model.Notification { return s.notes.List() }

func (s *NotificationStore) Loading() bool { return s.loading.active() }

func (s *NotificationStore) Watch(fn func([]model.Notification)) (unwatch func()) {
	return s.notes.Watch(fn)
}

func (s *NotificationStore) UnreadCount() int {
	n := 0
	for _, note := range s.notes.List() {
		if !note.Read {
			n++
		}
	}
	return n
}

func (s *NotificationStore) MarkRead(ctx context.Context, notificationID string) error {
	if _, err := s.ids.Identity(); err != nil {
		return err
	}
	updated, err := s.backend.MarkRead(ctx, notificationID)
	if repository.IsNotFound(err) {
		return fmt.Errorf("mark notification read: %w", ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	s.notes.Apply(Event[model.Notification]{Kind: ConfirmedUpdate, Row: updated})
	return nil
}

// MarkAllRead marks every notification read and returns how many changed.
func (s *NotificationStore) MarkAllRead(ctx context.Context) (int, error) {
	id, err := s.ids.Identity()
	if err != nil {
		return 0, err
	}
	n, err := s.backend.MarkAllRead(ctx, id.UserID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	for _, note := range s.notes.List() {
		if note.Read {
			continue
		}
		note.Read = true
		s.notes.Apply(Event[model.Notification]{Kind: ConfirmedUpdate, Row: note})
	}
	return n, nil
}

// Subscribe follows the caller's notifications and raises a local
// notification for every new one.
func (s *NotificationStore) Subscribe() {
	s.subs.open(func() []func() {
		return []func(){s.feed.Subscribe(repository.TableNotifications, s.addressed, s.onChange)}
	})
}

func (s *NotificationStore) Unsubscribe() { s.subs.stop() }

func (s *NotificationStore) Close() {
	s.subs.stop()
	s.notes.Clear()
}

func (s *NotificationStore) addressed(ch realtime.Change) bool {
	row, ok := ch.New.(model.Notification)
	if !ok {
		row, ok = ch.Old.(model.Notification)
	}
	return ok && row.RecipientID != "" && row.RecipientID == currentUser(s.ids)
}

func (s *NotificationStore) onChange(ch realtime.Change) {
	ev, ok := feedEvent[model.Notification](ch)
	if !ok {
		return
	}
	if !s.notes.Apply(ev) || ev.Kind != FeedInsert || s.local == nil {
		return
	}
	if err := s.local.Notify(context.Background(), ev.Row.Title(), ev.Row.Message); err != nil {
		log.Printf("notifications: local notify: %v", err)
	}
}
