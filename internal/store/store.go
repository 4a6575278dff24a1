// Package store mirrors the remote tables of one signed-in identity. Each
// store keeps a Collection that is fed both by the results of its own calls
// and by the change feed; the Collection merge rules make the two paths
// commutative.
package store

import (
	"context"
	"sync"

	"taskhive/internal/events"
	"taskhive/internal/model"
	"taskhive/internal/realtime"
	"taskhive/internal/session"
)

// Feed is the change-feed collaborator.
type Feed interface {
	Subscribe(table string, filter realtime.Filter, fn func(realtime.Change)) (unsubscribe func())
}

// EventPublisher receives domain events after successful mutations.
type EventPublisher interface {
	Publish(events.Event)
}

// Identity is read before every remote call.
type Identity interface {
	Identity() (session.Identity, error)
}

// LocalNotifier shows a notification on the current device. Delivery is
// best-effort.
type LocalNotifier interface {
	Notify(ctx context.Context, title, body string) error
}

type TaskBackend interface {
	ListVisible(ctx context.Context, userID string) ([]model.Task, error)
	Get(ctx context.Context, id string) (model.Task, error)
	Insert(ctx context.Context, task *model.Task) (model.Task, error)
	Update(ctx context.Context, id string, cols map[string]any) (model.Task, error)
	Delete(ctx context.Context, id string) error
}

type HabitBackend interface {
	ListByUser(ctx context.Context, userID string) ([]model.Habit, error)
	Get(ctx context.Context, id string) (model.Habit, error)
	Insert(ctx context.Context, habit *model.Habit) (model.Habit, error)
	Update(ctx context.Context, id string, cols map[string]any) (model.Habit, error)
	Delete(ctx context.Context, id string) error
}

type CompletionBackend interface {
	ListByUser(ctx context.Context, userID string) ([]model.HabitCompletion, error)
	Insert(ctx context.Context, completion *model.HabitCompletion) (model.HabitCompletion, error)
}

type OrganizationBackend interface {
	ListForMember(ctx context.Context, userID string) ([]model.Organization, error)
	Get(ctx context.Context, id string) (model.Organization, error)
	FindByInviteCode(ctx context.Context, code string) (model.Organization, error)
	Insert(ctx context.Context, org *model.Organization) (model.Organization, error)
	Update(ctx context.Context, id string, cols map[string]any) (model.Organization, error)
	Delete(ctx context.Context, id string) error
}

type MemberBackend interface {
	List(ctx context.Context, organizationID string) ([]model.OrganizationMember, error)
	Find(ctx context.Context, organizationID, userID string) (model.OrganizationMember, error)
	Add(ctx context.Context, organizationID, userID string, role model.MemberRole) (model.OrganizationMember, error)
	Remove(ctx context.Context, organizationID, userID string) (model.OrganizationMember, bool, error)
}

type NotificationBackend interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) (model.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

// loading is a counter of in-flight fetches.
type loading struct {
	mu sync.Mutex
	n  int
}

// begin marks a fetch in flight; the returned func must run on every path.
func (l *loading) begin() (end func()) {
	l.mu.Lock()
	l.n++
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		l.n--
		l.mu.Unlock()
	}
}

func (l *loading) active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n > 0
}

// subscriptions holds the feed subscriptions of one store.
type subscriptions struct {
	mu     sync.Mutex
	cancel []func()
}

func (s *subscriptions) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancel) > 0
}

// open runs start unless the store is already subscribed.
func (s *subscriptions) open(start func() []func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cancel) > 0 {
		return
	}
	s.cancel = start()
}

func (s *subscriptions) stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	for _, fn := range cancel {
		fn()
	}
}

// currentUser re-reads the identity; feed filters use it so a stale
// subscription never admits rows for a different user.
func currentUser(ids Identity) string {
	id, err := ids.Identity()
	if err != nil {
		return ""
	}
	return id.UserID
}
