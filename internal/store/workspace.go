package store

import (
	"context"
	"fmt"
	"log"
	"sync"

	"gorm.io/gorm"

	"taskhive/internal/repository"
	"taskhive/internal/session"
)

// Backends groups the persistence collaborators of every store.
type Backends struct {
	Tasks         TaskBackend
	Habits        HabitBackend
	Completions   CompletionBackend
	Organizations OrganizationBackend
	Members       MemberBackend
	Notifications NotificationBackend
}

// RepositoryBackends builds Backends over the gorm repositories; every write
// is published to feed.
func RepositoryBackends(db *gorm.DB, feed repository.Publisher) Backends {
	return Backends{
		Tasks:         repository.NewTaskRepository(db, feed),
		Habits:        repository.NewHabitRepository(db, feed),
		Completions:   repository.NewCompletionRepository(db, feed),
		Organizations: repository.NewOrganizationRepository(db, feed),
		Members:       repository.NewMemberRepository(db, feed),
		Notifications: repository.NewNotificationRepository(db, feed),
	}
}

// Workspace owns the stores of one signed-in identity.
type Workspace struct {
	Tasks         *TaskStore
	Habits        *HabitStore
	Organizations *OrganizationStore
	Notifications *NotificationStore
}

func NewWorkspace(b Backends, feed Feed, bus EventPublisher, ids Identity, local LocalNotifier) *Workspace {
	orgs := NewOrganizationStore(b.Organizations, b.Members, feed, bus, ids)
	return &Workspace{
		Tasks:         NewTaskStore(b.Tasks, feed, bus, ids, orgs),
		Habits:        NewHabitStore(b.Habits, b.Completions, feed, bus, ids),
		Organizations: orgs,
		Notifications: NewNotificationStore(b.Notifications, feed, ids, local),
	}
}

// Open fetches every store and subscribes to the change feed. Organizations
// load first because the task feed filter consults memberships.
func (w *Workspace) Open(ctx context.Context) error {
	w.Organizations.Subscribe()
	if err := w.Organizations.Fetch(ctx); err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}
	w.Tasks.Subscribe()
	w.Habits.Subscribe()
	w.Notifications.Subscribe()
	for _, fetch := range []func(context.Context) error{
		w.Tasks.Fetch,
		w.Habits.Fetch,
		w.Notifications.Fetch,
	} {
		if err := fetch(ctx); err != nil {
			return fmt.Errorf("open workspace: %w", err)
		}
	}
	return nil
}

// Close releases every subscription and drops local state.
func (w *Workspace) Close() {
	w.Tasks.Close()
	w.Habits.Close()
	w.Organizations.Close()
	w.Notifications.Close()
}

// Bind keeps a Workspace in step with the gate: a new one is opened on
// sign-in and the old one closed on sign-out or identity change. onChange
// receives the live workspace, or nil when signed out.
func Bind(ctx context.Context, gate *session.Gate, open func() *Workspace, onChange func(*Workspace)) (unbind func()) {
	var mu sync.Mutex
	var current *Workspace

	swap := func(s *session.Session) {
		mu.Lock()
		defer mu.Unlock()
		if current != nil {
			current.Close()
			current = nil
		}
		if s != nil {
			ws := open()
			if err := ws.Open(ctx); err != nil {
				log.Printf("workspace: %v", err)
			}
			current = ws
		}
		if onChange != nil {
			onChange(current)
		}
	}

	unsubscribe := gate.OnChange(swap)
	if gate.Session() != nil {
		swap(gate.Session())
	}
	return func() {
		unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		if current != nil {
			current.Close()
			current = nil
		}
	}
}
