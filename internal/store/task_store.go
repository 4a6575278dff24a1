package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"taskhive/internal/derive"
	"taskhive/internal/events"
	"taskhive/internal/model"
	"taskhive/internal/realtime"
	"taskhive/internal/repository"
)

// Membership answers whether the current identity belongs to an
// organization.
type Membership interface {
	IsMember(organizationID string) bool
}

// TaskStore mirrors the tasks visible to the current identity.
type TaskStore struct {
	tasks   *Collection[model.Task]
	backend TaskBackend
	feed    Feed
	events  EventPublisher
	ids     Identity
	members Membership

	loading loading
	subs    subscriptions
}

func NewTaskStore(backend TaskBackend, feed Feed, bus EventPublisher, ids Identity, members Membership) *TaskStore {
	if bus == nil {
		bus = nopPublisher{}
	}
	return &TaskStore{
		tasks:   NewCollection[model.Task](),
		backend: backend,
		feed:    feed,
		events:  bus,
		ids:     ids,
		members: members,
	}
}

// Fetch resyncs the collection with the remote state. Rows confirmed while
// the fetch was in flight are kept.
func (s *TaskStore) Fetch(ctx context.Context) error {
	defer s.loading.begin()()
	id, err := s.ids.Identity()
	if err != nil {
		return err
	}
	since := s.tasks.Mark()
	rows, err := s.backend.ListVisible(ctx, id.UserID)
	if err != nil {
		return fmt.Errorf("fetch tasks: %w", err)
	}
	s.tasks.Apply(Event[model.Task]{Kind: Reset, Rows: rows, Since: since})
	return nil
}

// List returns the tasks, newest first.
func (s *TaskStore) List() []model.Task { return s.tasks.List() }

func (s *TaskStore) Get(id string) (model.Task, bool) { return s.tasks.Get(id) }

func (s *TaskStore) Loading() bool { return s.loading.active() }

// Watch calls fn with the new task list after every change.
func (s *TaskStore) Watch(fn func([]model.Task)) (unwatch func()) { return s.tasks.Watch(fn) }

// DueToday returns the tasks due on now's calendar day.
func (s *TaskStore) DueToday(now time.Time) []model.Task {
	return derive.DueToday(s.tasks.List(), now)
}

// Create validates draft, inserts it for the current identity and prepends
// the returned row.
func (s *TaskStore) Create(ctx context.Context, draft model.TaskDraft) (model.Task, error) {
	if err := check(draft); err != nil {
		return model.Task{}, err
	}
	id, err := s.ids.Identity()
	if err != nil {
		return model.Task{}, err
	}
	row := draft.Row(id.UserID)
	created, err := s.backend.Insert(ctx, &row)
	if err != nil {
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}
	s.tasks.Apply(Event[model.Task]{Kind: ConfirmedInsert, Row: created})
	s.events.Publish(events.Event{Kind: events.TaskCreated, ActorID: id.UserID, Task: &created})
	return created, nil
}

// Update patches the task and replaces the local entry with the row the
// backend returned.
func (s *TaskStore) Update(ctx context.Context, taskID string, patch model.TaskPatch) (model.Task, error) {
	if err := check(patch); err != nil {
		return model.Task{}, err
	}
	id, err := s.ids.Identity()
	if err != nil {
		return model.Task{}, err
	}
	prev, err := s.lookup(ctx, taskID)
	if err != nil {
		return model.Task{}, err
	}
	updated, err := s.backend.Update(ctx, taskID, patch.Columns())
	if err != nil {
		return model.Task{}, fmt.Errorf("update task: %w", s.notFound(err))
	}
	s.tasks.Apply(Event[model.Task]{Kind: ConfirmedUpdate, Row: updated})
	s.events.Publish(events.Event{Kind: events.TaskUpdated, ActorID: id.UserID, Task: &updated, Previous: &prev})
	return updated, nil
}

// ToggleStatus flips completed to pending and anything else to completed.
func (s *TaskStore) ToggleStatus(ctx context.Context, taskID string) (model.Task, error) {
	if _, err := s.ids.Identity(); err != nil {
		return model.Task{}, err
	}
	current, err := s.lookup(ctx, taskID)
	if err != nil {
		return model.Task{}, err
	}
	next := model.StatusCompleted
	if current.Completed() {
		next = model.StatusPending
	}
	return s.Update(ctx, taskID, model.TaskPatch{Status: &next})
}

// Remove deletes the task. The local entry stays until the backend confirms;
// removing a task that is already gone succeeds.
func (s *TaskStore) Remove(ctx context.Context, taskID string) error {
	id, err := s.ids.Identity()
	if err != nil {
		return err
	}
	prev, known := s.tasks.Get(taskID)
	if err := s.backend.Delete(ctx, taskID); err != nil {
		return fmt.Errorf("remove task: %w", err)
	}
	s.tasks.Apply(Event[model.Task]{Kind: ConfirmedDelete, ID: taskID})
	if !known {
		prev = model.Task{ID: taskID}
	}
	s.events.Publish(events.Event{Kind: events.TaskDeleted, ActorID: id.UserID, Task: &prev})
	return nil
}

// Subscribe attaches the store to the tasks change feed. Calling it again
// while subscribed is a no-op.
func (s *TaskStore) Subscribe() {
	s.subs.open(func() []func() {
		return []func(){s.feed.Subscribe(repository.TableTasks, s.visible, s.onChange)}
	})
}

func (s *TaskStore) Unsubscribe() { s.subs.stop() }

// Close unsubscribes and drops local state.
func (s *TaskStore) Close() {
	s.subs.stop()
	s.tasks.Clear()
}

func (s *TaskStore) visible(ch realtime.Change) bool {
	userID := currentUser(s.ids)
	if userID == "" {
		return false
	}
	row, ok := ch.New.(model.Task)
	if !ok {
		row, ok = ch.Old.(model.Task)
	}
	if !ok {
		return false
	}
	if row.OwnerID == userID || row.AssignedTo() == userID {
		return true
	}
	if org := row.Organization(); org != "" && s.members != nil && s.members.IsMember(org) {
		return true
	}
	// a delete of a row we hold must always get through
	_, held := s.tasks.Get(row.ID)
	return held
}

func (s *TaskStore) onChange(ch realtime.Change) {
	ev, ok := feedEvent[model.Task](ch)
	if !ok {
		log.Printf("[warn] tasks: unexpected %s payload %T", ch.Type, ch.New)
		return
	}
	s.tasks.Apply(ev)
}

func (s *TaskStore) lookup(ctx context.Context, taskID string) (model.Task, error) {
	if task, ok := s.tasks.Get(taskID); ok {
		return task, nil
	}
	task, err := s.backend.Get(ctx, taskID)
	if err != nil {
		return model.Task{}, fmt.Errorf("get task: %w", s.notFound(err))
	}
	return task, nil
}

func (s *TaskStore) notFound(err error) error {
	if repository.IsNotFound(err) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
