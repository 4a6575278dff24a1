package store

import (
	"context"
	"fmt"
	"time"

	"taskhive/internal/derive"
	"taskhive/internal/events"
	"taskhive/internal/model"
	"taskhive/internal/realtime"
	"taskhive/internal/repository"
)

// HabitStore mirrors the current identity's habits and their completions.
type HabitStore struct {
	habits      *Collection[model.Habit]
	completions *Collection[model.HabitCompletion]
	backend     HabitBackend
	done        CompletionBackend
	feed        Feed
	events      EventPublisher
	ids         Identity
	now         func() time.Time

	loading loading
	subs    subscriptions
}

func NewHabitStore(backend HabitBackend, completions CompletionBackend, feed Feed, bus EventPublisher, ids Identity) *HabitStore {
	if bus == nil {
		bus = nopPublisher{}
	}
	return &HabitStore{
		habits:      NewCollection[model.Habit](),
		completions: NewCollection[model.HabitCompletion](),
		backend:     backend,
		done:        completions,
		feed:        feed,
		events:      bus,
		ids:         ids,
		now:         time.Now,
	}
}

// Fetch loads habits and completions.
func (s *HabitStore) Fetch(ctx context.Context) error {
	defer s.loading.begin()()
	id, err := s.ids.Identity()
	if err != nil {
		return err
	}
	habitsSince, doneSince := s.habits.Mark(), s.completions.Mark()
	habits, err := s.backend.ListByUser(ctx, id.UserID)
	if err != nil {
		return fmt.Errorf("fetch habits: %w", err)
	}
	completions, err := s.done.ListByUser(ctx, id.UserID)
	if err != nil {
		return fmt.Errorf("fetch completions: %w", err)
	}
	s.habits.Apply(Event[model.Habit]{Kind: Reset, Rows: habits, Since: habitsSince})
	s.completions.Apply(Event[model.HabitCompletion]{Kind: Reset, Rows: completions, Since: doneSince})
	return nil
}

func (s *HabitStore) List() []model.Habit { return s.habits.List() }

func (s *HabitStore) Get(id string) (model.Habit, bool) { return s.habits.Get(id) }

func (s *HabitStore) Completions() []model.HabitCompletion { return s.completions.List() }

// CompletionsFor returns the completions of one habit, newest first.
func (s *HabitStore) CompletionsFor(habitID string) []model.HabitCompletion {
	var out []model.HabitCompletion
	for _, c := range s.completions.List() {
		if c.HabitID == habitID {
			out = append(out, c)
		}
	}
	return out
}

func (s *HabitStore) Loading() bool { return s.loading.active() }

func (s *HabitStore) Watch(fn func([]model.Habit)) (unwatch func()) { return s.habits.Watch(fn) }

func (s *HabitStore) WatchCompletions(fn func([]model.HabitCompletion)) (unwatch func()) {
	return s.completions.Watch(fn)
}

// Streak is the habit's current streak as of now.
func (s *HabitStore) Streak(habitID string, now time.Time) int {
	return derive.Streak(s.CompletionsFor(habitID), now)
}

func (s *HabitStore) CompletedToday(habitID string, now time.Time) bool {
	return derive.CompletedOn(s.CompletionsFor(habitID), now)
}

func (s *HabitStore) Create(ctx context.Context, draft model.HabitDraft) (model.Habit, error) {
	if err := check(draft); err != nil {
		return model.Habit{}, err
	}
	id, err := s.ids.Identity()
	if err != nil {
		return model.Habit{}, err
	}
	row := draft.Row(id.UserID)
	created, err := s.backend.Insert(ctx, &row)
	if err != nil {
		return model.Habit{}, fmt.Errorf("create habit: %w", err)
	}
	s.habits.Apply(Event[model.Habit]{Kind: ConfirmedInsert, Row: created})
	return created, nil
}

func (s *HabitStore) Update(ctx context.Context, habitID string, patch model.HabitPatch) (model.Habit, error) {
	if err := check(patch); err != nil {
		return model.Habit{}, err
	}
	if _, err := s.ids.Identity(); err != nil {
		return model.Habit{}, err
	}
	updated, err := s.backend.Update(ctx, habitID, patch.Columns())
	if err != nil {
		if repository.IsNotFound(err) {
			return model.Habit{}, fmt.Errorf("update habit: %w: %v", ErrNotFound, err)
		}
		return model.Habit{}, fmt.Errorf("update habit: %w", err)
	}
	s.habits.Apply(Event[model.Habit]{Kind: ConfirmedUpdate, Row: updated})
	return updated, nil
}

// Remove deletes the habit and its completions. Already-deleted habits are
// not an error.
func (s *HabitStore) Remove(ctx context.Context, habitID string) error {
	if _, err := s.ids.Identity(); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, habitID); err != nil {
		return fmt.Errorf("remove habit: %w", err)
	}
	s.habits.Apply(Event[model.Habit]{Kind: ConfirmedDelete, ID: habitID})
	for _, c := range s.CompletionsFor(habitID) {
		s.completions.Apply(Event[model.HabitCompletion]{Kind: ConfirmedDelete, ID: c.ID})
	}
	return nil
}

// Complete records a completion of the habit now.
func (s *HabitStore) Complete(ctx context.Context, habitID, note string) (model.HabitCompletion, error) {
	id, err := s.ids.Identity()
	if err != nil {
		return model.HabitCompletion{}, err
	}
	habit, ok := s.habits.Get(habitID)
	if !ok {
		habit, err = s.backend.Get(ctx, habitID)
		if repository.IsNotFound(err) {
			return model.HabitCompletion{}, fmt.Errorf("complete habit: %w", ErrNotFound)
		}
		if err != nil {
			return model.HabitCompletion{}, fmt.Errorf("complete habit: %w", err)
		}
	}
	row := model.HabitCompletion{
		HabitID:     habitID,
		OwnerID:     id.UserID,
		CompletedAt: s.now(),
		Note:        note,
	}
	created, err := s.done.Insert(ctx, &row)
	if err != nil {
		return model.HabitCompletion{}, fmt.Errorf("complete habit: %w", err)
	}
	s.completions.Apply(Event[model.HabitCompletion]{Kind: ConfirmedInsert, Row: created})
	s.events.Publish(events.Event{Kind: events.HabitCompleted, ActorID: id.UserID, Habit: &habit, Completion: &created})
	return created, nil
}

// Subscribe attaches to the habits and completions feeds.
func (s *HabitStore) Subscribe() {
	s.subs.open(func() []func() {
		return []func(){
			s.feed.Subscribe(repository.TableHabits, s.ownedHabit, func(ch realtime.Change) {
				if ev, ok := feedEvent[model.Habit](ch); ok {
					s.habits.Apply(ev)
				}
			}),
			s.feed.Subscribe(repository.TableCompletions, s.ownedCompletion, func(ch realtime.Change) {
				if ev, ok := feedEvent[model.HabitCompletion](ch); ok {
					s.completions.Apply(ev)
				}
			}),
		}
	})
}

func (s *HabitStore) Unsubscribe() { s.subs.stop() }

func (s *HabitStore) Close() {
	s.subs.stop()
	s.habits.Clear()
	s.completions.Clear()
}

func (s *HabitStore) ownedHabit(ch realtime.Change) bool {
	row, ok := ch.New.(model.Habit)
	if !ok {
		row, ok = ch.Old.(model.Habit)
	}
	return ok && row.OwnerID != "" && row.OwnerID == currentUser(s.ids)
}

func (s *HabitStore) ownedCompletion(ch realtime.Change) bool {
	row, ok := ch.New.(model.HabitCompletion)
	if !ok {
		row, ok = ch.Old.(model.HabitCompletion)
	}
	return ok && row.OwnerID != "" && row.OwnerID == currentUser(s.ids)
}
