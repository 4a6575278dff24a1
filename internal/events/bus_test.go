package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"taskhive/internal/model"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var got []string
	bus.Subscribe(TaskCreated, func(_ context.Context, ev Event) error {
		mu.Lock()
		got = append(got, ev.Task.Title)
		mu.Unlock()
		return nil
	})

	for _, title := range []string{"a", "b", "c"} {
		bus.Publish(Event{Kind: TaskCreated, Task: &model.Task{Title: title}})
	}
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("got %v", got)
	}
}

func TestBusIsolatesHandlerFailures(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	calls := 0
	bus.Subscribe(HabitCompleted, func(context.Context, Event) error {
		panic("boom")
	})
	bus.Subscribe(HabitCompleted, func(context.Context, Event) error {
		return errors.New("failed")
	})
	bus.Subscribe(HabitCompleted, func(context.Context, Event) error {
		calls++
		return nil
	})

	bus.Publish(Event{Kind: HabitCompleted})
	bus.Wait()
	if calls != 1 {
		t.Fatalf("later handler ran %d times, want 1", calls)
	}
}

func TestBusCloseDrainsAndDropsLatePublishes(t *testing.T) {
	bus := NewBus()
	handled := 0
	bus.Subscribe(TaskDeleted, func(context.Context, Event) error {
		handled++
		return nil
	})
	bus.Publish(Event{Kind: TaskDeleted})
	bus.Close()
	bus.Publish(Event{Kind: TaskDeleted})
	bus.Close()

	if handled != 1 {
		t.Fatalf("handled = %d, want 1", handled)
	}
}
