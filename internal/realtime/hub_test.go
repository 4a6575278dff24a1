package realtime

import (
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu  sync.Mutex
	got []Change
}

func (c *collector) add(ch Change) {
	c.mu.Lock()
	c.got = append(c.got, ch)
	c.mu.Unlock()
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversInOrderPerTable(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	var tasks, habits collector
	hub.Subscribe("tasks", nil, tasks.add)
	hub.Subscribe("habits", nil, habits.add)

	for i := 0; i < 50; i++ {
		hub.Publish(Change{Table: "tasks", Type: Insert, New: i})
	}
	hub.Publish(Change{Table: "habits", Type: Delete, Old: "h1"})

	waitFor(t, func() bool { return tasks.len() == 50 && habits.len() == 1 })
	tasks.mu.Lock()
	defer tasks.mu.Unlock()
	for i, ch := range tasks.got {
		if ch.New.(int) != i {
			t.Fatalf("event %d carried %v", i, ch.New)
		}
	}
}

func TestHubFilter(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	var mine collector
	hub.Subscribe("notifications", func(ch Change) bool { return ch.New == "u1" }, mine.add)
	hub.Publish(Change{Table: "notifications", Type: Insert, New: "u2"})
	hub.Publish(Change{Table: "notifications", Type: Insert, New: "u1"})

	waitFor(t, func() bool { return mine.len() == 1 })
	time.Sleep(20 * time.Millisecond)
	if mine.len() != 1 {
		t.Fatalf("filtered subscriber got %d events", mine.len())
	}
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	var c collector
	unsubscribe := hub.Subscribe("tasks", nil, c.add)
	if hub.Subscribers("tasks") != 1 {
		t.Fatalf("subscribers = %d", hub.Subscribers("tasks"))
	}
	unsubscribe()
	unsubscribe()
	if hub.Subscribers("tasks") != 0 {
		t.Fatalf("subscribers after unsubscribe = %d", hub.Subscribers("tasks"))
	}

	hub.Publish(Change{Table: "tasks", Type: Insert, New: 1})
	time.Sleep(20 * time.Millisecond)
	if c.len() != 0 {
		t.Fatal("delivered after unsubscribe")
	}
}

func TestHubClosedRejectsSubscribers(t *testing.T) {
	hub := NewHub()
	hub.Close()
	unsubscribe := hub.Subscribe("tasks", nil, func(Change) {})
	unsubscribe()
	if hub.Subscribers("tasks") != 0 {
		t.Fatal("closed hub accepted a subscriber")
	}
}
