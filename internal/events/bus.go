// Package events is the domain-event outbox. Stores publish an Event after a
// mutation succeeds; handlers run on the bus worker, so a failing handler can
// never affect the mutation that produced the event.
package events

import (
	"context"
	"log"
	"sync"
	"time"

	"taskhive/internal/model"
)

type Kind string

const (
	TaskCreated    Kind = "task.created"
	TaskUpdated    Kind = "task.updated"
	TaskDeleted    Kind = "task.deleted"
	HabitCompleted Kind = "habit.completed"
	MemberJoined   Kind = "organization.member_joined"
	MemberRemoved  Kind = "organization.member_removed"
)

// Event describes one committed mutation. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind    Kind
	ActorID string
	At      time.Time

	Task     *model.Task
	Previous *model.Task

	Habit      *model.Habit
	Completion *model.HabitCompletion

	Organization *model.Organization
	Member       *model.OrganizationMember
}

// Handler processes one event. Returned errors are logged.
type Handler func(ctx context.Context, ev Event) error

const defaultQueueSize = 256

// Bus runs handlers for published events on a single worker goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	closed   bool

	queue   chan Event
	pending int
	idle    *sync.Cond
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		handlers: make(map[Kind][]Handler),
		queue:    make(chan Event, defaultQueueSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	b.idle = sync.NewCond(&sync.Mutex{})
	go b.run()
	return b
}

// Subscribe adds h for events of kind.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	b.handlers[kind] = append(b.handlers[kind], h)
	b.mu.Unlock()
}

// Publish enqueues ev without blocking. When the queue is full or the bus is
// closed the event is dropped and logged.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		log.Printf("[warn] events: bus closed, dropping %s", ev.Kind)
		return
	}
	b.track(1)
	select {
	case b.queue <- ev:
	default:
		b.track(-1)
		log.Printf("[warn] events: queue full, dropping %s", ev.Kind)
	}
}

// Wait blocks until every event published so far has been handled.
func (b *Bus) Wait() {
	b.idle.L.Lock()
	for b.pending > 0 {
		b.idle.Wait()
	}
	b.idle.L.Unlock()
}

func (b *Bus) track(delta int) {
	b.idle.L.Lock()
	b.pending += delta
	if b.pending == 0 {
		b.idle.Broadcast()
	}
	b.idle.L.Unlock()
}

// Close drains the queue and stops the worker.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()
	<-b.done
	b.cancel()
}

func (b *Bus) run() {
	defer close(b.done)
	for ev := range b.queue {
		b.dispatch(ev)
		b.track(-1)
	}
}

func (b *Bus) dispatch(ev Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[ev.Kind]...)
	b.mu.RUnlock()
	for _, h := range handlers {
		b.call(h, ev)
	}
}

func (b *Bus) call(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("events: %s handler panicked: %v", ev.Kind, r)
		}
	}()
	if err := h(b.ctx, ev); err != nil {
		log.Printf("events: %s handler: %v", ev.Kind, err)
	}
}
