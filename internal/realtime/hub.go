// Package realtime is the in-process change feed. Every committed write to a
// table is published as a Change; subscribers receive the changes of one
// table that pass their filter, in publish order.
package realtime

import (
	"log"
	"sync"
)

type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Change is one row-level event. New is set for inserts and updates, Old for
// updates and deletes. Both hold row values (e.g. model.Task), never pointers.
type Change struct {
	Table string
	Type  EventType
	New   any
	Old   any
}

// Filter selects the changes a subscriber wants. A nil Filter accepts all.
type Filter func(Change) bool

const queueSize = 256

// Hub fans published changes out to subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool
}

type subscription struct {
	table  string
	filter Filter
	fn     func(Change)
	queue  chan Change
	done   chan struct{}
	once   sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscription]struct{})}
}

// Subscribe registers fn for changes on table. The returned function stops
// delivery; it is safe to call more than once.
func (h *Hub) Subscribe(table string, filter Filter, fn func(Change)) (unsubscribe func()) {
	sub := &subscription{
		table:  table,
		filter: filter,
		fn:     fn,
		queue:  make(chan Change, queueSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go sub.run()

	return func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		sub.stop()
	}
}

// Publish delivers ch to every matching subscriber without blocking on slow
// consumers.
func (h *Hub) Publish(ch Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.table != ch.Table {
			continue
		}
		if sub.filter != nil && !sub.filter(ch) {
			continue
		}
		select {
		case sub.queue <- ch:
		case <-sub.done:
		default:
			// subscriber is behind; its store resyncs on the next fetch
			log.Printf("[warn] realtime: dropping %s %s event, subscriber queue full", ch.Table, ch.Type)
		}
	}
}

// Subscribers returns the number of live subscriptions on table.
func (h *Hub) Subscribers(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for sub := range h.subs {
		if sub.table == table {
			n++
		}
	}
	return n
}

// Close stops every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*subscription]struct{})
	h.closed = true
	h.mu.Unlock()
	for sub := range subs {
		sub.stop()
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case ch := <-s.queue:
			select {
			case <-s.done:
				return
			default:
			}
			s.deliver(ch)
		}
	}
}

func (s *subscription) deliver(ch Change) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("realtime: %s subscriber panicked: %v", s.table, r)
		}
	}()
	s.fn(ch)
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}
