package store

import (
	"reflect"
	"sync"

	"taskhive/internal/realtime"
)

// Entity is a row held by a Collection.
type Entity[T any] interface {
	RowID() string
	// Supersedes reports whether the receiver may replace old.
	Supersedes(old T) bool
}

// Kind tags the source of a collection event.
type Kind int

const (
	Reset Kind = iota
	ConfirmedInsert
	ConfirmedUpdate
	ConfirmedDelete
	FeedInsert
	FeedUpdate
	FeedDelete
)

func (k Kind) String() string {
	switch k {
	case Reset:
		return "reset"
	case ConfirmedInsert:
		return "confirmed-insert"
	case ConfirmedUpdate:
		return "confirmed-update"
	case ConfirmedDelete:
		return "confirmed-delete"
	case FeedInsert:
		return "feed-insert"
	case FeedUpdate:
		return "feed-update"
	case FeedDelete:
		return "feed-delete"
	default:
		return "unknown"
	}
}

// Event is one input to the reducer. Reset uses Rows and Since, deletes use
// ID, the rest use Row.
type Event[T Entity[T]] struct {
	Kind Kind
	Row  T
	Rows []T
	ID   string
	// Since is the Mark taken before the Reset snapshot was read. Rows
	// changed after it keep their local version.
	Since uint64
}

// Collection is an ordered, id-keyed mirror of a remote table. Direct call
// results and change-feed events both go through Apply, and applying the same
// event twice leaves the collection as applying it once.
type Collection[T Entity[T]] struct {
	mu      sync.RWMutex
	rows    []T
	deleted map[string]struct{}
	seq     uint64
	touched map[string]uint64

	watchers map[int]func([]T)
	nextID   int
}

func NewCollection[T Entity[T]]() *Collection[T] {
	return &Collection[T]{
		deleted:  make(map[string]struct{}),
		touched:  make(map[string]uint64),
		watchers: make(map[int]func([]T)),
	}
}

// Apply reduces ev into the collection and reports whether it changed.
func (c *Collection[T]) Apply(ev Event[T]) bool {
	c.mu.Lock()
	rows, changed := reduce(c.rows, c.deleted, c.touched, ev)
	c.rows = rows
	if changed && ev.Kind != Reset {
		c.seq++
		id := ev.ID
		if ev.Kind != ConfirmedDelete && ev.Kind != FeedDelete {
			id = ev.Row.RowID()
		}
		c.touched[id] = c.seq
	}
	var snapshot []T
	var watchers []func([]T)
	if changed {
		snapshot = append([]T(nil), rows...)
		for _, fn := range c.watchers {
			watchers = append(watchers, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range watchers {
		fn(snapshot)
	}
	return changed
}

// Mark returns the change sequence. Pass it as Since on the Reset built from
// a snapshot read after the call.
func (c *Collection[T]) Mark() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq
}

// reduce is the merge policy. Inserts prepend unless the id is present or
// was deleted. Updates replace a present row only when the incoming version
// supersedes it. Deletes remove and remember the id. Reset takes the
// snapshot but keeps rows changed after ev.Since.
func reduce[T Entity[T]](rows []T, deleted map[string]struct{}, touched map[string]uint64, ev Event[T]) ([]T, bool) {
	switch ev.Kind {
	case Reset:
		return resync(rows, deleted, touched, ev.Rows, ev.Since), true

	case ConfirmedInsert, FeedInsert:
		id := ev.Row.RowID()
		if _, gone := deleted[id]; gone {
			return rows, false
		}
		if indexOf(rows, id) >= 0 {
			return rows, false
		}
		next := make([]T, 0, len(rows)+1)
		next = append(next, ev.Row)
		return append(next, rows...), true

	case ConfirmedUpdate, FeedUpdate:
		i := indexOf(rows, ev.Row.RowID())
		if i < 0 || !ev.Row.Supersedes(rows[i]) || reflect.DeepEqual(rows[i], ev.Row) {
			return rows, false
		}
		return replaceAt(rows, i, ev.Row), true

	case ConfirmedDelete, FeedDelete:
		deleted[ev.ID] = struct{}{}
		i := indexOf(rows, ev.ID)
		if i < 0 {
			return rows, false
		}
		next := make([]T, 0, len(rows)-1)
		next = append(next, rows[:i]...)
		return append(next, rows[i+1:]...), true
	}
	return rows, false
}

func resync[T Entity[T]](rows []T, deleted map[string]struct{}, touched map[string]uint64, snapshot []T, since uint64) []T {
	fresh := func(id string) bool { return touched[id] > since }
	inSnapshot := make(map[string]struct{}, len(snapshot))
	for _, row := range snapshot {
		inSnapshot[row.RowID()] = struct{}{}
	}

	next := make([]T, 0, len(snapshot)+len(rows))
	// rows confirmed during the fetch that the snapshot missed are newest
	for _, row := range rows {
		if _, ok := inSnapshot[row.RowID()]; !ok && fresh(row.RowID()) {
			next = append(next, row)
		}
	}
	for _, row := range snapshot {
		id := row.RowID()
		if _, gone := deleted[id]; gone {
			continue
		}
		if i := indexOf(rows, id); i >= 0 && (fresh(id) || !row.Supersedes(rows[i])) {
			row = rows[i]
		}
		next = append(next, row)
	}
	return next
}

func indexOf[T Entity[T]](rows []T, id string) int {
	for i, row := range rows {
		if row.RowID() == id {
			return i
		}
	}
	return -1
}

func replaceAt[T any](rows []T, i int, row T) []T {
	next := append([]T(nil), rows...)
	next[i] = row
	return next
}

// List returns a copy of the rows, newest first.
func (c *Collection[T]) List() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.rows...)
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := indexOf(c.rows, id); i >= 0 {
		return c.rows[i], true
	}
	var zero T
	return zero, false
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// Watch calls fn with a snapshot after every change.
func (c *Collection[T]) Watch(fn func([]T)) (unwatch func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.watchers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	}
}

// Clear drops every row and tombstone.
func (c *Collection[T]) Clear() {
	c.mu.Lock()
	c.rows = nil
	c.deleted = make(map[string]struct{})
	c.touched = make(map[string]uint64)
	c.mu.Unlock()
}

// feedEvent converts a change-feed event into a reducer event. Rows of a
// different type are ignored.
func feedEvent[T Entity[T]](ch realtime.Change) (Event[T], bool) {
	switch ch.Type {
	case realtime.Insert:
		row, ok := ch.New.(T)
		return Event[T]{Kind: FeedInsert, Row: row}, ok
	case realtime.Update:
		row, ok := ch.New.(T)
		return Event[T]{Kind: FeedUpdate, Row: row}, ok
	case realtime.Delete:
		row, ok := ch.Old.(T)
		if !ok {
			return Event[T]{}, false
		}
		return Event[T]{Kind: FeedDelete, ID: row.RowID()}, true
	}
	return Event[T]{}, false
}
