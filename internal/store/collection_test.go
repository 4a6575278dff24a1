package store

import (
	"reflect"
	"testing"
	"time"

	"taskhive/internal/model"
)

func task(id string, updated time.Time) model.Task {
	return model.Task{ID: id, Title: id, UpdatedAt: updated}
}

func ids(rows []model.Task) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestReduceIsIdempotent(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seed := []model.Task{task("b", t0), task("a", t0)}

	events := []Event[model.Task]{
		{Kind: FeedInsert, Row: task("c", t0)},
		{Kind: ConfirmedInsert, Row: task("c", t0)},
		{Kind: FeedUpdate, Row: task("a", t0.Add(time.Minute))},
		{Kind: ConfirmedUpdate, Row: task("b", t0.Add(time.Minute))},
		{Kind: FeedDelete, ID: "b"},
		{Kind: ConfirmedDelete, ID: "missing"},
	}
	for _, ev := range events {
		t.Run(ev.Kind.String(), func(t *testing.T) {
			once := NewCollection[model.Task]()
			once.Apply(Event[model.Task]{Kind: Reset, Rows: seed})
			once.Apply(ev)

			twice := NewCollection[model.Task]()
			twice.Apply(Event[model.Task]{Kind: Reset, Rows: seed})
			twice.Apply(ev)
			if twice.Apply(ev) {
				t.Fatal("second application reported a change")
			}
			if !reflect.DeepEqual(once.List(), twice.List()) {
				t.Fatalf("once %v, twice %v", ids(once.List()), ids(twice.List()))
			}
		})
	}
}

func TestReduceInsertOrderIndependent(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	row := task("new", t0)

	feedFirst := NewCollection[model.Task]()
	feedFirst.Apply(Event[model.Task]{Kind: Reset, Rows: []model.Task{task("old", t0)}})
	feedFirst.Apply(Event[model.Task]{Kind: FeedInsert, Row: row})
	feedFirst.Apply(Event[model.Task]{Kind: ConfirmedInsert, Row: row})

	confirmFirst := NewCollection[model.Task]()
	confirmFirst.Apply(Event[model.Task]{Kind: Reset, Rows: []model.Task{task("old", t0)}})
	confirmFirst.Apply(Event[model.Task]{Kind: ConfirmedInsert, Row: row})
	confirmFirst.Apply(Event[model.Task]{Kind: FeedInsert, Row: row})

	want := []string{"new", "old"}
	if got := ids(feedFirst.List()); !reflect.DeepEqual(got, want) {
		t.Fatalf("feed first: %v", got)
	}
	if got := ids(confirmFirst.List()); !reflect.DeepEqual(got, want) {
		t.Fatalf("confirm first: %v", got)
	}
}

func TestReduceNeverRegresses(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewCollection[model.Task]()
	c.Apply(Event[model.Task]{Kind: Reset, Rows: []model.Task{task("a", t0)}})

	fresh := task("a", t0.Add(2*time.Minute))
	fresh.Title = "fresh"
	stale := task("a", t0.Add(time.Minute))
	stale.Title = "stale"

	c.Apply(Event[model.Task]{Kind: ConfirmedUpdate, Row: fresh})
	c.Apply(Event[model.Task]{Kind: FeedUpdate, Row: stale})

	got, _ := c.Get("a")
	if got.Title != "fresh" {
		t.Fatalf("title = %q, stale update applied", got.Title)
	}
}

func TestReduceDeleteBeatsLateInsert(t *testing.T) {
	c := NewCollection[model.Task]()
	c.Apply(Event[model.Task]{Kind: ConfirmedDelete, ID: "a"})
	c.Apply(Event[model.Task]{Kind: FeedInsert, Row: task("a", time.Now())})
	c.Apply(Event[model.Task]{Kind: Reset, Rows: []model.Task{task("a", time.Now()), task("b", time.Now())}})
	if got := ids(c.List()); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("rows = %v", got)
	}
}

func TestReduceUpdateOfUnknownRowIgnored(t *testing.T) {
	c := NewCollection[model.Task]()
	if c.Apply(Event[model.Task]{Kind: FeedUpdate, Row: task("x", time.Now())}) {
		t.Fatal("update of unknown row changed the collection")
	}
	if c.Len() != 0 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestNotificationReadNeverFlipsBack(t *testing.T) {
	c := NewCollection[model.Notification]()
	c.Apply(Event[model.Notification]{Kind: Reset, Rows: []model.Notification{{ID: "n1", Read: true}}})
	c.Apply(Event[model.Notification]{Kind: FeedUpdate, Row: model.Notification{ID: "n1", Read: false}})
	got, _ := c.Get("n1")
	if !got.Read {
		t.Fatal("read flag regressed")
	}
}

func TestCollectionWatch(t *testing.T) {
	c := NewCollection[model.Task]()
	var calls int
	var last []model.Task
	unwatch := c.Watch(func(rows []model.Task) {
		calls++
		last = rows
	})

	c.Apply(Event[model.Task]{Kind: FeedInsert, Row: task("a", time.Now())})
	c.Apply(Event[model.Task]{Kind: FeedInsert, Row: task("a", time.Now())})
	if calls != 1 || len(last) != 1 {
		t.Fatalf("calls = %d, last = %v", calls, ids(last))
	}

	unwatch()
	c.Apply(Event[model.Task]{Kind: FeedDelete, ID: "a"})
	if calls != 1 {
		t.Fatalf("watcher called after unwatch")
	}
}

func TestResetKeepsRowsConfirmedDuringFetch(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewCollection[model.Task]()
	c.Apply(Event[model.Task]{Kind: Reset, Rows: []model.Task{task("a", t0), task("gone", t0)}})

	since := c.Mark()
	snapshot := []model.Task{task("a", t0)}

	c.Apply(Event[model.Task]{Kind: ConfirmedInsert, Row: task("new", t0.Add(time.Minute))})
	updated := task("a", t0.Add(time.Minute))
	updated.Title = "renamed"
	c.Apply(Event[model.Task]{Kind: ConfirmedUpdate, Row: updated})

	c.Apply(Event[model.Task]{Kind: Reset, Rows: snapshot, Since: since})

	if got := ids(c.List()); !reflect.DeepEqual(got, []string{"new", "a"}) {
		t.Fatalf("rows = %v", got)
	}
	if got, _ := c.Get("a"); got.Title != "renamed" {
		t.Fatalf("title = %q, confirmed update rolled back", got.Title)
	}
}

func TestResetNeverRegressesUntouchedRows(t *testing.T) {
	c := NewCollection[model.Notification]()
	c.Apply(Event[model.Notification]{Kind: Reset, Rows: []model.Notification{{ID: "n1"}}})
	c.Apply(Event[model.Notification]{Kind: ConfirmedUpdate, Row: model.Notification{ID: "n1", Read: true}})

	// snapshot read before the update but applied with a later mark
	c.Apply(Event[model.Notification]{Kind: Reset, Rows: []model.Notification{{ID: "n1"}}, Since: c.Mark()})
	if got, _ := c.Get("n1"); !got.Read {
		t.Fatal("read flag regressed on resync")
	}
}

func TestResetDropsRowsMissingFromSnapshot(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewCollection[model.Task]()
	c.Apply(Event[model.Task]{Kind: ConfirmedInsert, Row: task("old", t0)})
	since := c.Mark()
	c.Apply(Event[model.Task]{Kind: Reset, Rows: []model.Task{task("b", t0)}, Since: since})
	if got := ids(c.List()); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("rows = %v", got)
	}
}
