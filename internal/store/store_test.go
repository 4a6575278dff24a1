package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"taskhive/internal/events"
	"taskhive/internal/model"
	"taskhive/internal/realtime"
	"taskhive/internal/repository"
	"taskhive/internal/session"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type localNotes struct {
	mu     sync.Mutex
	titles []string
}

func (l *localNotes) Notify(_ context.Context, title, _ string) error {
	l.mu.Lock()
	l.titles = append(l.titles, title)
	l.mu.Unlock()
	return nil
}

func (l *localNotes) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.titles)
}

type testEnv struct {
	hub      *realtime.Hub
	backends Backends
	bus      *recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	hub := realtime.NewHub()
	t.Cleanup(hub.Close)
	return &testEnv{hub: hub, backends: RepositoryBackends(db, hub), bus: &recorder{}}
}

func signedIn(t *testing.T, userID string) *session.Gate {
	t.Helper()
	gate := session.NewGate(session.NewStaticProvider(session.Identity{UserID: userID}))
	if err := gate.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize gate: %v", err)
	}
	return gate
}

func (e *testEnv) workspace(t *testing.T, userID string, local LocalNotifier) *Workspace {
	t.Helper()
	ws := NewWorkspace(e.backends, e.hub, e.bus, signedIn(t, userID), local)
	if err := ws.Open(context.Background()); err != nil {
		t.Fatalf("open workspace: %v", err)
	}
	t.Cleanup(ws.Close)
	return ws
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func count(rows []model.Task, id string) int {
	n := 0
	for _, r := range rows {
		if r.ID == id {
			n++
		}
	}
	return n
}

// feedFirst delivers the insert event to the store before Insert returns.
type feedFirst struct {
	TaskBackend
	store *TaskStore
}

func (f *feedFirst) Insert(ctx context.Context, task *model.Task) (model.Task, error) {
	created, err := f.TaskBackend.Insert(ctx, task)
	if err == nil {
		f.store.onChange(realtime.Change{Table: repository.TableTasks, Type: realtime.Insert, New: created})
	}
	return created, err
}

func TestTaskCreateYieldsOneRow(t *testing.T) {
	ctx := context.Background()

	t.Run("feed before response", func(t *testing.T) {
		env := newTestEnv(t)
		racing := &feedFirst{TaskBackend: env.backends.Tasks}
		s := NewTaskStore(racing, env.hub, env.bus, signedIn(t, "u1"), nil)
		racing.store = s

		created, err := s.Create(ctx, model.TaskDraft{Title: "write report"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if n := count(s.List(), created.ID); n != 1 {
			t.Fatalf("rows with id = %d, want 1", n)
		}
	})

	t.Run("feed after response", func(t *testing.T) {
		env := newTestEnv(t)
		s := NewTaskStore(env.backends.Tasks, env.hub, env.bus, signedIn(t, "u1"), nil)

		created, err := s.Create(ctx, model.TaskDraft{Title: "write report"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		s.onChange(realtime.Change{Table: repository.TableTasks, Type: realtime.Insert, New: created})
		if n := count(s.List(), created.ID); n != 1 {
			t.Fatalf("rows with id = %d, want 1", n)
		}
		if created.Priority != model.PriorityMedium || created.Status != model.StatusPending {
			t.Fatalf("defaults not applied: %+v", created)
		}
	})
}

func TestTaskCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t, "u1", nil)
	ctx := context.Background()

	for _, title := range []string{"", "   ", "\t\n"} {
		_, err := ws.Tasks.Create(ctx, model.TaskDraft{Title: title})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("title %q: expected ErrValidation, got %v", title, err)
		}
	}
	if _, err := ws.Habits.Create(ctx, model.HabitDraft{Name: "  "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank habit name: %v", err)
	}
	if _, err := ws.Organizations.Create(ctx, model.OrganizationDraft{Name: " "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank organization name: %v", err)
	}
	blank := "  "
	if _, err := ws.Tasks.Update(ctx, "any", model.TaskPatch{Title: &blank}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank title patch: %v", err)
	}
	rows, err := env.backends.Tasks.ListVisible(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 || len(ws.Tasks.List()) != 0 {
		t.Fatal("invalid draft reached the backend")
	}
	if len(env.bus.kinds()) != 0 {
		t.Fatal("invalid draft published an event")
	}
}

func TestStoresRequireIdentity(t *testing.T) {
	env := newTestEnv(t)
	gate := session.NewGate(session.NewTokenProvider("secret"))
	if err := gate.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	ws := NewWorkspace(env.backends, env.hub, env.bus, gate, nil)

	if _, err := ws.Tasks.Create(context.Background(), model.TaskDraft{Title: "x"}); !errors.Is(err, session.ErrUnauthenticated) {
		t.Fatalf("create: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := ws.Habits.Complete(context.Background(), "h1", ""); !errors.Is(err, session.ErrUnauthenticated) {
		t.Fatalf("complete: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := ws.Organizations.Join(context.Background(), "ABCDEFGH"); !errors.Is(err, session.ErrUnauthenticated) {
		t.Fatalf("join: expected ErrUnauthenticated, got %v", err)
	}
	if err := ws.Open(context.Background()); !errors.Is(err, session.ErrUnauthenticated) {
		t.Fatalf("open: expected ErrUnauthenticated, got %v", err)
	}
}

func TestTaskRemoveAfterFeedDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	s := NewTaskStore(env.backends.Tasks, env.hub, env.bus, signedIn(t, "u1"), nil)

	keep, err := s.Create(ctx, model.TaskDraft{Title: "keep"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gone, err := s.Create(ctx, model.TaskDraft{Title: "gone"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// another client deletes it first
	if err := env.backends.Tasks.Delete(ctx, gone.ID); err != nil {
		t.Fatalf("concurrent delete: %v", err)
	}
	s.onChange(realtime.Change{Table: repository.TableTasks, Type: realtime.Delete, Old: gone})
	before := s.List()

	if err := s.Remove(ctx, gone.ID); err != nil {
		t.Fatalf("second delete returned %v", err)
	}
	after := s.List()
	if len(before) != 1 || len(after) != 1 || after[0].ID != keep.ID {
		t.Fatalf("before %d rows, after %d rows", len(before), len(after))
	}
}

func TestTaskToggleStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ws := env.workspace(t, "u1", nil)

	created, err := ws.Tasks.Create(ctx, model.TaskDraft{Title: "ship"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	done, err := ws.Tasks.ToggleStatus(ctx, created.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if done.Status != model.StatusCompleted {
		t.Fatalf("status = %s", done.Status)
	}
	ev := env.bus.last()
	if ev.Kind != events.TaskUpdated || ev.Previous == nil || ev.Previous.Status != model.StatusPending {
		t.Fatalf("last event = %+v", ev)
	}

	again, err := ws.Tasks.ToggleStatus(ctx, created.ID)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if again.Status != model.StatusPending {
		t.Fatalf("status = %s", again.Status)
	}
	local, _ := ws.Tasks.Get(created.ID)
	if local.Status != model.StatusPending {
		t.Fatalf("local status = %s", local.Status)
	}

	if _, err := ws.Tasks.ToggleStatus(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignedTaskReachesAssigneeThroughFeed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.workspace(t, "owner", nil)
	assignee := env.workspace(t, "assignee", nil)
	stranger := env.workspace(t, "stranger", nil)

	created, err := owner.Tasks.Create(ctx, model.TaskDraft{Title: "review", AssigneeID: "assignee"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	eventually(t, "assignee sees task", func() bool { return count(assignee.Tasks.List(), created.ID) == 1 })

	if err := owner.Tasks.Remove(ctx, created.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	eventually(t, "assignee sees delete", func() bool { return len(assignee.Tasks.List()) == 0 })
	if len(stranger.Tasks.List()) != 0 {
		t.Fatal("stranger received a task")
	}
}

func TestOrganizationJoinIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.workspace(t, "owner", nil)
	member := env.workspace(t, "member", nil)

	org, err := owner.Organizations.Create(ctx, model.OrganizationDraft{Name: "Platform"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(org.InviteCode) != model.InviteCodeLength || org.InviteCode != strings.ToUpper(org.InviteCode) {
		t.Fatalf("invite code = %q", org.InviteCode)
	}

	if _, err := member.Organizations.Join(ctx, " "+strings.ToLower(org.InviteCode)+" "); err != nil {
		t.Fatalf("join: %v", err)
	}
	if !member.Organizations.IsMember(org.ID) {
		t.Fatal("joined organization missing locally")
	}
	if _, err := member.Organizations.Join(ctx, org.InviteCode); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("second join: expected ErrAlreadyMember, got %v", err)
	}
	if _, err := owner.Organizations.Join(ctx, org.InviteCode); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("owner join: expected ErrAlreadyMember, got %v", err)
	}
	if _, err := member.Organizations.Join(ctx, "ZZZZZZZZ"); !errors.Is(err, ErrInviteNotFound) {
		t.Fatalf("bad code: expected ErrInviteNotFound, got %v", err)
	}

	members, err := owner.Organizations.Members(ctx, org.ID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}
	joined := 0
	for _, k := range env.bus.kinds() {
		if k == events.MemberJoined {
			joined++
		}
	}
	if joined != 1 {
		t.Fatalf("MemberJoined published %d times", joined)
	}
}

func TestOrganizationTaskVisibleToMembers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.workspace(t, "owner", nil)
	member := env.workspace(t, "member", nil)

	org, err := owner.Organizations.Create(ctx, model.OrganizationDraft{Name: "Ops"})
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	if _, err := member.Organizations.Join(ctx, org.InviteCode); err != nil {
		t.Fatalf("join: %v", err)
	}
	created, err := owner.Tasks.Create(ctx, model.TaskDraft{Title: "rotate keys", OrganizationID: org.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	eventually(t, "member sees team task", func() bool { return count(member.Tasks.List(), created.ID) == 1 })

	if err := owner.Organizations.RemoveMember(ctx, org.ID, "member"); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	eventually(t, "member loses organization", func() bool { return !member.Organizations.IsMember(org.ID) })
	if err := owner.Organizations.RemoveMember(ctx, org.ID, "member"); err != nil {
		t.Fatalf("second removal: %v", err)
	}
	if _, err := member.Organizations.Join(ctx, org.InviteCode); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if !member.Organizations.IsMember(org.ID) {
		t.Fatal("rejoined organization missing locally")
	}
}

func TestOrganizationInviteCodeRetryCap(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ws := env.workspace(t, "owner", nil)

	attempts := 0
	ws.Organizations.codes = func() (string, error) {
		attempts++
		return "SAMECODE", nil
	}
	if _, err := ws.Organizations.Create(ctx, model.OrganizationDraft{Name: "first"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	attempts = 0
	if _, err := ws.Organizations.Create(ctx, model.OrganizationDraft{Name: "second"}); !errors.Is(err, ErrInviteCodeExhausted) {
		t.Fatalf("expected ErrInviteCodeExhausted, got %v", err)
	}
	if attempts != maxInviteAttempts {
		t.Fatalf("attempts = %d, want %d", attempts, maxInviteAttempts)
	}
	if len(ws.Organizations.List()) != 1 {
		t.Fatalf("organizations = %d, want 1", len(ws.Organizations.List()))
	}
}

func TestHabitCompleteAndStreak(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ws := env.workspace(t, "u1", nil)

	habit, err := ws.Habits.Create(ctx, model.HabitDraft{Name: "read"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if habit.Frequency != model.FrequencyDaily {
		t.Fatalf("frequency = %s", habit.Frequency)
	}

	now := time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)
	for _, back := range []int{2, 1, 0, 0} {
		day := now.AddDate(0, 0, -back)
		ws.Habits.now = func() time.Time { return day }
		if _, err := ws.Habits.Complete(ctx, habit.ID, ""); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	if got := ws.Habits.Streak(habit.ID, now); got != 3 {
		t.Fatalf("streak = %d, want 3", got)
	}
	if !ws.Habits.CompletedToday(habit.ID, now) {
		t.Fatal("CompletedToday = false")
	}
	if ev := env.bus.last(); ev.Kind != events.HabitCompleted || ev.Habit.Name != "read" {
		t.Fatalf("last event = %+v", ev)
	}

	if _, err := ws.Habits.Complete(ctx, "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := ws.Habits.Remove(ctx, habit.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(ws.Habits.CompletionsFor(habit.ID)) != 0 {
		t.Fatal("completions survived habit removal")
	}
}

func TestNotificationsFeedAndMarkRead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	local := &localNotes{}
	ws := env.workspace(t, "u1", local)

	repo := env.backends.Notifications.(*repository.NotificationRepository)
	for _, msg := range []string{"one", "two"} {
		if _, err := repo.Insert(ctx, &model.Notification{RecipientID: "u1", Message: msg, Type: model.NotifyTaskAssigned}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if _, err := repo.Insert(ctx, &model.Notification{RecipientID: "u2", Message: "other", Type: model.NotifyTaskAssigned}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	eventually(t, "notifications arrive", func() bool { return ws.Notifications.UnreadCount() == 2 })
	eventually(t, "local notifications", func() bool { return local.count() == 2 })

	first := ws.Notifications.List()[0]
	if err := ws.Notifications.MarkRead(ctx, first.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if got := ws.Notifications.UnreadCount(); got != 1 {
		t.Fatalf("unread = %d, want 1", got)
	}
	n, err := ws.Notifications.MarkAllRead(ctx)
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if n != 1 || ws.Notifications.UnreadCount() != 0 {
		t.Fatalf("marked %d, unread %d", n, ws.Notifications.UnreadCount())
	}
}

func TestBindFollowsSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	provider := session.NewTokenProvider("secret")
	gate := session.NewGate(provider)
	if err := gate.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	var mu sync.Mutex
	var seen []*Workspace
	unbind := Bind(ctx, gate, func() *Workspace {
		return NewWorkspace(env.backends, env.hub, env.bus, gate, nil)
	}, func(ws *Workspace) {
		mu.Lock()
		seen = append(seen, ws)
		mu.Unlock()
	})
	defer unbind()

	token, err := provider.Issue(session.Identity{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := provider.SignIn(ctx, token); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if env.hub.Subscribers(repository.TableTasks) != 1 {
		t.Fatalf("task subscribers = %d, want 1", env.hub.Subscribers(repository.TableTasks))
	}
	if err := gate.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if env.hub.Subscribers(repository.TableTasks) != 0 {
		t.Fatal("subscriptions leaked after sign out")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] == nil || seen[1] != nil {
		t.Fatalf("workspace changes = %v", seen)
	}
}

// interleavedTasks runs during between reading the snapshot and returning it.
type interleavedTasks struct {
	TaskBackend
	during func()
}

func (b *interleavedTasks) ListVisible(ctx context.Context, userID string) ([]model.Task, error) {
	rows, err := b.TaskBackend.ListVisible(ctx, userID)
	if b.during != nil {
		during := b.during
		b.during = nil
		during()
	}
	return rows, err
}

func TestFetchKeepsWritesConfirmedMidFetch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	backend := &interleavedTasks{TaskBackend: env.backends.Tasks}
	tasks := NewTaskStore(backend, env.hub, env.bus, signedIn(t, "u1"), nil)

	existing, err := tasks.Create(ctx, model.TaskDraft{Title: "old"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var created model.Task
	backend.during = func() {
		var err error
		if created, err = tasks.Create(ctx, model.TaskDraft{Title: "fresh"}); err != nil {
			t.Errorf("create during fetch: %v", err)
		}
		title := "new"
		if _, err := tasks.Update(ctx, existing.ID, model.TaskPatch{Title: &title}); err != nil {
			t.Errorf("update during fetch: %v", err)
		}
	}
	if err := tasks.Fetch(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if n := count(tasks.List(), created.ID); n != 1 {
		t.Fatalf("rows with created id = %d", n)
	}
	if got, _ := tasks.Get(existing.ID); got.Title != "new" {
		t.Fatalf("title after fetch = %q", got.Title)
	}
}

type failingMembers struct {
	MemberBackend
}

func (failingMembers) Add(context.Context, string, string, model.MemberRole) (model.OrganizationMember, error) {
	return model.OrganizationMember{}, errors.New("members unavailable")
}

func TestOrganizationCreateRollsBackWithoutOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orgs := NewOrganizationStore(env.backends.Organizations, failingMembers{env.backends.Members}, env.hub, env.bus, signedIn(t, "u1"))
	orgs.codes = func() (string, error) { return "ORPHAN23", nil }

	if _, err := orgs.Create(ctx, model.OrganizationDraft{Name: "team"}); err == nil {
		t.Fatal("create succeeded without an owner membership")
	}
	if _, err := env.backends.Organizations.FindByInviteCode(ctx, "ORPHAN23"); !repository.IsNotFound(err) {
		t.Fatalf("organization row left behind: %v", err)
	}
	if len(orgs.List()) != 0 {
		t.Fatalf("local organizations = %d", len(orgs.List()))
	}
}
