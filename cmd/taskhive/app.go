package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"taskhive/internal/config"
	"taskhive/internal/events"
	"taskhive/internal/realtime"
	"taskhive/internal/repository"
	"taskhive/internal/service"
	"taskhive/internal/session"
	"taskhive/internal/store"
)

var errNoToken = errors.New("TASKHIVE_TOKEN is not set, create one with `taskhive auth token`")

// app is one signed-in CLI invocation: a workspace over the database plus
// the side-effect handlers the daemon runs, so writes made here notify
// and schedule reminders the same way.
type app struct {
	cfg      config.Config
	db       *gorm.DB
	hub      *realtime.Hub
	bus      *events.Bus
	gate     *session.Gate
	ws       *store.Workspace
	profiles *repository.ProfileRepository
}

func openDB() (config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	if err := cfg.RequireSecret(); err != nil {
		return cfg, nil, err
	}
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, db, nil
}

func openApp(ctx context.Context) (*app, error) {
	cfg, db, err := openDB()
	if err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, errNoToken
	}

	a := &app{
		cfg:      cfg,
		db:       db,
		hub:      realtime.NewHub(),
		bus:      events.NewBus(),
		profiles: repository.NewProfileRepository(db),
	}

	tokens := session.NewTokenProvider(cfg.JWTSecret)
	sess, err := tokens.SignIn(ctx, cfg.Token)
	if err != nil {
		a.close()
		return nil, err
	}
	if _, err := a.profiles.Upsert(ctx, sess.Identity.UserID, sess.Identity.Email, sess.Identity.Name); err != nil {
		a.close()
		return nil, err
	}

	a.gate = session.NewGate(tokens)
	if err := a.gate.Initialize(ctx); err != nil {
		a.close()
		return nil, err
	}

	notifications := service.NewNotificationService(repository.NewNotificationRepository(db, a.hub), nil)
	reminders := service.NewReminderService(
		repository.NewReminderRepository(db, a.hub),
		repository.NewTaskRepository(db, a.hub),
		a.profiles, notifications, nil)
	service.NewDispatcher(notifications, repository.NewMemberRepository(db, a.hub), reminders, a.profiles, silent{}).Register(a.bus)

	a.ws = store.NewWorkspace(store.RepositoryBackends(db, a.hub), a.hub, a.bus, a.gate, silent{})
	if err := a.ws.Open(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) userID() string {
	id, _ := a.gate.UserID()
	return id
}

// close waits for pending side effects before releasing resources.
func (a *app) close() {
	a.bus.Wait()
	if a.ws != nil {
		a.ws.Close()
	}
	a.bus.Close()
	a.hub.Close()
	if a.gate != nil {
		a.gate.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// silent drops local notifications; the CLI prints its own results.
type silent struct{}

func (silent) Notify(context.Context, string, string) error { return nil }

type identified interface {
	RowID() string
}

// resolve finds the single row whose id starts with prefix.
func resolve[T identified](rows []T, prefix string) (T, error) {
	var zero T
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return zero, fmt.Errorf("%w: id is required", store.ErrValidation)
	}
	var matches []T
	for _, row := range rows {
		if row.RowID() == prefix {
			return row, nil
		}
		if strings.HasPrefix(row.RowID(), prefix) {
			matches = append(matches, row)
		}
	}
	switch len(matches) {
	case 0:
		return zero, store.ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return zero, fmt.Errorf("%w: id prefix %q is ambiguous", store.ErrValidation, prefix)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// parseDue accepts a date or a date with time in loc. A bare date is due at
// the end of the day.
func parseDue(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation("2006-01-02 15:04", value, loc); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: due date must be YYYY-MM-DD or \"YYYY-MM-DD HH:MM\"", store.ErrValidation)
	}
	return d.Add(23*time.Hour + 59*time.Minute), nil
}

func formatDue(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}
