package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskhive/internal/events"
	"taskhive/internal/model"
	"taskhive/internal/notify"
	"taskhive/internal/store"
)

type MemberLister interface {
	List(ctx context.Context, organizationID string) ([]model.OrganizationMember, error)
}

// ReminderScheduler is the part of ReminderService the dispatcher needs.
type ReminderScheduler interface {
	Schedule(ctx context.Context, task model.Task, now time.Time) error
	Cancel(ctx context.Context, taskID string) error
}

// Dispatcher turns domain events into notifications, reminders and local
// alerts. It runs on the event bus worker, so its failures never reach the
// mutation that published the event.
type Dispatcher struct {
	notifications *NotificationService
	members       MemberLister
	reminders     ReminderScheduler
	profiles      notify.ProfileSource
	local         store.LocalNotifier
	now           func() time.Time
}

func NewDispatcher(notifications *NotificationService, members MemberLister, reminders ReminderScheduler, profiles notify.ProfileSource, local store.LocalNotifier) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		members:       members,
		reminders:     reminders,
		profiles:      profiles,
		local:         local,
		now:           time.Now,
	}
}

// Register subscribes the dispatcher to bus.
func (d *Dispatcher) Register(bus *events.Bus) {
	bus.Subscribe(events.TaskCreated, d.taskCreated)
	bus.Subscribe(events.TaskUpdated, d.taskUpdated)
	bus.Subscribe(events.TaskDeleted, d.taskDeleted)
	bus.Subscribe(events.HabitCompleted, d.habitCompleted)
	bus.Subscribe(events.MemberJoined, d.memberJoined)
	bus.Subscribe(events.MemberRemoved, d.memberRemoved)
}

func (d *Dispatcher) taskCreated(ctx context.Context, ev events.Event) error {
	if ev.Task == nil {
		return nil
	}
	task := *ev.Task
	var errs []error

	if org := task.Organization(); org != "" {
		members, err := d.members.List(ctx, org)
		if err != nil {
			errs = append(errs, fmt.Errorf("list members of %s: %w", org, err))
		}
		for _, m := range members {
			if m.UserID == ev.ActorID {
				continue
			}
			errs = append(errs, d.notify(ctx, m.UserID, model.NotifyTaskCreated, &task,
				fmt.Sprintf("New team task: %s", task.Title)))
		}
	}

	if assignee := task.AssignedTo(); assignee != "" && assignee != ev.ActorID {
		errs = append(errs, d.notify(ctx, assignee, model.NotifyTaskAssigned, &task,
			fmt.Sprintf("You have been assigned a task: %s", task.Title)))
	}

	if task.DueDate != nil && !task.Completed() {
		errs = append(errs, d.reminders.Schedule(ctx, task, d.now()))
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) taskUpdated(ctx context.Context, ev events.Event) error {
	if ev.Task == nil {
		return nil
	}
	task := *ev.Task
	var prev model.Task
	if ev.Previous != nil {
		prev = *ev.Previous
	}
	var errs []error

	switch {
	case task.Completed() && !prev.Completed():
		if task.OwnerID != ev.ActorID {
			errs = append(errs, d.notify(ctx, task.OwnerID, model.NotifyTaskCompleted, &task,
				fmt.Sprintf("%s completed: %s", d.displayName(ctx, ev.ActorID), task.Title)))
		}
		errs = append(errs, d.reminders.Cancel(ctx, task.ID))
	case !task.Completed() && (dueChanged(prev, task) || prev.Completed() || task.AssignedTo() != prev.AssignedTo()):
		// reminders are addressed when scheduled
		errs = append(errs, d.reminders.Schedule(ctx, task, d.now()))
	}

	if assignee := task.AssignedTo(); assignee != "" && assignee != prev.AssignedTo() && assignee != ev.ActorID {
		errs = append(errs, d.notify(ctx, assignee, model.NotifyTaskAssigned, &task,
			fmt.Sprintf("You have been assigned a task: %s", task.Title)))
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) taskDeleted(ctx context.Context, ev events.Event) error {
	if ev.Task == nil {
		return nil
	}
	return d.reminders.Cancel(ctx, ev.Task.ID)
}

func (d *Dispatcher) habitCompleted(ctx context.Context, ev events.Event) error {
	if ev.Habit == nil || d.local == nil {
		return nil
	}
	return d.local.Notify(ctx, "Habit completed", fmt.Sprintf("Great job! You completed %s today.", ev.Habit.Name))
}

func (d *Dispatcher) memberJoined(ctx context.Context, ev events.Event) error {
	if ev.Organization == nil || ev.Member == nil {
		return nil
	}
	org := *ev.Organization
	if org.OwnerID == "" || org.OwnerID == ev.Member.UserID {
		return nil
	}
	return d.notifyOrg(ctx, org.OwnerID, model.NotifyMemberAdded, org.ID,
		fmt.Sprintf("%s joined %s", d.displayName(ctx, ev.Member.UserID), org.Name))
}

func (d *Dispatcher) memberRemoved(ctx context.Context, ev events.Event) error {
	if ev.Organization == nil || ev.Member == nil || ev.Member.UserID == ev.ActorID {
		return nil
	}
	org := *ev.Organization
	name := org.Name
	if name == "" {
		name = "an organization"
	}
	return d.notifyOrg(ctx, ev.Member.UserID, model.NotifyMemberRemoved, org.ID,
		fmt.Sprintf("You have been removed from %s", name))
}

func (d *Dispatcher) notify(ctx context.Context, recipient string, kind model.NotificationType, task *model.Task, message string) error {
	n := model.Notification{RecipientID: recipient, Type: kind, Message: message}
	if task != nil {
		taskID := task.ID
		n.TaskID = &taskID
		if org := task.Organization(); org != "" {
			n.OrganizationID = &org
		}
	}
	return d.notifications.Send(ctx, n)
}

func (d *Dispatcher) notifyOrg(ctx context.Context, recipient string, kind model.NotificationType, orgID, message string) error {
	return d.notifications.Send(ctx, model.Notification{
		RecipientID:    recipient,
		Type:           kind,
		Message:        message,
		OrganizationID: &orgID,
	})
}

func (d *Dispatcher) displayName(ctx context.Context, userID string) string {
	if d.profiles != nil {
		if p, err := d.profiles.Get(ctx, userID); err == nil && (p.FullName != "" || p.Email != "") {
			return p.DisplayName()
		}
	}
	return "A team member"
}

func dueChanged(prev, next model.Task) bool {
	switch {
	case prev.DueDate == nil && next.DueDate == nil:
		return false
	case prev.DueDate == nil || next.DueDate == nil:
		return true
	default:
		return !prev.DueDate.Equal(*next.DueDate)
	}
}
