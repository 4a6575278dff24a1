package service

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"taskhive/internal/model"
	"taskhive/internal/notify"
	"taskhive/internal/repository"
)

const (
	// ReminderLead is how long before the due time a reminder fires.
	ReminderLead = 30 * time.Minute
	// ShortNotice is the delay used when the due time is closer than
	// ReminderLead.
	ShortNotice = 2 * time.Minute
	// SweepWindow is how far ahead the sweep looks for reminders.
	SweepWindow = 30 * time.Minute
)

// ComputeFireTime returns when the reminder for a task due at due should
// fire. A due time that is not in the future gets no reminder.
func ComputeFireTime(due, now time.Time) (time.Time, bool) {
	if !due.After(now) {
		return time.Time{}, false
	}
	if due.Sub(now) < ReminderLead {
		return now.Add(ShortNotice), true
	}
	return due.Add(-ReminderLead), true
}

type ReminderStore interface {
	Replace(ctx context.Context, reminder *model.TaskReminder) (model.TaskReminder, error)
	DeleteForTask(ctx context.Context, taskID string) (int, error)
	Due(ctx context.Context, from, to time.Time) ([]model.TaskReminder, error)
	MarkSent(ctx context.Context, id string) (model.TaskReminder, error)
	Delete(ctx context.Context, id string) error
}

type TaskReader interface {
	Get(ctx context.Context, id string) (model.Task, error)
}

// ReminderService schedules task reminders and fires the due ones.
type ReminderService struct {
	reminders ReminderStore
	tasks     TaskReader
	profiles  notify.ProfileSource
	notifier  *NotificationService
	mailer    notify.Mailer
}

// NewReminderService wires the sweep. mailer may be nil, which disables
// reminder emails.
func NewReminderService(reminders ReminderStore, tasks TaskReader, profiles notify.ProfileSource, notifier *NotificationService, mailer notify.Mailer) *ReminderService {
	return &ReminderService{
		reminders: reminders,
		tasks:     tasks,
		profiles:  profiles,
		notifier:  notifier,
		mailer:    mailer,
	}
}

// Schedule replaces the task's reminder with one computed from its due date.
// Tasks without a due date, completed tasks and past due dates only cancel.
func (s *ReminderService) Schedule(ctx context.Context, task model.Task, now time.Time) error {
	if task.DueDate == nil || task.Completed() {
		return s.Cancel(ctx, task.ID)
	}
	fireAt, ok := ComputeFireTime(*task.DueDate, now)
	if !ok {
		return s.Cancel(ctx, task.ID)
	}
	recipient := task.AssignedTo()
	if recipient == "" {
		recipient = task.OwnerID
	}
	if _, err := s.reminders.Replace(ctx, &model.TaskReminder{
		TaskID:      task.ID,
		RecipientID: recipient,
		ScheduledAt: fireAt,
	}); err != nil {
		return fmt.Errorf("schedule reminder for task %s: %w", task.ID, err)
	}
	log.Printf("[info] reminders: task %s fires at %s", task.ID, fireAt.Format(time.RFC3339))
	return nil
}

// Cancel deletes every reminder of the task.
func (s *ReminderService) Cancel(ctx context.Context, taskID string) error {
	n, err := s.reminders.DeleteForTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("cancel reminders for task %s: %w", taskID, err)
	}
	if n > 0 {
		log.Printf("[info] reminders: cancelled %d for task %s", n, taskID)
	}
	return nil
}

// SweepResult is the outcome for one reminder.
type SweepResult struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const (
	SweepSent    = "sent"
	SweepSkipped = "skipped"
	SweepFailed  = "failed"
)

// Sweep fires the unsent reminders scheduled within [now, now+SweepWindow].
// Reminders of completed or missing tasks are deleted. A failing reminder is
// reported in the results and does not stop the sweep.
func (s *ReminderService) Sweep(ctx context.Context, now time.Time) ([]SweepResult, error) {
	due, err := s.reminders.Due(ctx, now, now.Add(SweepWindow))
	if err != nil {
		return nil, fmt.Errorf("load due reminders: %w", err)
	}
	if len(due) > 0 {
		log.Printf("[info] reminders: %d due between %s and %s", len(due), now.Format(time.Kitchen), now.Add(SweepWindow).Format(time.Kitchen))
	}

	results := make([]SweepResult, 0, len(due))
	for _, reminder := range due {
		status, err := s.fire(ctx, reminder)
		result := SweepResult{TaskID: reminder.TaskID, Status: status}
		if err != nil {
			log.Printf("reminders: reminder %s: %v", reminder.ID, err)
			result.Status = SweepFailed
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *ReminderService) fire(ctx context.Context, reminder model.TaskReminder) (string, error) {
	task, err := s.tasks.Get(ctx, reminder.TaskID)
	if err != nil && !repository.IsNotFound(err) {
		return "", fmt.Errorf("load task: %w", err)
	}
	if repository.IsNotFound(err) || task.Completed() {
		if err := s.reminders.Delete(ctx, reminder.ID); err != nil {
			return "", fmt.Errorf("drop reminder: %w", err)
		}
		return SweepSkipped, nil
	}

	profile, err := s.profiles.Get(ctx, reminder.RecipientID)
	switch {
	case repository.IsNotFound(err):
		profile = model.Profile{ID: reminder.RecipientID, NotifyPush: true}
	case err != nil:
		return "", fmt.Errorf("load profile: %w", err)
	}

	if profile.NotifyEmail && profile.Email != "" && s.mailer != nil {
		if err := s.mailer.Send(ctx, reminderMail(profile, task)); err != nil {
			return "", err
		}
	}
	if profile.NotifyPush {
		taskID := task.ID
		if err := s.notifier.Send(ctx, model.Notification{
			RecipientID: reminder.RecipientID,
			Message:     fmt.Sprintf("⏰ Reminder: %q is due in 30 minutes!", task.Title),
			Type:        model.NotifyTaskReminder,
			TaskID:      &taskID,
		}); err != nil {
			return "", err
		}
	}
	if _, err := s.reminders.MarkSent(ctx, reminder.ID); err != nil {
		return "", fmt.Errorf("mark sent: %w", err)
	}
	return SweepSent, nil
}

func reminderMail(profile model.Profile, task model.Task) notify.Mail {
	var b strings.Builder
	b.WriteString(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">`)
	b.WriteString(`<h2 style="color: #F59E0B;">Task Deadline Reminder</h2>`)
	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(profile.DisplayName()))
	b.WriteString("<p>This is a friendly reminder that your task is due in <strong>30 minutes</strong>!</p>")
	b.WriteString(`<div style="background-color: #F9FAFB; padding: 20px; border-radius: 8px; margin: 20px 0;">`)
	fmt.Fprintf(&b, `<h3 style="margin-top: 0;">%s</h3>`, html.EscapeString(task.Title))
	if desc := strings.TrimSpace(task.Description); desc != "" {
		fmt.Fprintf(&b, `<p style="color: #6B7280;">%s</p>`, html.EscapeString(desc))
	}
	if task.DueDate != nil {
		fmt.Fprintf(&b, "<p><strong>Due:</strong> %s</p>", task.DueDate.Format("January 2, 2006 03:04 PM MST"))
	}
	b.WriteString("</div>")
	b.WriteString(`<p style="color: #9CA3AF; font-size: 12px;">TaskHive - Your Productivity Companion</p>`)
	b.WriteString("</div>")

	return notify.Mail{
		To:      profile.Email,
		Subject: fmt.Sprintf("⏰ Reminder: %q is due soon!", task.Title),
		HTML:    b.String(),
	}
}
