package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"taskhive/internal/model"
)

// ReminderRepository stores scheduled task reminders.
type ReminderRepository struct {
	table[model.TaskReminder]
}

func NewReminderRepository(db *gorm.DB, feed Publisher) *ReminderRepository {
	return &ReminderRepository{table: newTable[model.TaskReminder](db, TableReminders, feed)}
}

// Replace deletes every reminder of the task and inserts reminder in one
// transaction, so a task never holds two pending reminders.
func (r *ReminderRepository) Replace(ctx context.Context, reminder *model.TaskReminder) (model.TaskReminder, error) {
	reminder.ScheduledAt = reminder.ScheduledAt.UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", reminder.TaskID).Delete(&model.TaskReminder{}).Error; err != nil {
			return err
		}
		return tx.Create(reminder).Error
	})
	if err != nil {
		return model.TaskReminder{}, wrap("replace reminder", err)
	}
	return *reminder, nil
}

// DeleteForTask removes all reminders of a task and reports how many existed.
func (r *ReminderRepository) DeleteForTask(ctx context.Context, taskID string) (int, error) {
	return r.removeWhere(ctx, "task_id = ?", taskID)
}

func (r *ReminderRepository) ListForTask(ctx context.Context, taskID string) ([]model.TaskReminder, error) {
	return r.list(ctx, "reminder_scheduled_at ASC", "task_id = ?", taskID)
}

// Due returns unsent reminders scheduled within [from, to]. Schedules are
// stored in UTC.
func (r *ReminderRepository) Due(ctx context.Context, from, to time.Time) ([]model.TaskReminder, error) {
	return r.list(ctx, "reminder_scheduled_at ASC",
		"reminder_sent = ? AND reminder_scheduled_at >= ? AND reminder_scheduled_at <= ?", false, from.UTC(), to.UTC())
}

func (r *ReminderRepository) MarkSent(ctx context.Context, id string) (model.TaskReminder, error) {
	return r.update(ctx, id, map[string]any{"reminder_sent": true})
}

func (r *ReminderRepository) Delete(ctx context.Context, id string) error {
	return r.remove(ctx, id)
}
