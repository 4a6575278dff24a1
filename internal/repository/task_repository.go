package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"taskhive/internal/model"
)

// Table names as seen by the change feed.
const (
	TableTasks         = "tasks"
	TableHabits        = "habits"
	TableCompletions   = "habit_completions"
	TableOrganizations = "organizations"
	TableMembers       = "organization_members"
	TableNotifications = "notifications"
	TableReminders     = "task_reminders"
	TableProfiles      = "profiles"
)

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	table[model.Task]
}

func NewTaskRepository(db *gorm.DB, feed Publisher) *TaskRepository {
	return &TaskRepository{table: newTable[model.Task](db, TableTasks, feed)}
}

// ListVisible returns tasks the user owns, is assigned to, or can see through
// an organization membership, newest first.
func (r *TaskRepository) ListVisible(ctx context.Context, userID string) ([]model.Task, error) {
	memberOf := r.db.Model(&model.OrganizationMember{}).Select("organization_id").Where("user_id = ?", userID)
	return r.list(ctx, "created_at DESC",
		"user_id = ? OR assigned_to = ? OR organization_id IN (?)", userID, userID, memberOf)
}

func (r *TaskRepository) Get(ctx context.Context, id string) (model.Task, error) {
	return r.get(ctx, id)
}

func (r *TaskRepository) Insert(ctx context.Context, task *model.Task) (model.Task, error) {
	return r.insert(ctx, task)
}

func (r *TaskRepository) Update(ctx context.Context, id string, cols map[string]any) (model.Task, error) {
	return r.update(ctx, id, cols)
}

// Delete removes a task. Missing tasks are ignored.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	if err := r.remove(ctx, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
