package repository

import (
	"context"

	"gorm.io/gorm"

	"taskhive/internal/model"
)

// HabitRepository handles CRUD for habits.
type HabitRepository struct {
	table[model.Habit]
}

func NewHabitRepository(db *gorm.DB, feed Publisher) *HabitRepository {
	return &HabitRepository{table: newTable[model.Habit](db, TableHabits, feed)}
}

func (r *HabitRepository) ListByUser(ctx context.Context, userID string) ([]model.Habit, error) {
	return r.list(ctx, "created_at DESC", "user_id = ?", userID)
}

func (r *HabitRepository) Get(ctx context.Context, id string) (model.Habit, error) {
	return r.get(ctx, id)
}

func (r *HabitRepository) Insert(ctx context.Context, habit *model.Habit) (model.Habit, error) {
	return r.insert(ctx, habit)
}

func (r *HabitRepository) Update(ctx context.Context, id string, cols map[string]any) (model.Habit, error) {
	return r.update(ctx, id, cols)
}

// Delete removes the habit together with its completions.
func (r *HabitRepository) Delete(ctx context.Context, id string) error {
	completions := newTable[model.HabitCompletion](r.db, TableCompletions, r.feed)
	if _, err := completions.removeWhere(ctx, "habit_id = ?", id); err != nil {
		return err
	}
	return r.remove(ctx, id)
}

// CompletionRepository appends habit completions. Completions are never
// updated.
type CompletionRepository struct {
	table[model.HabitCompletion]
}

func NewCompletionRepository(db *gorm.DB, feed Publisher) *CompletionRepository {
	return &CompletionRepository{table: newTable[model.HabitCompletion](db, TableCompletions, feed)}
}

func (r *CompletionRepository) ListByUser(ctx context.Context, userID string) ([]model.HabitCompletion, error) {
	return r.list(ctx, "completed_at DESC", "user_id = ?", userID)
}

func (r *CompletionRepository) ListByHabit(ctx context.Context, habitID string) ([]model.HabitCompletion, error) {
	return r.list(ctx, "completed_at DESC", "habit_id = ?", habitID)
}

func (r *CompletionRepository) Insert(ctx context.Context, completion *model.HabitCompletion) (model.HabitCompletion, error) {
	return r.insert(ctx, completion)
}
