package model

import "time"

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Habit is a recurring practice tracked through completions.
type Habit struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description,omitempty"`
	Frequency   Frequency `gorm:"type:varchar(16);default:daily" json:"frequency"`
	Category    string    `json:"category,omitempty"`
	OwnerID     string    `gorm:"column:user_id;type:varchar(36);index;not null" json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (h Habit) RowID() string { return h.ID }

func (h Habit) Supersedes(old Habit) bool { return !h.UpdatedAt.Before(old.UpdatedAt) }

type HabitDraft struct {
	Name        string    `json:"name" validate:"required,notblank"`
	Description string    `json:"description,omitempty"`
	Frequency   Frequency `json:"frequency,omitempty" validate:"omitempty,oneof=daily weekly monthly"`
	Category    string    `json:"category,omitempty"`
}

func (d HabitDraft) Row(ownerID string) Habit {
	habit := Habit{
		Name:        d.Name,
		Description: d.Description,
		Frequency:   d.Frequency,
		Category:    d.Category,
		OwnerID:     ownerID,
	}
	if habit.Frequency == "" {
		habit.Frequency = FrequencyDaily
	}
	return habit
}

type HabitPatch struct {
	Name        *string    `validate:"omitempty,min=1,notblank"`
	Description *string
	Frequency   *Frequency `validate:"omitempty,oneof=daily weekly monthly"`
	Category    *string
}

func (p HabitPatch) Columns() map[string]any {
	cols := make(map[string]any)
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Frequency != nil {
		cols["frequency"] = *p.Frequency
	}
	if p.Category != nil {
		cols["category"] = *p.Category
	}
	return cols
}

// HabitCompletion is append-only. Several rows may exist for one day; the
// streak calculation counts a day once.
type HabitCompletion struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	HabitID     string    `gorm:"type:varchar(36);index;not null" json:"habit_id"`
	OwnerID     string    `gorm:"column:user_id;type:varchar(36);index;not null" json:"user_id"`
	CompletedAt time.Time `gorm:"index" json:"completed_at"`
	Note        string    `gorm:"column:notes" json:"notes,omitempty"`
}

func (c HabitCompletion) RowID() string { return c.ID }

// Supersedes is always true: completions are never updated.
func (c HabitCompletion) Supersedes(HabitCompletion) bool { return true }
