package model

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// Task represents a single item in the planner. Status transitions are free:
// any status may follow any other.
type Task struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title          string     `gorm:"not null" json:"title"`
	Description    string     `json:"description,omitempty"`
	Priority       Priority   `gorm:"type:varchar(16);default:medium" json:"priority"`
	Status         TaskStatus `gorm:"type:varchar(16);default:pending;index" json:"status"`
	Category       string     `json:"category,omitempty"`
	DueDate        *time.Time `gorm:"index" json:"due_date,omitempty"`
	OwnerID        string     `gorm:"column:user_id;type:varchar(36);index;not null" json:"user_id"`
	AssigneeID     *string    `gorm:"column:assigned_to;type:varchar(36);index" json:"assigned_to,omitempty"`
	OrganizationID *string    `gorm:"type:varchar(36);index" json:"organization_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (t Task) RowID() string { return t.ID }

// Supersedes reports whether t is at least as recent as old.
func (t Task) Supersedes(old Task) bool { return !t.UpdatedAt.Before(old.UpdatedAt) }

func (t Task) Completed() bool { return t.Status == StatusCompleted }

// AssignedTo returns the assignee id, or "" when unassigned.
func (t Task) AssignedTo() string {
	if t.AssigneeID == nil {
		return ""
	}
	return *t.AssigneeID
}

func (t Task) Organization() string {
	if t.OrganizationID == nil {
		return ""
	}
	return *t.OrganizationID
}

// TaskDraft carries the user-supplied fields of a new task.
type TaskDraft struct {
	Title          string     `json:"title" validate:"required,notblank"`
	Description    string     `json:"description,omitempty"`
	Priority       Priority   `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Status         TaskStatus `json:"status,omitempty" validate:"omitempty,oneof=pending in_progress completed"`
	Category       string     `json:"category,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	AssigneeID     string     `json:"assigned_to,omitempty"`
	OrganizationID string     `json:"organization_id,omitempty"`
}

// Row builds the row to insert for owner.
func (d TaskDraft) Row(ownerID string) Task {
	task := Task{
		Title:       d.Title,
		Description: d.Description,
		Priority:    d.Priority,
		Status:      d.Status,
		Category:    d.Category,
		DueDate:     d.DueDate,
		OwnerID:     ownerID,
	}
	if task.Priority == "" {
		task.Priority = PriorityMedium
	}
	if task.Status == "" {
		task.Status = StatusPending
	}
	if d.AssigneeID != "" {
		assignee := d.AssigneeID
		task.AssigneeID = &assignee
	}
	if d.OrganizationID != "" {
		org := d.OrganizationID
		task.OrganizationID = &org
	}
	return task
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title        *string     `validate:"omitempty,min=1,notblank"`
	Description  *string
	Priority     *Priority   `validate:"omitempty,oneof=low medium high"`
	Status       *TaskStatus `validate:"omitempty,oneof=pending in_progress completed"`
	Category     *string
	DueDate      *time.Time
	ClearDueDate bool
	AssigneeID   *string
}

// Columns maps the patch onto column updates.
func (p TaskPatch) Columns() map[string]any {
	cols := make(map[string]any)
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Priority != nil {
		cols["priority"] = *p.Priority
	}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.Category != nil {
		cols["category"] = *p.Category
	}
	switch {
	case p.ClearDueDate:
		cols["due_date"] = nil
	case p.DueDate != nil:
		cols["due_date"] = *p.DueDate
	}
	if p.AssigneeID != nil {
		if *p.AssigneeID == "" {
			cols["assigned_to"] = nil
		} else {
			cols["assigned_to"] = *p.AssigneeID
		}
	}
	return cols
}

// TouchesDueDate reports whether the patch sets or clears the due date.
func (p TaskPatch) TouchesDueDate() bool { return p.ClearDueDate || p.DueDate != nil }
