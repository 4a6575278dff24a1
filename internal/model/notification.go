package model

import "time"

type NotificationType string

const (
	NotifyTaskCreated   NotificationType = "task_created"
	NotifyTaskAssigned  NotificationType = "task_assigned"
	NotifyTaskCompleted NotificationType = "task_completed"
	NotifyTaskReminder  NotificationType = "task_reminder"
	NotifyMemberAdded   NotificationType = "member_added"
	NotifyMemberRemoved NotificationType = "member_removed"
)

// Notification is a persisted message for one recipient. Read only ever
// flips from false to true.
type Notification struct {
	ID             string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RecipientID    string           `gorm:"column:user_id;type:varchar(36);index;not null" json:"user_id"`
	Message        string           `gorm:"not null" json:"message"`
	Type           NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	TaskID         *string          `gorm:"type:varchar(36)" json:"task_id,omitempty"`
	OrganizationID *string          `gorm:"type:varchar(36)" json:"organization_id,omitempty"`
	Read           bool             `gorm:"default:false" json:"read"`
	CreatedAt      time.Time        `json:"created_at"`
}

func (n Notification) RowID() string { return n.ID }

// Supersedes refuses any version that would mark a read notification unread.
func (n Notification) Supersedes(old Notification) bool { return n.Read || !old.Read }

// Title is the short headline used by push and local notifications.
func (n Notification) Title() string {
	switch n.Type {
	case NotifyTaskCreated:
		return "New team task"
	case NotifyTaskAssigned:
		return "Task assigned"
	case NotifyTaskCompleted:
		return "Task completed"
	case NotifyTaskReminder:
		return "Task reminder"
	case NotifyMemberAdded:
		return "New member"
	case NotifyMemberRemoved:
		return "Removed from team"
	default:
		return "TaskHive"
	}
}
