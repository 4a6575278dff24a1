package model

import "time"

// TaskReminder is consumed by the reminder sweep. A fired reminder keeps its
// row with Sent set; cancelled or rescheduled reminders are deleted.
type TaskReminder struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TaskID      string    `gorm:"type:varchar(36);index;not null" json:"task_id"`
	RecipientID string    `gorm:"column:user_id;type:varchar(36);index;not null" json:"user_id"`
	ScheduledAt time.Time `gorm:"column:reminder_scheduled_at;index" json:"reminder_scheduled_at"`
	Sent        bool      `gorm:"column:reminder_sent;default:false;index" json:"reminder_sent"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
