package model

import "time"

// Profile stores contact preferences for an identity.
type Profile struct {
	ID             string `gorm:"primaryKey;type:varchar(36)"`
	Email          string `gorm:"index"`
	FullName       string
	FCMToken       string
	TelegramChatID *int64 `gorm:"uniqueIndex"`
	NotifyEmail    bool   `gorm:"column:notification_email;default:true"`
	NotifyPush     bool   `gorm:"column:notification_push;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DisplayName falls back to the email when no name is set.
func (p Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	if p.Email != "" {
		return p.Email
	}
	return "there"
}
