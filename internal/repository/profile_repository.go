package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"taskhive/internal/model"
)

// ProfileRepository handles contact preferences.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Get(ctx context.Context, id string) (model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error
	return profile, wrap("get profile", err)
}

// Upsert finds or creates the profile for id and refreshes email and name.
func (r *ProfileRepository) Upsert(ctx context.Context, id, email, fullName string) (*model.Profile, error) {
	var profile model.Profile
	db := r.db.WithContext(ctx)
	err := db.Where("id = ?", id).First(&profile).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{}
		if email != "" {
			updates["email"] = email
		}
		if fullName != "" {
			updates["full_name"] = fullName
		}
		if len(updates) == 0 {
			return &profile, nil
		}
		if err := db.Model(&profile).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
		return &profile, nil
	case err == gorm.ErrRecordNotFound:
		profile = model.Profile{
			ID:          id,
			Email:       email,
			FullName:    fullName,
			NotifyEmail: true,
			NotifyPush:  true,
		}
		if err := db.Create(&profile).Error; err != nil {
			return nil, fmt.Errorf("create profile: %w", err)
		}
		return &profile, nil
	default:
		return nil, fmt.Errorf("find profile: %w", err)
	}
}

func (r *ProfileRepository) FindByTelegramChat(ctx context.Context, chatID int64) (model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&profile).Error
	return profile, wrap("find profile by telegram chat", err)
}

// LinkTelegram attaches a chat to the profile, detaching it from any other
// profile first.
func (r *ProfileRepository) LinkTelegram(ctx context.Context, id string, chatID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Profile{}).Where("telegram_chat_id = ? AND id <> ?", chatID, id).
			Update("telegram_chat_id", nil).Error; err != nil {
			return fmt.Errorf("unlink chat: %w", err)
		}
		if err := tx.Model(&model.Profile{}).Where("id = ?", id).
			Update("telegram_chat_id", chatID).Error; err != nil {
			return fmt.Errorf("link chat: %w", err)
		}
		return nil
	})
}

func (r *ProfileRepository) SetFCMToken(ctx context.Context, id, token string) error {
	if err := r.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id).
		Update("fcm_token", token).Error; err != nil {
		return fmt.Errorf("set fcm token: %w", err)
	}
	return nil
}

// SetPreferences stores the delivery preferences for reminders.
func (r *ProfileRepository) SetPreferences(ctx context.Context, id string, email, push bool) error {
	if err := r.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id).
		Updates(map[string]interface{}{"notification_email": email, "notification_push": push}).Error; err != nil {
		return fmt.Errorf("set preferences: %w", err)
	}
	return nil
}

// ListLinked returns every profile with a Telegram chat.
func (r *ProfileRepository) ListLinked(ctx context.Context) ([]model.Profile, error) {
	var profiles []model.Profile
	if err := r.db.WithContext(ctx).Where("telegram_chat_id IS NOT NULL").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}
