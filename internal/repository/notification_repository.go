package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"taskhive/internal/model"
)

// NotificationRepository stores per-recipient notifications.
type NotificationRepository struct {
	table[model.Notification]
}

func NewNotificationRepository(db *gorm.DB, feed Publisher) *NotificationRepository {
	return &NotificationRepository{table: newTable[model.Notification](db, TableNotifications, feed)}
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	var rows []model.Notification
	db := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if err := db.Find(&rows).Error; err != nil {
		return nil, wrap("list notifications", err)
	}
	return rows, nil
}

func (r *NotificationRepository) Insert(ctx context.Context, n *model.Notification) (model.Notification, error) {
	return r.insert(ctx, n)
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) (model.Notification, error) {
	return r.update(ctx, id, map[string]any{"read": true})
}

// MarkAllRead flips every unread notification of userID and returns how many
// changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	unread, err := r.list(ctx, "", "user_id = ? AND read = ?", userID, false)
	if err != nil {
		return 0, err
	}
	for _, n := range unread {
		if _, err := r.update(ctx, n.ID, map[string]any{"read": true}); err != nil && !IsNotFound(err) {
			return 0, fmt.Errorf("mark notification %s read: %w", n.ID, err)
		}
	}
	return len(unread), nil
}
