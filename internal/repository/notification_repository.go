package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/jobmarket-backend/internal/models"
)

// NotificationRepository хранит уведомления, чтобы офлайн-пользователь
// увидел их при следующем входе.
type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create сохраняет уведомление.
func (r *NotificationRepository) Create(ctx context.Context, userID uuid.UUID, payload json.RawMessage) (*models.Notification, error) {
	var n models.Notification
	err := r.db.GetContext(ctx, &n, `
		INSERT INTO notifications (user_id, payload)
		VALUES ($1, $2)
		RETURNING *
	`, userID, payload)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByUser возвращает уведомления пользователя, новые сверху.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	list := []models.Notification{}
	err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return list, err
}

// MarkRead помечает уведомление прочитанным.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2
	`, id, userID)
	return err
}
