package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/jobmarket-backend/internal/goroutine"
	"github.com/ignatzorin/jobmarket-backend/internal/logger"
	"github.com/ignatzorin/jobmarket-backend/internal/models"
)

// NotificationRepo — хранилище уведомлений.
type NotificationRepo interface {
	Create(ctx context.Context, userID uuid.UUID, payload json.RawMessage) (*models.Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
}

// Pusher доставляет уведомление онлайн-пользователю. Возвращает false,
// если пользователь не подключён.
type Pusher interface {
	Push(userID uuid.UUID, payload []byte) bool
}

// NotificationService сохраняет уведомления и пушит их по websocket.
// Доставка — fire-and-forget: денежные переходы никогда не ждут её и
// не откатываются из-за её сбоев.
type NotificationService struct {
	repo     NotificationRepo
	pusher   Pusher
	recovery *goroutine.RecoveryHandler
}

// NewNotificationService создаёт диспетчер уведомлений.
func NewNotificationService(repo NotificationRepo, pusher Pusher, recovery *goroutine.RecoveryHandler) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher, recovery: recovery}
}

// Notify асинхронно сохраняет и доставляет событие пользователю.
func (s *NotificationService) Notify(userID uuid.UUID, event string, data map[string]interface{}) {
	s.recovery.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		payload, err := json.Marshal(map[string]interface{}{
			"event": event,
			"data":  data,
		})
		if err != nil {
			logger.Log.WithError(err).Error("notification: не удалось сериализовать событие")
			return
		}

		if _, err := s.repo.Create(ctx, userID, payload); err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"user_id": userID,
				"event":   event,
			}).WithError(err).Error("notification: не удалось сохранить уведомление")
		}

		if s.pusher != nil {
			s.pusher.Push(userID, payload)
		}
	})
}

// List возвращает уведомления пользователя.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	return s.repo.ListByUser(ctx, userID, normalizeLimit(limit), offset)
}

// MarkRead помечает уведомление прочитанным.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}
