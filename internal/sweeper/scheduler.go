package sweeper

import (
	"context"
	"time"

	"github.com/ignatzorin/jobmarket-backend/internal/goroutine"
	"github.com/ignatzorin/jobmarket-backend/internal/logger"
)

// Scheduler запускает периодическую задачу. Интерфейс отделён от
// time.Ticker, чтобы тесты могли дёргать задачи вручную без ожидания
// реального времени.
type Scheduler interface {
	Schedule(ctx context.Context, name string, period time.Duration, task func(context.Context))
}

// TickerScheduler — продакшен-планировщик на time.Ticker.
// Каждая задача живёт в своей горутине с recovery: паника одного
// прохода не убивает расписание.
type TickerScheduler struct {
	recovery *goroutine.RecoveryHandler
}

// NewTickerScheduler создаёт планировщик.
func NewTickerScheduler(recovery *goroutine.RecoveryHandler) *TickerScheduler {
	return &TickerScheduler{recovery: recovery}
}

// Schedule запускает задачу с заданным периодом до отмены контекста.
func (s *TickerScheduler) Schedule(ctx context.Context, name string, period time.Duration, task func(context.Context)) {
	s.recovery.SafeGoWithContext(ctx, func(ctx context.Context) {
		logger.Log.WithFields(map[string]interface{}{
			"task":   name,
			"period": period.String(),
		}).Info("sweeper: задача запланирована")

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Log.WithField("task", name).Info("sweeper: задача остановлена")
				return
			case <-ticker.C:
				s.runOnce(ctx, name, task)
			}
		}
	})
}

// runOnce выполняет один проход задачи, изолируя панику.
func (s *TickerScheduler) runOnce(ctx context.Context, name string, task func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithFields(map[string]interface{}{
				"task":  name,
				"panic": r,
			}).Error("sweeper: паника в проходе задачи")
		}
	}()
	task(ctx)
}
