package sweeper

import (
	"context"
	"time"

	"github.com/ignatzorin/jobmarket-backend/internal/logger"
)

// TransactionRetrier повторяет транзиентно упавшие транзакции.
type TransactionRetrier interface {
	RetryFailed(ctx context.Context, batch int) (int, error)
}

// RetrySweeper периодически добивает упавшие депозиты и выводы.
// Политику ретраев (паузы, лимит попыток, классы ошибок) знает сервис
// кошельков; sweeper отвечает только за расписание.
type RetrySweeper struct {
	wallet TransactionRetrier
	period time.Duration
	batch  int
}

// NewRetrySweeper создаёт sweeper ретраев.
func NewRetrySweeper(wallet TransactionRetrier, period time.Duration, batch int) *RetrySweeper {
	if batch <= 0 {
		batch = 50
	}
	return &RetrySweeper{wallet: wallet, period: period, batch: batch}
}

// Start ставит sweeper на расписание.
func (s *RetrySweeper) Start(ctx context.Context, scheduler Scheduler) {
	scheduler.Schedule(ctx, "transaction_retry", s.period, s.Sweep)
}

// Sweep — один проход по упавшим транзакциям.
func (s *RetrySweeper) Sweep(ctx context.Context) {
	recovered, err := s.wallet.RetryFailed(ctx, s.batch)
	if err != nil {
		logger.Log.WithError(err).Error("sweeper: проход по упавшим транзакциям не удался")
		return
	}
	if recovered > 0 {
		logger.Log.WithField("count", recovered).Info("sweeper: транзакции восстановлены ретраем")
	}
}
