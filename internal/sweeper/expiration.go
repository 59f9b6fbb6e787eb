package sweeper

import (
	"context"
	"time"

	"github.com/ignatzorin/jobmarket-backend/internal/logger"
)

// OfferExpirer закрывает просроченные офферы пачкой.
type OfferExpirer interface {
	ExpireDue(ctx context.Context, batch int) (int, error)
}

// ExpirationSweeper периодически закрывает просроченные pending-офферы
// и возвращает их эскроу заказчикам.
type ExpirationSweeper struct {
	offers OfferExpirer
	period time.Duration
	batch  int
}

// NewExpirationSweeper создаёт sweeper просроченных офферов.
func NewExpirationSweeper(offers OfferExpirer, period time.Duration, batch int) *ExpirationSweeper {
	if batch <= 0 {
		batch = 100
	}
	return &ExpirationSweeper{offers: offers, period: period, batch: batch}
}

// Start ставит sweeper на расписание.
func (s *ExpirationSweeper) Start(ctx context.Context, scheduler Scheduler) {
	scheduler.Schedule(ctx, "offer_expiration", s.period, s.Sweep)
}

// Sweep — один проход: закрывает до batch просроченных офферов.
func (s *ExpirationSweeper) Sweep(ctx context.Context) {
	expired, err := s.offers.ExpireDue(ctx, s.batch)
	if err != nil {
		logger.Log.WithError(err).Error("sweeper: проход по просроченным офферам не удался")
		return
	}
	if expired > 0 {
		logger.Log.WithField("count", expired).Info("sweeper: просроченные офферы закрыты")
	}
}
