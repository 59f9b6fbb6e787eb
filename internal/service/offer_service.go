package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/jobmarket-backend/internal/logger"
	"github.com/ignatzorin/jobmarket-backend/internal/models"
	"github.com/ignatzorin/jobmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/jobmarket-backend/internal/repository"
)

// OfferRepo описывает переходы машины состояний, которые сервис
// делегирует хранилищу. Каждый метод атомарен.
type OfferRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Offer, error)
	ListExpired(ctx context.Context, limit int) ([]models.Offer, error)
	CreateWithHold(ctx context.Context, offer *models.Offer) error
	Accept(ctx context.Context, offerID, contractorID, platformID uuid.UUID) (*models.Offer, []uuid.UUID, error)
	Reject(ctx context.Context, offerID, contractorID uuid.UUID, reason string) (*models.Offer, error)
	Cancel(ctx context.Context, offerID, customerID uuid.UUID, reason string) (*models.Offer, error)
	Expire(ctx context.Context, offerID uuid.UUID) (*models.Offer, error)
	Complete(ctx context.Context, offerID, customerID, platformID uuid.UUID) (*models.Offer, error)
}

// EngagementRepo — доступ к связкам заказчик-исполнитель.
type EngagementRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Engagement, error)
}

// JobRepo — доступ к заданиям.
type JobRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// Notifier доставляет событие пользователю. Доставка не участвует в
// денежной транзакции: её отказ не откатывает переход.
type Notifier interface {
	Notify(userID uuid.UUID, event string, data map[string]interface{})
}

// События, рассылаемые движком офферов.
const (
	EventOfferReceived       = "offer_received"
	EventOfferAccepted       = "offer_accepted"
	EventOfferRejected       = "offer_rejected"
	EventOfferCancelled      = "offer_cancelled"
	EventOfferExpired        = "offer_expired"
	EventOfferCompleted      = "offer_completed"
	EventEngagementCancelled = "engagement_cancelled"
)

// OfferService управляет жизненным циклом офферов. Сервис проверяет
// права и входные данные; гонки за статус разрешает хранилище.
type OfferService struct {
	offers      OfferRepo
	engagements EngagementRepo
	jobs        JobRepo
	notifier    Notifier
	fees        FeeSchedule
	platformID  uuid.UUID
	offerTTL    time.Duration
}

// SendOfferInput — данные нового оффера.
type SendOfferInput struct {
	EngagementID uuid.UUID
	Amount       float64
	Timeline     *string
	Description  *string
}

// NewOfferService создаёт сервис офферов.
func NewOfferService(
	offers OfferRepo,
	engagements EngagementRepo,
	jobs JobRepo,
	notifier Notifier,
	fees FeeSchedule,
	platformID uuid.UUID,
	offerTTL time.Duration,
) *OfferService {
	return &OfferService{
		offers:      offers,
		engagements: engagements,
		jobs:        jobs,
		notifier:    notifier,
		fees:        fees,
		platformID:  platformID,
		offerTTL:    offerTTL,
	}
}

// Send отправляет оффер исполнителю по существующей связке. Полная
// стоимость (сумма + комиссия платформы) сразу уходит в эскроу.
func (s *OfferService) Send(ctx context.Context, customerID uuid.UUID, in SendOfferInput) (*models.Offer, error) {
	engagement, err := s.engagements.GetByID(ctx, in.EngagementID)
	if err != nil {
		if errors.Is(err, repository.ErrEngagementNotFound) {
			return nil, apperror.ErrEngagementNotFound
		}
		return nil, err
	}
	if engagement.CustomerID != customerID {
		return nil, apperror.ErrForbidden
	}
	if engagement.Status != models.EngagementStatusRequested && engagement.Status != models.EngagementStatusEngaged {
		return nil, apperror.New(apperror.ErrCodeConflict, "по отклику уже есть оффер")
	}

	job, err := s.jobs.GetByID(ctx, engagement.JobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	if job.Status != models.JobStatusOpen {
		return nil, apperror.New(apperror.ErrCodeConflict, "задание уже не открыто")
	}

	quote, err := s.fees.Quote(in.Amount)
	if err != nil {
		return nil, err
	}

	offer := &models.Offer{
		JobID:            engagement.JobID,
		EngagementID:     engagement.ID,
		CustomerID:       engagement.CustomerID,
		ContractorID:     engagement.ContractorID,
		Amount:           quote.Amount,
		PlatformFee:      quote.PlatformFee,
		ServiceFee:       quote.ServiceFee,
		ContractorPayout: quote.ContractorPayout,
		TotalCharge:      quote.TotalCharge,
		Timeline:         in.Timeline,
		Description:      in.Description,
		ExpiresAt:        time.Now().Add(s.offerTTL),
	}

	if err := s.offers.CreateWithHold(ctx, offer); err != nil {
		return nil, translateOfferErr(err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"offer_id":     offer.ID,
		"job_id":       offer.JobID,
		"total_charge": offer.TotalCharge,
	}).Info("offer: отправлен, средства зарезервированы")

	s.notifier.Notify(offer.ContractorID, EventOfferReceived, offerPayload(offer))
	return offer, nil
}

// Get возвращает оффер участнику сделки.
func (s *OfferService) Get(ctx context.Context, userID uuid.UUID, role string, offerID uuid.UUID) (*models.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, translateOfferErr(err)
	}
	if err := authorizeOffer(userID, role, offer, ActionViewOffer); err != nil {
		return nil, err
	}
	return offer, nil
}

// ListByUser возвращает офферы пользователя.
func (s *OfferService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Offer, error) {
	return s.offers.ListByUser(ctx, userID, normalizeLimit(limit), offset)
}

// Accept принимает оффер: деньги переходят из эскроу заказчика на
// кошелёк платформы, задание назначается исполнителю, конкурирующие
// связки отменяются.
func (s *OfferService) Accept(ctx context.Context, userID uuid.UUID, role string, offerID uuid.UUID) (*models.Offer, error) {
	current, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, translateOfferErr(err)
	}
	if err := authorizeOffer(userID, role, current, ActionAcceptOffer); err != nil {
		return nil, err
	}

	offer, losers, err := s.offers.Accept(ctx, offerID, current.ContractorID, s.platformID)
	if err != nil {
		return nil, translateOfferErr(err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"offer_id": offer.ID,
		"job_id":   offer.JobID,
	}).Info("offer: принят")

	s.notifier.Notify(offer.CustomerID, EventOfferAccepted, offerPayload(offer))
	for _, loser := range losers {
		s.notifier.Notify(loser, EventEngagementCancelled, map[string]interface{}{
			"job_id": offer.JobID,
		})
	}
	return offer, nil
}

// Reject отклоняет оффер, эскроу возвращается заказчику.
func (s *OfferService) Reject(ctx context.Context, userID uuid.UUID, role string, offerID uuid.UUID, reason string) (*models.Offer, error) {
	current, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, translateOfferErr(err)
	}
	if err := authorizeOffer(userID, role, current, ActionRejectOffer); err != nil {
		return nil, err
	}

	offer, err := s.offers.Reject(ctx, offerID, current.ContractorID, reason)
	if err != nil {
		return nil, translateOfferErr(err)
	}

	s.notifier.Notify(offer.CustomerID, EventOfferRejected, offerPayload(offer))
	return offer, nil
}

// Cancel отзывает ещё не принятый оффер, эскроу возвращается заказчику.
func (s *OfferService) Cancel(ctx context.Context, userID uuid.UUID, role string, offerID uuid.UUID, reason string) (*models.Offer, error) {
	current, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, translateOfferErr(err)
	}
	if err := authorizeOffer(userID, role, current, ActionCancelOffer); err != nil {
		return nil, err
	}

	offer, err := s.offers.Cancel(ctx, offerID, current.CustomerID, reason)
	if err != nil {
		return nil, translateOfferErr(err)
	}

	s.notifier.Notify(offer.ContractorID, EventOfferCancelled, offerPayload(offer))
	return offer, nil
}

// Complete завершает принятый оффер: платформа выплачивает исполнителю
// сумму за вычетом сервисного сбора.
func (s *OfferService) Complete(ctx context.Context, userID uuid.UUID, role string, offerID uuid.UUID) (*models.Offer, error) {
	current, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, translateOfferErr(err)
	}
	if err := authorizeOffer(userID, role, current, ActionCompleteOffer); err != nil {
		return nil, err
	}

	offer, err := s.offers.Complete(ctx, offerID, current.CustomerID, s.platformID)
	if err != nil {
		return nil, translateOfferErr(err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"offer_id": offer.ID,
		"payout":   offer.ContractorPayout,
	}).Info("offer: завершён, выплата исполнителю проведена")

	s.notifier.Notify(offer.ContractorID, EventOfferCompleted, offerPayload(offer))
	return offer, nil
}

// ExpireDue закрывает просроченные офферы пачкой. Ошибка по одному
// офферу не останавливает остальных. Возвращает число закрытых.
func (s *OfferService) ExpireDue(ctx context.Context, batch int) (int, error) {
	due, err := s.offers.ListExpired(ctx, batch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, o := range due {
		offer, err := s.offers.Expire(ctx, o.ID)
		if err != nil {
			// Гонка со свежим accept/reject — штатная ситуация.
			if errors.Is(err, repository.ErrOfferProcessed) {
				continue
			}
			logger.Log.WithField("offer_id", o.ID).WithError(err).
				Error("offer: не удалось закрыть просроченный оффер")
			continue
		}
		expired++
		s.notifier.Notify(offer.CustomerID, EventOfferExpired, offerPayload(offer))
		s.notifier.Notify(offer.ContractorID, EventOfferExpired, offerPayload(offer))
	}
	return expired, nil
}

// translateOfferErr переводит ошибки хранилища в ошибки уровня API.
func translateOfferErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrOfferNotFound):
		return apperror.ErrOfferNotFound
	case errors.Is(err, repository.ErrOfferProcessed):
		return apperror.ErrAlreadyProcessed
	case errors.Is(err, repository.ErrActiveOfferExists):
		return apperror.ErrActiveOfferExists
	case errors.Is(err, repository.ErrInsufficientFunds):
		return apperror.ErrInsufficientBalance
	case errors.Is(err, repository.ErrWalletFrozen):
		return apperror.ErrWalletFrozen
	case errors.Is(err, repository.ErrWalletNotFound):
		return apperror.ErrWalletNotFound
	case errors.Is(err, repository.ErrEngagementNotFound):
		return apperror.ErrEngagementNotFound
	case errors.Is(err, repository.ErrJobNotFound):
		return apperror.ErrJobNotFound
	}
	return err
}

// offerPayload — данные оффера для уведомления.
func offerPayload(offer *models.Offer) map[string]interface{} {
	return map[string]interface{}{
		"offer_id": offer.ID,
		"job_id":   offer.JobID,
		"amount":   offer.Amount,
		"status":   offer.Status,
	}
}

// normalizeLimit ограничивает размер страницы.
func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
