package service

import (
	"context"
	"errors"

	"github.com/ignatzorin/jobmarket-backend/internal/gateway"
	"github.com/ignatzorin/jobmarket-backend/internal/logger"
	"github.com/ignatzorin/jobmarket-backend/internal/models"
	"github.com/ignatzorin/jobmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/jobmarket-backend/internal/repository"
)

// События кошелька, рассылаемые по итогам сверки.
const (
	EventDepositSucceeded = "deposit_succeeded"
	EventDepositFailed    = "deposit_failed"
)

// ReconcileService сводит асинхронные события шлюза с журналом
// транзакций. Вебхуки приходят с повторами и не по порядку, поэтому
// каждая ветка идемпотентна: событие по уже завершённой или неизвестной
// транзакции — no-op, а не ошибка.
type ReconcileService struct {
	txns     TransactionRepo
	gw       gateway.Gateway
	notifier Notifier
}

// NewReconcileService создаёт обработчик вебхуков.
func NewReconcileService(txns TransactionRepo, gw gateway.Gateway, notifier Notifier) *ReconcileService {
	return &ReconcileService{txns: txns, gw: gw, notifier: notifier}
}

// HandleEvent проверяет подпись события и применяет его к журналу.
func (s *ReconcileService) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gw.VerifyWebhook(payload, signature)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeBadRequest, "невалидная подпись вебхука")
	}
	if event.Type == gateway.EventIgnored {
		return nil
	}

	txn, err := s.txns.GetByGatewayRef(ctx, event.Ref)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			// Событие по чужому или уже вычищенному платежу.
			logger.Log.WithField("gateway_ref", event.Ref).
				Warn("reconcile: событие по неизвестной транзакции пропущено")
			return nil
		}
		return err
	}

	switch event.Type {
	case gateway.EventChargeSucceeded:
		return s.applySuccess(ctx, txn)
	case gateway.EventChargeFailed, gateway.EventChargeCanceled:
		return s.applyFailure(ctx, txn, event.FailureReason)
	}
	return nil
}

// applySuccess зачисляет подтверждённый депозит.
func (s *ReconcileService) applySuccess(ctx context.Context, txn *models.Transaction) error {
	completed, err := s.txns.CompleteDeposit(ctx, txn.ID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionProcessed) {
			return nil
		}
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"transaction_id": completed.ID,
		"amount":         completed.Amount,
	}).Info("reconcile: депозит подтверждён вебхуком")

	if completed.ToUserID != nil {
		s.notifier.Notify(*completed.ToUserID, EventDepositSucceeded, map[string]interface{}{
			"transaction_id": completed.ID,
			"amount":         completed.Amount,
		})
	}
	return nil
}

// applyFailure фиксирует терминальный отказ платежа. Отказ из вебхука —
// всегда карточный: шлюз уже сам исчерпал свои внутренние попытки.
func (s *ReconcileService) applyFailure(ctx context.Context, txn *models.Transaction, reason string) error {
	failed, err := s.txns.FailDeposit(ctx, txn.ID, reason, models.ErrorKindCard)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionProcessed) {
			// Транзакция уже упала транзиентно: добиваем до терминала.
			tErr := s.txns.MarkDepositTerminal(ctx, txn.ID, reason)
			if tErr != nil && !errors.Is(tErr, repository.ErrTransactionProcessed) {
				return tErr
			}
			return nil
		}
		return err
	}

	if failed.ToUserID != nil {
		s.notifier.Notify(*failed.ToUserID, EventDepositFailed, map[string]interface{}{
			"transaction_id": failed.ID,
			"amount":         failed.Amount,
			"reason":         reason,
		})
	}
	return nil
}
