package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/jobmarket-backend/internal/gateway"
	"github.com/ignatzorin/jobmarket-backend/internal/logger"
	"github.com/ignatzorin/jobmarket-backend/internal/models"
	"github.com/ignatzorin/jobmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/jobmarket-backend/internal/repository"
)

// WalletRepo — операции с кошельками, нужные сервису.
type WalletRepo interface {
	EnsureWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	SetFrozen(ctx context.Context, userID uuid.UUID, frozen bool) error
	SetGatewayCustomer(ctx context.Context, userID uuid.UUID, ref string) error
	SetGatewayAccount(ctx context.Context, userID uuid.UUID, ref string, verified bool) error
}

// TransactionRepo — журнал и атомарные единицы депозита/вывода.
type TransactionRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error)
	GetByGatewayRef(ctx context.Context, ref string) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	CreatePendingDeposit(ctx context.Context, userID uuid.UUID, amount float64, idempotencyKey string) (*models.Transaction, error)
	SetGatewayRef(ctx context.Context, id uuid.UUID, ref, gatewayStatus string) error
	CompleteDeposit(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FailDeposit(ctx context.Context, id uuid.UUID, reason string, kind string) (*models.Transaction, error)
	MarkDepositTerminal(ctx context.Context, id uuid.UUID, reason string) error
	CreateWithdrawal(ctx context.Context, userID uuid.UUID, amount float64, idempotencyKey string) (*models.Transaction, error)
	CompleteWithdrawal(ctx context.Context, id uuid.UUID, gatewayRef string) (*models.Transaction, error)
	FailWithdrawal(ctx context.Context, id uuid.UUID, reason string, kind string) (*models.Transaction, error)
	RefundWithdrawal(ctx context.Context, id uuid.UUID) error
	ListRetryable(ctx context.Context, attemptsCap, limit int) ([]models.Transaction, error)
	ListStalePendingDeposits(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error)
	BumpRetry(ctx context.Context, id uuid.UUID) error
}

// Паузы между ретраями по номеру попытки. Дальше последней — всегда
// последняя пауза, пока не исчерпается лимит попыток.
var retryBackoff = []time.Duration{5 * time.Minute, 30 * time.Minute, 2 * time.Hour}

// Депозит, висящий в pending без ссылки шлюза дольше этого срока, считается
// несозданным: процесс упал между записью pending и вызовом шлюза.
const stalePendingAfter = time.Hour

// WalletService обслуживает кошельки: депозиты через платёжный шлюз,
// выводы на подключённые аккаунты, история операций и ретраи.
// Инвариант слоёв: вызовы шлюза никогда не делаются внутри открытой
// транзакции БД — сначала фиксируется pending-запись, затем идёт сеть.
type WalletService struct {
	wallets WalletRepo
	txns    TransactionRepo
	gw      gateway.Gateway

	gatewayTimeout time.Duration
	minWithdrawal  float64
	attemptsCap    int
}

// NewWalletService создаёт сервис кошельков.
func NewWalletService(wallets WalletRepo, txns TransactionRepo, gw gateway.Gateway, gatewayTimeout time.Duration, minWithdrawal float64, attemptsCap int) *WalletService {
	return &WalletService{
		wallets:        wallets,
		txns:           txns,
		gw:             gw,
		gatewayTimeout: gatewayTimeout,
		minWithdrawal:  minWithdrawal,
		attemptsCap:    attemptsCap,
	}
}

// Balance возвращает кошелёк пользователя, создавая его при необходимости.
func (s *WalletService) Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return s.wallets.EnsureWallet(ctx, userID)
}

// Transactions возвращает историю операций пользователя.
func (s *WalletService) Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	return s.txns.ListByUser(ctx, userID, normalizeLimit(limit), offset)
}

// Deposit инициирует пополнение через платёжный шлюз. Баланс вырастет
// только после подтверждения платежа (синхронного или по вебхуку).
// Повторный вызов с тем же идемпотентным ключом возвращает исходную
// транзакцию и не создаёт второй платёж.
func (s *WalletService) Deposit(ctx context.Context, userID uuid.UUID, email string, amount float64, idempotencyKey string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма пополнения должна быть положительной")
	}
	if idempotencyKey == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "идемпотентный ключ обязателен")
	}

	if existing, err := s.txns.GetByIdempotencyKey(ctx, idempotencyKey); err == nil {
		if !ownsReplay(existing, userID, models.TransactionTypeDeposit) {
			return nil, apperror.New(apperror.ErrCodeConflict, "идемпотентный ключ уже использован другой операцией")
		}
		return existing, nil
	} else if !errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, err
	}

	wallet, err := s.wallets.EnsureWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	customerRef, err := s.ensureCustomer(ctx, wallet, email)
	if err != nil {
		return nil, translateGatewayErr(err)
	}

	txn, err := s.txns.CreatePendingDeposit(ctx, userID, amount, idempotencyKey)
	if err != nil {
		return nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	res, err := s.gw.CreateCharge(gwCtx, gateway.ChargeInput{
		IdempotencyKey: idempotencyKey,
		CustomerRef:    customerRef,
		Amount:         amount,
		Metadata: map[string]string{
			"transaction_id": txn.ID.String(),
			"user_id":        userID.String(),
		},
	})
	if err != nil {
		return s.failDepositAfterGateway(ctx, txn, err)
	}

	if err := s.txns.SetGatewayRef(ctx, txn.ID, res.Ref, string(res.Status)); err != nil {
		return nil, err
	}

	switch res.Status {
	case gateway.ChargeStatusSucceeded:
		return s.txns.CompleteDeposit(ctx, txn.ID)
	case gateway.ChargeStatusFailed, gateway.ChargeStatusCanceled:
		if _, err := s.txns.FailDeposit(ctx, txn.ID, res.FailureReason, models.ErrorKindCard); err != nil {
			return nil, err
		}
		return nil, apperror.New(apperror.ErrCodeGatewayRejected, "платёж отклонён шлюзом: "+res.FailureReason)
	}

	// Платёж в обработке, итог придёт вебхуком.
	return s.txns.GetByID(ctx, txn.ID)
}

// Withdraw выводит средства на подключённый аккаунт. Баланс списывается
// сразу; терминальный отказ шлюза возвращает средства.
func (s *WalletService) Withdraw(ctx context.Context, userID uuid.UUID, amount float64, idempotencyKey string) (*models.Transaction, error) {
	if amount < s.minWithdrawal {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("минимальная сумма вывода — %.2f", s.minWithdrawal))
	}
	if idempotencyKey == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "идемпотентный ключ обязателен")
	}

	if existing, err := s.txns.GetByIdempotencyKey(ctx, idempotencyKey); err == nil {
		if !ownsReplay(existing, userID, models.TransactionTypeWithdrawal) {
			return nil, apperror.New(apperror.ErrCodeConflict, "идемпотентный ключ уже использован другой операцией")
		}
		return existing, nil
	} else if !errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, err
	}

	wallet, err := s.wallets.EnsureWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet.GatewayAccountID == nil || !wallet.PayoutsVerified {
		return nil, apperror.ErrPayoutsNotEnabled
	}

	// Статус аккаунта перепроверяется у шлюза перед каждым выводом:
	// верификация могла быть отозвана после подключения.
	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	status, err := s.gw.AccountStatus(gwCtx, *wallet.GatewayAccountID)
	cancel()
	if err != nil {
		return nil, translateGatewayErr(err)
	}
	if !status.PayoutsEnabled {
		return nil, apperror.ErrPayoutsNotEnabled
	}

	txn, err := s.txns.CreateWithdrawal(ctx, userID, amount, idempotencyKey)
	if err != nil {
		return nil, translateOfferErr(err)
	}

	return s.executeTransfer(ctx, txn, *wallet.GatewayAccountID, idempotencyKey)
}

// VerifyPayoutAccount привязывает аккаунт получателя выплат и сохраняет
// его проверенный статус.
func (s *WalletService) VerifyPayoutAccount(ctx context.Context, userID uuid.UUID, accountRef string) (*models.Wallet, error) {
	if accountRef == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "идентификатор аккаунта обязателен")
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	status, err := s.gw.AccountStatus(gwCtx, accountRef)
	cancel()
	if err != nil {
		return nil, translateGatewayErr(err)
	}

	if _, err := s.wallets.EnsureWallet(ctx, userID); err != nil {
		return nil, err
	}
	verified := status.Verified && status.PayoutsEnabled
	if err := s.wallets.SetGatewayAccount(ctx, userID, accountRef, verified); err != nil {
		return nil, err
	}
	return s.wallets.GetByUserID(ctx, userID)
}

// SetFrozen — административная блокировка кошелька.
func (s *WalletService) SetFrozen(ctx context.Context, userID uuid.UUID, frozen bool) error {
	err := s.wallets.SetFrozen(ctx, userID, frozen)
	if errors.Is(err, repository.ErrWalletNotFound) {
		return apperror.ErrWalletNotFound
	}
	return err
}

// RetryFailed — один проход по транзиентно упавшим транзакциям.
// Возвращает число успешно восстановленных. Перед повтором всегда
// выясняется судьба предыдущей попытки у шлюза: деньги не двигаются
// дважды из-за потерянного ответа.
func (s *WalletService) RetryFailed(ctx context.Context, batch int) (int, error) {
	s.reclaimStalePending(ctx, batch)

	due, err := s.txns.ListRetryable(ctx, s.attemptsCap, batch)
	if err != nil {
		return 0, err
	}

	recovered := 0
	now := time.Now()
	for _, txn := range due {
		if !retryDue(&txn, now) {
			continue
		}
		if err := s.txns.BumpRetry(ctx, txn.ID); err != nil {
			logger.Log.WithField("transaction_id", txn.ID).WithError(err).
				Error("wallet: не удалось увеличить счётчик ретраев")
			continue
		}
		if err := s.retryOne(ctx, &txn); err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"transaction_id": txn.ID,
				"type":           txn.Type,
				"retry_count":    txn.RetryCount + 1,
			}).WithError(err).Warn("wallet: ретрай не удался")
			s.maybeRefundExhausted(ctx, &txn)
			continue
		}
		recovered++
	}
	return recovered, nil
}

// reclaimStalePending закрывает депозиты, застрявшие в pending без ссылки
// шлюза: платёж не был создан, а значит резерв pending_deposits надо
// вернуть. Такие записи остаются после падения процесса между фиксацией
// pending и вызовом шлюза и в выборку ретраев не попадают.
func (s *WalletService) reclaimStalePending(ctx context.Context, batch int) {
	stale, err := s.txns.ListStalePendingDeposits(ctx, time.Now().Add(-stalePendingAfter), batch)
	if err != nil {
		logger.Log.WithError(err).Error("wallet: не удалось выбрать зависшие депозиты")
		return
	}
	for _, txn := range stale {
		_, err := s.txns.FailDeposit(ctx, txn.ID, "платёж не был создан на стороне шлюза", models.ErrorKindCard)
		if err != nil && !errors.Is(err, repository.ErrTransactionProcessed) {
			logger.Log.WithField("transaction_id", txn.ID).WithError(err).
				Error("wallet: не удалось закрыть зависший депозит")
			continue
		}
		logger.Log.WithField("transaction_id", txn.ID).
			Warn("wallet: зависший депозит закрыт, резерв возвращён")
	}
}

// retryOne повторяет одну упавшую транзакцию.
func (s *WalletService) retryOne(ctx context.Context, txn *models.Transaction) error {
	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	switch txn.Type {
	case models.TransactionTypeDeposit:
		return s.retryDeposit(gwCtx, ctx, txn)
	case models.TransactionTypeWithdrawal:
		return s.retryWithdrawal(gwCtx, ctx, txn)
	}
	return fmt.Errorf("wallet: тип %q не ретраится", txn.Type)
}

// retryDeposit не создаёт новый платёж, а выясняет судьбу прежнего:
// депозит подтверждает либо шлюз, либо пользователь новой попыткой.
func (s *WalletService) retryDeposit(gwCtx, ctx context.Context, txn *models.Transaction) error {
	if txn.GatewayRef == nil {
		// Платёж так и не был создан, возврата резерва достаточно.
		err := s.txns.MarkDepositTerminal(ctx, txn.ID, "платёж не был создан на стороне шлюза")
		if errors.Is(err, repository.ErrTransactionProcessed) {
			return nil
		}
		return err
	}

	res, err := s.gw.GetCharge(gwCtx, *txn.GatewayRef)
	if err != nil {
		return err
	}

	switch res.Status {
	case gateway.ChargeStatusSucceeded:
		_, err := s.txns.CompleteDeposit(ctx, txn.ID)
		if errors.Is(err, repository.ErrTransactionProcessed) {
			return nil
		}
		return err
	case gateway.ChargeStatusFailed, gateway.ChargeStatusCanceled:
		err := s.txns.MarkDepositTerminal(ctx, txn.ID, res.FailureReason)
		if errors.Is(err, repository.ErrTransactionProcessed) {
			return nil
		}
		return err
	}
	return fmt.Errorf("wallet: платёж %s всё ещё в обработке", *txn.GatewayRef)
}

// retryWithdrawal доводит выплату, не проводя её дважды. Пока ссылка
// шлюза неизвестна, судьба прежней попытки не выяснена, и повтор идёт
// с исходным идемпотентным ключом: если первый запрос всё же дошёл,
// шлюз дедуплицирует его сам. Производный ключ допустим только после
// того, как шлюз подтвердил, что прежняя выплата не прошла.
func (s *WalletService) retryWithdrawal(gwCtx, ctx context.Context, txn *models.Transaction) error {
	key := baseKey(txn)
	if txn.GatewayRef != nil {
		res, err := s.gw.GetTransfer(gwCtx, *txn.GatewayRef)
		switch {
		case err == nil:
			_, cErr := s.txns.CompleteWithdrawal(ctx, txn.ID, res.Ref)
			if errors.Is(cErr, repository.ErrTransactionProcessed) {
				return nil
			}
			return cErr
		case gateway.Kind(err) == gateway.KindTransient:
			// Исход по-прежнему неизвестен, повторим на следующем проходе.
			return err
		}
		// Шлюз знает этот перевод как неуспешный: старый ключ навсегда
		// связан с упавшим запросом, нужна новая попытка с новым ключом.
		key = retryKey(txn)
	}

	wallet, err := s.wallets.GetByUserID(ctx, *txn.FromUserID)
	if err != nil {
		return err
	}
	if wallet.GatewayAccountID == nil {
		_, fErr := s.txns.FailWithdrawal(ctx, txn.ID, "аккаунт для выплат отвязан", models.ErrorKindCard)
		return fErr
	}

	res, err := s.gw.CreateTransfer(gwCtx, gateway.TransferInput{
		IdempotencyKey: key,
		AccountRef:     *wallet.GatewayAccountID,
		Amount:         txn.Amount,
		Metadata:       map[string]string{"transaction_id": txn.ID.String()},
	})
	if err != nil {
		if gateway.Kind(err) == gateway.KindCard {
			_, fErr := s.txns.FailWithdrawal(ctx, txn.ID, err.Error(), models.ErrorKindCard)
			if fErr != nil && !errors.Is(fErr, repository.ErrTransactionProcessed) {
				return fErr
			}
		}
		return err
	}

	_, err = s.txns.CompleteWithdrawal(ctx, txn.ID, res.Ref)
	if errors.Is(err, repository.ErrTransactionProcessed) {
		return nil
	}
	return err
}

// maybeRefundExhausted закрывает транзакцию, исчерпавшую попытки:
// у вывода средства возвращаются на баланс, у депозита снимается резерв.
func (s *WalletService) maybeRefundExhausted(ctx context.Context, txn *models.Transaction) {
	if txn.RetryCount+1 < s.attemptsCap {
		return
	}

	var err error
	switch txn.Type {
	case models.TransactionTypeWithdrawal:
		err = s.txns.RefundWithdrawal(ctx, txn.ID)
	case models.TransactionTypeDeposit:
		err = s.txns.MarkDepositTerminal(ctx, txn.ID, "исчерпан лимит попыток")
	default:
		return
	}
	if err != nil && !errors.Is(err, repository.ErrTransactionProcessed) {
		logger.Log.WithField("transaction_id", txn.ID).WithError(err).
			Error("wallet: не удалось закрыть исчерпанную транзакцию")
		return
	}
	logger.Log.WithFields(map[string]interface{}{
		"transaction_id": txn.ID,
		"type":           txn.Type,
	}).Warn("wallet: транзакция исчерпала попытки и закрыта")
}

// executeTransfer проводит выплату и фиксирует итог.
func (s *WalletService) executeTransfer(ctx context.Context, txn *models.Transaction, accountRef, idempotencyKey string) (*models.Transaction, error) {
	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	res, err := s.gw.CreateTransfer(gwCtx, gateway.TransferInput{
		IdempotencyKey: idempotencyKey,
		AccountRef:     accountRef,
		Amount:         txn.Amount,
		Metadata:       map[string]string{"transaction_id": txn.ID.String()},
	})
	if err != nil {
		kind := string(gateway.Kind(err))
		failed, fErr := s.txns.FailWithdrawal(ctx, txn.ID, err.Error(), kind)
		if fErr != nil {
			return nil, fErr
		}
		if kind == models.ErrorKindCard {
			return nil, apperror.Wrap(err, apperror.ErrCodeGatewayRejected, "выплата отклонена шлюзом")
		}
		// Транзиентный сбой: деньги остаются списанными, выплату
		// доведёт retry sweeper.
		logger.Log.WithField("transaction_id", txn.ID).WithError(err).
			Warn("wallet: выплата отложена до ретрая")
		return failed, nil
	}

	return s.txns.CompleteWithdrawal(ctx, txn.ID, res.Ref)
}

// failDepositAfterGateway фиксирует отказ шлюза при создании платежа.
func (s *WalletService) failDepositAfterGateway(ctx context.Context, txn *models.Transaction, gwErr error) (*models.Transaction, error) {
	kind := string(gateway.Kind(gwErr))
	failed, err := s.txns.FailDeposit(ctx, txn.ID, gwErr.Error(), kind)
	if err != nil {
		return nil, err
	}
	if kind == models.ErrorKindCard {
		return nil, apperror.Wrap(gwErr, apperror.ErrCodeGatewayRejected, "платёж отклонён шлюзом")
	}
	logger.Log.WithField("transaction_id", txn.ID).WithError(gwErr).
		Warn("wallet: депозит отложен до ретрая")
	return failed, nil
}

// ensureCustomer возвращает идентификатор покупателя у шлюза, создавая
// его при первом депозите.
func (s *WalletService) ensureCustomer(ctx context.Context, wallet *models.Wallet, email string) (string, error) {
	if wallet.GatewayCustomerID != nil {
		return *wallet.GatewayCustomerID, nil
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	ref, err := s.gw.CreateCustomer(gwCtx, wallet.UserID.String(), email)
	if err != nil {
		return "", err
	}
	if err := s.wallets.SetGatewayCustomer(ctx, wallet.UserID, ref); err != nil {
		return "", err
	}
	return ref, nil
}

// retryDue проверяет, выдержана ли пауза перед следующей попыткой.
func retryDue(txn *models.Transaction, now time.Time) bool {
	last := txn.UpdatedAt
	if txn.LastRetryAt != nil {
		last = *txn.LastRetryAt
	}
	idx := txn.RetryCount
	if idx >= len(retryBackoff) {
		idx = len(retryBackoff) - 1
	}
	return now.Sub(last) >= retryBackoff[idx]
}

// baseKey — исходный идемпотентный ключ транзакции.
func baseKey(txn *models.Transaction) string {
	if txn.IdempotencyKey != nil {
		return *txn.IdempotencyKey
	}
	return txn.ID.String()
}

// retryKey — производный идемпотентный ключ для повторной попытки.
// Используется только когда шлюз подтвердил неуспех прежней выплаты:
// старый ключ навсегда связан с упавшим запросом.
func retryKey(txn *models.Transaction) string {
	return fmt.Sprintf("%s-retry-%d", baseKey(txn), txn.RetryCount)
}

// ownsReplay проверяет, что найденная по идемпотентному ключу транзакция
// принадлежит вызывающему и той же операции: чужой ключ не должен
// раскрывать чужую транзакцию.
func ownsReplay(txn *models.Transaction, userID uuid.UUID, txnType string) bool {
	if txn.Type != txnType {
		return false
	}
	owner := txn.ToUserID
	if txnType == models.TransactionTypeWithdrawal {
		owner = txn.FromUserID
	}
	return owner != nil && *owner == userID
}

// translateGatewayErr переводит ошибку шлюза в ошибку уровня API.
func translateGatewayErr(err error) error {
	if gateway.Kind(err) == gateway.KindCard {
		return apperror.Wrap(err, apperror.ErrCodeGatewayRejected, "операция отклонена платёжным шлюзом")
	}
	return apperror.Wrap(err, apperror.ErrCodeInternal, "платёжный шлюз недоступен, попробуйте позже")
}
