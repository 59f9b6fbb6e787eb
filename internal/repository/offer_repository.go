package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/jobmarket-backend/internal/models"
)

var (
	ErrOfferNotFound     = errors.New("offer not found")
	ErrOfferProcessed    = errors.New("offer not found or already processed")
	ErrActiveOfferExists = errors.New("active offer already exists for job")
)

// OfferRepository владеет всеми переходами машины состояний оффера.
// Каждый переход — одна транзакция БД: оффер, кошельки, связка,
// заказ и журнальные записи меняются атомарно. Guard по статусу входит
// в тот же UPDATE, что меняет статус, поэтому из двух конкурентных
// переходов побеждает ровно один.
type OfferRepository struct {
	db *sqlx.DB
}

func NewOfferRepository(db *sqlx.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

// GetByID возвращает оффер по идентификатору.
func (r *OfferRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	err := r.db.GetContext(ctx, &offer, `SELECT * FROM offers WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	return &offer, nil
}

// ListByUser возвращает офферы, где пользователь — заказчик или исполнитель.
func (r *OfferRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Offer, error) {
	offers := []models.Offer{}
	err := r.db.SelectContext(ctx, &offers, `
		SELECT * FROM offers
		WHERE customer_id = $1 OR contractor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return offers, err
}

// ListExpired возвращает просроченные pending-офферы для sweeper'а.
func (r *OfferRepository) ListExpired(ctx context.Context, limit int) ([]models.Offer, error) {
	offers := []models.Offer{}
	err := r.db.SelectContext(ctx, &offers, `
		SELECT * FROM offers
		WHERE status = $1 AND expires_at < NOW()
		ORDER BY expires_at
		LIMIT $2
	`, models.OfferStatusPending, limit)
	return offers, err
}

// CreateWithHold создаёт оффер и в той же транзакции переводит полную
// стоимость с баланса заказчика в эскроу. Если заказ уже имеет активный
// оффер или средств не хватает, ничего не меняется.
func (r *OfferRepository) CreateWithHold(ctx context.Context, offer *models.Offer) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("offer repository: begin tx: %w", err)
	}
	defer tx.Rollback()

	// Блокируем кошелёк заказчика до проверки активного оффера,
	// чтобы два параллельных send на один заказ выстроились в очередь.
	wallet, err := lockWallet(ctx, tx, offer.CustomerID)
	if err != nil {
		return err
	}
	if wallet.IsFrozen {
		return ErrWalletFrozen
	}
	if wallet.Balance < offer.TotalCharge {
		return ErrInsufficientFunds
	}

	var activeCount int
	err = tx.GetContext(ctx, &activeCount, `
		SELECT COUNT(*) FROM offers
		WHERE job_id = $1 AND status IN ($2, $3)
	`, offer.JobID, models.OfferStatusPending, models.OfferStatusAccepted)
	if err != nil {
		return err
	}
	if activeCount > 0 {
		return ErrActiveOfferExists
	}

	if err := holdEscrowTx(ctx, tx, offer.CustomerID, offer.TotalCharge); err != nil {
		return err
	}

	err = tx.GetContext(ctx, offer, `
		INSERT INTO offers (
			job_id, engagement_id, customer_id, contractor_id,
			amount, platform_fee, service_fee, contractor_payout, total_charge,
			timeline, description, status, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING *
	`,
		offer.JobID, offer.EngagementID, offer.CustomerID, offer.ContractorID,
		offer.Amount, offer.PlatformFee, offer.ServiceFee, offer.ContractorPayout, offer.TotalCharge,
		offer.Timeline, offer.Description, models.OfferStatusPending, offer.ExpiresAt,
	)
	if err != nil {
		// Параллельный send мог проскочить проверку COUNT: частичный
		// уникальный индекс по активным офферам ловит его на вставке.
		if isUniqueViolation(err) {
			return ErrActiveOfferExists
		}
		return fmt.Errorf("offer repository: insert offer: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE engagements SET status = $2, offer_id = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)
	`, offer.EngagementID, models.EngagementStatusOffered, offer.ID,
		models.EngagementStatusRequested, models.EngagementStatusEngaged)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrEngagementNotFound
	}

	err = insertTransactionTx(ctx, tx, &models.Transaction{
		Type:       models.TransactionTypeEscrowHold,
		Status:     models.TransactionStatusCompleted,
		Amount:     offer.TotalCharge,
		FromUserID: &offer.CustomerID,
		ToUserID:   &offer.CustomerID,
		OfferID:    &offer.ID,
		JobID:      &offer.JobID,
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Accept принимает оффер от имени исполнителя. В одной транзакции:
// оффер становится accepted, полная стоимость уходит из эскроу заказчика
// на кошелёк платформы, заказ назначается исполнителю, его связка
// становится assigned, остальные связки заказа отменяются.
// Возвращает оффер и список исполнителей отменённых связок.
func (r *OfferRepository) Accept(ctx context.Context, offerID, contractorID, platformID uuid.UUID) (*models.Offer, []uuid.UUID, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("offer repository: begin tx: %w", err)
	}
	defer tx.Rollback()

	var offer models.Offer
	err = tx.GetContext(ctx, &offer, `
		UPDATE offers SET status = $3, accepted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND contractor_id = $2 AND status = $4
		RETURNING *
	`, offerID, contractorID, models.OfferStatusAccepted, models.OfferStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrOfferProcessed
		}
		return nil, nil, err
	}

	// Заморозка блокирует любое списание, включая уход эскроу платформе.
	wallet, err := lockWallet(ctx, tx, offer.CustomerID)
	if err != nil {
		return nil, nil, err
	}
	if wallet.IsFrozen {
		return nil, nil, ErrWalletFrozen
	}

	// Средства уже зарезервированы на send, поэтому эскроу не может
	// опустеть. Нулевой результат здесь означает повреждение данных.
	if err := debitEscrowTx(ctx, tx, offer.CustomerID, offer.TotalCharge); err != nil {
		return nil, nil, fmt.Errorf("offer repository: escrow debit on accept: %w", err)
	}
	if err := creditBalanceTx(ctx, tx, platformID, offer.TotalCharge); err != nil {
		return nil, nil, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = $3, contractor_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, offer.JobID, contractorID, models.JobStatusAssigned, models.JobStatusOpen)
	if err != nil {
		return nil, nil, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, nil, ErrJobNotFound
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE engagements SET status = $2, updated_at = NOW() WHERE id = $1
	`, offer.EngagementID, models.EngagementStatusAssigned)
	if err != nil {
		return nil, nil, err
	}

	losers := []uuid.UUID{}
	err = tx.SelectContext(ctx, &losers, `
		UPDATE engagements SET status = $3, updated_at = NOW()
		WHERE job_id = $1 AND id <> $2 AND status IN ($4, $5)
		RETURNING contractor_id
	`, offer.JobID, offer.EngagementID, models.EngagementStatusCancelled,
		models.EngagementStatusRequested, models.EngagementStatusEngaged)
	if err != nil {
		return nil, nil, err
	}

	err = insertTransactionTx(ctx, tx, &models.Transaction{
		Type:       models.TransactionTypeWalletTransfer,
		Status:     models.TransactionStatusCompleted,
		Amount:     offer.TotalCharge,
		FromUserID: &offer.CustomerID,
		ToUserID:   &platformID,
		OfferID:    &offer.ID,
		JobID:      &offer.JobID,
	})
	if err != nil {
		return nil, nil, err
	}

	return &offer, losers, tx.Commit()
}

// Reject отклоняет pending-оффер от имени исполнителя и возвращает
// средства из эскроу заказчику.
func (r *OfferRepository) Reject(ctx context.Context, offerID, contractorID uuid.UUID, reason string) (*models.Offer, error) {
	return r.finishPending(ctx, finishParams{
		offerID: offerID,
		status:  models.OfferStatusRejected,
		reason:  reason,
		guard:   "contractor_id",
		guardID: contractorID,
		stamp:   "rejected_at",
	})
}

// Cancel отзывает pending-оффер от имени заказчика и возвращает средства
// из эскроу. Принятый оффер отозвать нельзя.
func (r *OfferRepository) Cancel(ctx context.Context, offerID, customerID uuid.UUID, reason string) (*models.Offer, error) {
	return r.finishPending(ctx, finishParams{
		offerID: offerID,
		status:  models.OfferStatusCancelled,
		reason:  reason,
		guard:   "customer_id",
		guardID: customerID,
		stamp:   "cancelled_at",
	})
}

// Expire закрывает просроченный pending-оффер с возвратом средств.
// Вызывается sweeper'ом без проверки автора.
func (r *OfferRepository) Expire(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	return r.finishPending(ctx, finishParams{
		offerID: offerID,
		status:  models.OfferStatusExpired,
		reason:  "срок действия оффера истёк",
		stamp:   "cancelled_at",
	})
}

type finishParams struct {
	offerID uuid.UUID
	status  string
	reason  string
	guard   string
	guardID uuid.UUID
	stamp   string
}

// finishPending — общий терминальный переход из pending: reject, cancel
// и expire отличаются только guard-условием и итоговым статусом, а деньги
// во всех трёх случаях возвращаются из эскроу на баланс заказчика.
func (r *OfferRepository) finishPending(ctx context.Context, p finishParams) (*models.Offer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("offer repository: begin tx: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		UPDATE offers SET status = $2, reason = $3, %s = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, p.stamp)
	args := []interface{}{p.offerID, p.status, p.reason, models.OfferStatusPending}
	if p.guard != "" {
		query += fmt.Sprintf(` AND %s = $5`, p.guard)
		args = append(args, p.guardID)
	}
	query += ` RETURNING *`

	var offer models.Offer
	if err := tx.GetContext(ctx, &offer, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferProcessed
		}
		return nil, err
	}

	if err := releaseEscrowTx(ctx, tx, offer.CustomerID, offer.TotalCharge); err != nil {
		return nil, fmt.Errorf("offer repository: escrow release: %w", err)
	}

	// Связка возвращается в состояние до оффера, чтобы можно было
	// отправить новый.
	var initiatedBy string
	err = tx.GetContext(ctx, &initiatedBy, `SELECT initiated_by FROM engagements WHERE id = $1`, offer.EngagementID)
	if err != nil {
		return nil, err
	}
	preStatus := models.EngagementStatusRequested
	if initiatedBy == models.EngagementByCustomer {
		preStatus = models.EngagementStatusEngaged
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE engagements SET status = $2, offer_id = NULL, updated_at = NOW() WHERE id = $1
	`, offer.EngagementID, preStatus)
	if err != nil {
		return nil, err
	}

	err = insertTransactionTx(ctx, tx, &models.Transaction{
		Type:       models.TransactionTypeRefund,
		Status:     models.TransactionStatusCompleted,
		Amount:     offer.TotalCharge,
		FromUserID: &offer.CustomerID,
		ToUserID:   &offer.CustomerID,
		OfferID:    &offer.ID,
		JobID:      &offer.JobID,
	})
	if err != nil {
		return nil, err
	}

	return &offer, tx.Commit()
}

// Complete завершает принятый оффер от имени заказчика. Платформа
// выплачивает исполнителю сумму за вычетом сервисного сбора и оставляет
// себе комиссию и сбор как заработок.
func (r *OfferRepository) Complete(ctx context.Context, offerID, customerID, platformID uuid.UUID) (*models.Offer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("offer repository: begin tx: %w", err)
	}
	defer tx.Rollback()

	var offer models.Offer
	err = tx.GetContext(ctx, &offer, `
		UPDATE offers SET status = $3, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND customer_id = $2 AND status = $4
		RETURNING *
	`, offerID, customerID, models.OfferStatusCompleted, models.OfferStatusAccepted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferProcessed
		}
		return nil, err
	}

	platformEarnings := offer.PlatformFee + offer.ServiceFee
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance - $2, total_earnings = total_earnings + $3, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
	`, platformID, offer.ContractorPayout, platformEarnings)
	if err != nil {
		return nil, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, fmt.Errorf("offer repository: platform wallet underfunded on complete: %w", ErrInsufficientFunds)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, total_earnings)
		VALUES ($1, $2, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = wallets.balance + $2,
		    total_earnings = wallets.total_earnings + $2,
		    updated_at = NOW()
	`, offer.ContractorID, offer.ContractorPayout)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE jobs SET status = $2, updated_at = NOW() WHERE id = $1
	`, offer.JobID, models.JobStatusCompleted)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE engagements SET status = $2, updated_at = NOW() WHERE id = $1
	`, offer.EngagementID, models.EngagementStatusCompleted)
	if err != nil {
		return nil, err
	}

	err = insertTransactionTx(ctx, tx, &models.Transaction{
		Type:       models.TransactionTypeServiceFee,
		Status:     models.TransactionStatusCompleted,
		Amount:     offer.ServiceFee,
		FromUserID: &offer.ContractorID,
		ToUserID:   &platformID,
		OfferID:    &offer.ID,
		JobID:      &offer.JobID,
	})
	if err != nil {
		return nil, err
	}
	err = insertTransactionTx(ctx, tx, &models.Transaction{
		Type:       models.TransactionTypeContractorPayout,
		Status:     models.TransactionStatusCompleted,
		Amount:     offer.ContractorPayout,
		FromUserID: &platformID,
		ToUserID:   &offer.ContractorID,
		OfferID:    &offer.ID,
		JobID:      &offer.JobID,
	})
	if err != nil {
		return nil, err
	}

	return &offer, tx.Commit()
}
