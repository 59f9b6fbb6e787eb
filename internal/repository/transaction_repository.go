package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/jobmarket-backend/internal/models"
)

var (
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionProcessed = errors.New("transaction already processed")
)

// TransactionRepository ведёт append-only журнал денежных операций и
// владеет атомарными единицами депозита и вывода. Финализация защищена
// guard'ом по статусу: повторный вебхук или конкурентный ретрай
// завершают транзакцию ровно один раз.
type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// GetByID возвращает запись журнала.
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.GetContext(ctx, &txn, `SELECT * FROM transactions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// GetByIdempotencyKey ищет транзакцию по клиентскому идемпотентному ключу.
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.GetContext(ctx, &txn, `SELECT * FROM transactions WHERE idempotency_key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// GetByGatewayRef ищет транзакцию по идентификатору платежа на стороне шлюза.
func (r *TransactionRepository) GetByGatewayRef(ctx context.Context, ref string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.GetContext(ctx, &txn, `SELECT * FROM transactions WHERE gateway_ref = $1`, ref)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// ListByUser возвращает историю операций пользователя, новые сверху.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	txns := []models.Transaction{}
	err := r.db.SelectContext(ctx, &txns, `
		SELECT * FROM transactions
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return txns, err
}

// CreatePendingDeposit регистрирует депозит до обращения к шлюзу и
// увеличивает pending_deposits кошелька. Баланс вырастет только после
// подтверждения платежа.
func (r *TransactionRepository) CreatePendingDeposit(ctx context.Context, userID uuid.UUID, amount float64, idempotencyKey string) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: begin tx: %w", err)
	}
	defer tx.Rollback()

	var txn models.Transaction
	err = tx.GetContext(ctx, &txn, `
		INSERT INTO transactions (type, status, amount, to_user_id, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, models.TransactionTypeDeposit, models.TransactionStatusPending, amount, userID, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: insert deposit: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE wallets SET pending_deposits = pending_deposits + $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return nil, err
	}

	return &txn, tx.Commit()
}

// SetGatewayRef записывает идентификатор платежа, выданный шлюзом.
func (r *TransactionRepository) SetGatewayRef(ctx context.Context, id uuid.UUID, ref, gatewayStatus string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET gateway_ref = $2, gateway_status = $3, updated_at = NOW()
		WHERE id = $1
	`, id, ref, gatewayStatus)
	return err
}

// CompleteDeposit зачисляет подтверждённый депозит на баланс.
// Guard по статусу делает операцию идемпотентной: повторный вебхук
// получает ErrTransactionProcessed и денег не двигает.
func (r *TransactionRepository) CompleteDeposit(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: begin tx: %w", err)
	}
	defer tx.Rollback()

	var txn models.Transaction
	err = tx.GetContext(ctx, &txn, `
		UPDATE transactions SET status = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ($3, $4)
		RETURNING *
	`, id, models.TransactionStatusCompleted, models.TransactionStatusPending, models.TransactionStatusFailed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionProcessed
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance + $2,
		    pending_deposits = GREATEST(pending_deposits - $2, 0),
		    updated_at = NOW()
		WHERE user_id = $1
	`, txn.ToUserID, txn.Amount)
	if err != nil {
		return nil, err
	}

	return &txn, tx.Commit()
}

// FailDeposit помечает депозит неуспешным. Резерв pending_deposits
// снимается только при терминальном (card) отказе: транзиентный сбой
// ещё может завершиться успехом на ретрае.
func (r *TransactionRepository) FailDeposit(ctx context.Context, id uuid.UUID, reason string, kind string) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: begin tx: %w", err)
	}
	defer tx.Rollback()

	var txn models.Transaction
	err = tx.GetContext(ctx, &txn, `
		UPDATE transactions
		SET status = $2, failure_reason = $3, error_kind = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5
		RETURNING *
	`, id, models.TransactionStatusFailed, reason, kind, models.TransactionStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionProcessed
		}
		return nil, err
	}

	if kind == models.ErrorKindCard {
		_, err = tx.ExecContext(ctx, `
			UPDATE wallets
			SET pending_deposits = GREATEST(pending_deposits - $2, 0), updated_at = NOW()
			WHERE user_id = $1
		`, txn.ToUserID, txn.Amount)
		if err != nil {
			return nil, err
		}
	}

	return &txn, tx.Commit()
}

// MarkDepositTerminal переводит транзиентно упавший депозит в
// терминальное состояние и снимает резерв ожидания.
func (r *TransactionRepository) MarkDepositTerminal(ctx context.Context, id uuid.UUID, reason string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transaction repository: begin tx: %w", err)
	}
	defer tx.Rollback()

	var txn models.Transaction
	err = tx.GetContext(ctx, &txn, `
		UPDATE transactions
		SET error_kind = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4 AND error_kind = $5
		RETURNING *
	`, id, models.ErrorKindCard, reason, models.TransactionStatusFailed, models.ErrorKindTransient)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTransactionProcessed
		}
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE wallets
		SET pending_deposits = GREATEST(pending_deposits - $2, 0), updated_at = NOW()
		WHERE user_id = $1
	`, txn.ToUserID, txn.Amount)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// CreateWithdrawal списывает средства с баланса и регистрирует вывод
// одной транзакцией. Деньги уходят с кошелька сразу: если выплата через
// шлюз провалится навсегда, FailWithdrawal их вернёт.
func (r *TransactionRepository) CreateWithdrawal(ctx context.Context, userID uuid.UUID, amount float64, idempotencyKey string) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: begin tx: %w", err)
	}
	defer tx.Rollback()

	wallet, err := lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if wallet.IsFrozen {
		return nil, ErrWalletFrozen
	}
	if wallet.Balance < amount {
		return nil, ErrInsufficientFunds
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance - $2, total_withdrawals = total_withdrawals + $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
	`, userID, amount)
	if err != nil {
		return nil, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, ErrInsufficientFunds
	}

	var txn models.Transaction
	err = tx.GetContext(ctx, &txn, `
		INSERT INTO transactions (type, status, amount, from_user_id, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, models.TransactionTypeWithdrawal, models.TransactionStatusPending, amount, userID, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: insert withdrawal: %w", err)
	}

	return &txn, tx.Commit()
}

// CompleteWithdrawal фиксирует успешную выплату через шлюз.
func (r *TransactionRepository) CompleteWithdrawal(ctx context.Context, id uuid.UUID, gatewayRef string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.GetContext(ctx, &txn, `
		UPDATE transactions
		SET status = $2, gateway_ref = $3, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)
		RETURNING *
	`, id, models.TransactionStatusCompleted, gatewayRef,
		models.TransactionStatusPending, models.TransactionStatusFailed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionProcessed
		}
		return nil, err
	}
	return &txn, nil
}

// FailWithdrawal помечает вывод неуспешным. Карточные ошибки терминальны,
// поэтому списанные средства сразу возвращаются на баланс; транзиентные
// оставляют деньги списанными до исхода ретраев.
func (r *TransactionRepository) FailWithdrawal(ctx context.Context, id uuid.UUID, reason string, kind string) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: begin tx: %w", err)
	}
	defer tx.Rollback()

	var txn models.Transaction
	err = tx.GetContext(ctx, &txn, `
		UPDATE transactions
		SET status = $2, failure_reason = $3, error_kind = $4, updated_at = NOW()
		WHERE id = $1 AND status IN ($5, $6)
		  AND (error_kind IS NULL OR error_kind = $7)
		RETURNING *
	`, id, models.TransactionStatusFailed, reason, kind,
		models.TransactionStatusPending, models.TransactionStatusFailed,
		models.ErrorKindTransient)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionProcessed
		}
		return nil, err
	}

	if kind == models.ErrorKindCard {
		_, err = tx.ExecContext(ctx, `
			UPDATE wallets
			SET balance = balance + $2,
			    total_withdrawals = GREATEST(total_withdrawals - $2, 0),
			    updated_at = NOW()
			WHERE user_id = $1
		`, txn.FromUserID, txn.Amount)
		if err != nil {
			return nil, err
		}
	}

	return &txn, tx.Commit()
}

// RefundWithdrawal возвращает средства исчерпавшего ретраи вывода.
func (r *TransactionRepository) RefundWithdrawal(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transaction repository: begin tx: %w", err)
	}
	defer tx.Rollback()

	var txn models.Transaction
	err = tx.GetContext(ctx, &txn, `
		UPDATE transactions SET error_kind = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND error_kind = $4
		RETURNING *
	`, id, models.ErrorKindCard, models.TransactionStatusFailed, models.ErrorKindTransient)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTransactionProcessed
		}
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance + $2,
		    total_withdrawals = GREATEST(total_withdrawals - $2, 0),
		    updated_at = NOW()
		WHERE user_id = $1
	`, txn.FromUserID, txn.Amount)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ListRetryable возвращает транзиентно упавшие депозиты и выводы,
// не исчерпавшие лимит попыток. Карточные ошибки сюда не попадают.
func (r *TransactionRepository) ListRetryable(ctx context.Context, attemptsCap, limit int) ([]models.Transaction, error) {
	txns := []models.Transaction{}
	err := r.db.SelectContext(ctx, &txns, `
		SELECT * FROM transactions
		WHERE status = $1
		  AND error_kind = $2
		  AND retry_count < $3
		  AND type IN ($4, $5)
		ORDER BY updated_at
		LIMIT $6
	`, models.TransactionStatusFailed, models.ErrorKindTransient, attemptsCap,
		models.TransactionTypeDeposit, models.TransactionTypeWithdrawal, limit)
	return txns, err
}

// ListStalePendingDeposits возвращает депозиты, давно висящие в pending
// без ссылки шлюза. Платёж для них так и не был создан (процесс упал до
// обращения к шлюзу), поэтому свиппер закрывает их и возвращает резерв.
func (r *TransactionRepository) ListStalePendingDeposits(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error) {
	txns := []models.Transaction{}
	err := r.db.SelectContext(ctx, &txns, `
		SELECT * FROM transactions
		WHERE type = $1
		  AND status = $2
		  AND gateway_ref IS NULL
		  AND updated_at < $3
		ORDER BY updated_at
		LIMIT $4
	`, models.TransactionTypeDeposit, models.TransactionStatusPending, olderThan, limit)
	return txns, err
}

// BumpRetry увеличивает счётчик попыток перед очередным ретраем.
func (r *TransactionRepository) BumpRetry(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET retry_count = retry_count + 1, last_retry_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

// insertTransactionTx добавляет журнальную запись внутри чужой транзакции.
// Используется переходами оффера, чтобы журнал менялся атомарно с деньгами.
func insertTransactionTx(ctx context.Context, tx *sqlx.Tx, txn *models.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (
			type, status, amount, from_user_id, to_user_id, offer_id, job_id, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, txn.Type, txn.Status, txn.Amount, txn.FromUserID, txn.ToUserID, txn.OfferID, txn.JobID)
	if err != nil {
		return fmt.Errorf("transaction repository: insert ledger row: %w", err)
	}
	return nil
}
