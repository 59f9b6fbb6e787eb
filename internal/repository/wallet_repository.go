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
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletFrozen      = errors.New("wallet frozen")
	ErrWalletNotFound    = errors.New("wallet not found")
)

// WalletRepository хранит кошельки и предоставляет только атомарные
// условные примитивы изменения баланса. Безусловного "set balance" нет:
// каждое списание защищено проверкой в том же UPDATE, что и само
// изменение, иначе два конкурентных запроса могли бы пройти один и тот
// же check-then-act.
type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// EnsureWallet возвращает кошелёк пользователя, создавая его при первом обращении.
func (r *WalletRepository) EnsureWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `
		INSERT INTO wallets (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING *
	`
	if err := r.db.GetContext(ctx, &wallet, query, userID); err != nil {
		return nil, fmt.Errorf("wallet repository: ensure wallet %w", err)
	}
	return &wallet, nil
}

// GetByUserID возвращает кошелёк пользователя.
func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.GetContext(ctx, &wallet, `SELECT * FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// SetFrozen включает или выключает административную блокировку кошелька.
// Блокировка останавливает все списания (accept, withdraw), но не
// зачисления: возвраты и выплаты проходят всегда.
func (r *WalletRepository) SetFrozen(ctx context.Context, userID uuid.UUID, frozen bool) error {
	var query string
	if frozen {
		query = `UPDATE wallets SET is_frozen = TRUE, frozen_at = NOW(), updated_at = NOW() WHERE user_id = $1`
	} else {
		query = `UPDATE wallets SET is_frozen = FALSE, frozen_at = NULL, updated_at = NOW() WHERE user_id = $1`
	}
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// SetGatewayCustomer сохраняет идентификатор покупателя на стороне шлюза.
func (r *WalletRepository) SetGatewayCustomer(ctx context.Context, userID uuid.UUID, ref string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE wallets SET gateway_customer_id = $2, updated_at = NOW() WHERE user_id = $1
	`, userID, ref)
	return err
}

// SetGatewayAccount сохраняет подключённый аккаунт для выплат и его статус.
func (r *WalletRepository) SetGatewayAccount(ctx context.Context, userID uuid.UUID, ref string, verified bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE wallets SET gateway_account_id = $2, payouts_verified = $3, updated_at = NOW() WHERE user_id = $1
	`, userID, ref, verified)
	return err
}

// lockWallet читает кошелёк под блокировкой строки внутри транзакции.
func lockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := tx.GetContext(ctx, &wallet, `SELECT * FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// creditBalanceTx зачисляет средства на баланс внутри транзакции.
func creditBalanceTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount float64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + $2, updated_at = NOW()
	`, userID, amount)
	return err
}

// holdEscrowTx переводит средства с баланса в эскроу одним условным UPDATE.
func holdEscrowTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount float64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance - $2, escrow_balance = escrow_balance + $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2 AND NOT is_frozen
	`, userID, amount)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// releaseEscrowTx возвращает средства из эскроу на баланс того же кошелька.
func releaseEscrowTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount float64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET escrow_balance = escrow_balance - $2, balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1 AND escrow_balance >= $2
	`, userID, amount)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// debitEscrowTx списывает средства из эскроу (перевод другому кошельку).
func debitEscrowTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount float64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET escrow_balance = escrow_balance - $2, total_spent = total_spent + $2, updated_at = NOW()
		WHERE user_id = $1 AND escrow_balance >= $2
	`, userID, amount)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrInsufficientFunds
	}
	return nil
}
