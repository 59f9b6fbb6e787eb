package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet представляет кошелёк пользователя.
// Инвариант: balance >= 0 и escrow_balance >= 0 в любой момент времени.
// Все изменения проходят через условные атомарные UPDATE в репозитории,
// прямое выставление баланса запрещено.
type Wallet struct {
	UserID            uuid.UUID  `db:"user_id" json:"user_id"`
	Balance           float64    `db:"balance" json:"balance"`
	EscrowBalance     float64    `db:"escrow_balance" json:"escrow_balance"`
	TotalEarnings     float64    `db:"total_earnings" json:"total_earnings"`
	TotalSpent        float64    `db:"total_spent" json:"total_spent"`
	TotalWithdrawals  float64    `db:"total_withdrawals" json:"total_withdrawals"`
	PendingDeposits   float64    `db:"pending_deposits" json:"pending_deposits"`
	IsFrozen          bool       `db:"is_frozen" json:"is_frozen"`
	GatewayCustomerID *string    `db:"gateway_customer_id" json:"-"`
	GatewayAccountID  *string    `db:"gateway_account_id" json:"-"`
	PayoutsVerified   bool       `db:"payouts_verified" json:"payouts_verified"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
	FrozenAt          *time.Time `db:"frozen_at" json:"frozen_at,omitempty"`
}
