package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы транзакций
const (
	TransactionTypeDeposit          = "deposit"
	TransactionTypeWithdrawal       = "withdrawal"
	TransactionTypeEscrowHold       = "escrow_hold"
	TransactionTypeEscrowRelease    = "escrow_release"
	TransactionTypeWalletTransfer   = "wallet_transfer"
	TransactionTypePlatformFee      = "platform_fee"
	TransactionTypeServiceFee       = "service_fee"
	TransactionTypeContractorPayout = "contractor_payout"
	TransactionTypeRefund           = "refund"
)

// Статусы транзакций
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Классы ошибок шлюза, зафиксированные в транзакции.
// card — пользователь должен исправить платёжное средство, ретраи бессмысленны.
// transient — сетевые и 5xx ошибки, транзакцию подхватит retry sweeper.
const (
	ErrorKindCard      = "card"
	ErrorKindTransient = "transient"
)

// Transaction — запись журнала о движении денег.
// Завершённые транзакции неизменяемы; только failed транзакции может
// трогать retry sweeper (status, retry_count, last_retry_at).
type Transaction struct {
	ID     uuid.UUID  `db:"id" json:"id"`
	Type   string     `db:"type" json:"type"`
	Amount float64    `db:"amount" json:"amount"`
	Status string     `db:"status" json:"status"`

	FromUserID *uuid.UUID `db:"from_user_id" json:"from_user_id,omitempty"`
	ToUserID   *uuid.UUID `db:"to_user_id" json:"to_user_id,omitempty"`
	OfferID    *uuid.UUID `db:"offer_id" json:"offer_id,omitempty"`
	JobID      *uuid.UUID `db:"job_id" json:"job_id,omitempty"`

	GatewayRef     *string `db:"gateway_ref" json:"gateway_ref,omitempty"`
	GatewayStatus  *string `db:"gateway_status" json:"gateway_status,omitempty"`
	FailureReason  *string `db:"failure_reason" json:"failure_reason,omitempty"`
	ErrorKind      *string `db:"error_kind" json:"error_kind,omitempty"`
	IdempotencyKey *string `db:"idempotency_key" json:"idempotency_key,omitempty"`

	RetryCount  int        `db:"retry_count" json:"retry_count"`
	LastRetryAt *time.Time `db:"last_retry_at" json:"last_retry_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
