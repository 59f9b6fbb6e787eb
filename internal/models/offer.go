package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы оффера. Переходы: pending -> accepted|rejected|cancelled|expired,
// accepted -> completed|cancelled. Остальные статусы терминальные.
const (
	OfferStatusPending   = "pending"
	OfferStatusAccepted  = "accepted"
	OfferStatusRejected  = "rejected"
	OfferStatusCancelled = "cancelled"
	OfferStatusExpired   = "expired"
	OfferStatusCompleted = "completed"
)

// ValidOfferStatuses список валидных статусов оффера
var ValidOfferStatuses = map[string]struct{}{
	OfferStatusPending:   {},
	OfferStatusAccepted:  {},
	OfferStatusRejected:  {},
	OfferStatusCancelled: {},
	OfferStatusExpired:   {},
	OfferStatusCompleted: {},
}

// Offer представляет ценовое предложение по заданию.
// На одно задание одновременно может существовать не более одного
// активного (pending или accepted) оффера.
type Offer struct {
	ID           uuid.UUID `db:"id" json:"id"`
	JobID        uuid.UUID `db:"job_id" json:"job_id"`
	EngagementID uuid.UUID `db:"engagement_id" json:"engagement_id"`
	CustomerID   uuid.UUID `db:"customer_id" json:"customer_id"`
	ContractorID uuid.UUID `db:"contractor_id" json:"contractor_id"`

	// Денежная раскладка фиксируется в момент создания оффера.
	// TotalCharge = Amount + PlatformFee, ContractorPayout = Amount - ServiceFee.
	Amount           float64 `db:"amount" json:"amount"`
	PlatformFee      float64 `db:"platform_fee" json:"platform_fee"`
	ServiceFee       float64 `db:"service_fee" json:"service_fee"`
	ContractorPayout float64 `db:"contractor_payout" json:"contractor_payout"`
	TotalCharge      float64 `db:"total_charge" json:"total_charge"`

	Timeline    *string `db:"timeline" json:"timeline,omitempty"`
	Description *string `db:"description" json:"description,omitempty"`

	Status    string     `db:"status" json:"status"`
	Reason    *string    `db:"reason" json:"reason,omitempty"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	AcceptedAt  *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	RejectedAt  *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// IsTerminal сообщает, находится ли оффер в терминальном статусе.
func (o *Offer) IsTerminal() bool {
	switch o.Status {
	case OfferStatusRejected, OfferStatusCancelled, OfferStatusExpired, OfferStatusCompleted:
		return true
	}
	return false
}
