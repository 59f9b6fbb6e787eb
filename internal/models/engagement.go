package models

import (
	"time"

	"github.com/google/uuid"
)

// Engagement — отклик исполнителя или приглашение заказчика по заданию.
// Жизненный цикл оффера меняет только status и offer_id: при отправке
// оффера статус становится offered, при отказе/отмене/истечении
// возвращается к статусу до оффера (requested или engaged в зависимости
// от инициатора), при принятии — assigned.
type Engagement struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	JobID        uuid.UUID  `db:"job_id" json:"job_id"`
	CustomerID   uuid.UUID  `db:"customer_id" json:"customer_id"`
	ContractorID uuid.UUID  `db:"contractor_id" json:"contractor_id"`
	InitiatedBy  string     `db:"initiated_by" json:"initiated_by"`
	Status       string     `db:"status" json:"status"`
	OfferID      *uuid.UUID `db:"offer_id" json:"offer_id,omitempty"`
	Message      *string    `db:"message" json:"message,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// PreOfferStatus возвращает статус, в котором отклик находился до
// отправки оффера.
func (e *Engagement) PreOfferStatus() string {
	if e.InitiatedBy == EngagementByCustomer {
		return EngagementStatusEngaged
	}
	return EngagementStatusRequested
}
