package models

import (
	"time"

	"github.com/google/uuid"
)

// Job представляет задание заказчика. CRUD по заданиям минимален:
// движок офферов опирается только на статус и владельца.
type Job struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	CustomerID   uuid.UUID  `db:"customer_id" json:"customer_id"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	Budget       *float64   `db:"budget" json:"budget,omitempty"`
	Status       string     `db:"status" json:"status"`
	ContractorID *uuid.UUID `db:"contractor_id" json:"contractor_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
