package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/jobmarket-backend/internal/models"
)

var (
	ErrEngagementNotFound = errors.New("engagement not found")
	ErrEngagementExists   = errors.New("engagement already exists for this pair")
)

// EngagementRepository хранит связки заказчик-исполнитель по заказу.
// Переходы статусов, связанные с оффером, выполняет OfferRepository в
// своих транзакциях; здесь только создание и чтение.
type EngagementRepository struct {
	db *sqlx.DB
}

func NewEngagementRepository(db *sqlx.DB) *EngagementRepository {
	return &EngagementRepository{db: db}
}

// Create регистрирует отклик исполнителя или приглашение заказчика.
// Пара (job, contractor) уникальна: повторный отклик — конфликт.
func (r *EngagementRepository) Create(ctx context.Context, e *models.Engagement) error {
	err := r.db.GetContext(ctx, e, `
		INSERT INTO engagements (job_id, customer_id, contractor_id, initiated_by, status, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, e.JobID, e.CustomerID, e.ContractorID, e.InitiatedBy, e.PreOfferStatus(), e.Message)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEngagementExists
		}
		return err
	}
	return nil
}

// GetByID возвращает связку.
func (r *EngagementRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Engagement, error) {
	var e models.Engagement
	err := r.db.GetContext(ctx, &e, `SELECT * FROM engagements WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEngagementNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListByJob возвращает все связки заказа.
func (r *EngagementRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Engagement, error) {
	list := []models.Engagement{}
	err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM engagements WHERE job_id = $1 ORDER BY created_at
	`, jobID)
	return list, err
}

// ListByContractor возвращает связки исполнителя.
func (r *EngagementRepository) ListByContractor(ctx context.Context, contractorID uuid.UUID, limit, offset int) ([]models.Engagement, error) {
	list := []models.Engagement{}
	err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM engagements WHERE contractor_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, contractorID, limit, offset)
	return list, err
}
