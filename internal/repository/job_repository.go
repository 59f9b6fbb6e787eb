package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/jobmarket-backend/internal/models"
)

var ErrJobNotFound = errors.New("job not found")

// JobRepository хранит заказы. Назначение исполнителя и завершение
// делает OfferRepository атомарно вместе с деньгами.
type JobRepository struct {
	db *sqlx.DB
}

func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create публикует заказ.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	return r.db.GetContext(ctx, job, `
		INSERT INTO jobs (customer_id, title, description, budget, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, job.CustomerID, job.Title, job.Description, job.Budget, models.JobStatusOpen)
}

// GetByID возвращает заказ.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	err := r.db.GetContext(ctx, &job, `SELECT * FROM jobs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListOpen возвращает открытые заказы, новые сверху.
func (r *JobRepository) ListOpen(ctx context.Context, limit, offset int) ([]models.Job, error) {
	jobs := []models.Job{}
	err := r.db.SelectContext(ctx, &jobs, `
		SELECT * FROM jobs WHERE status = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, models.JobStatusOpen, limit, offset)
	return jobs, err
}

// ListByCustomer возвращает заказы заказчика.
func (r *JobRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Job, error) {
	jobs := []models.Job{}
	err := r.db.SelectContext(ctx, &jobs, `
		SELECT * FROM jobs WHERE customer_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, customerID, limit, offset)
	return jobs, err
}
