package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ignatzorin/jobmarket-backend/internal/models"
	"github.com/ignatzorin/jobmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/jobmarket-backend/internal/repository"
	"github.com/ignatzorin/jobmarket-backend/internal/validation"
)

// JobStore — хранилище заданий.
type JobStore interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListOpen(ctx context.Context, limit, offset int) ([]models.Job, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Job, error)
}

// JobService — минимальный CRUD заданий. Назначение и завершение
// заданий выполняет движок офферов.
type JobService struct {
	jobs JobStore
}

// CreateJobInput — данные нового задания.
type CreateJobInput struct {
	Title       string
	Description string
	Budget      *float64
}

// NewJobService создаёт сервис заданий.
func NewJobService(jobs JobStore) *JobService {
	return &JobService{jobs: jobs}
}

// Create публикует задание заказчика.
func (s *JobService) Create(ctx context.Context, customerID uuid.UUID, in CreateJobInput) (*models.Job, error) {
	if err := validation.ValidateLength("заголовок", in.Title, validation.MinJobTitleLength, validation.MaxJobTitleLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("описание", in.Description, validation.MinJobDescriptionLength, validation.MaxJobDescriptionLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.Budget != nil && (*in.Budget < 0 || *in.Budget > validation.MaxBudget) {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректный бюджет")
	}

	job := &models.Job{
		CustomerID:  customerID,
		Title:       in.Title,
		Description: in.Description,
		Budget:      in.Budget,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get возвращает задание.
func (s *JobService) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListOpen возвращает открытые задания.
func (s *JobService) ListOpen(ctx context.Context, limit, offset int) ([]models.Job, error) {
	return s.jobs.ListOpen(ctx, normalizeLimit(limit), offset)
}

// ListMine возвращает задания заказчика.
func (s *JobService) ListMine(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Job, error) {
	return s.jobs.ListByCustomer(ctx, customerID, normalizeLimit(limit), offset)
}
