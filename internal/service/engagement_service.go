package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ignatzorin/jobmarket-backend/internal/models"
	"github.com/ignatzorin/jobmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/jobmarket-backend/internal/repository"
)

// EngagementStore — хранилище связок.
type EngagementStore interface {
	Create(ctx context.Context, e *models.Engagement) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Engagement, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Engagement, error)
	ListByContractor(ctx context.Context, contractorID uuid.UUID, limit, offset int) ([]models.Engagement, error)
}

// Событие о новой связке.
const (
	EventEngagementRequested = "engagement_requested"
	EventEngagementInvited   = "engagement_invited"
)

// EngagementService управляет откликами и приглашениями.
type EngagementService struct {
	engagements EngagementStore
	jobs        JobRepo
	notifier    Notifier
}

// NewEngagementService создаёт сервис связок.
func NewEngagementService(engagements EngagementStore, jobs JobRepo, notifier Notifier) *EngagementService {
	return &EngagementService{engagements: engagements, jobs: jobs, notifier: notifier}
}

// Apply регистрирует отклик исполнителя на открытое задание.
func (s *EngagementService) Apply(ctx context.Context, contractorID, jobID uuid.UUID, message *string) (*models.Engagement, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	if job.Status != models.JobStatusOpen {
		return nil, apperror.New(apperror.ErrCodeConflict, "задание уже не открыто")
	}
	if job.CustomerID == contractorID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя откликнуться на собственное задание")
	}

	engagement := &models.Engagement{
		JobID:        jobID,
		CustomerID:   job.CustomerID,
		ContractorID: contractorID,
		InitiatedBy:  models.EngagementByContractor,
		Message:      message,
	}
	if err := s.engagements.Create(ctx, engagement); err != nil {
		if errors.Is(err, repository.ErrEngagementExists) {
			return nil, apperror.New(apperror.ErrCodeConflict, "отклик уже существует")
		}
		return nil, err
	}

	s.notifier.Notify(job.CustomerID, EventEngagementRequested, map[string]interface{}{
		"engagement_id": engagement.ID,
		"job_id":        jobID,
	})
	return engagement, nil
}

// Invite создаёт приглашение исполнителя заказчиком.
func (s *EngagementService) Invite(ctx context.Context, customerID, jobID, contractorID uuid.UUID, message *string) (*models.Engagement, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	if job.CustomerID != customerID {
		return nil, apperror.ErrForbidden
	}
	if job.Status != models.JobStatusOpen {
		return nil, apperror.New(apperror.ErrCodeConflict, "задание уже не открыто")
	}
	if contractorID == customerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя пригласить самого себя")
	}

	engagement := &models.Engagement{
		JobID:        jobID,
		CustomerID:   customerID,
		ContractorID: contractorID,
		InitiatedBy:  models.EngagementByCustomer,
		Message:      message,
	}
	if err := s.engagements.Create(ctx, engagement); err != nil {
		if errors.Is(err, repository.ErrEngagementExists) {
			return nil, apperror.New(apperror.ErrCodeConflict, "связка уже существует")
		}
		return nil, err
	}

	s.notifier.Notify(contractorID, EventEngagementInvited, map[string]interface{}{
		"engagement_id": engagement.ID,
		"job_id":        jobID,
	})
	return engagement, nil
}

// Get возвращает связку её участнику.
func (s *EngagementService) Get(ctx context.Context, userID uuid.UUID, role string, id uuid.UUID) (*models.Engagement, error) {
	engagement, err := s.engagements.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEngagementNotFound) {
			return nil, apperror.ErrEngagementNotFound
		}
		return nil, err
	}
	if role != models.RoleAdmin && userID != engagement.CustomerID && userID != engagement.ContractorID {
		return nil, apperror.ErrForbidden
	}
	return engagement, nil
}

// ListByJob возвращает связки задания его владельцу.
func (s *EngagementService) ListByJob(ctx context.Context, userID uuid.UUID, role string, jobID uuid.UUID) ([]models.Engagement, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	if role != models.RoleAdmin && job.CustomerID != userID {
		return nil, apperror.ErrForbidden
	}
	return s.engagements.ListByJob(ctx, jobID)
}

// ListMine возвращает связки исполнителя.
func (s *EngagementService) ListMine(ctx context.Context, contractorID uuid.UUID, limit, offset int) ([]models.Engagement, error) {
	return s.engagements.ListByContractor(ctx, contractorID, normalizeLimit(limit), offset)
}
