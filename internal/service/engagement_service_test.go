package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/jobmarket-backend/internal/models"
	"github.com/ignatzorin/jobmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/jobmarket-backend/internal/repository"
)

type mockEngagementStore struct {
	mock.Mock
}

func (m *mockEngagementStore) Create(ctx context.Context, e *models.Engagement) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockEngagementStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Engagement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Engagement), args.Error(1)
}

func (m *mockEngagementStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Engagement, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).([]models.Engagement), args.Error(1)
}

func (m *mockEngagementStore) ListByContractor(ctx context.Context, contractorID uuid.UUID, limit, offset int) ([]models.Engagement, error) {
	args := m.Called(ctx, contractorID, limit, offset)
	return args.Get(0).([]models.Engagement), args.Error(1)
}

func newEngagementFixture() (*mockEngagementStore, *mockJobRepo, *mockNotifier, *EngagementService) {
	store := new(mockEngagementStore)
	jobs := new(mockJobRepo)
	notifier := new(mockNotifier)
	return store, jobs, notifier, NewEngagementService(store, jobs, notifier)
}

func TestEngagementService_Apply_Success(t *testing.T) {
	store, jobs, notifier, svc := newEngagementFixture()
	ctx := context.Background()
	customerID := uuid.New()
	contractorID := uuid.New()
	jobID := uuid.New()

	jobs.On("GetByID", ctx, jobID).Return(&models.Job{
		ID: jobID, CustomerID: customerID, Status: models.JobStatusOpen,
	}, nil)
	store.On("Create", ctx, mock.MatchedBy(func(e *models.Engagement) bool {
		return e.InitiatedBy == models.EngagementByContractor && e.ContractorID == contractorID
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Engagement).ID = uuid.New()
	}).Return(nil)
	notifier.On("Notify", customerID, EventEngagementRequested, mock.Anything).Return()

	engagement, err := svc.Apply(ctx, contractorID, jobID, nil)
	require.NoError(t, err)
	assert.Equal(t, customerID, engagement.CustomerID)
	notifier.AssertExpectations(t)
}

func TestEngagementService_Apply_OwnJob(t *testing.T) {
	_, jobs, _, svc := newEngagementFixture()
	ctx := context.Background()
	customerID := uuid.New()
	jobID := uuid.New()

	jobs.On("GetByID", ctx, jobID).Return(&models.Job{
		ID: jobID, CustomerID: customerID, Status: models.JobStatusOpen,
	}, nil)

	_, err := svc.Apply(ctx, customerID, jobID, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "собственное")
}

func TestEngagementService_Apply_Duplicate(t *testing.T) {
	store, jobs, _, svc := newEngagementFixture()
	ctx := context.Background()
	jobID := uuid.New()

	jobs.On("GetByID", ctx, jobID).Return(&models.Job{
		ID: jobID, CustomerID: uuid.New(), Status: models.JobStatusOpen,
	}, nil)
	store.On("Create", ctx, mock.Anything).Return(repository.ErrEngagementExists)

	_, err := svc.Apply(ctx, uuid.New(), jobID, nil)
	assert.True(t, apperror.IsConflict(err))
}

func TestEngagementService_Invite_Success(t *testing.T) {
	store, jobs, notifier, svc := newEngagementFixture()
	ctx := context.Background()
	customerID := uuid.New()
	contractorID := uuid.New()
	jobID := uuid.New()

	jobs.On("GetByID", ctx, jobID).Return(&models.Job{
		ID: jobID, CustomerID: customerID, Status: models.JobStatusOpen,
	}, nil)
	store.On("Create", ctx, mock.MatchedBy(func(e *models.Engagement) bool {
		return e.InitiatedBy == models.EngagementByCustomer
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Engagement).ID = uuid.New()
	}).Return(nil)
	notifier.On("Notify", contractorID, EventEngagementInvited, mock.Anything).Return()

	_, err := svc.Invite(ctx, customerID, jobID, contractorID, nil)
	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestEngagementService_Invite_NotOwner(t *testing.T) {
	_, jobs, _, svc := newEngagementFixture()
	ctx := context.Background()
	jobID := uuid.New()

	jobs.On("GetByID", ctx, jobID).Return(&models.Job{
		ID: jobID, CustomerID: uuid.New(), Status: models.JobStatusOpen,
	}, nil)

	_, err := svc.Invite(ctx, uuid.New(), jobID, uuid.New(), nil)
	assert.True(t, apperror.IsForbidden(err))
}

func TestEngagementService_Get_ParticipantsOnly(t *testing.T) {
	store, _, _, svc := newEngagementFixture()
	ctx := context.Background()
	customerID := uuid.New()
	contractorID := uuid.New()
	id := uuid.New()

	engagement := &models.Engagement{ID: id, CustomerID: customerID, ContractorID: contractorID}
	store.On("GetByID", ctx, id).Return(engagement, nil)

	_, err := svc.Get(ctx, customerID, models.RoleCustomer, id)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, uuid.New(), models.RoleContractor, id)
	assert.True(t, apperror.IsForbidden(err))

	_, err = svc.Get(ctx, uuid.New(), models.RoleAdmin, id)
	assert.NoError(t, err)
}

func TestEngagementService_ListByJob_OwnerOnly(t *testing.T) {
	store, jobs, _, svc := newEngagementFixture()
	ctx := context.Background()
	customerID := uuid.New()
	jobID := uuid.New()

	jobs.On("GetByID", ctx, jobID).Return(&models.Job{ID: jobID, CustomerID: customerID}, nil)
	store.On("ListByJob", ctx, jobID).Return([]models.Engagement{{ID: uuid.New()}}, nil)

	list, err := svc.ListByJob(ctx, customerID, models.RoleCustomer, jobID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.ListByJob(ctx, uuid.New(), models.RoleContractor, jobID)
	assert.True(t, apperror.IsForbidden(err))
}
