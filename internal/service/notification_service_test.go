package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/jobmarket-backend/internal/goroutine"
	"github.com/ignatzorin/jobmarket-backend/internal/logger"
	"github.com/ignatzorin/jobmarket-backend/internal/models"
)

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) Create(ctx context.Context, userID uuid.UUID, payload json.RawMessage) (*models.Notification, error) {
	args := m.Called(ctx, userID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

type mockPusher struct {
	mock.Mock
}

func (m *mockPusher) Push(userID uuid.UUID, payload []byte) bool {
	args := m.Called(userID, payload)
	return args.Bool(0)
}

func newNotificationFixture() (*mockNotificationRepo, *mockPusher, *NotificationService) {
	repo := new(mockNotificationRepo)
	pusher := new(mockPusher)
	recovery := goroutine.NewRecoveryHandler(logger.Log)
	return repo, pusher, NewNotificationService(repo, pusher, recovery)
}

func TestNotificationService_Notify_PersistsAndPushes(t *testing.T) {
	repo, pusher, svc := newNotificationFixture()
	userID := uuid.New()

	delivered := make(chan []byte, 1)
	repo.On("Create", mock.Anything, userID, mock.Anything).Return(&models.Notification{ID: uuid.New()}, nil)
	pusher.On("Push", userID, mock.Anything).Run(func(args mock.Arguments) {
		delivered <- args.Get(1).([]byte)
	}).Return(true)

	svc.Notify(userID, EventOfferReceived, map[string]interface{}{"amount": 200})

	select {
	case payload := <-delivered:
		var envelope struct {
			Event string                 `json:"event"`
			Data  map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(payload, &envelope))
		assert.Equal(t, EventOfferReceived, envelope.Event)
		assert.Equal(t, float64(200), envelope.Data["amount"])
	case <-time.After(time.Second):
		t.Fatal("уведомление не доставлено")
	}
	repo.AssertExpectations(t)
}

func TestNotificationService_Notify_PushesEvenIfPersistFails(t *testing.T) {
	repo, pusher, svc := newNotificationFixture()
	userID := uuid.New()

	delivered := make(chan struct{}, 1)
	repo.On("Create", mock.Anything, userID, mock.Anything).Return(nil, errors.New("db down"))
	pusher.On("Push", userID, mock.Anything).Run(func(mock.Arguments) {
		delivered <- struct{}{}
	}).Return(false)

	svc.Notify(userID, EventDepositSucceeded, nil)

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("пуш не отправлен после сбоя записи")
	}
}

func TestNotificationService_List(t *testing.T) {
	repo, _, svc := newNotificationFixture()
	ctx := context.Background()
	userID := uuid.New()

	expected := []models.Notification{{ID: uuid.New()}, {ID: uuid.New()}}
	repo.On("ListByUser", ctx, userID, 20, 0).Return(expected, nil)

	list, err := svc.List(ctx, userID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestNotificationService_MarkRead(t *testing.T) {
	repo, _, svc := newNotificationFixture()
	ctx := context.Background()
	userID := uuid.New()
	id := uuid.New()

	repo.On("MarkRead", ctx, userID, id).Return(nil)

	assert.NoError(t, svc.MarkRead(ctx, userID, id))
	repo.AssertExpectations(t)
}
