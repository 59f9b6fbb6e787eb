package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/jobmarket-backend/internal/gateway"
	"github.com/ignatzorin/jobmarket-backend/internal/models"
	"github.com/ignatzorin/jobmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/jobmarket-backend/internal/repository"
)

type reconcileFixture struct {
	txns     *mockTransactionRepo
	gw       *mockGateway
	notifier *mockNotifier
	svc      *ReconcileService
}

func newReconcileFixture() *reconcileFixture {
	f := &reconcileFixture{
		txns:     new(mockTransactionRepo),
		gw:       new(mockGateway),
		notifier: new(mockNotifier),
	}
	f.svc = NewReconcileService(f.txns, f.gw, f.notifier)
	return f
}

func TestReconcileService_BadSignature(t *testing.T) {
	f := newReconcileFixture()
	payload := []byte(`{}`)

	f.gw.On("VerifyWebhook", payload, "bad").Return(nil, errors.New("signature mismatch"))

	err := f.svc.HandleEvent(context.Background(), payload, "bad")
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeBadRequest, appErr.Code)
}

func TestReconcileService_IgnoredEvent(t *testing.T) {
	f := newReconcileFixture()
	payload := []byte(`{}`)

	f.gw.On("VerifyWebhook", payload, "sig").Return(&gateway.WebhookEvent{Type: gateway.EventIgnored}, nil)

	err := f.svc.HandleEvent(context.Background(), payload, "sig")
	assert.NoError(t, err)
	f.txns.AssertNotCalled(t, "GetByGatewayRef", mock.Anything, mock.Anything)
}

func TestReconcileService_UnknownRef(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()
	payload := []byte(`{}`)

	f.gw.On("VerifyWebhook", payload, "sig").Return(&gateway.WebhookEvent{
		Type: gateway.EventChargeSucceeded,
		Ref:  "pi_ghost",
	}, nil)
	f.txns.On("GetByGatewayRef", ctx, "pi_ghost").Return(nil, repository.ErrTransactionNotFound)

	// Событие по чужому платежу не считается ошибкой, иначе шлюз
	// будет ретраить вебхук бесконечно.
	err := f.svc.HandleEvent(ctx, payload, "sig")
	assert.NoError(t, err)
}

func TestReconcileService_ChargeSucceeded(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()
	payload := []byte(`{}`)
	txnID := uuid.New()
	userID := uuid.New()

	f.gw.On("VerifyWebhook", payload, "sig").Return(&gateway.WebhookEvent{
		Type: gateway.EventChargeSucceeded,
		Ref:  "pi_1",
	}, nil)
	f.txns.On("GetByGatewayRef", ctx, "pi_1").Return(&models.Transaction{ID: txnID}, nil)
	f.txns.On("CompleteDeposit", ctx, txnID).Return(&models.Transaction{
		ID:       txnID,
		Amount:   1000,
		ToUserID: &userID,
		Status:   models.TransactionStatusCompleted,
	}, nil)
	f.notifier.On("Notify", userID, EventDepositSucceeded, mock.Anything).Return()

	err := f.svc.HandleEvent(ctx, payload, "sig")
	require.NoError(t, err)
	f.notifier.AssertExpectations(t)
}

func TestReconcileService_ChargeSucceeded_AlreadyProcessed(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()
	payload := []byte(`{}`)
	txnID := uuid.New()

	f.gw.On("VerifyWebhook", payload, "sig").Return(&gateway.WebhookEvent{
		Type: gateway.EventChargeSucceeded,
		Ref:  "pi_1",
	}, nil)
	f.txns.On("GetByGatewayRef", ctx, "pi_1").Return(&models.Transaction{ID: txnID}, nil)
	f.txns.On("CompleteDeposit", ctx, txnID).Return(nil, repository.ErrTransactionProcessed)

	// Повторный вебхук по зачисленному депозиту — no-op.
	err := f.svc.HandleEvent(ctx, payload, "sig")
	assert.NoError(t, err)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileService_ChargeFailed(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()
	payload := []byte(`{}`)
	txnID := uuid.New()
	userID := uuid.New()

	f.gw.On("VerifyWebhook", payload, "sig").Return(&gateway.WebhookEvent{
		Type:          gateway.EventChargeFailed,
		Ref:           "pi_1",
		FailureReason: "карта отклонена",
	}, nil)
	f.txns.On("GetByGatewayRef", ctx, "pi_1").Return(&models.Transaction{ID: txnID}, nil)
	f.txns.On("FailDeposit", ctx, txnID, "карта отклонена", models.ErrorKindCard).
		Return(&models.Transaction{ID: txnID, Amount: 1000, ToUserID: &userID}, nil)
	f.notifier.On("Notify", userID, EventDepositFailed, mock.Anything).Return()

	err := f.svc.HandleEvent(ctx, payload, "sig")
	require.NoError(t, err)
	f.notifier.AssertExpectations(t)
}

func TestReconcileService_ChargeFailed_AfterTransientFailure(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()
	payload := []byte(`{}`)
	txnID := uuid.New()

	f.gw.On("VerifyWebhook", payload, "sig").Return(&gateway.WebhookEvent{
		Type:          gateway.EventChargeFailed,
		Ref:           "pi_1",
		FailureReason: "карта отклонена",
	}, nil)
	f.txns.On("GetByGatewayRef", ctx, "pi_1").Return(&models.Transaction{ID: txnID}, nil)
	// Депозит уже упал транзиентно: вебхук добивает его до терминала.
	f.txns.On("FailDeposit", ctx, txnID, "карта отклонена", models.ErrorKindCard).
		Return(nil, repository.ErrTransactionProcessed)
	f.txns.On("MarkDepositTerminal", ctx, txnID, "карта отклонена").Return(nil)

	err := f.svc.HandleEvent(ctx, payload, "sig")
	require.NoError(t, err)
	f.txns.AssertExpectations(t)
}
