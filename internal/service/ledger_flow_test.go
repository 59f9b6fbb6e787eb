package service

// Денежные свойства жизненного цикла оффера проверяются на in-memory
// реализации контракта хранилища: сумма балансов и эскроу не меняется
// ни одним переходом, балансы не уходят в минус, возврат при истечении
// равен удержанию копейка в копейку.

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/jobmarket-backend/internal/models"
	"github.com/ignatzorin/jobmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/jobmarket-backend/internal/repository"
)

// fakeLedger — хранилище офферов в памяти с той же денежной семантикой,
// что у OfferRepository: guard по статусу, заморозка, эскроу и журнал.
type fakeLedger struct {
	wallets     map[uuid.UUID]*models.Wallet
	offers      map[uuid.UUID]*models.Offer
	engagements map[uuid.UUID]*models.Engagement
	jobs        map[uuid.UUID]*models.Job
	ledger      []models.Transaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		wallets:     map[uuid.UUID]*models.Wallet{},
		offers:      map[uuid.UUID]*models.Offer{},
		engagements: map[uuid.UUID]*models.Engagement{},
		jobs:        map[uuid.UUID]*models.Job{},
	}
}

func (l *fakeLedger) wallet(userID uuid.UUID) *models.Wallet {
	if w, ok := l.wallets[userID]; ok {
		return w
	}
	w := &models.Wallet{UserID: userID}
	l.wallets[userID] = w
	return w
}

func (l *fakeLedger) record(txn models.Transaction) {
	txn.ID = uuid.New()
	txn.Status = models.TransactionStatusCompleted
	l.ledger = append(l.ledger, txn)
}

func (l *fakeLedger) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	offer, ok := l.offers[id]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	copied := *offer
	return &copied, nil
}

func (l *fakeLedger) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Offer, error) {
	out := []models.Offer{}
	for _, o := range l.offers {
		if o.CustomerID == userID || o.ContractorID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (l *fakeLedger) ListExpired(ctx context.Context, limit int) ([]models.Offer, error) {
	out := []models.Offer{}
	for _, o := range l.offers {
		if o.Status == models.OfferStatusPending && o.ExpiresAt.Before(time.Now()) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (l *fakeLedger) CreateWithHold(ctx context.Context, offer *models.Offer) error {
	wallet := l.wallet(offer.CustomerID)
	if wallet.IsFrozen {
		return repository.ErrWalletFrozen
	}
	if wallet.Balance < offer.TotalCharge {
		return repository.ErrInsufficientFunds
	}
	for _, o := range l.offers {
		if o.JobID == offer.JobID &&
			(o.Status == models.OfferStatusPending || o.Status == models.OfferStatusAccepted) {
			return repository.ErrActiveOfferExists
		}
	}

	wallet.Balance -= offer.TotalCharge
	wallet.EscrowBalance += offer.TotalCharge

	offer.ID = uuid.New()
	offer.Status = models.OfferStatusPending
	stored := *offer
	l.offers[offer.ID] = &stored

	engagement := l.engagements[offer.EngagementID]
	engagement.Status = models.EngagementStatusOffered
	engagement.OfferID = &offer.ID

	l.record(models.Transaction{
		Type:       models.TransactionTypeEscrowHold,
		Amount:     offer.TotalCharge,
		FromUserID: &offer.CustomerID,
		ToUserID:   &offer.CustomerID,
	})
	return nil
}

func (l *fakeLedger) Accept(ctx context.Context, offerID, contractorID, platformID uuid.UUID) (*models.Offer, []uuid.UUID, error) {
	offer, ok := l.offers[offerID]
	if !ok || offer.Status != models.OfferStatusPending || offer.ContractorID != contractorID {
		return nil, nil, repository.ErrOfferProcessed
	}

	customer := l.wallet(offer.CustomerID)
	if customer.IsFrozen {
		return nil, nil, repository.ErrWalletFrozen
	}
	if customer.EscrowBalance < offer.TotalCharge {
		return nil, nil, repository.ErrInsufficientFunds
	}

	customer.EscrowBalance -= offer.TotalCharge
	l.wallet(platformID).Balance += offer.TotalCharge

	offer.Status = models.OfferStatusAccepted
	job := l.jobs[offer.JobID]
	job.Status = models.JobStatusAssigned
	job.ContractorID = &contractorID
	l.engagements[offer.EngagementID].Status = models.EngagementStatusAssigned

	losers := []uuid.UUID{}
	for _, e := range l.engagements {
		if e.JobID == offer.JobID && e.ID != offer.EngagementID &&
			(e.Status == models.EngagementStatusRequested || e.Status == models.EngagementStatusEngaged) {
			e.Status = models.EngagementStatusCancelled
			losers = append(losers, e.ContractorID)
		}
	}

	l.record(models.Transaction{
		Type:       models.TransactionTypeWalletTransfer,
		Amount:     offer.TotalCharge,
		FromUserID: &offer.CustomerID,
		ToUserID:   &platformID,
	})

	copied := *offer
	return &copied, losers, nil
}

func (l *fakeLedger) Reject(ctx context.Context, offerID, contractorID uuid.UUID, reason string) (*models.Offer, error) {
	return l.finishPending(offerID, models.OfferStatusRejected, &contractorID, nil)
}

func (l *fakeLedger) Cancel(ctx context.Context, offerID, customerID uuid.UUID, reason string) (*models.Offer, error) {
	return l.finishPending(offerID, models.OfferStatusCancelled, nil, &customerID)
}

func (l *fakeLedger) Expire(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	return l.finishPending(offerID, models.OfferStatusExpired, nil, nil)
}

func (l *fakeLedger) finishPending(offerID uuid.UUID, status string, contractorID, customerID *uuid.UUID) (*models.Offer, error) {
	offer, ok := l.offers[offerID]
	if !ok || offer.Status != models.OfferStatusPending {
		return nil, repository.ErrOfferProcessed
	}
	if contractorID != nil && offer.ContractorID != *contractorID {
		return nil, repository.ErrOfferProcessed
	}
	if customerID != nil && offer.CustomerID != *customerID {
		return nil, repository.ErrOfferProcessed
	}

	customer := l.wallet(offer.CustomerID)
	customer.EscrowBalance -= offer.TotalCharge
	customer.Balance += offer.TotalCharge

	offer.Status = status
	engagement := l.engagements[offer.EngagementID]
	engagement.Status = engagement.PreOfferStatus()
	engagement.OfferID = nil

	l.record(models.Transaction{
		Type:       models.TransactionTypeRefund,
		Amount:     offer.TotalCharge,
		FromUserID: &offer.CustomerID,
		ToUserID:   &offer.CustomerID,
	})

	copied := *offer
	return &copied, nil
}

func (l *fakeLedger) Complete(ctx context.Context, offerID, customerID, platformID uuid.UUID) (*models.Offer, error) {
	offer, ok := l.offers[offerID]
	if !ok || offer.Status != models.OfferStatusAccepted || offer.CustomerID != customerID {
		return nil, repository.ErrOfferProcessed
	}

	platform := l.wallet(platformID)
	if platform.Balance < offer.ContractorPayout {
		return nil, repository.ErrInsufficientFunds
	}
	platform.Balance -= offer.ContractorPayout
	platform.TotalEarnings += offer.PlatformFee + offer.ServiceFee

	contractor := l.wallet(offer.ContractorID)
	contractor.Balance += offer.ContractorPayout
	contractor.TotalEarnings += offer.ContractorPayout

	offer.Status = models.OfferStatusCompleted
	l.jobs[offer.JobID].Status = models.JobStatusCompleted
	l.engagements[offer.EngagementID].Status = models.EngagementStatusCompleted

	l.record(models.Transaction{
		Type:       models.TransactionTypeServiceFee,
		Amount:     offer.ServiceFee,
		FromUserID: &offer.ContractorID,
		ToUserID:   &platformID,
	})
	l.record(models.Transaction{
		Type:       models.TransactionTypeContractorPayout,
		Amount:     offer.ContractorPayout,
		FromUserID: &platformID,
		ToUserID:   &offer.ContractorID,
	})

	copied := *offer
	return &copied, nil
}

func (l *fakeLedger) GetEngagement(ctx context.Context, id uuid.UUID) (*models.Engagement, error) {
	e, ok := l.engagements[id]
	if !ok {
		return nil, repository.ErrEngagementNotFound
	}
	copied := *e
	return &copied, nil
}

func (l *fakeLedger) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, ok := l.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	copied := *j
	return &copied, nil
}

// ledgerEngagements и ledgerJobs подгоняют fakeLedger под узкие
// интерфейсы сервиса.
type ledgerEngagements struct{ *fakeLedger }

func (l ledgerEngagements) GetByID(ctx context.Context, id uuid.UUID) (*models.Engagement, error) {
	return l.GetEngagement(ctx, id)
}

type ledgerJobs struct{ *fakeLedger }

func (l ledgerJobs) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return l.GetJob(ctx, id)
}

type silentNotifier struct{}

func (silentNotifier) Notify(uuid.UUID, string, map[string]interface{}) {}

type ledgerFixture struct {
	ledger       *fakeLedger
	svc          *OfferService
	customerID   uuid.UUID
	contractorID uuid.UUID
	platformID   uuid.UUID
	engagementID uuid.UUID
}

func newLedgerFixture(t *testing.T, customerBalance float64) *ledgerFixture {
	t.Helper()

	f := &ledgerFixture{
		ledger:       newFakeLedger(),
		customerID:   uuid.New(),
		contractorID: uuid.New(),
		platformID:   uuid.New(),
		engagementID: uuid.New(),
	}

	f.ledger.wallet(f.customerID).Balance = customerBalance
	f.ledger.wallet(f.platformID)

	jobID := uuid.New()
	f.ledger.jobs[jobID] = &models.Job{
		ID:         jobID,
		CustomerID: f.customerID,
		Status:     models.JobStatusOpen,
	}
	f.ledger.engagements[f.engagementID] = &models.Engagement{
		ID:           f.engagementID,
		JobID:        jobID,
		CustomerID:   f.customerID,
		ContractorID: f.contractorID,
		InitiatedBy:  models.EngagementByContractor,
		Status:       models.EngagementStatusRequested,
	}

	f.svc = NewOfferService(
		f.ledger,
		ledgerEngagements{f.ledger},
		ledgerJobs{f.ledger},
		silentNotifier{},
		FeeSchedule{PlatformRate: 0.05, ServiceRate: 0.20},
		f.platformID,
		time.Hour,
	)
	return f
}

// assertConserved проверяет, что деньги не создаются и не исчезают:
// сумма балансов и эскроу всех кошельков равна исходной, и ни один
// кошелёк не ушёл в минус.
func (f *ledgerFixture) assertConserved(t *testing.T, total float64) {
	t.Helper()
	sum := 0.0
	for _, w := range f.ledger.wallets {
		assert.GreaterOrEqual(t, w.Balance, 0.0, "баланс не может быть отрицательным")
		assert.GreaterOrEqual(t, w.EscrowBalance, 0.0, "эскроу не может быть отрицательным")
		sum += w.Balance + w.EscrowBalance
	}
	assert.InDelta(t, total, sum, 0.001)
}

func TestOfferLedger_SendAcceptComplete(t *testing.T) {
	f := newLedgerFixture(t, 500)
	ctx := context.Background()

	offer, err := f.svc.Send(ctx, f.customerID, SendOfferInput{
		EngagementID: f.engagementID,
		Amount:       200,
	})
	require.NoError(t, err)
	assert.Equal(t, 210.0, offer.TotalCharge)
	assert.Equal(t, 160.0, offer.ContractorPayout)

	customer := f.ledger.wallet(f.customerID)
	assert.Equal(t, 290.0, customer.Balance)
	assert.Equal(t, 210.0, customer.EscrowBalance)
	f.assertConserved(t, 500)

	_, err = f.svc.Accept(ctx, f.contractorID, models.RoleContractor, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, customer.EscrowBalance)
	assert.Equal(t, 210.0, f.ledger.wallet(f.platformID).Balance)
	f.assertConserved(t, 500)

	_, err = f.svc.Complete(ctx, f.customerID, models.RoleCustomer, offer.ID)
	require.NoError(t, err)

	assert.Equal(t, 160.0, f.ledger.wallet(f.contractorID).Balance)
	assert.Equal(t, 50.0, f.ledger.wallet(f.platformID).Balance)
	assert.Equal(t, 50.0, f.ledger.wallet(f.platformID).TotalEarnings)
	f.assertConserved(t, 500)

	types := []string{}
	for _, txn := range f.ledger.ledger {
		types = append(types, txn.Type)
	}
	assert.Equal(t, []string{
		models.TransactionTypeEscrowHold,
		models.TransactionTypeWalletTransfer,
		models.TransactionTypeServiceFee,
		models.TransactionTypeContractorPayout,
	}, types)
}

func TestOfferLedger_ExpireRefundsExactly(t *testing.T) {
	f := newLedgerFixture(t, 500)
	ctx := context.Background()

	offer, err := f.svc.Send(ctx, f.customerID, SendOfferInput{
		EngagementID: f.engagementID,
		Amount:       200,
	})
	require.NoError(t, err)

	f.ledger.offers[offer.ID].ExpiresAt = time.Now().Add(-time.Minute)

	expired, err := f.svc.ExpireDue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	customer := f.ledger.wallet(f.customerID)
	assert.Equal(t, 500.0, customer.Balance)
	assert.Equal(t, 0.0, customer.EscrowBalance)
	assert.Equal(t, models.EngagementStatusRequested, f.ledger.engagements[f.engagementID].Status)
	f.assertConserved(t, 500)

	last := f.ledger.ledger[len(f.ledger.ledger)-1]
	assert.Equal(t, models.TransactionTypeRefund, last.Type)
	assert.Equal(t, 210.0, last.Amount)
}

func TestOfferLedger_FrozenCustomerBlocksAccept(t *testing.T) {
	f := newLedgerFixture(t, 500)
	ctx := context.Background()

	offer, err := f.svc.Send(ctx, f.customerID, SendOfferInput{
		EngagementID: f.engagementID,
		Amount:       200,
	})
	require.NoError(t, err)

	f.ledger.wallet(f.customerID).IsFrozen = true

	_, err = f.svc.Accept(ctx, f.contractorID, models.RoleContractor, offer.ID)
	assert.ErrorIs(t, err, apperror.ErrWalletFrozen)

	// Ничего не сдвинулось: эскроу на месте, платформа ничего не получила.
	assert.Equal(t, 210.0, f.ledger.wallet(f.customerID).EscrowBalance)
	assert.Equal(t, 0.0, f.ledger.wallet(f.platformID).Balance)
	assert.Equal(t, models.OfferStatusPending, f.ledger.offers[offer.ID].Status)
	f.assertConserved(t, 500)
}

func TestOfferLedger_InsufficientBalanceBlocksSend(t *testing.T) {
	f := newLedgerFixture(t, 100)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, f.customerID, SendOfferInput{
		EngagementID: f.engagementID,
		Amount:       200,
	})
	assert.ErrorIs(t, err, apperror.ErrInsufficientBalance)

	customer := f.ledger.wallet(f.customerID)
	assert.Equal(t, 100.0, customer.Balance)
	assert.Equal(t, 0.0, customer.EscrowBalance)
	assert.Empty(t, f.ledger.ledger)
}
