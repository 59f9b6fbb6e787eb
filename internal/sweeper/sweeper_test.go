package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/jobmarket-backend/internal/goroutine"
	"github.com/ignatzorin/jobmarket-backend/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init("fatal")
	m.Run()
}

func newTestRecovery() *goroutine.RecoveryHandler {
	return goroutine.NewRecoveryHandler(logger.Log)
}

// fakeScheduler запоминает расписание и дёргает задачи вручную.
type fakeScheduler struct {
	name   string
	period time.Duration
	task   func(context.Context)
}

func (s *fakeScheduler) Schedule(ctx context.Context, name string, period time.Duration, task func(context.Context)) {
	s.name = name
	s.period = period
	s.task = task
}

type mockExpirer struct {
	mock.Mock
}

func (m *mockExpirer) ExpireDue(ctx context.Context, batch int) (int, error) {
	args := m.Called(ctx, batch)
	return args.Int(0), args.Error(1)
}

type mockRetrier struct {
	mock.Mock
}

func (m *mockRetrier) RetryFailed(ctx context.Context, batch int) (int, error) {
	args := m.Called(ctx, batch)
	return args.Int(0), args.Error(1)
}

func TestExpirationSweeper_Schedules(t *testing.T) {
	expirer := new(mockExpirer)
	scheduler := &fakeScheduler{}
	ctx := context.Background()

	NewExpirationSweeper(expirer, time.Minute, 25).Start(ctx, scheduler)

	assert.Equal(t, "offer_expiration", scheduler.name)
	assert.Equal(t, time.Minute, scheduler.period)
	require.NotNil(t, scheduler.task)

	expirer.On("ExpireDue", ctx, 25).Return(3, nil)
	scheduler.task(ctx)
	expirer.AssertExpectations(t)
}

func TestExpirationSweeper_DefaultBatch(t *testing.T) {
	expirer := new(mockExpirer)
	ctx := context.Background()

	expirer.On("ExpireDue", ctx, 100).Return(0, nil)
	NewExpirationSweeper(expirer, time.Minute, 0).Sweep(ctx)
	expirer.AssertExpectations(t)
}

func TestRetrySweeper_Schedules(t *testing.T) {
	retrier := new(mockRetrier)
	scheduler := &fakeScheduler{}
	ctx := context.Background()

	NewRetrySweeper(retrier, 5*time.Minute, 0).Start(ctx, scheduler)

	assert.Equal(t, "transaction_retry", scheduler.name)
	require.NotNil(t, scheduler.task)

	retrier.On("RetryFailed", ctx, 50).Return(1, nil)
	scheduler.task(ctx)
	retrier.AssertExpectations(t)
}

func TestTickerScheduler_StopsOnContextCancel(t *testing.T) {
	scheduler := NewTickerScheduler(newTestRecovery())
	ctx, cancel := context.WithCancel(context.Background())

	ticks := make(chan struct{}, 16)
	scheduler.Schedule(ctx, "test_task", 10*time.Millisecond, func(context.Context) {
		ticks <- struct{}{}
	})

	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("задача ни разу не выполнилась")
	}

	cancel()
	// После отмены новые тики прекращаются.
	time.Sleep(50 * time.Millisecond)
	drained := len(ticks)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, drained, len(ticks))
}

func TestTickerScheduler_SurvivesPanic(t *testing.T) {
	scheduler := NewTickerScheduler(newTestRecovery())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := make(chan struct{}, 16)
	scheduler.Schedule(ctx, "panic_task", 10*time.Millisecond, func(context.Context) {
		ticks <- struct{}{}
		panic("boom")
	})

	// Паника одного прохода не убивает расписание.
	for i := 0; i < 2; i++ {
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatalf("задача остановилась после паники, проход %d", i)
		}
	}
}
