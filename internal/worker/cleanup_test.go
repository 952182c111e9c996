package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-complaint-auth/config"
)

type MockCleaner struct {
	mock.Mock
	calls atomic.Int32
}

func (m *MockCleaner) CleanupPendingUsers(ctx context.Context, olderThan time.Duration) (int64, error) {
	m.calls.Add(1)
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunOnce(t *testing.T) {
	cleaner := new(MockCleaner)
	cleaner.On("CleanupPendingUsers", mock.Anything, 48*time.Hour).Return(int64(2), nil).Once()

	job := NewCleanupJob(cleaner, config.CleanupConfig{Interval: time.Hour, PendingAge: 48 * time.Hour}, discard())
	n, err := job.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	cleaner.AssertExpectations(t)
}

func TestDefaults(t *testing.T) {
	job := NewCleanupJob(new(MockCleaner), config.CleanupConfig{}, discard())
	assert.Equal(t, 24*time.Hour, job.interval)
	assert.Equal(t, 24*time.Hour, job.pendingAge)
}

func TestStartSurvivesFailuresAndStops(t *testing.T) {
	cleaner := new(MockCleaner)
	cleaner.On("CleanupPendingUsers", mock.Anything, time.Hour).Return(int64(0), errors.New("db down")).Once()
	cleaner.On("CleanupPendingUsers", mock.Anything, time.Hour).Return(int64(1), nil)

	job := NewCleanupJob(cleaner, config.CleanupConfig{Interval: 5 * time.Millisecond, PendingAge: time.Hour}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return cleaner.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup worker did not stop after cancellation")
	}
}
