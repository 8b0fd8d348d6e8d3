package usecase

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/outbox/domain"
)

func TestSweepUseCase_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	newSweeper := func(txManager *mockTxManager, repo *mockOutboxRepository) *sweepUseCase {
		s := NewSweepUseCase(txManager, repo, 10*time.Minute, slog.New(slog.DiscardHandler)).(*sweepUseCase)
		s.now = func() time.Time { return now }
		return s
	}

	t.Run("Success", func(t *testing.T) {
		txManager := &mockTxManager{}
		repo := &mockOutboxRepository{}
		s := newSweeper(txManager, repo)

		txManager.On("WithTx", ctx).Return(nil).Once()
		repo.On("RecoverStuck", ctx, now.Add(-10*time.Minute), now, 100).Return(2, nil).Once()
		repo.On("RequeueRetryable", ctx, now, 100).Return(5, 1, nil).Once()

		result, err := s.Sweep(ctx, 100)

		require.NoError(t, err)
		assert.Equal(t, &domain.SweepResult{Recovered: 2, Requeued: 5, Superseded: 1}, result)
		txManager.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("Error_RecoverFails", func(t *testing.T) {
		txManager := &mockTxManager{}
		repo := &mockOutboxRepository{}
		s := newSweeper(txManager, repo)
		recoverErr := errors.New("lock wait timeout")

		txManager.On("WithTx", ctx).Return(nil).Once()
		repo.On("RecoverStuck", ctx, now.Add(-10*time.Minute), now, 100).Return(0, recoverErr).Once()

		_, err := s.Sweep(ctx, 100)

		assert.ErrorIs(t, err, recoverErr)
		repo.AssertNotCalled(t, "RequeueRetryable", ctx, now, 100)
	})

	t.Run("Error_RequeueFails", func(t *testing.T) {
		txManager := &mockTxManager{}
		repo := &mockOutboxRepository{}
		s := newSweeper(txManager, repo)
		requeueErr := errors.New("deadlock detected")

		txManager.On("WithTx", ctx).Return(nil).Once()
		repo.On("RecoverStuck", ctx, now.Add(-10*time.Minute), now, 100).Return(0, nil).Once()
		repo.On("RequeueRetryable", ctx, now, 100).Return(0, 0, requeueErr).Once()

		_, err := s.Sweep(ctx, 100)
		assert.ErrorIs(t, err, requeueErr)
	})

	t.Run("Error_InvalidLimit", func(t *testing.T) {
		s := newSweeper(&mockTxManager{}, &mockOutboxRepository{})

		_, err := s.Sweep(ctx, 0)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestSweepUseCase_RecoversAbandonedProcessing(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	repo := newMemoryOutboxRepository()

	entry := newClaimedEntry(0, 3)
	entry.Status = domain.StatusPending
	entry.ClaimedAt = nil
	_, err := repo.Upsert(ctx, entry)
	require.NoError(t, err)
	claimed, err := repo.ClaimPending(ctx, 10, start)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	s := NewSweepUseCase(passthroughTxManager{}, repo, 10*time.Minute, slog.New(slog.DiscardHandler)).(*sweepUseCase)
	s.now = clock.Now

	clock.Advance(5 * time.Minute)
	result, err := s.Sweep(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, result.Recovered)
	assert.Equal(t, domain.StatusProcessing, repo.get(entry.ID).Status)

	clock.Advance(6 * time.Minute)
	result, err = s.Sweep(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Recovered)
	assert.Equal(t, 1, result.Requeued)

	stored := repo.get(entry.ID)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Equal(t, 1, stored.AttemptCount)
}
