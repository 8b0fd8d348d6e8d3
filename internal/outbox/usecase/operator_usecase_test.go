package usecase

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/outbox/domain"
)

func TestOperatorUseCase_Requeue(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	t.Run("Success", func(t *testing.T) {
		txManager := &mockTxManager{}
		repo := &mockOutboxRepository{}
		uc := NewOperatorUseCase(txManager, repo, logger)
		entry := newClaimedEntry(0, 5)
		entry.Status = domain.StatusPending

		txManager.On("WithTx", ctx).Return(nil).Once()
		repo.On("Requeue", ctx, entry.ID).Return(nil).Once()
		repo.On("GetByID", ctx, entry.ID).Return(entry, nil).Once()

		got, err := uc.Requeue(ctx, entry.ID)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, got.Status)
		repo.AssertExpectations(t)
	})

	t.Run("Error_PendingDuplicate", func(t *testing.T) {
		txManager := &mockTxManager{}
		repo := &mockOutboxRepository{}
		uc := NewOperatorUseCase(txManager, repo, logger)
		id := uuid.Must(uuid.NewV7())

		txManager.On("WithTx", ctx).Return(nil).Once()
		repo.On("Requeue", ctx, id).Return(apperrors.ErrConflict).Once()

		_, err := uc.Requeue(ctx, id)

		assert.ErrorIs(t, err, apperrors.ErrConflict)
		repo.AssertNotCalled(t, "GetByID", ctx, id)
	})
}

func TestOperatorUseCase_Skip(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	t.Run("Success_DefaultReason", func(t *testing.T) {
		txManager := &mockTxManager{}
		repo := &mockOutboxRepository{}
		uc := NewOperatorUseCase(txManager, repo, logger)
		entry := newClaimedEntry(0, 5)
		entry.Status = domain.StatusSkipped

		txManager.On("WithTx", ctx).Return(nil).Once()
		repo.On("MarkSkipped", ctx, entry.ID, operatorSkipReason, mock.AnythingOfType("time.Time")).Return(nil).Once()
		repo.On("GetByID", ctx, entry.ID).Return(entry, nil).Once()

		got, err := uc.Skip(ctx, entry.ID, "  ")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusSkipped, got.Status)
		repo.AssertExpectations(t)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		txManager := &mockTxManager{}
		repo := &mockOutboxRepository{}
		uc := NewOperatorUseCase(txManager, repo, logger)
		id := uuid.Must(uuid.NewV7())

		txManager.On("WithTx", ctx).Return(nil).Once()
		repo.On("MarkSkipped", ctx, id, "duplicate listing", mock.Anything).Return(domain.ErrInvalidTransition).Once()
		repo.On("GetByID", ctx, id).Return(nil, domain.ErrEntryNotFound).Once()

		_, err := uc.Skip(ctx, id, "duplicate listing")
		assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	})

	t.Run("Error_NotPending", func(t *testing.T) {
		txManager := &mockTxManager{}
		repo := &mockOutboxRepository{}
		uc := NewOperatorUseCase(txManager, repo, logger)
		entry := newClaimedEntry(0, 5)

		txManager.On("WithTx", ctx).Return(nil).Once()
		repo.On("MarkSkipped", ctx, entry.ID, "duplicate listing", mock.Anything).Return(domain.ErrInvalidTransition).Once()
		repo.On("GetByID", ctx, entry.ID).Return(entry, nil).Once()

		_, err := uc.Skip(ctx, entry.ID, "duplicate listing")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}
