package usecase

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/marketsync/internal/outbox/domain"
	syncDomain "github.com/allisson/marketsync/internal/syncconfig/domain"
)

func newListingChange(op domain.Operation) Change {
	return Change{
		SourceTable: "listings",
		RecordID:    "0195b0d4-7a6e-7cc1-9d41-0a3c5e2f1b77",
		Operation:   op,
		Row:         map[string]any{"title": "Loft", "nightly_price_cents": int64(12000)},
	}
}

func TestCaptureUseCase_Capture(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	t.Run("Success_Inserted", func(t *testing.T) {
		repo := &mockOutboxRepository{}
		policies := &mockPolicyChecker{}
		uc := NewCaptureUseCase(repo, policies, 5, logger)
		change := newListingChange(domain.OperationInsert)

		policies.On("IsEnabled", ctx, "listings", domain.OperationInsert).Return(true, nil).Once()
		repo.On("Upsert", ctx, mock.MatchedBy(func(e *domain.OutboxEntry) bool {
			return e.SourceTable == "listings" &&
				e.Status == domain.StatusPending &&
				e.MaxAttempts == 5 &&
				e.AttemptCount == 0 &&
				e.IdempotencyKey == domain.BuildIdempotencyKey("listings", change.RecordID, domain.OperationInsert, domain.EpochOnce) &&
				e.Payload.Origin == domain.OriginLocal &&
				e.Payload.Fields["title"] == "Loft"
		})).Return(false, nil).Once()

		result, err := uc.Capture(ctx, change)

		require.NoError(t, err)
		assert.False(t, result.Skipped)
		assert.False(t, result.Merged)
		assert.NotEqual(t, uuid.Nil, result.EntryID)
		repo.AssertExpectations(t)
		policies.AssertExpectations(t)
	})

	t.Run("Success_MergedIntoPendingUpdate", func(t *testing.T) {
		repo := &mockOutboxRepository{}
		policies := &mockPolicyChecker{}
		uc := NewCaptureUseCase(repo, policies, 5, logger)
		existing := uuid.Must(uuid.NewV7())

		policies.On("IsEnabled", ctx, "listings", domain.OperationUpdate).Return(true, nil).Once()
		repo.On("Upsert", ctx, mock.AnythingOfType("*domain.OutboxEntry")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*domain.OutboxEntry).ID = existing
			}).
			Return(true, nil).Once()

		result, err := uc.Capture(ctx, newListingChange(domain.OperationUpdate))

		require.NoError(t, err)
		assert.True(t, result.Merged)
		assert.Equal(t, existing, result.EntryID)
		assert.Contains(t, result.IdempotencyKey, "listings:update:")
	})

	t.Run("Success_RemoteOriginNotEchoed", func(t *testing.T) {
		repo := &mockOutboxRepository{}
		policies := &mockPolicyChecker{}
		uc := NewCaptureUseCase(repo, policies, 5, logger)
		change := newListingChange(domain.OperationUpdate)
		change.Origin = domain.OriginRemote

		result, err := uc.Capture(ctx, change)

		require.NoError(t, err)
		assert.True(t, result.Skipped)
		policies.AssertNotCalled(t, "IsEnabled", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("Success_PolicyDisabled", func(t *testing.T) {
		repo := &mockOutboxRepository{}
		policies := &mockPolicyChecker{}
		uc := NewCaptureUseCase(repo, policies, 5, logger)

		policies.On("IsEnabled", ctx, "listings", domain.OperationDelete).Return(false, nil).Once()

		result, err := uc.Capture(ctx, newListingChange(domain.OperationDelete))

		require.NoError(t, err)
		assert.True(t, result.Skipped)
		repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("Success_MissingPolicyTreatedAsDisabled", func(t *testing.T) {
		repo := &mockOutboxRepository{}
		policies := &mockPolicyChecker{}
		uc := NewCaptureUseCase(repo, policies, 5, logger)

		policies.On("IsEnabled", ctx, "listings", domain.OperationInsert).
			Return(false, syncDomain.ErrPolicyNotFound).Once()

		result, err := uc.Capture(ctx, newListingChange(domain.OperationInsert))

		require.NoError(t, err)
		assert.True(t, result.Skipped)
		repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("Error_PolicyLookupFails", func(t *testing.T) {
		repo := &mockOutboxRepository{}
		policies := &mockPolicyChecker{}
		uc := NewCaptureUseCase(repo, policies, 5, logger)
		dbErr := errors.New("connection reset")

		policies.On("IsEnabled", ctx, "listings", domain.OperationInsert).Return(false, dbErr).Once()

		_, err := uc.Capture(ctx, newListingChange(domain.OperationInsert))
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("Error_NothingPersistedPropagates", func(t *testing.T) {
		repo := &mockOutboxRepository{}
		policies := &mockPolicyChecker{}
		uc := NewCaptureUseCase(repo, policies, 5, logger)

		policies.On("IsEnabled", ctx, "listings", domain.OperationInsert).Return(true, nil).Once()
		repo.On("Upsert", ctx, mock.Anything).Return(false, domain.ErrCaptureNotPersisted).Once()

		_, err := uc.Capture(ctx, newListingChange(domain.OperationInsert))
		assert.ErrorIs(t, err, domain.ErrCaptureNotPersisted)
	})

	t.Run("Error_FullListValueRejected", func(t *testing.T) {
		repo := &mockOutboxRepository{}
		policies := &mockPolicyChecker{}
		uc := NewCaptureUseCase(repo, policies, 5, logger)
		change := newListingChange(domain.OperationUpdate)
		change.Row["amenities"] = []string{"wifi", "pool"}

		policies.On("IsEnabled", ctx, "listings", domain.OperationUpdate).Return(true, nil).Once()

		_, err := uc.Capture(ctx, change)
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
		repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("Success_ExplicitEpoch", func(t *testing.T) {
		repo := &mockOutboxRepository{}
		policies := &mockPolicyChecker{}
		uc := NewCaptureUseCase(repo, policies, 5, logger)
		change := Change{
			SourceTable: "listing_favorites",
			RecordID:    "user-1:listing-1",
			Operation:   domain.OperationInsert,
			Row:         map[string]any{"user_id": "user-1", "listing_id": "listing-1"},
			Epoch:       "1767225600000000000",
		}

		policies.On("IsEnabled", ctx, "listing_favorites", domain.OperationInsert).Return(true, nil).Once()
		repo.On("Upsert", ctx, mock.AnythingOfType("*domain.OutboxEntry")).Return(false, nil).Once()

		result, err := uc.Capture(ctx, change)

		require.NoError(t, err)
		assert.Equal(t,
			domain.BuildIdempotencyKey("listing_favorites", "user-1:listing-1", domain.OperationInsert, change.Epoch),
			result.IdempotencyKey,
		)
		assert.NotEqual(t,
			domain.BuildIdempotencyKey("listing_favorites", "user-1:listing-1", domain.OperationInsert, domain.EpochOnce),
			result.IdempotencyKey,
		)
	})

	t.Run("Error_InvalidChange", func(t *testing.T) {
		uc := NewCaptureUseCase(&mockOutboxRepository{}, &mockPolicyChecker{}, 5, logger)

		_, err := uc.Capture(ctx, Change{SourceTable: "listings", Operation: domain.OperationInsert})
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)

		_, err = uc.Capture(ctx, Change{SourceTable: "listings", RecordID: "1", Operation: "MERGE"})
		assert.ErrorIs(t, err, domain.ErrInvalidOperation)
	})
}

func TestCaptureUseCase_IdempotentMerge(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryOutboxRepository()
	policies := &mockPolicyChecker{}
	policies.On("IsEnabled", ctx, "listings", domain.OperationUpdate).Return(true, nil)

	uc := NewCaptureUseCase(repo, policies, 5, slog.New(slog.DiscardHandler)).(*captureUseCase)
	clock := newFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	uc.now = clock.Now

	first := newListingChange(domain.OperationUpdate)
	first.ListChanges = []domain.ListChange{{Field: "amenities", Operation: domain.ListAdd, Values: []string{"wifi"}}}
	firstResult, err := uc.Capture(ctx, first)
	require.NoError(t, err)

	clock.Advance(time.Second)
	second := newListingChange(domain.OperationUpdate)
	second.Row["title"] = "Sunny Loft"
	second.ListChanges = []domain.ListChange{{Field: "amenities", Operation: domain.ListAdd, Values: []string{"pool"}}}
	secondResult, err := uc.Capture(ctx, second)
	require.NoError(t, err)

	assert.False(t, firstResult.Merged)
	assert.True(t, secondResult.Merged)
	assert.Equal(t, firstResult.EntryID, secondResult.EntryID)
	require.Len(t, repo.entries, 1)

	stored := repo.get(firstResult.EntryID)
	assert.Equal(t, "Sunny Loft", stored.Payload.Fields["title"])
	require.Len(t, stored.Payload.ListChanges, 2)
	assert.Equal(t, []string{"wifi"}, stored.Payload.ListChanges[0].Values)
	assert.Equal(t, []string{"pool"}, stored.Payload.ListChanges[1].Values)
}
