package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/marketplace/domain"
	outboxDomain "github.com/allisson/marketsync/internal/outbox/domain"
	outboxUseCase "github.com/allisson/marketsync/internal/outbox/usecase"
)

func newProposalUseCaseForTest() (*proposalUseCase, *mockTxManager, *mockProposalRepository, *mockCaptureUseCase) {
	txManager := &mockTxManager{}
	repo := &mockProposalRepository{}
	capture := &mockCaptureUseCase{}
	uc := NewProposalUseCase(txManager, repo, capture).(*proposalUseCase)
	uc.now = func() time.Time { return fixedNow }
	return uc, txManager, repo, capture
}

func TestProposalUseCase_Create(t *testing.T) {
	ctx := context.Background()
	checkIn := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		uc, txManager, repo, capture := newProposalUseCaseForTest()
		listingID := uuid.Must(uuid.NewV7())

		txManager.On("WithTx", ctx).Return(nil)
		repo.On("Create", ctx, mock.AnythingOfType("*domain.Proposal")).Return(nil)
		capture.On("Capture", ctx, mock.MatchedBy(func(c outboxUseCase.Change) bool {
			return c.SourceTable == domain.TableProposals &&
				c.Operation == outboxDomain.OperationInsert &&
				c.Row["listing_id"] == listingID.String() &&
				c.Row["check_in"] == "2026-07-01" &&
				c.Row["status"] == string(domain.ProposalSubmitted)
		})).Return(&outboxUseCase.CaptureResult{}, nil)

		proposal, err := uc.Create(ctx, CreateProposalInput{
			ListingID: listingID,
			GuestID:   uuid.Must(uuid.NewV7()),
			CheckIn:   checkIn,
			CheckOut:  checkIn.AddDate(0, 0, 3),
		})

		require.NoError(t, err)
		assert.Equal(t, domain.ProposalSubmitted, proposal.Status)
		assert.Equal(t, outboxDomain.OriginLocal, proposal.Origin)
		txManager.AssertExpectations(t)
		repo.AssertExpectations(t)
		capture.AssertExpectations(t)
	})

	t.Run("Error_InvalidStay", func(t *testing.T) {
		uc, txManager, repo, capture := newProposalUseCaseForTest()

		_, err := uc.Create(ctx, CreateProposalInput{CheckIn: checkIn, CheckOut: checkIn})

		assert.ErrorIs(t, err, domain.ErrInvalidStayDates)
		txManager.AssertNotCalled(t, "WithTx", mock.Anything)
		repo.AssertExpectations(t)
		capture.AssertExpectations(t)
	})

	t.Run("Error_ListingNotFound", func(t *testing.T) {
		uc, txManager, repo, capture := newProposalUseCaseForTest()

		txManager.On("WithTx", ctx).Return(nil)
		repo.On("Create", ctx, mock.Anything).Return(domain.ErrListingNotFound)

		_, err := uc.Create(ctx, CreateProposalInput{CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 1)})

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		capture.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
	})
}

func TestProposalUseCase_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	newStored := func(status domain.ProposalStatus) *domain.Proposal {
		return &domain.Proposal{
			ID:        uuid.Must(uuid.NewV7()),
			ListingID: uuid.Must(uuid.NewV7()),
			GuestID:   uuid.Must(uuid.NewV7()),
			Status:    status,
			CheckIn:   time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
			CheckOut:  time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC),
			Origin:    outboxDomain.OriginLocal,
		}
	}

	t.Run("Success", func(t *testing.T) {
		uc, txManager, repo, capture := newProposalUseCaseForTest()
		stored := newStored(domain.ProposalSubmitted)

		txManager.On("WithTx", ctx).Return(nil)
		repo.On("GetByIDForUpdate", ctx, stored.ID).Return(stored, nil)
		repo.On("UpdateStatus", ctx, stored.ID, domain.ProposalAccepted, outboxDomain.OriginRemote, fixedNow).
			Return(nil)
		capture.On("Capture", ctx, mock.MatchedBy(func(c outboxUseCase.Change) bool {
			return c.Operation == outboxDomain.OperationUpdate &&
				c.Origin == outboxDomain.OriginRemote &&
				c.Row["status"] == string(domain.ProposalAccepted)
		})).Return(&outboxUseCase.CaptureResult{Skipped: true}, nil)

		proposal, err := uc.UpdateStatus(ctx, stored.ID, domain.ProposalAccepted, outboxDomain.OriginRemote)

		require.NoError(t, err)
		assert.Equal(t, domain.ProposalAccepted, proposal.Status)
		assert.Equal(t, fixedNow, proposal.UpdatedAt)
		txManager.AssertExpectations(t)
		repo.AssertExpectations(t)
		capture.AssertExpectations(t)
	})

	t.Run("Error_UnknownStatus", func(t *testing.T) {
		uc, _, _, _ := newProposalUseCaseForTest()

		_, err := uc.UpdateStatus(ctx, uuid.Must(uuid.NewV7()), "pending", "")

		assert.ErrorIs(t, err, domain.ErrInvalidProposalStatus)
	})

	t.Run("Error_Closed", func(t *testing.T) {
		uc, txManager, repo, capture := newProposalUseCaseForTest()
		stored := newStored(domain.ProposalDeclined)

		txManager.On("WithTx", ctx).Return(nil)
		repo.On("GetByIDForUpdate", ctx, stored.ID).Return(stored, nil)

		_, err := uc.UpdateStatus(ctx, stored.ID, domain.ProposalAccepted, "")

		assert.ErrorIs(t, err, domain.ErrProposalClosed)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		capture.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
	})
}
