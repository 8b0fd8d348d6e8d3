package usecase

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/database"
	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/marketplace/domain"
	outboxDomain "github.com/allisson/marketsync/internal/outbox/domain"
	outboxUseCase "github.com/allisson/marketsync/internal/outbox/usecase"
)

type favoriteUseCase struct {
	txManager    database.TxManager
	favoriteRepo FavoriteRepository
	capture      outboxUseCase.CaptureUseCase
	now          func() time.Time
}

// NewFavoriteUseCase creates a FavoriteUseCase.
func NewFavoriteUseCase(
	txManager database.TxManager,
	favoriteRepo FavoriteRepository,
	capture outboxUseCase.CaptureUseCase,
) FavoriteUseCase {
	return &favoriteUseCase{
		txManager:    txManager,
		favoriteRepo: favoriteRepo,
		capture:      capture,
		now:          time.Now,
	}
}

// Add saves a listing for a user and captures the new link.
func (uc *favoriteUseCase) Add(
	ctx context.Context,
	userID, listingID uuid.UUID,
	origin string,
) (*domain.Favorite, error) {
	favorite := &domain.Favorite{
		UserID:    userID,
		ListingID: listingID,
		Origin:    domain.NormalizeOrigin(origin),
		CreatedAt: uc.now().UTC(),
	}

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.favoriteRepo.Add(ctx, favorite); err != nil {
			return err
		}
		return uc.captureLink(ctx, favorite, outboxDomain.OperationInsert, favorite.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return favorite, nil
}

// Remove deletes a saved listing and captures the removed link.
func (uc *favoriteUseCase) Remove(ctx context.Context, userID, listingID uuid.UUID, origin string) error {
	favorite := &domain.Favorite{
		UserID:    userID,
		ListingID: listingID,
		Origin:    domain.NormalizeOrigin(origin),
	}

	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.favoriteRepo.Remove(ctx, userID, listingID); err != nil {
			return err
		}
		return uc.captureLink(ctx, favorite, outboxDomain.OperationDelete, uc.now().UTC())
	})
}

// ListByUser returns the listings a user saved, newest first.
func (uc *favoriteUseCase) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Favorite, error) {
	return uc.favoriteRepo.ListByUser(ctx, userID)
}

// captureLink records a link change. The write time is the epoch so that a link removed and
// added again is delivered as a new change instead of colliding with the earlier one.
func (uc *favoriteUseCase) captureLink(
	ctx context.Context,
	favorite *domain.Favorite,
	op outboxDomain.Operation,
	at time.Time,
) error {
	_, err := uc.capture.Capture(ctx, outboxUseCase.Change{
		SourceTable: domain.TableListingFavorites,
		RecordID:    favorite.RecordID(),
		Operation:   op,
		Row:         favorite.Row(),
		Origin:      favorite.Origin,
		Epoch:       strconv.FormatInt(at.UnixNano(), 10),
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to capture favorite change")
	}
	return nil
}
