package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/database"
	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/marketplace/domain"
	outboxDomain "github.com/allisson/marketsync/internal/outbox/domain"
	"github.com/allisson/marketsync/internal/outbox/service"
	outboxUseCase "github.com/allisson/marketsync/internal/outbox/usecase"
)

type listingUseCase struct {
	txManager   database.TxManager
	listingRepo ListingRepository
	capture     outboxUseCase.CaptureUseCase
	now         func() time.Time
}

// NewListingUseCase creates a ListingUseCase.
func NewListingUseCase(
	txManager database.TxManager,
	listingRepo ListingRepository,
	capture outboxUseCase.CaptureUseCase,
) ListingUseCase {
	return &listingUseCase{
		txManager:   txManager,
		listingRepo: listingRepo,
		capture:     capture,
		now:         time.Now,
	}
}

// Create stores a new listing and captures it. The initial amenities are sent as additions.
func (uc *listingUseCase) Create(ctx context.Context, input CreateListingInput) (*domain.Listing, error) {
	status := input.Status
	if status == "" {
		status = domain.ListingDraft
	}
	if err := validateListing(input.Title, input.NightlyPriceCents, status); err != nil {
		return nil, err
	}

	amenities, _ := service.DiffList(nil, input.Amenities)
	now := uc.now().UTC()
	listing := &domain.Listing{
		ID:                uuid.Must(uuid.NewV7()),
		HostID:            input.HostID,
		Title:             strings.TrimSpace(input.Title),
		NightlyPriceCents: input.NightlyPriceCents,
		Amenities:         amenities,
		Status:            status,
		Origin:            domain.NormalizeOrigin(input.Origin),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.listingRepo.Create(ctx, listing); err != nil {
			return err
		}
		return uc.captureListing(ctx, listing, outboxDomain.OperationInsert, amenityChanges(amenities, nil))
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// Update applies a partial update and captures it. Amenities are captured as the delta
// between the stored and the new list.
func (uc *listingUseCase) Update(ctx context.Context, id uuid.UUID, input UpdateListingInput) (*domain.Listing, error) {
	var listing *domain.Listing

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		current, err := uc.listingRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if input.Title != nil {
			current.Title = strings.TrimSpace(*input.Title)
		}
		if input.NightlyPriceCents != nil {
			current.NightlyPriceCents = *input.NightlyPriceCents
		}
		if input.Status != nil {
			current.Status = *input.Status
		}
		if err := validateListing(current.Title, current.NightlyPriceCents, current.Status); err != nil {
			return err
		}

		var added, removed []string
		if input.Amenities != nil {
			added, removed = service.DiffList(current.Amenities, *input.Amenities)
			next, _ := service.DiffList(nil, *input.Amenities)
			current.Amenities = next
		}

		current.Origin = domain.NormalizeOrigin(input.Origin)
		current.UpdatedAt = uc.now().UTC()

		if err := uc.listingRepo.Update(ctx, current); err != nil {
			return err
		}
		if err := uc.captureListing(ctx, current, outboxDomain.OperationUpdate, amenityChanges(added, removed)); err != nil {
			return err
		}

		listing = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// Delete removes a listing and captures the deletion with its last known image.
func (uc *listingUseCase) Delete(ctx context.Context, id uuid.UUID, origin string) error {
	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		current, err := uc.listingRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := uc.listingRepo.Delete(ctx, id); err != nil {
			return err
		}
		current.Origin = domain.NormalizeOrigin(origin)
		return uc.captureListing(ctx, current, outboxDomain.OperationDelete, nil)
	})
}

// Get retrieves a listing by ID.
func (uc *listingUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	return uc.listingRepo.GetByID(ctx, id)
}

func (uc *listingUseCase) captureListing(
	ctx context.Context,
	listing *domain.Listing,
	op outboxDomain.Operation,
	changes []outboxDomain.ListChange,
) error {
	_, err := uc.capture.Capture(ctx, outboxUseCase.Change{
		SourceTable: domain.TableListings,
		RecordID:    listing.ID.String(),
		Operation:   op,
		Row:         listing.Row(),
		ListChanges: changes,
		Origin:      listing.Origin,
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to capture listing change")
	}
	return nil
}

func amenityChanges(added, removed []string) []outboxDomain.ListChange {
	var changes []outboxDomain.ListChange
	if len(added) > 0 {
		changes = append(changes, outboxDomain.ListChange{
			Field: domain.FieldAmenities, Operation: outboxDomain.ListAdd, Values: added,
		})
	}
	if len(removed) > 0 {
		changes = append(changes, outboxDomain.ListChange{
			Field: domain.FieldAmenities, Operation: outboxDomain.ListRemove, Values: removed,
		})
	}
	return changes
}

func validateListing(title string, priceCents int64, status domain.ListingStatus) error {
	if strings.TrimSpace(title) == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "title is required")
	}
	if priceCents < 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "nightly price cannot be negative")
	}
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidListingStatus, status)
	}
	return nil
}
