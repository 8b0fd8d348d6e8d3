// Package usecase implements the marketplace write paths. Every write records its outbox
// change in the same transaction.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/marketplace/domain"
)

// ListingRepository defines listing persistence operations.
type ListingRepository interface {
	Create(ctx context.Context, listing *domain.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	Update(ctx context.Context, listing *domain.Listing) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProposalRepository defines proposal persistence operations.
type ProposalRepository interface {
	Create(ctx context.Context, proposal *domain.Proposal) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Proposal, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Proposal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProposalStatus, origin string, updatedAt time.Time) error
}

// FavoriteRepository defines listing favorite persistence operations.
type FavoriteRepository interface {
	Add(ctx context.Context, favorite *domain.Favorite) error
	Remove(ctx context.Context, userID, listingID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Favorite, error)
}

// CreateListingInput contains the data of a new listing.
type CreateListingInput struct {
	HostID            uuid.UUID
	Title             string
	NightlyPriceCents int64
	Amenities         []string
	Status            domain.ListingStatus
	Origin            string
}

// UpdateListingInput contains a partial listing update. Nil fields are left unchanged.
type UpdateListingInput struct {
	Title             *string
	NightlyPriceCents *int64
	Amenities         *[]string
	Status            *domain.ListingStatus
	Origin            string
}

// CreateProposalInput contains the data of a new stay proposal.
type CreateProposalInput struct {
	ListingID uuid.UUID
	GuestID   uuid.UUID
	CheckIn   time.Time
	CheckOut  time.Time
	Origin    string
}

// ListingUseCase defines listing write operations.
type ListingUseCase interface {
	Create(ctx context.Context, input CreateListingInput) (*domain.Listing, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateListingInput) (*domain.Listing, error)
	Delete(ctx context.Context, id uuid.UUID, origin string) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
}

// ProposalUseCase defines proposal write operations.
type ProposalUseCase interface {
	Create(ctx context.Context, input CreateProposalInput) (*domain.Proposal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProposalStatus, origin string) (*domain.Proposal, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Proposal, error)
}

// FavoriteUseCase defines listing favorite operations.
type FavoriteUseCase interface {
	Add(ctx context.Context, userID, listingID uuid.UUID, origin string) (*domain.Favorite, error)
	Remove(ctx context.Context, userID, listingID uuid.UUID, origin string) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Favorite, error)
}
