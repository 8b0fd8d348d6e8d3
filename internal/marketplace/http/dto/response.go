package dto

import (
	"time"

	"github.com/allisson/marketsync/internal/marketplace/domain"
)

// ListingResponse represents a listing in API responses.
type ListingResponse struct {
	ID                string    `json:"id"`
	HostID            string    `json:"host_id"`
	Title             string    `json:"title"`
	NightlyPriceCents int64     `json:"nightly_price_cents"`
	Amenities         []string  `json:"amenities"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// MapListingToResponse converts a domain listing to an API response.
func MapListingToResponse(listing *domain.Listing) ListingResponse {
	amenities := listing.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	return ListingResponse{
		ID:                listing.ID.String(),
		HostID:            listing.HostID.String(),
		Title:             listing.Title,
		NightlyPriceCents: listing.NightlyPriceCents,
		Amenities:         amenities,
		Status:            string(listing.Status),
		CreatedAt:         listing.CreatedAt,
		UpdatedAt:         listing.UpdatedAt,
	}
}

// ProposalResponse represents a stay proposal in API responses.
type ProposalResponse struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	GuestID   string    `json:"guest_id"`
	Status    string    `json:"status"`
	CheckIn   string    `json:"check_in"`
	CheckOut  string    `json:"check_out"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MapProposalToResponse converts a domain proposal to an API response.
func MapProposalToResponse(proposal *domain.Proposal) ProposalResponse {
	return ProposalResponse{
		ID:        proposal.ID.String(),
		ListingID: proposal.ListingID.String(),
		GuestID:   proposal.GuestID.String(),
		Status:    string(proposal.Status),
		CheckIn:   proposal.CheckIn.Format(DateLayout),
		CheckOut:  proposal.CheckOut.Format(DateLayout),
		CreatedAt: proposal.CreatedAt,
		UpdatedAt: proposal.UpdatedAt,
	}
}

// FavoriteResponse represents a saved listing in API responses.
type FavoriteResponse struct {
	UserID    string    `json:"user_id"`
	ListingID string    `json:"listing_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFavoritesResponse represents a list of saved listings.
type ListFavoritesResponse struct {
	Data []FavoriteResponse `json:"data"`
}

// MapFavoriteToResponse converts a domain favorite to an API response.
func MapFavoriteToResponse(favorite *domain.Favorite) FavoriteResponse {
	return FavoriteResponse{
		UserID:    favorite.UserID.String(),
		ListingID: favorite.ListingID.String(),
		CreatedAt: favorite.CreatedAt,
	}
}

// MapFavoritesToListResponse converts domain favorites to a list response.
func MapFavoritesToListResponse(favorites []*domain.Favorite) ListFavoritesResponse {
	data := make([]FavoriteResponse, 0, len(favorites))
	for _, f := range favorites {
		data = append(data, MapFavoriteToResponse(f))
	}
	return ListFavoritesResponse{Data: data}
}
