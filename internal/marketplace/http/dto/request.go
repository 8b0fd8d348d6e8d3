// Package dto provides data transfer objects for marketplace HTTP requests and responses.
package dto

import (
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	"github.com/allisson/marketsync/internal/marketplace/domain"
	"github.com/allisson/marketsync/internal/marketplace/usecase"
	outboxDomain "github.com/allisson/marketsync/internal/outbox/domain"
	customValidation "github.com/allisson/marketsync/internal/validation"
)

// DateLayout is the wire format of stay dates.
const DateLayout = "2006-01-02"

// MaxAmenities caps the number of amenities on one listing.
const MaxAmenities = 100

var originRule = validation.In(outboxDomain.OriginLocal, outboxDomain.OriginRemote)

func listingStatusRule() validation.Rule {
	return validation.In(domain.ListingDraft, domain.ListingActive, domain.ListingArchived)
}

// CreateListingRequest contains the parameters for creating a listing.
type CreateListingRequest struct {
	HostID            string   `json:"host_id"`
	Title             string   `json:"title"`
	NightlyPriceCents int64    `json:"nightly_price_cents"`
	Amenities         []string `json:"amenities"`
	Status            string   `json:"status"`
	Origin            string   `json:"origin"`
}

// Validate checks if the create listing request is valid.
func (r *CreateListingRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.HostID, validation.Required, customValidation.UUID),
		validation.Field(&r.Title, validation.Required, customValidation.NotBlank, validation.Length(1, 200)),
		validation.Field(&r.NightlyPriceCents, validation.Min(int64(0))),
		validation.Field(&r.Amenities,
			validation.Length(0, MaxAmenities),
			validation.Each(validation.Required, customValidation.NoWhitespace, validation.Length(1, 64)),
		),
		validation.Field(&r.Status, validation.By(func(value interface{}) error {
			return listingStatusRule().Validate(domain.ListingStatus(value.(string)))
		})),
		validation.Field(&r.Origin, originRule),
	)
}

// ToInput converts the request into use case input. Validate must have passed.
func (r *CreateListingRequest) ToInput() usecase.CreateListingInput {
	return usecase.CreateListingInput{
		HostID:            uuid.MustParse(r.HostID),
		Title:             r.Title,
		NightlyPriceCents: r.NightlyPriceCents,
		Amenities:         r.Amenities,
		Status:            domain.ListingStatus(r.Status),
		Origin:            r.Origin,
	}
}

// UpdateListingRequest contains a partial listing update. Omitted fields are left unchanged.
type UpdateListingRequest struct {
	Title             *string   `json:"title"`
	NightlyPriceCents *int64    `json:"nightly_price_cents"`
	Amenities         *[]string `json:"amenities"`
	Status            *string   `json:"status"`
	Origin            string    `json:"origin"`
}

// Validate checks if the update listing request is valid.
func (r *UpdateListingRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, customValidation.NotBlank, validation.Length(1, 200)),
		validation.Field(&r.NightlyPriceCents, validation.Min(int64(0))),
		validation.Field(&r.Amenities, validation.By(func(value interface{}) error {
			amenities, _ := value.(*[]string)
			if amenities == nil {
				return nil
			}
			return validation.Validate(*amenities,
				validation.Length(0, MaxAmenities),
				validation.Each(validation.Required, customValidation.NoWhitespace, validation.Length(1, 64)),
			)
		})),
		validation.Field(&r.Status, validation.By(func(value interface{}) error {
			status, _ := value.(*string)
			if status == nil {
				return nil
			}
			return listingStatusRule().Validate(domain.ListingStatus(*status))
		})),
		validation.Field(&r.Origin, originRule),
	)
}

// ToInput converts the request into use case input.
func (r *UpdateListingRequest) ToInput() usecase.UpdateListingInput {
	input := usecase.UpdateListingInput{
		Title:             r.Title,
		NightlyPriceCents: r.NightlyPriceCents,
		Amenities:         r.Amenities,
		Origin:            r.Origin,
	}
	if r.Status != nil {
		status := domain.ListingStatus(*r.Status)
		input.Status = &status
	}
	return input
}

// CreateProposalRequest contains the parameters for submitting a stay proposal.
type CreateProposalRequest struct {
	ListingID string `json:"listing_id"`
	GuestID   string `json:"guest_id"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Origin    string `json:"origin"`
}

// Validate checks if the create proposal request is valid.
func (r *CreateProposalRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ListingID, validation.Required, customValidation.UUID),
		validation.Field(&r.GuestID, validation.Required, customValidation.UUID),
		validation.Field(&r.CheckIn, validation.Required, validation.Date(DateLayout)),
		validation.Field(&r.CheckOut, validation.Required, validation.Date(DateLayout)),
		validation.Field(&r.Origin, originRule),
	)
}

// ToInput converts the request into use case input. Validate must have passed.
func (r *CreateProposalRequest) ToInput() usecase.CreateProposalInput {
	checkIn, _ := time.Parse(DateLayout, r.CheckIn)
	checkOut, _ := time.Parse(DateLayout, r.CheckOut)
	return usecase.CreateProposalInput{
		ListingID: uuid.MustParse(r.ListingID),
		GuestID:   uuid.MustParse(r.GuestID),
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		Origin:    r.Origin,
	}
}

// UpdateProposalStatusRequest contains the new status of a proposal.
type UpdateProposalStatusRequest struct {
	Status string `json:"status"`
	Origin string `json:"origin"`
}

// Validate checks if the status update request is valid.
func (r *UpdateProposalStatusRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Status, validation.Required, validation.By(func(value interface{}) error {
			return validation.In(
				domain.ProposalSubmitted, domain.ProposalAccepted, domain.ProposalDeclined, domain.ProposalCancelled,
			).Validate(domain.ProposalStatus(value.(string)))
		})),
		validation.Field(&r.Origin, originRule),
	)
}

// FavoriteRequest identifies a user and a listing they save or unsave.
type FavoriteRequest struct {
	UserID    string `json:"user_id"`
	ListingID string `json:"listing_id"`
	Origin    string `json:"origin"`
}

// Validate checks if the favorite request is valid.
func (r *FavoriteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID, validation.Required, customValidation.UUID),
		validation.Field(&r.ListingID, validation.Required, customValidation.UUID),
		validation.Field(&r.Origin, originRule),
	)
}
