// Package domain defines the marketplace records whose writes are mirrored to the remote system.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/errors"
	outboxDomain "github.com/allisson/marketsync/internal/outbox/domain"
)

// Source table names as recorded on captured changes.
const (
	TableListings         = "listings"
	TableProposals        = "proposals"
	TableListingFavorites = "listing_favorites"
)

// Listing columns carried in change snapshots.
const (
	FieldAmenities = "amenities"
)

// dateLayout is the wire format of stay dates.
const dateLayout = "2006-01-02"

// Marketplace errors.
var (
	// ErrListingNotFound indicates the requested listing does not exist.
	ErrListingNotFound = errors.Wrap(errors.ErrNotFound, "listing not found")

	// ErrProposalNotFound indicates the requested proposal does not exist.
	ErrProposalNotFound = errors.Wrap(errors.ErrNotFound, "proposal not found")

	// ErrFavoriteNotFound indicates the user has not favorited the listing.
	ErrFavoriteNotFound = errors.Wrap(errors.ErrNotFound, "favorite not found")

	// ErrFavoriteAlreadyExists indicates the user already favorited the listing.
	ErrFavoriteAlreadyExists = errors.Wrap(errors.ErrConflict, "favorite already exists")

	// ErrInvalidStayDates indicates a check-out that is not after the check-in.
	ErrInvalidStayDates = errors.Wrap(errors.ErrInvalidInput, "check_out must be after check_in")

	// ErrInvalidListingStatus indicates an unknown listing status.
	ErrInvalidListingStatus = errors.Wrap(errors.ErrInvalidInput, "invalid listing status")

	// ErrInvalidProposalStatus indicates an unknown proposal status.
	ErrInvalidProposalStatus = errors.Wrap(errors.ErrInvalidInput, "invalid proposal status")

	// ErrProposalClosed indicates a status change on a declined or cancelled proposal.
	ErrProposalClosed = errors.Wrap(errors.ErrConflict, "proposal is closed")
)

// ListingStatus is the publication state of a listing.
type ListingStatus string

const (
	ListingDraft    ListingStatus = "draft"
	ListingActive   ListingStatus = "active"
	ListingArchived ListingStatus = "archived"
)

// IsValid reports whether the listing status is known.
func (s ListingStatus) IsValid() bool {
	switch s {
	case ListingDraft, ListingActive, ListingArchived:
		return true
	default:
		return false
	}
}

// Listing is a rentable property offered by a host.
type Listing struct {
	ID                uuid.UUID
	HostID            uuid.UUID
	Title             string
	NightlyPriceCents int64
	Amenities         []string
	Status            ListingStatus
	Origin            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Row returns the scalar row image of the listing. Amenities are captured as list deltas.
func (l *Listing) Row() map[string]any {
	return map[string]any{
		"host_id":             l.HostID.String(),
		"title":               l.Title,
		"nightly_price_cents": l.NightlyPriceCents,
		"status":              string(l.Status),
		"origin":              l.Origin,
	}
}

// ProposalStatus is the negotiation state of a stay proposal.
type ProposalStatus string

const (
	ProposalSubmitted ProposalStatus = "submitted"
	ProposalAccepted  ProposalStatus = "accepted"
	ProposalDeclined  ProposalStatus = "declined"
	ProposalCancelled ProposalStatus = "cancelled"
)

// IsValid reports whether the proposal status is known.
func (s ProposalStatus) IsValid() bool {
	switch s {
	case ProposalSubmitted, ProposalAccepted, ProposalDeclined, ProposalCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a proposal in this status may move to next.
// Declined and cancelled proposals are closed; an accepted proposal may only be cancelled.
func (s ProposalStatus) CanTransitionTo(next ProposalStatus) bool {
	switch s {
	case ProposalSubmitted:
		return next == ProposalAccepted || next == ProposalDeclined || next == ProposalCancelled
	case ProposalAccepted:
		return next == ProposalCancelled
	default:
		return false
	}
}

// Proposal is a guest's request to stay at a listing.
type Proposal struct {
	ID        uuid.UUID
	ListingID uuid.UUID
	GuestID   uuid.UUID
	Status    ProposalStatus
	CheckIn   time.Time
	CheckOut  time.Time
	Origin    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Row returns the row image of the proposal. The guest is sent as a reference only.
func (p *Proposal) Row() map[string]any {
	return map[string]any{
		"listing_id": p.ListingID.String(),
		"guest_id":   p.GuestID.String(),
		"status":     string(p.Status),
		"check_in":   p.CheckIn.Format(dateLayout),
		"check_out":  p.CheckOut.Format(dateLayout),
		"origin":     p.Origin,
	}
}

// ValidateStay rejects stays that do not last at least one night.
func ValidateStay(checkIn, checkOut time.Time) error {
	if !checkOut.After(checkIn) {
		return ErrInvalidStayDates
	}
	return nil
}

// Favorite links a user to a listing they saved.
type Favorite struct {
	UserID    uuid.UUID
	ListingID uuid.UUID
	Origin    string
	CreatedAt time.Time
}

// RecordID identifies the link row in the outbox.
func (f *Favorite) RecordID() string {
	return f.UserID.String() + ":" + f.ListingID.String()
}

// Row returns the row image of the link.
func (f *Favorite) Row() map[string]any {
	return map[string]any{
		"user_id":    f.UserID.String(),
		"listing_id": f.ListingID.String(),
	}
}

// NormalizeOrigin defaults an empty origin to a local write.
func NormalizeOrigin(origin string) string {
	if origin == "" {
		return outboxDomain.OriginLocal
	}
	return origin
}
