package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/database"
	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/marketplace/domain"
)

// MySQLListingRepository handles listing persistence for MySQL.
type MySQLListingRepository struct {
	db *sql.DB
}

// NewMySQLListingRepository creates a new MySQLListingRepository.
func NewMySQLListingRepository(db *sql.DB) *MySQLListingRepository {
	return &MySQLListingRepository{db: db}
}

// Create inserts a new listing.
func (r *MySQLListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	querier := database.GetTx(ctx, r.db)

	amenities, err := amenitiesJSON(listing.Amenities)
	if err != nil {
		return err
	}

	query := `INSERT INTO listings (` + listingColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		uuidBytes(listing.ID),
		uuidBytes(listing.HostID),
		listing.Title,
		listing.NightlyPriceCents,
		amenities,
		listing.Status,
		listing.Origin,
		listing.CreatedAt,
		listing.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create listing")
	}
	return nil
}

// GetByID retrieves a listing by ID.
func (r *MySQLListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	return r.get(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
}

// GetByIDForUpdate retrieves a listing by ID and locks it until the transaction ends.
func (r *MySQLListingRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	return r.get(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ? FOR UPDATE`, id)
}

func (r *MySQLListingRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Listing, error) {
	querier := database.GetTx(ctx, r.db)

	var (
		listing   domain.Listing
		idBytes   []byte
		hostBytes []byte
		amenities []byte
	)
	err := querier.QueryRowContext(ctx, query, uuidBytes(id)).Scan(
		&idBytes,
		&hostBytes,
		&listing.Title,
		&listing.NightlyPriceCents,
		&amenities,
		&listing.Status,
		&listing.Origin,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrListingNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get listing")
	}

	if listing.ID, err = parseUUIDBytes(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse listing id")
	}
	if listing.HostID, err = parseUUIDBytes(hostBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse listing host id")
	}
	if listing.Amenities, err = parseAmenitiesJSON(amenities); err != nil {
		return nil, err
	}
	return &listing, nil
}

// Update replaces the mutable columns of a listing.
func (r *MySQLListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	querier := database.GetTx(ctx, r.db)

	amenities, err := amenitiesJSON(listing.Amenities)
	if err != nil {
		return err
	}

	query := `UPDATE listings
			  SET title = ?, nightly_price_cents = ?, amenities = ?, status = ?, origin = ?, updated_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		listing.Title,
		listing.NightlyPriceCents,
		amenities,
		listing.Status,
		listing.Origin,
		listing.UpdatedAt,
		uuidBytes(listing.ID),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update listing")
	}
	// MySQL reports matched rows only when the DSN sets clientFoundRows; updated_at always changes.
	return requireRow(result, domain.ErrListingNotFound)
}

// Delete removes a listing.
func (r *MySQLListingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, uuidBytes(id))
	if err != nil {
		return apperrors.Wrap(err, "failed to delete listing")
	}
	return requireRow(result, domain.ErrListingNotFound)
}
