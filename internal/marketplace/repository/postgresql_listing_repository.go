package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/marketsync/internal/database"
	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/marketplace/domain"
)

const listingColumns = `id, host_id, title, nightly_price_cents, amenities, status, origin, created_at, updated_at`

// PostgreSQLListingRepository handles listing persistence for PostgreSQL.
type PostgreSQLListingRepository struct {
	db *sql.DB
}

// NewPostgreSQLListingRepository creates a new PostgreSQLListingRepository.
func NewPostgreSQLListingRepository(db *sql.DB) *PostgreSQLListingRepository {
	return &PostgreSQLListingRepository{db: db}
}

// Create inserts a new listing.
func (r *PostgreSQLListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO listings (` + listingColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(
		ctx,
		query,
		listing.ID,
		listing.HostID,
		listing.Title,
		listing.NightlyPriceCents,
		pq.Array(listing.Amenities),
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
func (r *PostgreSQLListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	return r.get(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a listing by ID and locks it until the transaction ends.
func (r *PostgreSQLListingRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	return r.get(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgreSQLListingRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Listing, error) {
	querier := database.GetTx(ctx, r.db)

	var listing domain.Listing
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&listing.ID,
		&listing.HostID,
		&listing.Title,
		&listing.NightlyPriceCents,
		pq.Array(&listing.Amenities),
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
	return &listing, nil
}

// Update replaces the mutable columns of a listing.
func (r *PostgreSQLListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE listings
			  SET title = $2, nightly_price_cents = $3, amenities = $4, status = $5, origin = $6, updated_at = $7
			  WHERE id = $1`

	result, err := querier.ExecContext(
		ctx,
		query,
		listing.ID,
		listing.Title,
		listing.NightlyPriceCents,
		pq.Array(listing.Amenities),
		listing.Status,
		listing.Origin,
		listing.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update listing")
	}
	return requireRow(result, domain.ErrListingNotFound)
}

// Delete removes a listing.
func (r *PostgreSQLListingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete listing")
	}
	return requireRow(result, domain.ErrListingNotFound)
}
