package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/database"
	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/marketplace/domain"
)

// PostgreSQLFavoriteRepository handles listing favorite persistence for PostgreSQL.
type PostgreSQLFavoriteRepository struct {
	db *sql.DB
}

// NewPostgreSQLFavoriteRepository creates a new PostgreSQLFavoriteRepository.
func NewPostgreSQLFavoriteRepository(db *sql.DB) *PostgreSQLFavoriteRepository {
	return &PostgreSQLFavoriteRepository{db: db}
}

// Add links a user to a listing.
func (r *PostgreSQLFavoriteRepository) Add(ctx context.Context, favorite *domain.Favorite) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO listing_favorites (user_id, listing_id, origin, created_at) VALUES ($1, $2, $3, $4)`

	_, err := querier.ExecContext(ctx, query, favorite.UserID, favorite.ListingID, favorite.Origin, favorite.CreatedAt)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return domain.ErrFavoriteAlreadyExists
		}
		if isPostgreSQLForeignKeyViolation(err) {
			return domain.ErrListingNotFound
		}
		return apperrors.Wrap(err, "failed to add favorite")
	}
	return nil
}

// Remove unlinks a user from a listing.
func (r *PostgreSQLFavoriteRepository) Remove(ctx context.Context, userID, listingID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM listing_favorites WHERE user_id = $1 AND listing_id = $2`

	result, err := querier.ExecContext(ctx, query, userID, listingID)
	if err != nil {
		return apperrors.Wrap(err, "failed to remove favorite")
	}
	return requireRow(result, domain.ErrFavoriteNotFound)
}

// ListByUser returns the favorites of a user, newest first.
func (r *PostgreSQLFavoriteRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Favorite, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT user_id, listing_id, origin, created_at FROM listing_favorites
			  WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list favorites")
	}
	defer rows.Close() //nolint:errcheck

	var favorites []*domain.Favorite
	for rows.Next() {
		var favorite domain.Favorite
		if err := rows.Scan(&favorite.UserID, &favorite.ListingID, &favorite.Origin, &favorite.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan favorite")
		}
		favorites = append(favorites, &favorite)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate favorites")
	}
	return favorites, nil
}
