package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/database"
	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/marketplace/domain"
)

// MySQLFavoriteRepository handles listing favorite persistence for MySQL.
type MySQLFavoriteRepository struct {
	db *sql.DB
}

// NewMySQLFavoriteRepository creates a new MySQLFavoriteRepository.
func NewMySQLFavoriteRepository(db *sql.DB) *MySQLFavoriteRepository {
	return &MySQLFavoriteRepository{db: db}
}

// Add links a user to a listing.
func (r *MySQLFavoriteRepository) Add(ctx context.Context, favorite *domain.Favorite) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO listing_favorites (user_id, listing_id, origin, created_at) VALUES (?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		uuidBytes(favorite.UserID),
		uuidBytes(favorite.ListingID),
		favorite.Origin,
		favorite.CreatedAt,
	)
	if err != nil {
		if isMySQLUniqueViolation(err) {
			return domain.ErrFavoriteAlreadyExists
		}
		if isMySQLForeignKeyViolation(err) {
			return domain.ErrListingNotFound
		}
		return apperrors.Wrap(err, "failed to add favorite")
	}
	return nil
}

// Remove unlinks a user from a listing.
func (r *MySQLFavoriteRepository) Remove(ctx context.Context, userID, listingID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM listing_favorites WHERE user_id = ? AND listing_id = ?`

	result, err := querier.ExecContext(ctx, query, uuidBytes(userID), uuidBytes(listingID))
	if err != nil {
		return apperrors.Wrap(err, "failed to remove favorite")
	}
	return requireRow(result, domain.ErrFavoriteNotFound)
}

// ListByUser returns the favorites of a user, newest first.
func (r *MySQLFavoriteRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Favorite, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT user_id, listing_id, origin, created_at FROM listing_favorites
			  WHERE user_id = ? ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, uuidBytes(userID))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list favorites")
	}
	defer rows.Close() //nolint:errcheck

	var favorites []*domain.Favorite
	for rows.Next() {
		var (
			favorite     domain.Favorite
			userBytes    []byte
			listingBytes []byte
		)
		if err := rows.Scan(&userBytes, &listingBytes, &favorite.Origin, &favorite.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan favorite")
		}
		if favorite.UserID, err = parseUUIDBytes(userBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to parse favorite user id")
		}
		if favorite.ListingID, err = parseUUIDBytes(listingBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to parse favorite listing id")
		}
		favorites = append(favorites, &favorite)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate favorites")
	}
	return favorites, nil
}
