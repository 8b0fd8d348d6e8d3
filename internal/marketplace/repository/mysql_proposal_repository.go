package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/database"
	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/marketplace/domain"
)

// MySQLProposalRepository handles proposal persistence for MySQL.
type MySQLProposalRepository struct {
	db *sql.DB
}

// NewMySQLProposalRepository creates a new MySQLProposalRepository.
func NewMySQLProposalRepository(db *sql.DB) *MySQLProposalRepository {
	return &MySQLProposalRepository{db: db}
}

// Create inserts a new proposal. A missing listing is reported as ErrListingNotFound.
func (r *MySQLProposalRepository) Create(ctx context.Context, proposal *domain.Proposal) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO proposals (` + proposalColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		uuidBytes(proposal.ID),
		uuidBytes(proposal.ListingID),
		uuidBytes(proposal.GuestID),
		proposal.Status,
		proposal.CheckIn,
		proposal.CheckOut,
		proposal.Origin,
		proposal.CreatedAt,
		proposal.UpdatedAt,
	)
	if err != nil {
		if isMySQLForeignKeyViolation(err) {
			return domain.ErrListingNotFound
		}
		return apperrors.Wrap(err, "failed to create proposal")
	}
	return nil
}

// GetByID retrieves a proposal by ID.
func (r *MySQLProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	return r.get(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = ?`, id)
}

// GetByIDForUpdate retrieves a proposal by ID and locks it until the transaction ends.
func (r *MySQLProposalRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	return r.get(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = ? FOR UPDATE`, id)
}

func (r *MySQLProposalRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Proposal, error) {
	querier := database.GetTx(ctx, r.db)

	var (
		proposal     domain.Proposal
		idBytes      []byte
		listingBytes []byte
		guestBytes   []byte
	)
	err := querier.QueryRowContext(ctx, query, uuidBytes(id)).Scan(
		&idBytes,
		&listingBytes,
		&guestBytes,
		&proposal.Status,
		&proposal.CheckIn,
		&proposal.CheckOut,
		&proposal.Origin,
		&proposal.CreatedAt,
		&proposal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProposalNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get proposal")
	}

	if proposal.ID, err = parseUUIDBytes(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse proposal id")
	}
	if proposal.ListingID, err = parseUUIDBytes(listingBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse proposal listing id")
	}
	if proposal.GuestID, err = parseUUIDBytes(guestBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse proposal guest id")
	}
	return &proposal, nil
}

// UpdateStatus changes the status of a proposal.
func (r *MySQLProposalRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.ProposalStatus,
	origin string,
	updatedAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE proposals SET status = ?, origin = ?, updated_at = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, status, origin, updatedAt, uuidBytes(id))
	if err != nil {
		return apperrors.Wrap(err, "failed to update proposal status")
	}
	return requireRow(result, domain.ErrProposalNotFound)
}
