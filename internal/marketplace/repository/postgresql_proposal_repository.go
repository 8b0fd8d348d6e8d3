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

const proposalColumns = `id, listing_id, guest_id, status, check_in, check_out, origin, created_at, updated_at`

// PostgreSQLProposalRepository handles proposal persistence for PostgreSQL.
type PostgreSQLProposalRepository struct {
	db *sql.DB
}

// NewPostgreSQLProposalRepository creates a new PostgreSQLProposalRepository.
func NewPostgreSQLProposalRepository(db *sql.DB) *PostgreSQLProposalRepository {
	return &PostgreSQLProposalRepository{db: db}
}

// Create inserts a new proposal. A missing listing is reported as ErrListingNotFound.
func (r *PostgreSQLProposalRepository) Create(ctx context.Context, proposal *domain.Proposal) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO proposals (` + proposalColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(
		ctx,
		query,
		proposal.ID,
		proposal.ListingID,
		proposal.GuestID,
		proposal.Status,
		proposal.CheckIn,
		proposal.CheckOut,
		proposal.Origin,
		proposal.CreatedAt,
		proposal.UpdatedAt,
	)
	if err != nil {
		if isPostgreSQLForeignKeyViolation(err) {
			return domain.ErrListingNotFound
		}
		return apperrors.Wrap(err, "failed to create proposal")
	}
	return nil
}

// GetByID retrieves a proposal by ID.
func (r *PostgreSQLProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	return r.get(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a proposal by ID and locks it until the transaction ends.
func (r *PostgreSQLProposalRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	return r.get(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgreSQLProposalRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Proposal, error) {
	querier := database.GetTx(ctx, r.db)

	var proposal domain.Proposal
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&proposal.ID,
		&proposal.ListingID,
		&proposal.GuestID,
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
	return &proposal, nil
}

// UpdateStatus changes the status of a proposal.
func (r *PostgreSQLProposalRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.ProposalStatus,
	origin string,
	updatedAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE proposals SET status = $2, origin = $3, updated_at = $4 WHERE id = $1`

	result, err := querier.ExecContext(ctx, query, id, status, origin, updatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to update proposal status")
	}
	return requireRow(result, domain.ErrProposalNotFound)
}
