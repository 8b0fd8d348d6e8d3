package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/database"
	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/marketplace/domain"
	outboxDomain "github.com/allisson/marketsync/internal/outbox/domain"
	outboxUseCase "github.com/allisson/marketsync/internal/outbox/usecase"
)

type proposalUseCase struct {
	txManager    database.TxManager
	proposalRepo ProposalRepository
	capture      outboxUseCase.CaptureUseCase
	now          func() time.Time
}

// NewProposalUseCase creates a ProposalUseCase.
func NewProposalUseCase(
	txManager database.TxManager,
	proposalRepo ProposalRepository,
	capture outboxUseCase.CaptureUseCase,
) ProposalUseCase {
	return &proposalUseCase{
		txManager:    txManager,
		proposalRepo: proposalRepo,
		capture:      capture,
		now:          time.Now,
	}
}

// Create stores a submitted proposal and captures it.
func (uc *proposalUseCase) Create(ctx context.Context, input CreateProposalInput) (*domain.Proposal, error) {
	if err := domain.ValidateStay(input.CheckIn, input.CheckOut); err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	proposal := &domain.Proposal{
		ID:        uuid.Must(uuid.NewV7()),
		ListingID: input.ListingID,
		GuestID:   input.GuestID,
		Status:    domain.ProposalSubmitted,
		CheckIn:   input.CheckIn.UTC(),
		CheckOut:  input.CheckOut.UTC(),
		Origin:    domain.NormalizeOrigin(input.Origin),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.proposalRepo.Create(ctx, proposal); err != nil {
			return err
		}
		return uc.captureProposal(ctx, proposal, outboxDomain.OperationInsert)
	})
	if err != nil {
		return nil, err
	}
	return proposal, nil
}

// UpdateStatus moves a proposal to a new status and captures the change.
func (uc *proposalUseCase) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.ProposalStatus,
	origin string,
) (*domain.Proposal, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidProposalStatus, status)
	}

	var proposal *domain.Proposal
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		current, err := uc.proposalRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: cannot move from %s to %s", domain.ErrProposalClosed, current.Status, status)
		}

		current.Status = status
		current.Origin = domain.NormalizeOrigin(origin)
		current.UpdatedAt = uc.now().UTC()

		if err := uc.proposalRepo.UpdateStatus(ctx, id, status, current.Origin, current.UpdatedAt); err != nil {
			return err
		}
		if err := uc.captureProposal(ctx, current, outboxDomain.OperationUpdate); err != nil {
			return err
		}

		proposal = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return proposal, nil
}

// Get retrieves a proposal by ID.
func (uc *proposalUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	return uc.proposalRepo.GetByID(ctx, id)
}

func (uc *proposalUseCase) captureProposal(ctx context.Context, proposal *domain.Proposal, op outboxDomain.Operation) error {
	_, err := uc.capture.Capture(ctx, outboxUseCase.Change{
		SourceTable: domain.TableProposals,
		RecordID:    proposal.ID.String(),
		Operation:   op,
		Row:         proposal.Row(),
		Origin:      proposal.Origin,
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to capture proposal change")
	}
	return nil
}
