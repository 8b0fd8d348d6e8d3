package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/database"
	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/outbox/domain"
)

type statusUseCase struct {
	txManager  database.TxManager
	outboxRepo OutboxRepository
	now        func() time.Time
}

// NewStatusUseCase creates a StatusUseCase. Every read runs in a read-only transaction so it
// never waits on or holds row locks used by the dispatcher.
func NewStatusUseCase(txManager database.TxManager, outboxRepo OutboxRepository) StatusUseCase {
	return &statusUseCase{
		txManager:  txManager,
		outboxRepo: outboxRepo,
		now:        time.Now,
	}
}

// Report aggregates entry counts per source table and status along with the oldest pending age.
func (s *statusUseCase) Report(ctx context.Context, filter domain.StatusFilter) (*StatusReport, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperrors.Wrapf(domain.ErrInvalidStatus, "%q", filter.Status)
	}

	report := &StatusReport{
		Totals:      make(map[domain.Status]int64, len(domain.AllStatuses)),
		GeneratedAt: s.now().UTC(),
	}

	err := s.txManager.WithReadOnlyTx(ctx, func(ctx context.Context) error {
		counts, err := s.outboxRepo.Stats(ctx, filter)
		if err != nil {
			return err
		}
		report.Counts = counts

		if filter.Status == "" || filter.Status == domain.StatusPending {
			oldest, err := s.outboxRepo.OldestPending(ctx, filter)
			if err != nil {
				return err
			}
			report.OldestPendingAt = oldest
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range report.Counts {
		report.Totals[c.Status] += c.Count
	}
	if report.OldestPendingAt != nil {
		report.OldestPendingAge = max(report.GeneratedAt.Sub(*report.OldestPendingAt), 0)
	}
	return report, nil
}

// ListFailed returns failed entries, most recent first.
func (s *statusUseCase) ListFailed(
	ctx context.Context,
	filter domain.StatusFilter,
	offset, limit int,
) ([]*domain.OutboxEntry, error) {
	var entries []*domain.OutboxEntry
	err := s.txManager.WithReadOnlyTx(ctx, func(ctx context.Context) error {
		var err error
		entries, err = s.outboxRepo.ListFailed(ctx, filter, offset, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Get returns a single entry.
func (s *statusUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	var entry *domain.OutboxEntry
	err := s.txManager.WithReadOnlyTx(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.outboxRepo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}
