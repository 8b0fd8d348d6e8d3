package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/allisson/marketsync/internal/database"
	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/outbox/domain"
)

type sweepUseCase struct {
	txManager         database.TxManager
	outboxRepo        OutboxRepository
	processingTimeout time.Duration
	logger            *slog.Logger
	now               func() time.Time
}

// NewSweepUseCase creates a SweepUseCase. Entries left in processing longer than
// processingTimeout are treated as abandoned by a crashed worker.
func NewSweepUseCase(
	txManager database.TxManager,
	outboxRepo OutboxRepository,
	processingTimeout time.Duration,
	logger *slog.Logger,
) SweepUseCase {
	return &sweepUseCase{
		txManager:         txManager,
		outboxRepo:        outboxRepo,
		processingTimeout: processingTimeout,
		logger:            logger,
		now:               time.Now,
	}
}

// Sweep recovers stalled processing entries and requeues failed entries whose backoff has elapsed.
func (s *sweepUseCase) Sweep(ctx context.Context, limit int) (*domain.SweepResult, error) {
	if limit < 1 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "sweep limit must be positive")
	}

	now := s.now().UTC()
	result := &domain.SweepResult{}

	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		recovered, err := s.outboxRepo.RecoverStuck(ctx, now.Add(-s.processingTimeout), now, limit)
		if err != nil {
			return err
		}
		result.Recovered = recovered

		requeued, superseded, err := s.outboxRepo.RequeueRetryable(ctx, now, limit)
		if err != nil {
			return err
		}
		result.Requeued = requeued
		result.Superseded = superseded
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Recovered+result.Requeued+result.Superseded > 0 {
		s.logger.Info("outbox sweep finished",
			slog.Int("recovered", result.Recovered),
			slog.Int("requeued", result.Requeued),
			slog.Int("superseded", result.Superseded),
		)
	}
	return result, nil
}
