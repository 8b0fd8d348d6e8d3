package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/database"
	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/outbox/domain"
)

// operatorSkipReason is recorded when an operator skips an entry without giving a reason.
const operatorSkipReason = "skipped by operator"

type operatorUseCase struct {
	txManager  database.TxManager
	outboxRepo OutboxRepository
	logger     *slog.Logger
	now        func() time.Time
}

// NewOperatorUseCase creates an OperatorUseCase.
func NewOperatorUseCase(txManager database.TxManager, outboxRepo OutboxRepository, logger *slog.Logger) OperatorUseCase {
	return &operatorUseCase{
		txManager:  txManager,
		outboxRepo: outboxRepo,
		logger:     logger,
		now:        time.Now,
	}
}

// Requeue gives a terminal failure a fresh set of attempts.
func (o *operatorUseCase) Requeue(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	var entry *domain.OutboxEntry
	err := o.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := o.outboxRepo.Requeue(ctx, id); err != nil {
			return err
		}
		var err error
		entry, err = o.outboxRepo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("outbox entry requeued by operator",
		slog.String("entry_id", id.String()),
		slog.String("source_table", entry.SourceTable),
	)
	return entry, nil
}

// Skip withdraws a pending entry from delivery.
func (o *operatorUseCase) Skip(ctx context.Context, id uuid.UUID, reason string) (*domain.OutboxEntry, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = operatorSkipReason
	}

	var entry *domain.OutboxEntry
	err := o.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := o.outboxRepo.MarkSkipped(ctx, id, reason, o.now().UTC()); err != nil {
			if !apperrors.Is(err, domain.ErrInvalidTransition) {
				return err
			}
			if _, getErr := o.outboxRepo.GetByID(ctx, id); getErr != nil {
				return getErr
			}
			return err
		}
		var err error
		entry, err = o.outboxRepo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("outbox entry skipped by operator",
		slog.String("entry_id", id.String()),
		slog.String("source_table", entry.SourceTable),
		slog.String("reason", reason),
	)
	return entry, nil
}
