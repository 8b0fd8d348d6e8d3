package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/outbox/domain"
	"github.com/allisson/marketsync/internal/outbox/service"
	syncDomain "github.com/allisson/marketsync/internal/syncconfig/domain"
)

type captureUseCase struct {
	outboxRepo  OutboxRepository
	policies    PolicyChecker
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
}

// NewCaptureUseCase creates a CaptureUseCase. maxAttempts is stamped on every new entry.
func NewCaptureUseCase(
	outboxRepo OutboxRepository,
	policies PolicyChecker,
	maxAttempts int,
	logger *slog.Logger,
) CaptureUseCase {
	return &captureUseCase{
		outboxRepo:  outboxRepo,
		policies:    policies,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// Capture records a change as a pending delivery, merging into an undelivered entry with the
// same idempotency key. It performs no network I/O.
func (c *captureUseCase) Capture(ctx context.Context, change Change) (*CaptureResult, error) {
	if change.SourceTable == "" || change.RecordID == "" {
		return nil, fmt.Errorf("%w: source table and record id are required", domain.ErrInvalidPayload)
	}
	if !change.Operation.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidOperation, change.Operation)
	}
	if change.Origin == "" {
		change.Origin = domain.OriginLocal
	}

	epoch := change.Epoch
	if epoch == "" {
		epoch = domain.DefaultEpoch(change.Operation)
	}
	key := domain.BuildIdempotencyKey(change.SourceTable, change.RecordID, change.Operation, epoch)
	result := &CaptureResult{IdempotencyKey: key}

	if change.Origin == domain.OriginRemote {
		result.Skipped = true
		return result, nil
	}

	enabled, err := c.policies.IsEnabled(ctx, change.SourceTable, change.Operation)
	if err != nil {
		if !apperrors.Is(err, syncDomain.ErrPolicyNotFound) {
			return nil, err
		}
		c.logger.Warn("no sync policy found, change not captured",
			slog.String("source_table", change.SourceTable),
			slog.String("operation", string(change.Operation)),
		)
	}
	if !enabled {
		result.Skipped = true
		return result, nil
	}

	payload, err := service.Snapshot(change.Row, change.ListChanges, change.Origin)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate outbox entry id")
	}

	entry := &domain.OutboxEntry{
		ID:             id,
		SourceTable:    change.SourceTable,
		RecordID:       change.RecordID,
		Operation:      change.Operation,
		Payload:        payload,
		IdempotencyKey: key,
		Status:         domain.StatusPending,
		MaxAttempts:    c.maxAttempts,
		CreatedAt:      c.now().UTC(),
	}

	merged, err := c.outboxRepo.Upsert(ctx, entry)
	if err != nil {
		return nil, err
	}

	result.EntryID = entry.ID
	result.Merged = merged
	return result, nil
}
