package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/marketsync/internal/database"
	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/outbox/domain"
	"github.com/allisson/marketsync/internal/outbox/service"
)

// budgetExhaustedMessage is recorded on claimed entries released unstarted when a run times out.
const budgetExhaustedMessage = "dispatch time budget exhausted before delivery started"

// outcomeWriteTimeout bounds each outcome write, which runs detached from the caller's cancellation.
const outcomeWriteTimeout = 10 * time.Second

// DispatchConfig holds dispatcher tuning.
type DispatchConfig struct {
	SubBatchSize int
	Concurrency  int
	BatchTimeout time.Duration
	Backoff      domain.BackoffPolicy
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeRetrying
	outcomeTerminal
	outcomeUnknown
)

type dispatchUseCase struct {
	config      DispatchConfig
	txManager   database.TxManager
	outboxRepo  OutboxRepository
	transformer Transformer
	sender      RemoteSender
	logger      *slog.Logger
	now         func() time.Time
}

// NewDispatchUseCase creates a DispatchUseCase.
func NewDispatchUseCase(
	config DispatchConfig,
	txManager database.TxManager,
	outboxRepo OutboxRepository,
	transformer Transformer,
	sender RemoteSender,
	logger *slog.Logger,
) DispatchUseCase {
	if config.SubBatchSize < 1 {
		config.SubBatchSize = 1
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &dispatchUseCase{
		config:      config,
		txManager:   txManager,
		outboxRepo:  outboxRepo,
		transformer: transformer,
		sender:      sender,
		logger:      logger,
		now:         time.Now,
	}
}

// Dispatch claims up to batchSize pending entries and delivers them in sub-batches.
// Delivery failures are persisted on the entries and never returned; only claim errors are.
func (d *dispatchUseCase) Dispatch(ctx context.Context, batchSize int) (*DispatchResult, error) {
	if batchSize < 1 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "batch size must be positive")
	}

	batchCtx := ctx
	if d.config.BatchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, d.config.BatchTimeout)
		defer cancel()
	}

	var entries []*domain.OutboxEntry
	err := d.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		entries, err = d.outboxRepo.ClaimPending(ctx, batchSize, d.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &DispatchResult{Claimed: len(entries)}
	if len(entries) == 0 {
		return result, nil
	}

	d.logger.Info("dispatching outbox entries", slog.Int("count", len(entries)))

	var mu sync.Mutex
	record := func(o outcome) {
		mu.Lock()
		defer mu.Unlock()
		switch o {
		case outcomeCompleted:
			result.Completed++
		case outcomeRetrying:
			result.Retrying++
		case outcomeTerminal:
			result.Terminal++
		}
	}

	for start := 0; start < len(entries); start += d.config.SubBatchSize {
		end := min(start+d.config.SubBatchSize, len(entries))

		var g errgroup.Group
		g.SetLimit(d.config.Concurrency)

		for _, entry := range entries[start:end] {
			g.Go(func() error {
				if batchCtx.Err() != nil {
					record(d.release(ctx, entry))
					return nil
				}
				record(d.deliver(ctx, batchCtx, entry))
				return nil
			})
		}
		_ = g.Wait()
	}

	return result, nil
}

// deliver runs one entry through the transformer and the remote call, then persists the outcome.
// Outcomes are written detached from ctx so neither the batch deadline nor a cancelled caller can
// leave a finished delivery in processing.
func (d *dispatchUseCase) deliver(ctx, batchCtx context.Context, entry *domain.OutboxEntry) outcome {
	req, err := d.transformer.Transform(batchCtx, entry)
	if err != nil {
		return d.fail(ctx, entry, err, !service.IsConfigurationError(err))
	}

	response, err := d.sender.Send(batchCtx, req, entry.IdempotencyKey)
	if err != nil {
		return d.fail(ctx, entry, err, service.IsTransient(err))
	}

	writeCtx, cancel := outcomeContext(ctx)
	defer cancel()

	if err := d.outboxRepo.MarkCompleted(writeCtx, entry.ID, response, d.now().UTC()); err != nil {
		d.logger.Error("failed to record delivery",
			slog.String("entry_id", entry.ID.String()),
			slog.Any("error", err),
		)
		return outcomeUnknown
	}
	return outcomeCompleted
}

// fail persists a failed delivery. Permanent failures jump straight to the attempt ceiling.
func (d *dispatchUseCase) fail(ctx context.Context, entry *domain.OutboxEntry, cause error, transient bool) outcome {
	now := d.now().UTC()
	update := domain.FailureUpdate{
		AttemptCount: entry.MaxAttempts,
		ErrorMessage: cause.Error(),
		ProcessedAt:  now,
	}

	var deliveryErr *service.DeliveryError
	if errors.As(cause, &deliveryErr) && deliveryErr.Body != "" {
		update.ErrorDetail = &deliveryErr.Body
	}

	if transient {
		update.AttemptCount = min(entry.AttemptCount+1, entry.MaxAttempts)
		if update.AttemptCount < entry.MaxAttempts {
			next := d.config.Backoff.NextRetryAt(now, update.AttemptCount-1)
			update.NextRetryAt = &next
		}
	}

	writeCtx, cancel := outcomeContext(ctx)
	defer cancel()

	if err := d.outboxRepo.MarkFailed(writeCtx, entry.ID, update); err != nil {
		d.logger.Error("failed to record delivery failure",
			slog.String("entry_id", entry.ID.String()),
			slog.Any("error", err),
		)
		return outcomeUnknown
	}

	level := slog.LevelWarn
	if update.NextRetryAt == nil {
		level = slog.LevelError
	}
	d.logger.Log(ctx, level, "outbox delivery failed",
		slog.String("entry_id", entry.ID.String()),
		slog.String("source_table", entry.SourceTable),
		slog.String("operation", string(entry.Operation)),
		slog.Int("attempt", update.AttemptCount),
		slog.Bool("retryable", update.NextRetryAt != nil),
		slog.Any("error", cause),
	)

	if update.NextRetryAt == nil {
		return outcomeTerminal
	}
	return outcomeRetrying
}

// release returns a claimed but unstarted entry to the retry path without consuming an attempt.
func (d *dispatchUseCase) release(ctx context.Context, entry *domain.OutboxEntry) outcome {
	now := d.now().UTC()
	update := domain.FailureUpdate{
		AttemptCount: entry.AttemptCount,
		NextRetryAt:  &now,
		ErrorMessage: budgetExhaustedMessage,
		ProcessedAt:  now,
	}

	writeCtx, cancel := outcomeContext(ctx)
	defer cancel()

	if err := d.outboxRepo.MarkFailed(writeCtx, entry.ID, update); err != nil {
		d.logger.Error("failed to release outbox entry",
			slog.String("entry_id", entry.ID.String()),
			slog.Any("error", err),
		)
		return outcomeUnknown
	}
	return outcomeRetrying
}

func outcomeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
}
