package usecase

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// SchedulerConfig holds the scheduler cadence and batch limits.
type SchedulerConfig struct {
	FastInterval time.Duration
	SlowInterval time.Duration
	BatchSize    int
	SweepLimit   int
	// ProcessingTimeout is how long an entry may stay claimed before it is recovered.
	ProcessingTimeout time.Duration
}

// Scheduler wakes the dispatcher and the retry sweeper on two independent cadences.
// It keeps no state between ticks; everything it needs is read from the outbox store.
type Scheduler struct {
	config     SchedulerConfig
	outboxRepo OutboxRepository
	dispatcher DispatchUseCase
	sweeper    SweepUseCase
	logger     *slog.Logger
	now        func() time.Time
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	config SchedulerConfig,
	outboxRepo OutboxRepository,
	dispatcher DispatchUseCase,
	sweeper SweepUseCase,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		config:     config,
		outboxRepo: outboxRepo,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		logger:     logger,
		now:        time.Now,
	}
}

// Start runs both tickers until ctx is cancelled. Each ticker has its own goroutine, so a slow
// dispatch never delays recovery. A tick that overruns its interval delays the next tick of the
// same timer instead of overlapping it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("starting outbox scheduler",
		slog.Duration("fast_interval", s.config.FastInterval),
		slog.Duration("slow_interval", s.config.SlowInterval),
		slog.Int("batch_size", s.config.BatchSize),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.runTicker(gctx, "fast", s.config.FastInterval, s.FastTick)
	})
	g.Go(func() error {
		return s.runTicker(gctx, "slow", s.config.SlowInterval, s.SlowTick)
	})

	err := g.Wait()
	s.logger.Info("stopping outbox scheduler")
	return err
}

func (s *Scheduler) runTicker(
	ctx context.Context,
	name string,
	interval time.Duration,
	tick func(context.Context) error,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("outbox tick failed", slog.String("ticker", name), slog.Any("error", err))
			}
		}
	}
}

// FastTick dispatches one batch when pending entries exist and does nothing otherwise.
func (s *Scheduler) FastTick(ctx context.Context) error {
	pending, err := s.outboxRepo.CountPending(ctx, s.now().UTC())
	if err != nil {
		return err
	}
	if pending == 0 {
		return nil
	}

	result, err := s.dispatcher.Dispatch(ctx, s.config.BatchSize)
	if err != nil {
		return err
	}

	s.logger.Info("outbox dispatch finished",
		slog.Int("claimed", result.Claimed),
		slog.Int("completed", result.Completed),
		slog.Int("retrying", result.Retrying),
		slog.Int("terminal", result.Terminal),
	)
	return nil
}

// SlowTick recovers stalled entries and requeues retryable failures.
// The sweep is skipped when nothing is retryable.
func (s *Scheduler) SlowTick(ctx context.Context) error {
	now := s.now().UTC()

	recovered, err := s.outboxRepo.RecoverStuck(ctx, now.Add(-s.config.ProcessingTimeout), now, s.config.SweepLimit)
	if err != nil {
		return err
	}
	if recovered > 0 {
		s.logger.Warn("recovered stalled outbox entries", slog.Int("count", recovered))
	}

	retryable, err := s.outboxRepo.CountRetryable(ctx, now)
	if err != nil {
		return err
	}
	if retryable == 0 {
		return nil
	}

	_, err = s.sweeper.Sweep(ctx, s.config.SweepLimit)
	return err
}
