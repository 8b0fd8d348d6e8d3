package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/metrics"
	"github.com/allisson/marketsync/internal/outbox/domain"
)

const metricsDomain = "outbox"

func metricStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// captureUseCaseWithMetrics decorates CaptureUseCase with metrics instrumentation.
type captureUseCaseWithMetrics struct {
	next    CaptureUseCase
	metrics metrics.BusinessMetrics
}

// NewCaptureUseCaseWithMetrics wraps a CaptureUseCase with metrics recording.
func NewCaptureUseCaseWithMetrics(useCase CaptureUseCase, m metrics.BusinessMetrics) CaptureUseCase {
	return &captureUseCaseWithMetrics{next: useCase, metrics: m}
}

// Capture records metrics for capture operations. Skipped captures are counted separately.
func (c *captureUseCaseWithMetrics) Capture(ctx context.Context, change Change) (*CaptureResult, error) {
	start := time.Now()
	result, err := c.next.Capture(ctx, change)

	status := metricStatus(err)
	if err == nil && result.Skipped {
		status = "skipped"
	}

	c.metrics.RecordOperation(ctx, metricsDomain, "capture", status)
	c.metrics.RecordDuration(ctx, metricsDomain, "capture", time.Since(start), status)

	return result, err
}

// dispatchUseCaseWithMetrics decorates DispatchUseCase with metrics instrumentation.
type dispatchUseCaseWithMetrics struct {
	next     DispatchUseCase
	metrics  metrics.BusinessMetrics
	outboxMx metrics.OutboxMetrics
}

// NewDispatchUseCaseWithMetrics wraps a DispatchUseCase with metrics recording.
func NewDispatchUseCaseWithMetrics(
	useCase DispatchUseCase,
	m metrics.BusinessMetrics,
	om metrics.OutboxMetrics,
) DispatchUseCase {
	return &dispatchUseCaseWithMetrics{next: useCase, metrics: m, outboxMx: om}
}

// Dispatch records metrics for dispatch runs and their delivery outcomes.
func (d *dispatchUseCaseWithMetrics) Dispatch(ctx context.Context, batchSize int) (*DispatchResult, error) {
	start := time.Now()
	result, err := d.next.Dispatch(ctx, batchSize)

	status := metricStatus(err)
	d.metrics.RecordOperation(ctx, metricsDomain, "dispatch", status)
	d.metrics.RecordDuration(ctx, metricsDomain, "dispatch", time.Since(start), status)

	if result != nil {
		d.outboxMx.RecordDeliveries(ctx, "completed", result.Completed)
		d.outboxMx.RecordDeliveries(ctx, "retrying", result.Retrying)
		d.outboxMx.RecordDeliveries(ctx, "terminal", result.Terminal)
	}

	return result, err
}

// sweepUseCaseWithMetrics decorates SweepUseCase with metrics instrumentation.
type sweepUseCaseWithMetrics struct {
	next    SweepUseCase
	metrics metrics.BusinessMetrics
}

// NewSweepUseCaseWithMetrics wraps a SweepUseCase with metrics recording.
func NewSweepUseCaseWithMetrics(useCase SweepUseCase, m metrics.BusinessMetrics) SweepUseCase {
	return &sweepUseCaseWithMetrics{next: useCase, metrics: m}
}

// Sweep records metrics for sweep runs.
func (s *sweepUseCaseWithMetrics) Sweep(ctx context.Context, limit int) (*domain.SweepResult, error) {
	start := time.Now()
	result, err := s.next.Sweep(ctx, limit)

	status := metricStatus(err)
	s.metrics.RecordOperation(ctx, metricsDomain, "sweep", status)
	s.metrics.RecordDuration(ctx, metricsDomain, "sweep", time.Since(start), status)

	return result, err
}

// statusUseCaseWithMetrics decorates StatusUseCase and publishes queue gauges from every report.
type statusUseCaseWithMetrics struct {
	next     StatusUseCase
	outboxMx metrics.OutboxMetrics
}

// NewStatusUseCaseWithMetrics wraps a StatusUseCase with gauge recording.
func NewStatusUseCaseWithMetrics(useCase StatusUseCase, om metrics.OutboxMetrics) StatusUseCase {
	return &statusUseCaseWithMetrics{next: useCase, outboxMx: om}
}

// Report publishes per-bucket entry counts and the oldest pending age.
func (s *statusUseCaseWithMetrics) Report(ctx context.Context, filter domain.StatusFilter) (*StatusReport, error) {
	report, err := s.next.Report(ctx, filter)
	if err != nil {
		return nil, err
	}

	for _, c := range report.Counts {
		s.outboxMx.RecordEntries(ctx, c.SourceTable, string(c.Status), c.Count)
	}
	if filter == (domain.StatusFilter{}) {
		s.outboxMx.RecordOldestPendingAge(ctx, report.OldestPendingAge)
	}
	return report, nil
}

// ListFailed delegates without instrumentation.
func (s *statusUseCaseWithMetrics) ListFailed(
	ctx context.Context,
	filter domain.StatusFilter,
	offset, limit int,
) ([]*domain.OutboxEntry, error) {
	return s.next.ListFailed(ctx, filter, offset, limit)
}

// Get delegates without instrumentation.
func (s *statusUseCaseWithMetrics) Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	return s.next.Get(ctx, id)
}
