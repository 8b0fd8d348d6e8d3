package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/marketsync/internal/outbox/domain"
)

// mockCaptureUseCase is a mock implementation of CaptureUseCase for testing.
type mockCaptureUseCase struct {
	mock.Mock
}

func (m *mockCaptureUseCase) Capture(ctx context.Context, change Change) (*CaptureResult, error) {
	args := m.Called(ctx, change)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CaptureResult), args.Error(1)
}

// mockStatusUseCase is a mock implementation of StatusUseCase for testing.
type mockStatusUseCase struct {
	mock.Mock
}

func (m *mockStatusUseCase) Report(ctx context.Context, filter domain.StatusFilter) (*StatusReport, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StatusReport), args.Error(1)
}

func (m *mockStatusUseCase) ListFailed(
	ctx context.Context,
	filter domain.StatusFilter,
	offset, limit int,
) ([]*domain.OutboxEntry, error) {
	args := m.Called(ctx, filter, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxEntry), args.Error(1)
}

func (m *mockStatusUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEntry), args.Error(1)
}

func TestCaptureUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()
	change := newListingChange(domain.OperationInsert)

	tests := []struct {
		name   string
		result *CaptureResult
		err    error
		status string
	}{
		{name: "Success_RecordsSuccess", result: &CaptureResult{}, status: "success"},
		{name: "Success_RecordsSkipped", result: &CaptureResult{Skipped: true}, status: "skipped"},
		{name: "Error_RecordsError", err: domain.ErrCaptureNotPersisted, status: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &mockCaptureUseCase{}
			m := &mockBusinessMetrics{}
			decorator := NewCaptureUseCaseWithMetrics(next, m)

			next.On("Capture", ctx, change).Return(tt.result, tt.err).Once()
			m.On("RecordOperation", ctx, "outbox", "capture", tt.status).Return().Once()
			m.On("RecordDuration", ctx, "outbox", "capture", mock.AnythingOfType("time.Duration"), tt.status).
				Return().Once()

			result, err := decorator.Capture(ctx, change)

			assert.Equal(t, tt.err, err)
			assert.Equal(t, tt.result, result)
			m.AssertExpectations(t)
		})
	}
}

func TestDispatchUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_RecordsOutcomes", func(t *testing.T) {
		next := &mockDispatchUseCase{}
		m := &mockBusinessMetrics{}
		om := &mockOutboxMetrics{}
		decorator := NewDispatchUseCaseWithMetrics(next, m, om)

		next.On("Dispatch", ctx, 100).Return(&DispatchResult{Claimed: 6, Completed: 3, Retrying: 2, Terminal: 1}, nil).Once()
		m.On("RecordOperation", ctx, "outbox", "dispatch", "success").Return().Once()
		m.On("RecordDuration", ctx, "outbox", "dispatch", mock.AnythingOfType("time.Duration"), "success").Return().Once()
		om.On("RecordDeliveries", ctx, "completed", 3).Return().Once()
		om.On("RecordDeliveries", ctx, "retrying", 2).Return().Once()
		om.On("RecordDeliveries", ctx, "terminal", 1).Return().Once()

		result, err := decorator.Dispatch(ctx, 100)

		require.NoError(t, err)
		assert.Equal(t, 6, result.Claimed)
		m.AssertExpectations(t)
		om.AssertExpectations(t)
	})

	t.Run("Error_NoOutcomes", func(t *testing.T) {
		next := &mockDispatchUseCase{}
		m := &mockBusinessMetrics{}
		om := &mockOutboxMetrics{}
		decorator := NewDispatchUseCaseWithMetrics(next, m, om)
		claimErr := errors.New("deadlock")

		next.On("Dispatch", ctx, 100).Return(nil, claimErr).Once()
		m.On("RecordOperation", ctx, "outbox", "dispatch", "error").Return().Once()
		m.On("RecordDuration", ctx, "outbox", "dispatch", mock.AnythingOfType("time.Duration"), "error").Return().Once()

		_, err := decorator.Dispatch(ctx, 100)

		assert.ErrorIs(t, err, claimErr)
		om.AssertNotCalled(t, "RecordDeliveries", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSweepUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()
	next := &mockSweepUseCase{}
	m := &mockBusinessMetrics{}
	decorator := NewSweepUseCaseWithMetrics(next, m)

	next.On("Sweep", ctx, 500).Return(&domain.SweepResult{Requeued: 2}, nil).Once()
	m.On("RecordOperation", ctx, "outbox", "sweep", "success").Return().Once()
	m.On("RecordDuration", ctx, "outbox", "sweep", mock.AnythingOfType("time.Duration"), "success").Return().Once()

	result, err := decorator.Sweep(ctx, 500)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Requeued)
	m.AssertExpectations(t)
}

func TestStatusUseCaseWithMetrics_Report(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_UnfilteredPublishesAge", func(t *testing.T) {
		next := &mockStatusUseCase{}
		om := &mockOutboxMetrics{}
		decorator := NewStatusUseCaseWithMetrics(next, om)
		report := &StatusReport{
			Counts: []domain.StatusCount{
				{SourceTable: "listings", Status: domain.StatusPending, Count: 4},
				{SourceTable: "proposals", Status: domain.StatusFailed, Count: 1},
			},
			OldestPendingAge: 2 * time.Minute,
		}

		next.On("Report", ctx, domain.StatusFilter{}).Return(report, nil).Once()
		om.On("RecordEntries", ctx, "listings", "pending", int64(4)).Return().Once()
		om.On("RecordEntries", ctx, "proposals", "failed", int64(1)).Return().Once()
		om.On("RecordOldestPendingAge", ctx, 2*time.Minute).Return().Once()

		got, err := decorator.Report(ctx, domain.StatusFilter{})

		require.NoError(t, err)
		assert.Equal(t, report, got)
		om.AssertExpectations(t)
	})

	t.Run("Success_FilteredSkipsAge", func(t *testing.T) {
		next := &mockStatusUseCase{}
		om := &mockOutboxMetrics{}
		decorator := NewStatusUseCaseWithMetrics(next, om)
		filter := domain.StatusFilter{SourceTable: "listings"}

		next.On("Report", ctx, filter).Return(&StatusReport{}, nil).Once()

		_, err := decorator.Report(ctx, filter)

		require.NoError(t, err)
		om.AssertNotCalled(t, "RecordOldestPendingAge", mock.Anything, mock.Anything)
	})
}
