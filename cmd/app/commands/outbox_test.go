package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/marketsync/internal/outbox/domain"
	"github.com/allisson/marketsync/internal/outbox/http/mocks"
	outboxUseCase "github.com/allisson/marketsync/internal/outbox/usecase"
)

func TestRunDispatch(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	result := &outboxUseCase.DispatchResult{Claimed: 10, Completed: 7, Retrying: 2, Terminal: 1}

	t.Run("text-output", func(t *testing.T) {
		mockUseCase := mocks.NewMockDispatchUseCase(t)
		mockUseCase.On("Dispatch", ctx, 50).Return(result, nil)

		var out bytes.Buffer
		err := RunDispatch(ctx, mockUseCase, logger, &out, 50, "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Claimed 10 entries: 7 completed, 2 retrying, 1 failed terminally")
	})

	t.Run("json-output", func(t *testing.T) {
		mockUseCase := mocks.NewMockDispatchUseCase(t)
		mockUseCase.On("Dispatch", ctx, 50).Return(result, nil)

		var out bytes.Buffer
		err := RunDispatch(ctx, mockUseCase, logger, &out, 50, "json")

		require.NoError(t, err)
		assert.Contains(t, out.String(), `"claimed": 10`)
		assert.Contains(t, out.String(), `"terminal": 1`)
	})

	t.Run("invalid-batch-size", func(t *testing.T) {
		mockUseCase := mocks.NewMockDispatchUseCase(t)

		err := RunDispatch(ctx, mockUseCase, logger, &bytes.Buffer{}, 0, "text")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch size must be a positive number")
	})

	t.Run("invalid-format", func(t *testing.T) {
		mockUseCase := mocks.NewMockDispatchUseCase(t)

		err := RunDispatch(ctx, mockUseCase, logger, &bytes.Buffer{}, 10, "yaml")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid format")
	})

	t.Run("use-case-error", func(t *testing.T) {
		mockUseCase := mocks.NewMockDispatchUseCase(t)
		mockUseCase.On("Dispatch", ctx, 50).Return(nil, errors.New("connection refused"))

		err := RunDispatch(ctx, mockUseCase, logger, &bytes.Buffer{}, 50, "text")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to dispatch outbox entries")
	})
}

func TestRunSweep(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	t.Run("text-output", func(t *testing.T) {
		mockUseCase := mocks.NewMockSweepUseCase(t)
		mockUseCase.On("Sweep", ctx, 500).Return(&domain.SweepResult{Recovered: 1, Requeued: 4, Superseded: 2}, nil)

		var out bytes.Buffer
		err := RunSweep(ctx, mockUseCase, logger, &out, 500, "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "1 recovered, 4 requeued, 2 superseded")
	})

	t.Run("json-output", func(t *testing.T) {
		mockUseCase := mocks.NewMockSweepUseCase(t)
		mockUseCase.On("Sweep", ctx, 500).Return(&domain.SweepResult{Requeued: 3}, nil)

		var out bytes.Buffer
		err := RunSweep(ctx, mockUseCase, logger, &out, 500, "json")

		require.NoError(t, err)
		assert.Contains(t, out.String(), `"requeued": 3`)
	})

	t.Run("invalid-limit", func(t *testing.T) {
		mockUseCase := mocks.NewMockSweepUseCase(t)

		err := RunSweep(ctx, mockUseCase, logger, &bytes.Buffer{}, -1, "text")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "limit must be a positive number")
	})
}

func TestRunStatus(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	generatedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	oldest := generatedAt.Add(-90 * time.Second)
	report := &outboxUseCase.StatusReport{
		Counts: []domain.StatusCount{
			{SourceTable: "listings", Status: domain.StatusPending, Count: 4},
			{SourceTable: "listings", Status: domain.StatusFailed, Count: 1},
		},
		Totals:           map[domain.Status]int64{domain.StatusPending: 4, domain.StatusFailed: 1},
		OldestPendingAt:  &oldest,
		OldestPendingAge: 90 * time.Second,
		GeneratedAt:      generatedAt,
	}

	t.Run("text-output", func(t *testing.T) {
		mockUseCase := mocks.NewMockStatusUseCase(t)
		mockUseCase.On("Report", ctx, domain.StatusFilter{SourceTable: "listings"}).Return(report, nil)

		var out bytes.Buffer
		err := RunStatus(ctx, mockUseCase, logger, &out, "listings", "", "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Outbox status at 2026-05-01T12:00:00Z")
		assert.Contains(t, out.String(), "listings")
		assert.Contains(t, out.String(), "Oldest pending entry: 2026-05-01T11:58:30Z (1m30s ago)")
	})

	t.Run("json-output", func(t *testing.T) {
		mockUseCase := mocks.NewMockStatusUseCase(t)
		mockUseCase.On("Report", ctx, domain.StatusFilter{Status: domain.StatusFailed}).Return(report, nil)

		var out bytes.Buffer
		err := RunStatus(ctx, mockUseCase, logger, &out, "", "failed", "json")

		require.NoError(t, err)
		assert.Contains(t, out.String(), `"oldest_pending_age_seconds": 90`)
		assert.Contains(t, out.String(), `"failed": 1`)
	})

	t.Run("empty-report", func(t *testing.T) {
		mockUseCase := mocks.NewMockStatusUseCase(t)
		mockUseCase.On("Report", ctx, mock.Anything).
			Return(&outboxUseCase.StatusReport{GeneratedAt: generatedAt}, nil)

		var out bytes.Buffer
		err := RunStatus(ctx, mockUseCase, logger, &out, "", "", "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "No outbox entries")
	})

	t.Run("invalid-status", func(t *testing.T) {
		mockUseCase := mocks.NewMockStatusUseCase(t)

		err := RunStatus(ctx, mockUseCase, logger, &bytes.Buffer{}, "", "lost", "text")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid status")
	})
}

func TestRunRequeueEntry(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	id := uuid.Must(uuid.NewV7())

	t.Run("success", func(t *testing.T) {
		mockUseCase := mocks.NewMockOperatorUseCase(t)
		mockUseCase.On("Requeue", ctx, id).Return(&domain.OutboxEntry{
			ID:          id,
			SourceTable: "proposals",
			RecordID:    "p-1",
			Operation:   domain.OperationUpdate,
			Status:      domain.StatusPending,
		}, nil)

		var out bytes.Buffer
		err := RunRequeueEntry(ctx, mockUseCase, logger, &out, id.String(), "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Requeued entry "+id.String())
		assert.Contains(t, out.String(), "status pending")
	})

	t.Run("invalid-id", func(t *testing.T) {
		mockUseCase := mocks.NewMockOperatorUseCase(t)

		err := RunRequeueEntry(ctx, mockUseCase, logger, &bytes.Buffer{}, "not-a-uuid", "text")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid entry id")
	})

	t.Run("not-terminal", func(t *testing.T) {
		mockUseCase := mocks.NewMockOperatorUseCase(t)
		mockUseCase.On("Requeue", ctx, id).Return(nil, domain.ErrInvalidTransition)

		err := RunRequeueEntry(ctx, mockUseCase, logger, &bytes.Buffer{}, id.String(), "text")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestRunSkipEntry(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	id := uuid.Must(uuid.NewV7())

	mockUseCase := mocks.NewMockOperatorUseCase(t)
	mockUseCase.On("Skip", ctx, id, "listing removed remotely").Return(&domain.OutboxEntry{
		ID:          id,
		SourceTable: "listings",
		RecordID:    "l-1",
		Operation:   domain.OperationDelete,
		Status:      domain.StatusSkipped,
	}, nil)

	var out bytes.Buffer
	err := RunSkipEntry(ctx, mockUseCase, logger, &out, id.String(), "listing removed remotely", "json")

	require.NoError(t, err)
	assert.Contains(t, out.String(), `"status": "skipped"`)
}
