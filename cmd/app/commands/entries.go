package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/outbox/domain"
	outboxUseCase "github.com/allisson/marketsync/internal/outbox/usecase"
)

// RunRequeueEntry returns a terminally failed entry to the delivery queue with a fresh
// attempt budget.
func RunRequeueEntry(
	ctx context.Context,
	operatorUseCase outboxUseCase.OperatorUseCase,
	logger *slog.Logger,
	writer io.Writer,
	entryID string,
	format string,
) error {
	id, err := parseEntryID(entryID, format)
	if err != nil {
		return err
	}

	entry, err := operatorUseCase.Requeue(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to requeue outbox entry: %w", err)
	}

	logger.Info("outbox entry requeued", slog.String("entry_id", entry.ID.String()))
	return writeEntry(writer, entry, "Requeued", format)
}

// RunSkipEntry marks a pending entry as skipped so it is never delivered.
func RunSkipEntry(
	ctx context.Context,
	operatorUseCase outboxUseCase.OperatorUseCase,
	logger *slog.Logger,
	writer io.Writer,
	entryID string,
	reason string,
	format string,
) error {
	id, err := parseEntryID(entryID, format)
	if err != nil {
		return err
	}

	entry, err := operatorUseCase.Skip(ctx, id, reason)
	if err != nil {
		return fmt.Errorf("failed to skip outbox entry: %w", err)
	}

	logger.Info("outbox entry skipped",
		slog.String("entry_id", entry.ID.String()),
		slog.String("reason", reason),
	)
	return writeEntry(writer, entry, "Skipped", format)
}

func parseEntryID(entryID, format string) (uuid.UUID, error) {
	if err := validateFormat(format); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(entryID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid entry id %q: %w", entryID, err)
	}
	return id, nil
}

func writeEntry(w io.Writer, entry *domain.OutboxEntry, verb, format string) error {
	if format == "json" {
		return writeJSON(w, map[string]any{
			"id":            entry.ID.String(),
			"source_table":  entry.SourceTable,
			"record_id":     entry.RecordID,
			"operation":     entry.Operation,
			"status":        entry.Status,
			"attempt_count": entry.AttemptCount,
			"max_attempts":  entry.MaxAttempts,
			"created_at":    entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	_, err := fmt.Fprintf(w, "%s entry %s (%s %s %s), status %s\n",
		verb, entry.ID, entry.SourceTable, entry.Operation, entry.RecordID, entry.Status)
	return err
}
