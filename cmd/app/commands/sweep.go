package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	outboxUseCase "github.com/allisson/marketsync/internal/outbox/usecase"
)

// RunSweep runs the retry sweeper once: stalled entries are recovered and retryable failures
// are returned to the queue, at most limit of each.
func RunSweep(
	ctx context.Context,
	sweepUseCase outboxUseCase.SweepUseCase,
	logger *slog.Logger,
	writer io.Writer,
	limit int,
	format string,
) error {
	if limit < 1 {
		return fmt.Errorf("limit must be a positive number, got: %d", limit)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("sweeping outbox entries", slog.Int("limit", limit))

	result, err := sweepUseCase.Sweep(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to sweep outbox entries: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"recovered":  result.Recovered,
			"requeued":   result.Requeued,
			"superseded": result.Superseded,
		})
	}

	_, err = fmt.Fprintf(writer,
		"Sweep finished: %d recovered, %d requeued, %d superseded\n",
		result.Recovered, result.Requeued, result.Superseded,
	)
	return err
}
