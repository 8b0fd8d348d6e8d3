package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	outboxUseCase "github.com/allisson/marketsync/internal/outbox/usecase"
)

// RunDispatch runs the dispatcher once over at most batchSize pending entries and prints the
// outcome counts. Useful to drain the queue by hand when the worker is not running.
//
// Requirements: Database must be migrated and the remote system reachable.
func RunDispatch(
	ctx context.Context,
	dispatchUseCase outboxUseCase.DispatchUseCase,
	logger *slog.Logger,
	writer io.Writer,
	batchSize int,
	format string,
) error {
	if batchSize < 1 {
		return fmt.Errorf("batch size must be a positive number, got: %d", batchSize)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("dispatching outbox entries", slog.Int("batch_size", batchSize))

	result, err := dispatchUseCase.Dispatch(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("failed to dispatch outbox entries: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"claimed":   result.Claimed,
			"completed": result.Completed,
			"retrying":  result.Retrying,
			"terminal":  result.Terminal,
		})
	}

	_, err = fmt.Fprintf(writer,
		"Claimed %d entries: %d completed, %d retrying, %d failed terminally\n",
		result.Claimed, result.Completed, result.Retrying, result.Terminal,
	)
	return err
}
