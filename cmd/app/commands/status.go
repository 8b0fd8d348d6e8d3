package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/allisson/marketsync/internal/outbox/domain"
	outboxUseCase "github.com/allisson/marketsync/internal/outbox/usecase"
)

// RunStatus prints the outbox status report: per table and status counts, totals and the age
// of the oldest pending entry.
func RunStatus(
	ctx context.Context,
	statusUseCase outboxUseCase.StatusUseCase,
	logger *slog.Logger,
	writer io.Writer,
	sourceTable string,
	status string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	filter := domain.StatusFilter{SourceTable: sourceTable, Status: domain.Status(status)}
	if filter.Status != "" && !filter.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", status)
	}

	logger.Debug("building outbox status report",
		slog.String("source_table", sourceTable),
		slog.String("status", status),
	)

	report, err := statusUseCase.Report(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to build outbox status report: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, statusJSON(report))
	}
	return writeStatusText(writer, report)
}

func statusJSON(report *outboxUseCase.StatusReport) map[string]any {
	counts := make([]map[string]any, 0, len(report.Counts))
	for _, c := range report.Counts {
		counts = append(counts, map[string]any{
			"source_table": c.SourceTable,
			"status":       c.Status,
			"count":        c.Count,
		})
	}

	totals := make(map[string]int64, len(report.Totals))
	for status, count := range report.Totals {
		totals[string(status)] = count
	}

	result := map[string]any{
		"counts":                     counts,
		"totals":                     totals,
		"oldest_pending_age_seconds": int64(report.OldestPendingAge / time.Second),
		"generated_at":               report.GeneratedAt.UTC().Format(time.RFC3339),
	}
	if report.OldestPendingAt != nil {
		result["oldest_pending_at"] = report.OldestPendingAt.UTC().Format(time.RFC3339)
	}
	return result
}

func writeStatusText(w io.Writer, report *outboxUseCase.StatusReport) error {
	if _, err := fmt.Fprintf(w, "Outbox status at %s\n", report.GeneratedAt.UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	if len(report.Counts) == 0 {
		if _, err := fmt.Fprintln(w, "No outbox entries"); err != nil {
			return err
		}
	}
	for _, c := range report.Counts {
		if _, err := fmt.Fprintf(w, "  %-24s %-12s %d\n", c.SourceTable, c.Status, c.Count); err != nil {
			return err
		}
	}

	if report.OldestPendingAt != nil {
		_, err := fmt.Fprintf(w, "Oldest pending entry: %s (%s ago)\n",
			report.OldestPendingAt.UTC().Format(time.RFC3339),
			report.OldestPendingAge.Truncate(time.Second),
		)
		return err
	}
	return nil
}
