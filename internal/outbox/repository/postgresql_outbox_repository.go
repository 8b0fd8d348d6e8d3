// Package repository provides data persistence implementations for outbox entries.
//
// Both implementations resolve their querier through database.GetTx so every statement joins
// the transaction carried in the context. Capture writes therefore commit or roll back together
// with the marketplace write that produced them.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/marketsync/internal/database"
	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/outbox/domain"
)

const postgresEntryColumns = `id, source_table, record_id, operation, payload, idempotency_key, status,
	attempt_count, max_attempts, next_retry_at, claimed_at, created_at, processed_at,
	remote_response, error_message, error_detail`

// postgresOpenPriorCondition matches an older entry for the same record that has not finished yet.
// Claims skip records with such an entry so a record's changes reach the remote in order.
const postgresOpenPriorCondition = `NOT EXISTS (
		SELECT 1 FROM outbox_entries prior
		WHERE prior.source_table = c.source_table
		  AND prior.record_id = c.record_id
		  AND prior.created_at < c.created_at
		  AND (prior.status IN ('pending', 'processing')
		       OR (prior.status = 'failed' AND prior.attempt_count < prior.max_attempts))
	)`

// PostgreSQLOutboxRepository handles outbox entry persistence for PostgreSQL.
type PostgreSQLOutboxRepository struct {
	db         *sql.DB
	writerRole string
}

// NewPostgreSQLOutboxRepository creates a new PostgreSQLOutboxRepository. When writerRole is set,
// capture writes switch to that role for the duration of the upsert.
func NewPostgreSQLOutboxRepository(db *sql.DB, writerRole string) *PostgreSQLOutboxRepository {
	return &PostgreSQLOutboxRepository{
		db:         db,
		writerRole: writerRole,
	}
}

// Upsert inserts a pending entry or merges it into the pending entry with the same idempotency key.
// Merging replaces the scalar snapshot when the newer change carries one, appends list deltas and
// refreshes created_at, the same way domain.MergePayloads does. The attempt counter of an existing
// entry is never touched.
func (r *PostgreSQLOutboxRepository) Upsert(ctx context.Context, entry *domain.OutboxEntry) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	if r.writerRole != "" {
		if !database.InTx(ctx) {
			return false, apperrors.Wrap(apperrors.ErrMisconfigured, "outbox writer role requires a transaction")
		}
		if _, err := querier.ExecContext(ctx, "SET LOCAL ROLE "+pq.QuoteIdentifier(r.writerRole)); err != nil {
			return false, apperrors.Wrap(err, "failed to switch to outbox writer role")
		}
	}

	query := `INSERT INTO outbox_entries (id, source_table, record_id, operation, payload, idempotency_key,
			      status, attempt_count, max_attempts, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, 'pending', 0, $7, $8)
			  ON CONFLICT (idempotency_key) WHERE status = 'pending'
			  DO UPDATE SET
			      payload = (outbox_entries.payload - 'list_changes')
			          || EXCLUDED.payload
			          || jsonb_build_object(
			              'list_changes',
			              COALESCE(outbox_entries.payload->'list_changes', '[]'::jsonb)
			                  || COALESCE(EXCLUDED.payload->'list_changes', '[]'::jsonb)
			          ),
			      created_at = EXCLUDED.created_at
			  RETURNING id, (xmax <> 0)`

	var merged bool
	err := querier.QueryRowContext(
		ctx,
		query,
		entry.ID,
		entry.SourceTable,
		entry.RecordID,
		entry.Operation,
		entry.Payload,
		entry.IdempotencyKey,
		entry.MaxAttempts,
		entry.CreatedAt,
	).Scan(&entry.ID, &merged)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, domain.ErrCaptureNotPersisted
		}
		return false, apperrors.Wrap(err, "failed to upsert outbox entry")
	}

	if r.writerRole != "" {
		if _, err := querier.ExecContext(ctx, "RESET ROLE"); err != nil {
			return false, apperrors.Wrap(err, "failed to reset outbox writer role")
		}
	}

	entry.Status = domain.StatusPending
	return merged, nil
}

// ClaimPending moves up to limit eligible pending entries to processing in a single statement.
// SKIP LOCKED guarantees that concurrent claims never return the same entry.
func (r *PostgreSQLOutboxRepository) ClaimPending(
	ctx context.Context,
	limit int,
	now time.Time,
) ([]*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries
			  SET status = 'processing', claimed_at = $1
			  WHERE id IN (
			      SELECT c.id FROM outbox_entries c
			      WHERE c.status = 'pending'
			        AND (c.next_retry_at IS NULL OR c.next_retry_at <= $1)
			        AND ` + postgresOpenPriorCondition + `
			      ORDER BY c.created_at ASC
			      LIMIT $2
			      FOR UPDATE SKIP LOCKED
			  )
			  RETURNING ` + postgresEntryColumns

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to claim pending outbox entries")
	}
	defer rows.Close() //nolint:errcheck

	entries, err := scanPostgresEntries(rows)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to scan claimed outbox entries")
	}

	slices.SortFunc(entries, func(a, b *domain.OutboxEntry) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return entries, nil
}

// MarkCompleted records a successful delivery. Only processing entries can complete.
func (r *PostgreSQLOutboxRepository) MarkCompleted(
	ctx context.Context,
	id uuid.UUID,
	remoteResponse string,
	processedAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries
			  SET status = 'completed', remote_response = $2, processed_at = $3,
			      next_retry_at = NULL, claimed_at = NULL, error_message = NULL, error_detail = NULL
			  WHERE id = $1 AND status = 'processing'`

	result, err := querier.ExecContext(ctx, query, id, remoteResponse, processedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox entry completed")
	}

	return requireTransition(result, domain.StatusProcessing, domain.StatusCompleted)
}

// MarkFailed records a failed delivery attempt. Only processing entries can fail.
func (r *PostgreSQLOutboxRepository) MarkFailed(
	ctx context.Context,
	id uuid.UUID,
	update domain.FailureUpdate,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries
			  SET status = 'failed', attempt_count = LEAST($2, max_attempts), next_retry_at = $3,
			      error_message = $4, error_detail = $5, processed_at = $6, claimed_at = NULL
			  WHERE id = $1 AND status = 'processing'`

	result, err := querier.ExecContext(
		ctx,
		query,
		id,
		update.AttemptCount,
		update.NextRetryAt,
		update.ErrorMessage,
		update.ErrorDetail,
		update.ProcessedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox entry failed")
	}

	return requireTransition(result, domain.StatusProcessing, domain.StatusFailed)
}

// MarkSkipped withdraws a pending entry from delivery.
func (r *PostgreSQLOutboxRepository) MarkSkipped(
	ctx context.Context,
	id uuid.UUID,
	reason string,
	processedAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries
			  SET status = 'skipped', error_message = $2, processed_at = $3, next_retry_at = NULL
			  WHERE id = $1 AND status = 'pending'`

	result, err := querier.ExecContext(ctx, query, id, reason, processedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox entry skipped")
	}

	return requireTransition(result, domain.StatusPending, domain.StatusSkipped)
}

// CountPending returns the number of pending entries eligible for delivery at now.
func (r *PostgreSQLOutboxRepository) CountPending(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*) FROM outbox_entries
			  WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= $1)`

	var count int64
	if err := querier.QueryRowContext(ctx, query, now).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count pending outbox entries")
	}
	return count, nil
}

// CountRetryable returns the number of failed entries under the attempt ceiling whose retry time has come.
func (r *PostgreSQLOutboxRepository) CountRetryable(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*) FROM outbox_entries
			  WHERE status = 'failed' AND attempt_count < max_attempts
			    AND (next_retry_at IS NULL OR next_retry_at <= $1)`

	var count int64
	if err := querier.QueryRowContext(ctx, query, now).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count retryable outbox entries")
	}
	return count, nil
}

// RequeueRetryable moves retryable failures back to pending. A failure whose idempotency key already
// has a pending entry is folded into that entry and skipped instead. Must run inside a transaction.
func (r *PostgreSQLOutboxRepository) RequeueRetryable(
	ctx context.Context,
	now time.Time,
	limit int,
) (int, int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, idempotency_key, payload, created_at FROM outbox_entries
			  WHERE status = 'failed' AND attempt_count < max_attempts
			    AND (next_retry_at IS NULL OR next_retry_at <= $1)
			  ORDER BY created_at ASC
			  LIMIT $2
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return 0, 0, apperrors.Wrap(err, "failed to select retryable outbox entries")
	}
	var candidates []retryCandidate
	for rows.Next() {
		var c retryCandidate
		if err := rows.Scan(&c.id, &c.key, &c.payload, &c.createdAt); err != nil {
			_ = rows.Close()
			return 0, 0, apperrors.Wrap(err, "failed to scan retryable outbox entry")
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, 0, apperrors.Wrap(err, "failed to iterate retryable outbox entries")
	}
	_ = rows.Close()

	var requeued, superseded int
	for _, candidate := range candidates {
		var siblingID uuid.UUID
		var sibling retryCandidate
		err := querier.QueryRowContext(
			ctx,
			`SELECT id, payload, created_at FROM outbox_entries
			 WHERE idempotency_key = $1 AND status = 'pending'
			 FOR UPDATE`,
			candidate.key,
		).Scan(&siblingID, &sibling.payload, &sibling.createdAt)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := querier.ExecContext(
				ctx,
				`UPDATE outbox_entries SET status = 'pending', claimed_at = NULL WHERE id = $1`,
				candidate.id,
			); err != nil {
				return requeued, superseded, apperrors.Wrap(err, "failed to requeue outbox entry")
			}
			requeued++
		case err != nil:
			return requeued, superseded, apperrors.Wrap(err, "failed to look up pending outbox entry")
		default:
			if _, err := querier.ExecContext(
				ctx,
				`UPDATE outbox_entries SET payload = $2 WHERE id = $1`,
				siblingID,
				candidate.mergeInto(sibling),
			); err != nil {
				return requeued, superseded, apperrors.Wrap(err, "failed to merge superseded outbox entry")
			}
			if _, err := querier.ExecContext(
				ctx,
				`UPDATE outbox_entries
				 SET status = 'skipped', error_message = $2, processed_at = $3, next_retry_at = NULL
				 WHERE id = $1`,
				candidate.id,
				domain.SupersededMessage,
				now,
			); err != nil {
				return requeued, superseded, apperrors.Wrap(err, "failed to skip superseded outbox entry")
			}
			superseded++
		}
	}

	return requeued, superseded, nil
}

// RecoverStuck fails entries whose processing lease started before claimedBefore.
// The lost attempt is counted; entries that reach the ceiling become terminal.
func (r *PostgreSQLOutboxRepository) RecoverStuck(
	ctx context.Context,
	claimedBefore time.Time,
	now time.Time,
	limit int,
) (int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries
			  SET status = 'failed',
			      attempt_count = LEAST(attempt_count + 1, max_attempts),
			      next_retry_at = CASE WHEN attempt_count + 1 >= max_attempts THEN NULL ELSE $2 END,
			      error_message = $4,
			      processed_at = $2,
			      claimed_at = NULL
			  WHERE id IN (
			      SELECT id FROM outbox_entries
			      WHERE status = 'processing' AND claimed_at < $1
			      ORDER BY claimed_at ASC
			      LIMIT $3
			      FOR UPDATE SKIP LOCKED
			  )`

	result, err := querier.ExecContext(ctx, query, claimedBefore, now, limit, domain.ProcessingLeaseExpired)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to recover stuck outbox entries")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read recovered outbox entries")
	}
	return int(affected), nil
}

// Requeue returns a terminal failure to pending with a fresh attempt budget.
func (r *PostgreSQLOutboxRepository) Requeue(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries
			  SET status = 'pending', attempt_count = 0, next_retry_at = NULL, claimed_at = NULL,
			      processed_at = NULL, error_message = NULL, error_detail = NULL
			  WHERE id = $1 AND status = 'failed' AND attempt_count >= max_attempts`

	result, err := querier.ExecContext(ctx, query, id)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "a pending entry with the same idempotency key exists")
		}
		return apperrors.Wrap(err, "failed to requeue outbox entry")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read requeued outbox entry")
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrEntryNotRequeueable
	}
	return nil
}

// GetByID retrieves an outbox entry by its ID.
func (r *PostgreSQLOutboxRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresEntryColumns + ` FROM outbox_entries WHERE id = $1`

	entry, err := scanPostgresEntry(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox entry")
	}
	return entry, nil
}

// ListFailed returns failed entries, most recently processed first.
func (r *PostgreSQLOutboxRepository) ListFailed(
	ctx context.Context,
	filter domain.StatusFilter,
	offset, limit int,
) ([]*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	where, args := postgresFilter(domain.StatusFilter{SourceTable: filter.SourceTable, Status: domain.StatusFailed})
	args = append(args, limit, offset)

	query := fmt.Sprintf(
		`SELECT %s FROM outbox_entries %s ORDER BY processed_at DESC NULLS LAST, created_at DESC LIMIT $%d OFFSET $%d`,
		postgresEntryColumns, where, len(args)-1, len(args),
	)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list failed outbox entries")
	}
	defer rows.Close() //nolint:errcheck

	entries, err := scanPostgresEntries(rows)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to scan failed outbox entries")
	}
	return entries, nil
}

// Stats counts entries grouped by source table and status.
func (r *PostgreSQLOutboxRepository) Stats(
	ctx context.Context,
	filter domain.StatusFilter,
) ([]domain.StatusCount, error) {
	querier := database.GetTx(ctx, r.db)

	where, args := postgresFilter(filter)
	query := `SELECT source_table, status, COUNT(*) FROM outbox_entries ` + where +
		` GROUP BY source_table, status ORDER BY source_table, status`

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count outbox entries")
	}
	defer rows.Close() //nolint:errcheck

	return scanStatusCounts(rows)
}

// OldestPending returns the creation time of the oldest pending entry, or nil when none is pending.
func (r *PostgreSQLOutboxRepository) OldestPending(
	ctx context.Context,
	filter domain.StatusFilter,
) (*time.Time, error) {
	querier := database.GetTx(ctx, r.db)

	where, args := postgresFilter(domain.StatusFilter{SourceTable: filter.SourceTable, Status: domain.StatusPending})
	query := `SELECT MIN(created_at) FROM outbox_entries ` + where

	var oldest sql.NullTime
	if err := querier.QueryRowContext(ctx, query, args...).Scan(&oldest); err != nil {
		return nil, apperrors.Wrap(err, "failed to find oldest pending outbox entry")
	}
	if !oldest.Valid {
		return nil, nil
	}
	return &oldest.Time, nil
}

func postgresFilter(filter domain.StatusFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.SourceTable != "" {
		args = append(args, filter.SourceTable)
		conditions = append(conditions, fmt.Sprintf("source_table = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func scanPostgresEntry(row rowScanner) (*domain.OutboxEntry, error) {
	var entry domain.OutboxEntry
	err := row.Scan(
		&entry.ID,
		&entry.SourceTable,
		&entry.RecordID,
		&entry.Operation,
		&entry.Payload,
		&entry.IdempotencyKey,
		&entry.Status,
		&entry.AttemptCount,
		&entry.MaxAttempts,
		&entry.NextRetryAt,
		&entry.ClaimedAt,
		&entry.CreatedAt,
		&entry.ProcessedAt,
		&entry.RemoteResponse,
		&entry.ErrorMessage,
		&entry.ErrorDetail,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func scanPostgresEntries(rows *sql.Rows) ([]*domain.OutboxEntry, error) {
	var entries []*domain.OutboxEntry
	for rows.Next() {
		entry, err := scanPostgresEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func isPostgreSQLUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
