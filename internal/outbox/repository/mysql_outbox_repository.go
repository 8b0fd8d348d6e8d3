package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/database"
	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/outbox/domain"
)

const mysqlEntryColumns = `id, source_table, record_id, operation, payload, idempotency_key, status,
	attempt_count, max_attempts, next_retry_at, claimed_at, created_at, processed_at,
	remote_response, error_message, error_detail`

const mysqlOpenPriorCondition = `NOT EXISTS (
		SELECT 1 FROM outbox_entries prior
		WHERE prior.source_table = c.source_table
		  AND prior.record_id = c.record_id
		  AND prior.created_at < c.created_at
		  AND (prior.status IN ('pending', 'processing')
		       OR (prior.status = 'failed' AND prior.attempt_count < prior.max_attempts))
	)`

// MySQLOutboxRepository handles outbox entry persistence for MySQL.
//
// The pending-only uniqueness of idempotency keys is carried by the generated column pending_key,
// which is NULL for every status other than pending. MySQL deployments isolate capture privileges
// with a dedicated account instead of a session role.
type MySQLOutboxRepository struct {
	db *sql.DB
}

// NewMySQLOutboxRepository creates a new MySQLOutboxRepository.
func NewMySQLOutboxRepository(db *sql.DB) *MySQLOutboxRepository {
	return &MySQLOutboxRepository{
		db: db,
	}
}

// Upsert inserts a pending entry or merges it into the pending entry with the same idempotency key.
// A newer change without fields keeps the stored field snapshot, matching domain.MergePayloads.
func (r *MySQLOutboxRepository) Upsert(ctx context.Context, entry *domain.OutboxEntry) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	id, err := entry.ID.MarshalBinary()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal UUID")
	}

	// Assignments are applied left to right, so payload still refers to the stored row here.
	query := `INSERT INTO outbox_entries (id, source_table, record_id, operation, payload, idempotency_key,
			      status, attempt_count, max_attempts, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, 'pending', 0, ?, ?)
			  ON DUPLICATE KEY UPDATE
			      payload = JSON_SET(
			          CASE
			              WHEN JSON_CONTAINS_PATH(VALUES(payload), 'one', '$.fields')
			                  OR NOT JSON_CONTAINS_PATH(payload, 'one', '$.fields')
			              THEN VALUES(payload)
			              ELSE JSON_SET(VALUES(payload), '$.fields', JSON_EXTRACT(payload, '$.fields'))
			          END,
			          '$.list_changes',
			          JSON_MERGE_PRESERVE(
			              COALESCE(JSON_EXTRACT(payload, '$.list_changes'), JSON_ARRAY()),
			              COALESCE(JSON_EXTRACT(VALUES(payload), '$.list_changes'), JSON_ARRAY())
			          )
			      ),
			      created_at = VALUES(created_at)`

	result, err := querier.ExecContext(
		ctx,
		query,
		id,
		entry.SourceTable,
		entry.RecordID,
		entry.Operation,
		entry.Payload,
		entry.IdempotencyKey,
		entry.MaxAttempts,
		entry.CreatedAt,
	)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to upsert outbox entry")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read upserted outbox entry")
	}

	// MySQL reports 1 for an insert and 2 for an update of an existing row.
	switch affected {
	case 0:
		return false, domain.ErrCaptureNotPersisted
	case 1:
		entry.Status = domain.StatusPending
		return false, nil
	}

	var existing []byte
	err = querier.QueryRowContext(
		ctx,
		`SELECT id FROM outbox_entries WHERE pending_key = ?`,
		entry.IdempotencyKey,
	).Scan(&existing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, domain.ErrCaptureNotPersisted
		}
		return false, apperrors.Wrap(err, "failed to read merged outbox entry")
	}
	if err := entry.ID.UnmarshalBinary(existing); err != nil {
		return false, apperrors.Wrap(err, "failed to unmarshal UUID")
	}

	entry.Status = domain.StatusPending
	return true, nil
}

// ClaimPending locks up to limit eligible pending entries and moves them to processing.
// MySQL has no UPDATE ... RETURNING, so the caller must provide a transaction.
func (r *MySQLOutboxRepository) ClaimPending(
	ctx context.Context,
	limit int,
	now time.Time,
) ([]*domain.OutboxEntry, error) {
	if !database.InTx(ctx) {
		return nil, apperrors.Wrap(apperrors.ErrMisconfigured, "claiming outbox entries requires a transaction")
	}
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlEntryColumns + ` FROM outbox_entries c
			  WHERE c.status = 'pending'
			    AND (c.next_retry_at IS NULL OR c.next_retry_at <= ?)
			    AND ` + mysqlOpenPriorCondition + `
			  ORDER BY c.created_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to select pending outbox entries")
	}
	entries, err := scanMySQLEntries(rows)
	_ = rows.Close()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to scan pending outbox entries")
	}

	if len(entries) == 0 {
		return entries, nil
	}

	placeholders := make([]string, len(entries))
	args := make([]any, 0, len(entries)+1)
	args = append(args, now)
	for i, entry := range entries {
		id, err := entry.ID.MarshalBinary()
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to marshal UUID")
		}
		placeholders[i] = "?"
		args = append(args, id)
	}

	update := `UPDATE outbox_entries SET status = 'processing', claimed_at = ?
			   WHERE id IN (` + strings.Join(placeholders, ", ") + `)`
	if _, err := querier.ExecContext(ctx, update, args...); err != nil {
		return nil, apperrors.Wrap(err, "failed to claim pending outbox entries")
	}

	for _, entry := range entries {
		claimedAt := now
		entry.Status = domain.StatusProcessing
		entry.ClaimedAt = &claimedAt
	}

	return entries, nil
}

// MarkCompleted records a successful delivery. Only processing entries can complete.
func (r *MySQLOutboxRepository) MarkCompleted(
	ctx context.Context,
	id uuid.UUID,
	remoteResponse string,
	processedAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	query := `UPDATE outbox_entries
			  SET status = 'completed', remote_response = ?, processed_at = ?,
			      next_retry_at = NULL, claimed_at = NULL, error_message = NULL, error_detail = NULL
			  WHERE id = ? AND status = 'processing'`

	result, err := querier.ExecContext(ctx, query, remoteResponse, processedAt, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox entry completed")
	}

	return requireTransition(result, domain.StatusProcessing, domain.StatusCompleted)
}

// MarkFailed records a failed delivery attempt. Only processing entries can fail.
func (r *MySQLOutboxRepository) MarkFailed(
	ctx context.Context,
	id uuid.UUID,
	update domain.FailureUpdate,
) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	query := `UPDATE outbox_entries
			  SET status = 'failed', attempt_count = LEAST(?, max_attempts), next_retry_at = ?,
			      error_message = ?, error_detail = ?, processed_at = ?, claimed_at = NULL
			  WHERE id = ? AND status = 'processing'`

	result, err := querier.ExecContext(
		ctx,
		query,
		update.AttemptCount,
		update.NextRetryAt,
		update.ErrorMessage,
		update.ErrorDetail,
		update.ProcessedAt,
		idBytes,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox entry failed")
	}

	return requireTransition(result, domain.StatusProcessing, domain.StatusFailed)
}

// MarkSkipped withdraws a pending entry from delivery.
func (r *MySQLOutboxRepository) MarkSkipped(
	ctx context.Context,
	id uuid.UUID,
	reason string,
	processedAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	query := `UPDATE outbox_entries
			  SET status = 'skipped', error_message = ?, processed_at = ?, next_retry_at = NULL
			  WHERE id = ? AND status = 'pending'`

	result, err := querier.ExecContext(ctx, query, reason, processedAt, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox entry skipped")
	}

	return requireTransition(result, domain.StatusPending, domain.StatusSkipped)
}

// CountPending returns the number of pending entries eligible for delivery at now.
func (r *MySQLOutboxRepository) CountPending(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*) FROM outbox_entries
			  WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= ?)`

	var count int64
	if err := querier.QueryRowContext(ctx, query, now).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count pending outbox entries")
	}
	return count, nil
}

// CountRetryable returns the number of failed entries under the attempt ceiling whose retry time has come.
func (r *MySQLOutboxRepository) CountRetryable(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*) FROM outbox_entries
			  WHERE status = 'failed' AND attempt_count < max_attempts
			    AND (next_retry_at IS NULL OR next_retry_at <= ?)`

	var count int64
	if err := querier.QueryRowContext(ctx, query, now).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count retryable outbox entries")
	}
	return count, nil
}

// RequeueRetryable moves retryable failures back to pending. A failure whose idempotency key already
// has a pending entry is folded into that entry and skipped instead. Must run inside a transaction.
func (r *MySQLOutboxRepository) RequeueRetryable(
	ctx context.Context,
	now time.Time,
	limit int,
) (int, int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, idempotency_key, payload, created_at FROM outbox_entries
			  WHERE status = 'failed' AND attempt_count < max_attempts
			    AND (next_retry_at IS NULL OR next_retry_at <= ?)
			  ORDER BY created_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return 0, 0, apperrors.Wrap(err, "failed to select retryable outbox entries")
	}

	var candidates []retryCandidate
	for rows.Next() {
		var c retryCandidate
		var idBytes []byte
		if err := rows.Scan(&idBytes, &c.key, &c.payload, &c.createdAt); err != nil {
			_ = rows.Close()
			return 0, 0, apperrors.Wrap(err, "failed to scan retryable outbox entry")
		}
		if err := c.id.UnmarshalBinary(idBytes); err != nil {
			_ = rows.Close()
			return 0, 0, apperrors.Wrap(err, "failed to unmarshal UUID")
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
		candidateID, err := candidate.id.MarshalBinary()
		if err != nil {
			return requeued, superseded, apperrors.Wrap(err, "failed to marshal UUID")
		}

		var siblingID []byte
		var sibling retryCandidate
		err = querier.QueryRowContext(
			ctx,
			`SELECT id, payload, created_at FROM outbox_entries WHERE pending_key = ? FOR UPDATE`,
			candidate.key,
		).Scan(&siblingID, &sibling.payload, &sibling.createdAt)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := querier.ExecContext(
				ctx,
				`UPDATE outbox_entries SET status = 'pending', claimed_at = NULL WHERE id = ?`,
				candidateID,
			); err != nil {
				return requeued, superseded, apperrors.Wrap(err, "failed to requeue outbox entry")
			}
			requeued++
		case err != nil:
			return requeued, superseded, apperrors.Wrap(err, "failed to look up pending outbox entry")
		default:
			if _, err := querier.ExecContext(
				ctx,
				`UPDATE outbox_entries SET payload = ? WHERE id = ?`,
				candidate.mergeInto(sibling),
				siblingID,
			); err != nil {
				return requeued, superseded, apperrors.Wrap(err, "failed to merge superseded outbox entry")
			}
			if _, err := querier.ExecContext(
				ctx,
				`UPDATE outbox_entries
				 SET status = 'skipped', error_message = ?, processed_at = ?, next_retry_at = NULL
				 WHERE id = ?`,
				domain.SupersededMessage,
				now,
				candidateID,
			); err != nil {
				return requeued, superseded, apperrors.Wrap(err, "failed to skip superseded outbox entry")
			}
			superseded++
		}
	}

	return requeued, superseded, nil
}

// RecoverStuck fails entries whose processing lease started before claimedBefore.
func (r *MySQLOutboxRepository) RecoverStuck(
	ctx context.Context,
	claimedBefore time.Time,
	now time.Time,
	limit int,
) (int, error) {
	querier := database.GetTx(ctx, r.db)

	// MySQL evaluates SET assignments in order; attempt_count must be incremented last.
	query := `UPDATE outbox_entries
			  SET next_retry_at = IF(attempt_count + 1 >= max_attempts, NULL, ?),
			      error_message = ?,
			      processed_at = ?,
			      claimed_at = NULL,
			      status = 'failed',
			      attempt_count = LEAST(attempt_count + 1, max_attempts)
			  WHERE status = 'processing' AND claimed_at < ?
			  ORDER BY claimed_at ASC
			  LIMIT ?`

	result, err := querier.ExecContext(ctx, query, now, domain.ProcessingLeaseExpired, now, claimedBefore, limit)
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
func (r *MySQLOutboxRepository) Requeue(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	query := `UPDATE outbox_entries
			  SET status = 'pending', attempt_count = 0, next_retry_at = NULL, claimed_at = NULL,
			      processed_at = NULL, error_message = NULL, error_detail = NULL
			  WHERE id = ? AND status = 'failed' AND attempt_count >= max_attempts`

	result, err := querier.ExecContext(ctx, query, idBytes)
	if err != nil {
		if isMySQLUniqueViolation(err) {
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
func (r *MySQLOutboxRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal UUID")
	}

	query := `SELECT ` + mysqlEntryColumns + ` FROM outbox_entries WHERE id = ?`

	entry, err := scanMySQLEntry(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox entry")
	}
	return entry, nil
}

// ListFailed returns failed entries, most recently processed first.
func (r *MySQLOutboxRepository) ListFailed(
	ctx context.Context,
	filter domain.StatusFilter,
	offset, limit int,
) ([]*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	where, args := mysqlFilter(domain.StatusFilter{SourceTable: filter.SourceTable, Status: domain.StatusFailed})
	args = append(args, limit, offset)

	query := `SELECT ` + mysqlEntryColumns + ` FROM outbox_entries ` + where +
		` ORDER BY processed_at IS NULL, processed_at DESC, created_at DESC LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list failed outbox entries")
	}
	defer rows.Close() //nolint:errcheck

	entries, err := scanMySQLEntries(rows)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to scan failed outbox entries")
	}
	return entries, nil
}

// Stats counts entries grouped by source table and status.
func (r *MySQLOutboxRepository) Stats(
	ctx context.Context,
	filter domain.StatusFilter,
) ([]domain.StatusCount, error) {
	querier := database.GetTx(ctx, r.db)

	where, args := mysqlFilter(filter)
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
func (r *MySQLOutboxRepository) OldestPending(
	ctx context.Context,
	filter domain.StatusFilter,
) (*time.Time, error) {
	querier := database.GetTx(ctx, r.db)

	where, args := mysqlFilter(domain.StatusFilter{SourceTable: filter.SourceTable, Status: domain.StatusPending})
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

func mysqlFilter(filter domain.StatusFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.SourceTable != "" {
		conditions = append(conditions, "source_table = ?")
		args = append(args, filter.SourceTable)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func scanMySQLEntry(row rowScanner) (*domain.OutboxEntry, error) {
	var entry domain.OutboxEntry
	var idBytes []byte
	err := row.Scan(
		&idBytes,
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

	if err := entry.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal UUID")
	}
	return &entry, nil
}

func scanMySQLEntries(rows *sql.Rows) ([]*domain.OutboxEntry, error) {
	var entries []*domain.OutboxEntry
	for rows.Next() {
		entry, err := scanMySQLEntry(rows)
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

func isMySQLUniqueViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
