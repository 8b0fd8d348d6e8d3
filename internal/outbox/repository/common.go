package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/outbox/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// retryCandidate is a retryable failure selected by a sweep.
type retryCandidate struct {
	id        uuid.UUID
	key       string
	payload   domain.Payload
	createdAt time.Time
}

// mergeInto folds the candidate into the pending entry that shares its idempotency key.
func (c retryCandidate) mergeInto(pending retryCandidate) domain.Payload {
	if c.createdAt.After(pending.createdAt) {
		return domain.MergePayloads(pending.payload, c.payload)
	}
	return domain.MergePayloads(c.payload, pending.payload)
}

// requireTransition turns a conditional status update that matched no row into ErrInvalidTransition.
func requireTransition(result sql.Result, from, to domain.Status) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return fmt.Errorf("%w: entry is not %s (%s -> %s)", domain.ErrInvalidTransition, from, from, to)
	}
	return nil
}

func scanStatusCounts(rows *sql.Rows) ([]domain.StatusCount, error) {
	var counts []domain.StatusCount
	for rows.Next() {
		var count domain.StatusCount
		if err := rows.Scan(&count.SourceTable, &count.Status, &count.Count); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbox status count")
		}
		counts = append(counts, count)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate outbox status counts")
	}
	return counts, nil
}
