// Package usecase implements change capture, delivery, retry sweeping and status reporting
// for the outbox.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/outbox/domain"
	"github.com/allisson/marketsync/internal/outbox/service"
)

// OutboxRepository defines the persistence operations of the outbox store.
type OutboxRepository interface {
	Upsert(ctx context.Context, entry *domain.OutboxEntry) (bool, error)
	ClaimPending(ctx context.Context, limit int, now time.Time) ([]*domain.OutboxEntry, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, remoteResponse string, processedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, update domain.FailureUpdate) error
	MarkSkipped(ctx context.Context, id uuid.UUID, reason string, processedAt time.Time) error
	CountPending(ctx context.Context, now time.Time) (int64, error)
	CountRetryable(ctx context.Context, now time.Time) (int64, error)
	RequeueRetryable(ctx context.Context, now time.Time, limit int) (requeued int, superseded int, err error)
	RecoverStuck(ctx context.Context, claimedBefore, now time.Time, limit int) (int, error)
	Requeue(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error)
	ListFailed(ctx context.Context, filter domain.StatusFilter, offset, limit int) ([]*domain.OutboxEntry, error)
	Stats(ctx context.Context, filter domain.StatusFilter) ([]domain.StatusCount, error)
	OldestPending(ctx context.Context, filter domain.StatusFilter) (*time.Time, error)
}

// PolicyChecker reports whether captures of an operation on a table are mirrored.
type PolicyChecker interface {
	IsEnabled(ctx context.Context, sourceTable string, op domain.Operation) (bool, error)
}

// Transformer shapes an entry into a remote request.
type Transformer interface {
	Transform(ctx context.Context, entry *domain.OutboxEntry) (*service.RemoteRequest, error)
}

// RemoteSender delivers a request to the remote system.
type RemoteSender interface {
	Send(ctx context.Context, req *service.RemoteRequest, idempotencyKey string) (string, error)
}

// Change describes one domain write to capture.
type Change struct {
	SourceTable string
	RecordID    string
	Operation   domain.Operation
	// Row is the post-write row image; for DELETE it is the last known image.
	Row         map[string]any
	ListChanges []domain.ListChange
	Origin      string
	// Epoch separates logical changes that reuse a record id, such as a link that is removed
	// and added again. Empty means the operation's default epoch.
	Epoch string
}

// CaptureResult reports what a capture did.
type CaptureResult struct {
	EntryID        uuid.UUID
	IdempotencyKey string
	Merged         bool
	Skipped        bool
}

// DispatchResult counts the outcomes of one dispatch run.
type DispatchResult struct {
	Claimed   int
	Completed int
	Retrying  int
	Terminal  int
}

// StatusReport is an operational snapshot of the outbox.
type StatusReport struct {
	Counts           []domain.StatusCount
	Totals           map[domain.Status]int64
	OldestPendingAt  *time.Time
	OldestPendingAge time.Duration
	GeneratedAt      time.Time
}

// CaptureUseCase records domain writes as pending deliveries.
type CaptureUseCase interface {
	// Capture must run inside the transaction of the domain write it records.
	// Any returned error must roll that transaction back.
	Capture(ctx context.Context, change Change) (*CaptureResult, error)
}

// DispatchUseCase claims and delivers pending entries.
type DispatchUseCase interface {
	Dispatch(ctx context.Context, batchSize int) (*DispatchResult, error)
}

// SweepUseCase returns failed and stalled entries to the delivery queue.
type SweepUseCase interface {
	Sweep(ctx context.Context, limit int) (*domain.SweepResult, error)
}

// StatusUseCase exposes read-only views over the outbox.
type StatusUseCase interface {
	Report(ctx context.Context, filter domain.StatusFilter) (*StatusReport, error)
	ListFailed(ctx context.Context, filter domain.StatusFilter, offset, limit int) ([]*domain.OutboxEntry, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error)
}

// OperatorUseCase applies manual corrections to individual entries.
type OperatorUseCase interface {
	Requeue(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error)
	Skip(ctx context.Context, id uuid.UUID, reason string) (*domain.OutboxEntry, error)
}
