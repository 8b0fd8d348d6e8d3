package usecase

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/marketsync/internal/metrics"
	"github.com/allisson/marketsync/internal/outbox/domain"
	"github.com/allisson/marketsync/internal/outbox/service"
)

// mockTxManager runs the function directly and records how it was invoked.
type mockTxManager struct {
	mock.Mock
}

func (m *mockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

func (m *mockTxManager) WithReadOnlyTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

// passthroughTxManager runs every function without a transaction.
type passthroughTxManager struct{}

func (passthroughTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passthroughTxManager) WithReadOnlyTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// mockOutboxRepository is a mock implementation of OutboxRepository for testing.
type mockOutboxRepository struct {
	mock.Mock
}

func (m *mockOutboxRepository) Upsert(ctx context.Context, entry *domain.OutboxEntry) (bool, error) {
	args := m.Called(ctx, entry)
	return args.Bool(0), args.Error(1)
}

func (m *mockOutboxRepository) ClaimPending(
	ctx context.Context,
	limit int,
	now time.Time,
) ([]*domain.OutboxEntry, error) {
	args := m.Called(ctx, limit, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxEntry), args.Error(1)
}

func (m *mockOutboxRepository) MarkCompleted(
	ctx context.Context,
	id uuid.UUID,
	remoteResponse string,
	processedAt time.Time,
) error {
	args := m.Called(ctx, id, remoteResponse, processedAt)
	return args.Error(0)
}

func (m *mockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, update domain.FailureUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *mockOutboxRepository) MarkSkipped(
	ctx context.Context,
	id uuid.UUID,
	reason string,
	processedAt time.Time,
) error {
	args := m.Called(ctx, id, reason, processedAt)
	return args.Error(0)
}

func (m *mockOutboxRepository) CountPending(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOutboxRepository) CountRetryable(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOutboxRepository) RequeueRetryable(ctx context.Context, now time.Time, limit int) (int, int, error) {
	args := m.Called(ctx, now, limit)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockOutboxRepository) RecoverStuck(
	ctx context.Context,
	claimedBefore, now time.Time,
	limit int,
) (int, error) {
	args := m.Called(ctx, claimedBefore, now, limit)
	return args.Int(0), args.Error(1)
}

func (m *mockOutboxRepository) Requeue(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOutboxRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEntry), args.Error(1)
}

func (m *mockOutboxRepository) ListFailed(
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

func (m *mockOutboxRepository) Stats(ctx context.Context, filter domain.StatusFilter) ([]domain.StatusCount, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StatusCount), args.Error(1)
}

func (m *mockOutboxRepository) OldestPending(ctx context.Context, filter domain.StatusFilter) (*time.Time, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

// mockPolicyChecker is a mock implementation of PolicyChecker for testing.
type mockPolicyChecker struct {
	mock.Mock
}

func (m *mockPolicyChecker) IsEnabled(ctx context.Context, sourceTable string, op domain.Operation) (bool, error) {
	args := m.Called(ctx, sourceTable, op)
	return args.Bool(0), args.Error(1)
}

// mockTransformer is a mock implementation of Transformer for testing.
type mockTransformer struct {
	mock.Mock
}

func (m *mockTransformer) Transform(ctx context.Context, entry *domain.OutboxEntry) (*service.RemoteRequest, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RemoteRequest), args.Error(1)
}

// mockRemoteSender is a mock implementation of RemoteSender for testing.
type mockRemoteSender struct {
	mock.Mock
}

func (m *mockRemoteSender) Send(ctx context.Context, req *service.RemoteRequest, idempotencyKey string) (string, error) {
	args := m.Called(ctx, req, idempotencyKey)
	return args.String(0), args.Error(1)
}

// mockDispatchUseCase is a mock implementation of DispatchUseCase for testing.
type mockDispatchUseCase struct {
	mock.Mock
}

func (m *mockDispatchUseCase) Dispatch(ctx context.Context, batchSize int) (*DispatchResult, error) {
	args := m.Called(ctx, batchSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DispatchResult), args.Error(1)
}

// mockSweepUseCase is a mock implementation of SweepUseCase for testing.
type mockSweepUseCase struct {
	mock.Mock
}

func (m *mockSweepUseCase) Sweep(ctx context.Context, limit int) (*domain.SweepResult, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SweepResult), args.Error(1)
}

// mockBusinessMetrics is a mock implementation of metrics.BusinessMetrics for testing.
type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

var _ metrics.BusinessMetrics = (*mockBusinessMetrics)(nil)

// mockOutboxMetrics is a mock implementation of metrics.OutboxMetrics for testing.
type mockOutboxMetrics struct {
	mock.Mock
}

func (m *mockOutboxMetrics) RecordDeliveries(ctx context.Context, outcome string, count int) {
	m.Called(ctx, outcome, count)
}

func (m *mockOutboxMetrics) RecordEntries(ctx context.Context, sourceTable, status string, count int64) {
	m.Called(ctx, sourceTable, status, count)
}

func (m *mockOutboxMetrics) RecordOldestPendingAge(ctx context.Context, age time.Duration) {
	m.Called(ctx, age)
}

var _ metrics.OutboxMetrics = (*mockOutboxMetrics)(nil)

// memoryOutboxRepository is an in-memory outbox store that enforces the entry state machine.
// It lets scenario tests drive the dispatcher and sweeper through several rounds.
type memoryOutboxRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*domain.OutboxEntry
}

func newMemoryOutboxRepository() *memoryOutboxRepository {
	return &memoryOutboxRepository{entries: make(map[uuid.UUID]*domain.OutboxEntry)}
}

func (r *memoryOutboxRepository) get(id uuid.UUID) domain.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.entries[id]
}

func (r *memoryOutboxRepository) Upsert(_ context.Context, entry *domain.OutboxEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.entries {
		if existing.Status == domain.StatusPending && existing.IdempotencyKey == entry.IdempotencyKey {
			existing.Payload = domain.MergePayloads(existing.Payload, entry.Payload)
			existing.CreatedAt = entry.CreatedAt
			entry.ID = existing.ID
			return true, nil
		}
	}

	stored := *entry
	r.entries[entry.ID] = &stored
	return false, nil
}

func (r *memoryOutboxRepository) ClaimPending(_ context.Context, limit int, now time.Time) ([]*domain.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var eligible []*domain.OutboxEntry
	for _, e := range r.entries {
		if e.Status == domain.StatusPending && (e.NextRetryAt == nil || !e.NextRetryAt.After(now)) {
			eligible = append(eligible, e)
		}
	}
	slices.SortFunc(eligible, func(a, b *domain.OutboxEntry) int { return a.CreatedAt.Compare(b.CreatedAt) })

	var claimed []*domain.OutboxEntry
	for _, e := range eligible[:min(limit, len(eligible))] {
		claimedAt := now
		e.Status = domain.StatusProcessing
		e.ClaimedAt = &claimedAt
		copied := *e
		claimed = append(claimed, &copied)
	}
	return claimed, nil
}

func (r *memoryOutboxRepository) transition(id uuid.UUID, from, to domain.Status) (*domain.OutboxEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	if e.Status != from {
		return nil, domain.ErrInvalidTransition
	}
	e.Status = to
	return e, nil
}

func (r *memoryOutboxRepository) MarkCompleted(_ context.Context, id uuid.UUID, response string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.transition(id, domain.StatusProcessing, domain.StatusCompleted)
	if err != nil {
		return err
	}
	e.RemoteResponse = &response
	e.ProcessedAt = &at
	e.NextRetryAt = nil
	return nil
}

func (r *memoryOutboxRepository) MarkFailed(_ context.Context, id uuid.UUID, update domain.FailureUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.transition(id, domain.StatusProcessing, domain.StatusFailed)
	if err != nil {
		return err
	}
	e.AttemptCount = update.AttemptCount
	e.NextRetryAt = update.NextRetryAt
	e.ErrorMessage = &update.ErrorMessage
	e.ErrorDetail = update.ErrorDetail
	e.ProcessedAt = &update.ProcessedAt
	return nil
}

func (r *memoryOutboxRepository) MarkSkipped(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.transition(id, domain.StatusPending, domain.StatusSkipped)
	if err != nil {
		return err
	}
	e.ErrorMessage = &reason
	e.ProcessedAt = &at
	return nil
}

func (r *memoryOutboxRepository) CountPending(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, e := range r.entries {
		if e.Status == domain.StatusPending && (e.NextRetryAt == nil || !e.NextRetryAt.After(now)) {
			n++
		}
	}
	return n, nil
}

func (r *memoryOutboxRepository) CountRetryable(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, e := range r.entries {
		if e.CanRetry(now) {
			n++
		}
	}
	return n, nil
}

func (r *memoryOutboxRepository) RequeueRetryable(_ context.Context, now time.Time, limit int) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	requeued := 0
	for _, e := range r.entries {
		if requeued == limit {
			break
		}
		if e.CanRetry(now) {
			e.Status = domain.StatusPending
			e.NextRetryAt = nil
			e.ClaimedAt = nil
			requeued++
		}
	}
	return requeued, 0, nil
}

func (r *memoryOutboxRepository) RecoverStuck(_ context.Context, claimedBefore, now time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recovered := 0
	for _, e := range r.entries {
		if recovered == limit {
			break
		}
		if e.Status == domain.StatusProcessing && e.ClaimedAt != nil && e.ClaimedAt.Before(claimedBefore) {
			message := domain.ProcessingLeaseExpired
			e.Status = domain.StatusFailed
			e.AttemptCount = min(e.AttemptCount+1, e.MaxAttempts)
			e.ErrorMessage = &message
			e.NextRetryAt = nil
			if e.AttemptCount < e.MaxAttempts {
				next := now
				e.NextRetryAt = &next
			}
			recovered++
		}
	}
	return recovered, nil
}

func (r *memoryOutboxRepository) Requeue(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return domain.ErrEntryNotFound
	}
	if e.Status != domain.StatusFailed || e.AttemptCount < e.MaxAttempts {
		return domain.ErrEntryNotRequeueable
	}
	e.Status = domain.StatusPending
	e.AttemptCount = 0
	e.NextRetryAt = nil
	return nil
}

func (r *memoryOutboxRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *memoryOutboxRepository) ListFailed(
	_ context.Context,
	filter domain.StatusFilter,
	offset, limit int,
) ([]*domain.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failed []*domain.OutboxEntry
	for _, e := range r.entries {
		if e.Status == domain.StatusFailed && (filter.SourceTable == "" || e.SourceTable == filter.SourceTable) {
			copied := *e
			failed = append(failed, &copied)
		}
	}
	if offset >= len(failed) {
		return nil, nil
	}
	return failed[offset:min(offset+limit, len(failed))], nil
}

func (r *memoryOutboxRepository) Stats(_ context.Context, filter domain.StatusFilter) ([]domain.StatusCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type bucket struct {
		table  string
		status domain.Status
	}
	counts := make(map[bucket]int64)
	for _, e := range r.entries {
		if filter.SourceTable != "" && e.SourceTable != filter.SourceTable {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		counts[bucket{e.SourceTable, e.Status}]++
	}

	var result []domain.StatusCount
	for b, n := range counts {
		result = append(result, domain.StatusCount{SourceTable: b.table, Status: b.status, Count: n})
	}
	return result, nil
}

func (r *memoryOutboxRepository) OldestPending(_ context.Context, filter domain.StatusFilter) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var oldest *time.Time
	for _, e := range r.entries {
		if e.Status != domain.StatusPending || (filter.SourceTable != "" && e.SourceTable != filter.SourceTable) {
			continue
		}
		if oldest == nil || e.CreatedAt.Before(*oldest) {
			created := e.CreatedAt
			oldest = &created
		}
	}
	return oldest, nil
}

var _ OutboxRepository = (*memoryOutboxRepository)(nil)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
