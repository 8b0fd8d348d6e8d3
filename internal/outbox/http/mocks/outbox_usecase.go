// Package mocks provides mock implementations for testing HTTP handlers.
package mocks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/marketsync/internal/outbox/domain"
	"github.com/allisson/marketsync/internal/outbox/usecase"
)

// MockStatusUseCase is a mock implementation of StatusUseCase for testing.
type MockStatusUseCase struct {
	mock.Mock
}

// NewMockStatusUseCase creates a MockStatusUseCase that asserts its expectations on cleanup.
func NewMockStatusUseCase(t *testing.T) *MockStatusUseCase {
	m := &MockStatusUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Report mocks the Report method of StatusUseCase.
func (m *MockStatusUseCase) Report(ctx context.Context, filter domain.StatusFilter) (*usecase.StatusReport, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.StatusReport), args.Error(1)
}

// ListFailed mocks the ListFailed method of StatusUseCase.
func (m *MockStatusUseCase) ListFailed(
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

// Get mocks the Get method of StatusUseCase.
func (m *MockStatusUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEntry), args.Error(1)
}

// MockDispatchUseCase is a mock implementation of DispatchUseCase for testing.
type MockDispatchUseCase struct {
	mock.Mock
}

// NewMockDispatchUseCase creates a MockDispatchUseCase that asserts its expectations on cleanup.
func NewMockDispatchUseCase(t *testing.T) *MockDispatchUseCase {
	m := &MockDispatchUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Dispatch mocks the Dispatch method of DispatchUseCase.
func (m *MockDispatchUseCase) Dispatch(ctx context.Context, batchSize int) (*usecase.DispatchResult, error) {
	args := m.Called(ctx, batchSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.DispatchResult), args.Error(1)
}

// MockSweepUseCase is a mock implementation of SweepUseCase for testing.
type MockSweepUseCase struct {
	mock.Mock
}

// NewMockSweepUseCase creates a MockSweepUseCase that asserts its expectations on cleanup.
func NewMockSweepUseCase(t *testing.T) *MockSweepUseCase {
	m := &MockSweepUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Sweep mocks the Sweep method of SweepUseCase.
func (m *MockSweepUseCase) Sweep(ctx context.Context, limit int) (*domain.SweepResult, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SweepResult), args.Error(1)
}

// MockOperatorUseCase is a mock implementation of OperatorUseCase for testing.
type MockOperatorUseCase struct {
	mock.Mock
}

// NewMockOperatorUseCase creates a MockOperatorUseCase that asserts its expectations on cleanup.
func NewMockOperatorUseCase(t *testing.T) *MockOperatorUseCase {
	m := &MockOperatorUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Requeue mocks the Requeue method of OperatorUseCase.
func (m *MockOperatorUseCase) Requeue(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEntry), args.Error(1)
}

// Skip mocks the Skip method of OperatorUseCase.
func (m *MockOperatorUseCase) Skip(ctx context.Context, id uuid.UUID, reason string) (*domain.OutboxEntry, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEntry), args.Error(1)
}
