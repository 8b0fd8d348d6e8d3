// Package mocks provides mock implementations for testing marketplace HTTP handlers.
package mocks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/marketsync/internal/marketplace/domain"
	"github.com/allisson/marketsync/internal/marketplace/usecase"
)

// MockListingUseCase is a mock implementation of ListingUseCase for testing.
type MockListingUseCase struct {
	mock.Mock
}

// NewMockListingUseCase creates a MockListingUseCase that asserts its expectations on cleanup.
func NewMockListingUseCase(t *testing.T) *MockListingUseCase {
	m := &MockListingUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create mocks the Create method of ListingUseCase.
func (m *MockListingUseCase) Create(ctx context.Context, input usecase.CreateListingInput) (*domain.Listing, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

// Update mocks the Update method of ListingUseCase.
func (m *MockListingUseCase) Update(
	ctx context.Context,
	id uuid.UUID,
	input usecase.UpdateListingInput,
) (*domain.Listing, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

// Delete mocks the Delete method of ListingUseCase.
func (m *MockListingUseCase) Delete(ctx context.Context, id uuid.UUID, origin string) error {
	args := m.Called(ctx, id, origin)
	return args.Error(0)
}

// Get mocks the Get method of ListingUseCase.
func (m *MockListingUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

// MockProposalUseCase is a mock implementation of ProposalUseCase for testing.
type MockProposalUseCase struct {
	mock.Mock
}

// NewMockProposalUseCase creates a MockProposalUseCase that asserts its expectations on cleanup.
func NewMockProposalUseCase(t *testing.T) *MockProposalUseCase {
	m := &MockProposalUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create mocks the Create method of ProposalUseCase.
func (m *MockProposalUseCase) Create(ctx context.Context, input usecase.CreateProposalInput) (*domain.Proposal, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Proposal), args.Error(1)
}

// UpdateStatus mocks the UpdateStatus method of ProposalUseCase.
func (m *MockProposalUseCase) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.ProposalStatus,
	origin string,
) (*domain.Proposal, error) {
	args := m.Called(ctx, id, status, origin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Proposal), args.Error(1)
}

// Get mocks the Get method of ProposalUseCase.
func (m *MockProposalUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Proposal), args.Error(1)
}

// MockFavoriteUseCase is a mock implementation of FavoriteUseCase for testing.
type MockFavoriteUseCase struct {
	mock.Mock
}

// NewMockFavoriteUseCase creates a MockFavoriteUseCase that asserts its expectations on cleanup.
func NewMockFavoriteUseCase(t *testing.T) *MockFavoriteUseCase {
	m := &MockFavoriteUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Add mocks the Add method of FavoriteUseCase.
func (m *MockFavoriteUseCase) Add(
	ctx context.Context,
	userID, listingID uuid.UUID,
	origin string,
) (*domain.Favorite, error) {
	args := m.Called(ctx, userID, listingID, origin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Favorite), args.Error(1)
}

// Remove mocks the Remove method of FavoriteUseCase.
func (m *MockFavoriteUseCase) Remove(ctx context.Context, userID, listingID uuid.UUID, origin string) error {
	args := m.Called(ctx, userID, listingID, origin)
	return args.Error(0)
}

// ListByUser mocks the ListByUser method of FavoriteUseCase.
func (m *MockFavoriteUseCase) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Favorite, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Favorite), args.Error(1)
}
