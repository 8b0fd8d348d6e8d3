package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/marketplace/domain"
	"github.com/allisson/marketsync/internal/metrics"
)

const metricsDomain = "marketplace"

// listingUseCaseWithMetrics decorates ListingUseCase with metrics instrumentation.
type listingUseCaseWithMetrics struct {
	next    ListingUseCase
	metrics metrics.BusinessMetrics
}

// NewListingUseCaseWithMetrics wraps a ListingUseCase with metrics recording.
func NewListingUseCaseWithMetrics(useCase ListingUseCase, m metrics.BusinessMetrics) ListingUseCase {
	return &listingUseCaseWithMetrics{next: useCase, metrics: m}
}

func (l *listingUseCaseWithMetrics) Create(ctx context.Context, input CreateListingInput) (*domain.Listing, error) {
	start := time.Now()
	listing, err := l.next.Create(ctx, input)
	record(ctx, l.metrics, "listing_create", start, err)
	return listing, err
}

func (l *listingUseCaseWithMetrics) Update(
	ctx context.Context,
	id uuid.UUID,
	input UpdateListingInput,
) (*domain.Listing, error) {
	start := time.Now()
	listing, err := l.next.Update(ctx, id, input)
	record(ctx, l.metrics, "listing_update", start, err)
	return listing, err
}

func (l *listingUseCaseWithMetrics) Delete(ctx context.Context, id uuid.UUID, origin string) error {
	start := time.Now()
	err := l.next.Delete(ctx, id, origin)
	record(ctx, l.metrics, "listing_delete", start, err)
	return err
}

func (l *listingUseCaseWithMetrics) Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	return l.next.Get(ctx, id)
}

// proposalUseCaseWithMetrics decorates ProposalUseCase with metrics instrumentation.
type proposalUseCaseWithMetrics struct {
	next    ProposalUseCase
	metrics metrics.BusinessMetrics
}

// NewProposalUseCaseWithMetrics wraps a ProposalUseCase with metrics recording.
func NewProposalUseCaseWithMetrics(useCase ProposalUseCase, m metrics.BusinessMetrics) ProposalUseCase {
	return &proposalUseCaseWithMetrics{next: useCase, metrics: m}
}

func (p *proposalUseCaseWithMetrics) Create(ctx context.Context, input CreateProposalInput) (*domain.Proposal, error) {
	start := time.Now()
	proposal, err := p.next.Create(ctx, input)
	record(ctx, p.metrics, "proposal_create", start, err)
	return proposal, err
}

func (p *proposalUseCaseWithMetrics) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.ProposalStatus,
	origin string,
) (*domain.Proposal, error) {
	start := time.Now()
	proposal, err := p.next.UpdateStatus(ctx, id, status, origin)
	record(ctx, p.metrics, "proposal_update_status", start, err)
	return proposal, err
}

func (p *proposalUseCaseWithMetrics) Get(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	return p.next.Get(ctx, id)
}

// favoriteUseCaseWithMetrics decorates FavoriteUseCase with metrics instrumentation.
type favoriteUseCaseWithMetrics struct {
	next    FavoriteUseCase
	metrics metrics.BusinessMetrics
}

// NewFavoriteUseCaseWithMetrics wraps a FavoriteUseCase with metrics recording.
func NewFavoriteUseCaseWithMetrics(useCase FavoriteUseCase, m metrics.BusinessMetrics) FavoriteUseCase {
	return &favoriteUseCaseWithMetrics{next: useCase, metrics: m}
}

func (f *favoriteUseCaseWithMetrics) Add(
	ctx context.Context,
	userID, listingID uuid.UUID,
	origin string,
) (*domain.Favorite, error) {
	start := time.Now()
	favorite, err := f.next.Add(ctx, userID, listingID, origin)
	record(ctx, f.metrics, "favorite_add", start, err)
	return favorite, err
}

func (f *favoriteUseCaseWithMetrics) Remove(ctx context.Context, userID, listingID uuid.UUID, origin string) error {
	start := time.Now()
	err := f.next.Remove(ctx, userID, listingID, origin)
	record(ctx, f.metrics, "favorite_remove", start, err)
	return err
}

func (f *favoriteUseCaseWithMetrics) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Favorite, error) {
	return f.next.ListByUser(ctx, userID)
}

func record(ctx context.Context, m metrics.BusinessMetrics, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RecordOperation(ctx, metricsDomain, operation, status)
	m.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}
