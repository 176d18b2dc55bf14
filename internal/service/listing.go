package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cordobacasas/casas/internal/domain"
)

// ListingService handles listing queries and admin state changes.
type ListingService struct {
	listings domain.ListingRepository
	cache    domain.ListingCache
	events   domain.EventPublisher
}

type ListingServiceOption func(*ListingService)

// WithListingCache serves public detail pages through cache.
func WithListingCache(cache domain.ListingCache) ListingServiceOption {
	return func(s *ListingService) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithEventPublisher announces listing changes through pub.
func WithEventPublisher(pub domain.EventPublisher) ListingServiceOption {
	return func(s *ListingService) {
		if pub != nil {
			s.events = pub
		}
	}
}

// NewListingService creates a new ListingService.
func NewListingService(listings domain.ListingRepository, opts ...ListingServiceOption) *ListingService {
	s := &ListingService{
		listings: listings,
		cache:    noCache{},
		events:   noEvents{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists a new listing. New listings are active unless a status
// is given.
func (s *ListingService) Create(ctx context.Context, l *domain.Listing) error {
	if l.Status == "" {
		l.Status = domain.StatusActive
	}
	if !l.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, l.Status)
	}
	if err := s.listings.Create(ctx, l); err != nil {
		return fmt.Errorf("create listing: %w", err)
	}
	s.publish(ctx, domain.ListingEvent{Type: domain.EventListingCreated, ListingID: l.ID, Status: l.Status})
	return nil
}

// Update overwrites the editable fields and images of an existing listing.
func (s *ListingService) Update(ctx context.Context, l *domain.Listing) error {
	if err := s.listings.Update(ctx, l); err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	s.invalidate(ctx, l.ID)
	s.publish(ctx, domain.ListingEvent{Type: domain.EventListingUpdated, ListingID: l.ID})
	return nil
}

// GetByID returns a listing regardless of its status.
func (s *ListingService) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	return s.listings.GetByID(ctx, id)
}

// GetPublished returns an active listing. Paused and deleted listings are
// reported as not found.
func (s *ListingService) GetPublished(ctx context.Context, id string) (*domain.Listing, error) {
	cached, err := s.cache.Get(ctx, id)
	if err != nil {
		slog.Warn("listing cache read failed", "listing_id", id, "error", err)
	}
	if cached != nil && cached.Status == domain.StatusActive {
		return cached, nil
	}

	l, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.Status != domain.StatusActive {
		return nil, domain.ErrNotFound
	}

	if err := s.cache.Set(ctx, l); err != nil {
		slog.Warn("listing cache write failed", "listing_id", id, "error", err)
	}
	return l, nil
}

// ListPublished returns active listings matching filter, newest first.
func (s *ListingService) ListPublished(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	filter.Status = domain.StatusActive
	return s.listings.List(ctx, filter)
}

// ListFeatured returns the active featured listings for the home page,
// narrowed in memory by filter.
func (s *ListingService) ListFeatured(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	featured, err := s.listings.List(ctx, domain.ListingFilter{Status: domain.StatusActive, FeaturedOnly: true})
	if err != nil {
		return nil, err
	}
	return FilterListings(featured, filter), nil
}

// ListAll returns every listing for the admin dashboard, newest first.
func (s *ListingService) ListAll(ctx context.Context) ([]domain.Listing, error) {
	return s.listings.List(ctx, domain.ListingFilter{})
}

// SetStatus changes a listing's status. Setting StatusDeleted is how
// listings are deleted.
func (s *ListingService) SetStatus(ctx context.Context, id string, status domain.ListingStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}
	if err := s.listings.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	s.invalidate(ctx, id)
	s.publish(ctx, domain.ListingEvent{Type: domain.EventListingStatusChanged, ListingID: id, Status: status})
	return nil
}

// ToggleFeatured flips the featured flag and returns the new value.
func (s *ListingService) ToggleFeatured(ctx context.Context, id string) (bool, error) {
	l, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	featured := !l.Featured
	if err := s.listings.SetFeatured(ctx, id, featured); err != nil {
		return false, fmt.Errorf("set featured: %w", err)
	}
	s.invalidate(ctx, id)
	s.publish(ctx, domain.ListingEvent{Type: domain.EventListingFeatured, ListingID: id, Featured: &featured})
	return featured, nil
}

func (s *ListingService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, id); err != nil {
		slog.Warn("listing cache invalidation failed", "listing_id", id, "error", err)
	}
}

// publish logs delivery failures instead of returning them.
func (s *ListingService) publish(ctx context.Context, ev domain.ListingEvent) {
	ev.At = time.Now().UTC()
	if err := s.events.Publish(ctx, ev); err != nil {
		slog.Warn("publish listing event", "type", ev.Type, "listing_id", ev.ListingID, "error", err)
	}
}

type noCache struct{}

func (noCache) Get(context.Context, string) (*domain.Listing, error) { return nil, nil }
func (noCache) Set(context.Context, *domain.Listing) error          { return nil }
func (noCache) Delete(context.Context, string) error                { return nil }

type noEvents struct{}

func (noEvents) Publish(context.Context, domain.ListingEvent) error { return nil }

