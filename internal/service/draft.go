package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cordobacasas/casas/internal/domain"
)

const (
	DefaultMaxImages      = 10
	defaultDraftTTL       = 2 * time.Hour
	defaultDraftCapacity  = 256
	expiredCleanupTimeout = 30 * time.Second
)

// SubmitObserver receives submit outcomes: "created", "updated",
// "invalid" or "failed".
type SubmitObserver interface {
	ObserveSubmit(result string)
}

type draftEntry struct {
	// batch serializes image uploads so each batch sees the image count
	// left by the previous one.
	batch sync.Mutex

	mu     sync.Mutex
	draft  *domain.ListingDraft
	closed atomic.Bool
}

// DraftService keeps listing drafts in memory while an admin edits them.
// Drafts idle for longer than the TTL are closed and their uploads removed.
type DraftService struct {
	uploads   *UploadPipeline
	listings  *ListingService
	drafts    *expirable.LRU[string, *draftEntry]
	maxImages int
	ttl       time.Duration
	capacity  int
	observer  SubmitObserver
}

type DraftServiceOption func(*DraftService)

// WithMaxImages caps the images a draft may hold, the primary included.
func WithMaxImages(n int) DraftServiceOption {
	return func(s *DraftService) {
		if n > 0 {
			s.maxImages = n
		}
	}
}

func WithDraftTTL(ttl time.Duration) DraftServiceOption {
	return func(s *DraftService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithDraftCapacity(n int) DraftServiceOption {
	return func(s *DraftService) {
		if n > 0 {
			s.capacity = n
		}
	}
}

func WithSubmitObserver(o SubmitObserver) DraftServiceOption {
	return func(s *DraftService) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewDraftService creates a new DraftService.
func NewDraftService(uploads *UploadPipeline, listings *ListingService, opts ...DraftServiceOption) *DraftService {
	s := &DraftService{
		uploads:   uploads,
		listings:  listings,
		maxImages: DefaultMaxImages,
		ttl:       defaultDraftTTL,
		capacity:  defaultDraftCapacity,
		observer:  nopSubmitObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.drafts = expirable.NewLRU(s.capacity, s.evicted, s.ttl)
	return s
}

// MaxImages returns the per-draft image cap.
func (s *DraftService) MaxImages() int {
	return s.maxImages
}

// Open starts a draft for a new listing.
func (s *DraftService) Open(ctx context.Context) (string, *domain.ListingDraft) {
	id := uuid.NewString()
	d := domain.NewDraft()
	s.drafts.Add(id, &draftEntry{draft: d})
	return id, d.Clone()
}

// OpenForEdit starts a draft holding an existing listing.
func (s *DraftService) OpenForEdit(ctx context.Context, listingID string) (string, *domain.ListingDraft, error) {
	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return "", nil, fmt.Errorf("get listing: %w", err)
	}
	id := uuid.NewString()
	d := domain.DraftFromListing(l)
	s.drafts.Add(id, &draftEntry{draft: d})
	return id, d.Clone(), nil
}

// Get returns a copy of the draft.
func (s *DraftService) Get(id string) (*domain.ListingDraft, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft.Clone(), nil
}

// UpdateFields replaces the draft's form fields. Images are untouched.
func (s *DraftService) UpdateFields(id string, fields domain.DraftFields) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return domain.ErrDraftClosed
	}
	e.draft.DraftFields = fields
	return nil
}

// AddImages uploads a batch of additional images and appends the ones that
// were stored. Batches for the same draft run one after another.
func (s *DraftService) AddImages(ctx context.Context, id string, assets []domain.ImageAsset) (*UploadReport, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	e.batch.Lock()
	defer e.batch.Unlock()

	e.mu.Lock()
	if e.closed.Load() {
		e.mu.Unlock()
		return nil, domain.ErrDraftClosed
	}
	existing := len(e.draft.Images())
	e.mu.Unlock()

	report, err := s.uploads.UploadAll(ctx, assets, UploadOptions{MaxCount: s.maxImages, ExistingCount: existing})
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		s.uploads.Delete(context.WithoutCancel(ctx), report.Stored...)
		return nil, domain.ErrDraftClosed
	}
	e.draft.AddImages(report.Stored...)
	return report, nil
}

// AddPrimaryImage uploads a single image and makes it the primary one. Any
// failure is returned, since a listing cannot be published without it.
func (s *DraftService) AddPrimaryImage(ctx context.Context, id string, asset domain.ImageAsset) (domain.StoredImage, error) {
	e, err := s.entry(id)
	if err != nil {
		return domain.StoredImage{}, err
	}

	e.batch.Lock()
	defer e.batch.Unlock()

	e.mu.Lock()
	if e.closed.Load() {
		e.mu.Unlock()
		return domain.StoredImage{}, domain.ErrDraftClosed
	}
	existing := len(e.draft.Images())
	e.mu.Unlock()
	if existing >= s.maxImages {
		return domain.StoredImage{}, fmt.Errorf("%w: a listing holds at most %d images", domain.ErrCapacityExceeded, s.maxImages)
	}

	img, err := s.uploads.UploadRequired(ctx, asset)
	if err != nil {
		return domain.StoredImage{}, fmt.Errorf("primary image: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		s.uploads.Delete(context.WithoutCancel(ctx), img)
		return domain.StoredImage{}, domain.ErrDraftClosed
	}
	e.draft.AddImages(img)
	e.draft.SetPrimary(img.URL)
	return img, nil
}

// SetPrimary marks an existing image as primary. An unknown URL leaves the
// draft unchanged.
func (s *DraftService) SetPrimary(id, url string) (*domain.ListingDraft, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return nil, domain.ErrDraftClosed
	}
	e.draft.SetPrimary(url)
	return e.draft.Clone(), nil
}

// RemoveImage drops an image from the draft. Objects uploaded while the
// draft was open are deleted from storage as well.
func (s *DraftService) RemoveImage(ctx context.Context, id, url string) (*domain.ListingDraft, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return nil, domain.ErrDraftClosed
	}
	if removed, ok := e.draft.RemoveImage(url); ok {
		s.uploads.Delete(ctx, removed)
	}
	return e.draft.Clone(), nil
}

// Submit validates the draft and persists it as a new or updated listing.
// On success the draft is closed. On failure it is left as it was.
func (s *DraftService) Submit(ctx context.Context, id string) (*domain.Listing, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	e.batch.Lock()
	defer e.batch.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return nil, domain.ErrDraftClosed
	}

	if err := e.draft.Validate(); err != nil {
		s.observer.ObserveSubmit("invalid")
		return nil, err
	}

	l := e.draft.ToListing()
	result := "created"
	if l.ID == "" {
		err = s.listings.Create(ctx, l)
	} else {
		result = "updated"
		err = s.listings.Update(ctx, l)
	}
	if err != nil {
		s.observer.ObserveSubmit("failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	e.closed.Store(true)
	s.drafts.Remove(id)
	s.observer.ObserveSubmit(result)
	return l, nil
}

// Discard closes the draft and deletes the images uploaded for it.
func (s *DraftService) Discard(ctx context.Context, id string) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed.CompareAndSwap(false, true) {
		return domain.ErrDraftClosed
	}
	s.drafts.Remove(id)
	s.uploads.Delete(ctx, e.draft.Uploaded()...)
	return nil
}

// entry looks up a live draft and renews its TTL.
func (s *DraftService) entry(id string) (*draftEntry, error) {
	e, ok := s.drafts.Get(id)
	if !ok || e.closed.Load() {
		return nil, fmt.Errorf("%w: draft %s", domain.ErrNotFound, id)
	}
	s.drafts.Add(id, e)
	return e, nil
}

// evicted runs under the cache lock. Drafts closed by Submit or Discard are
// already marked; anything else expired or was pushed out, so its uploads
// are cleaned up in the background.
func (s *DraftService) evicted(id string, e *draftEntry) {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	go func() {
		e.mu.Lock()
		uploaded := e.draft.Uploaded()
		e.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), expiredCleanupTimeout)
		defer cancel()
		slog.Info("draft expired", "draft_id", id, "uploads", len(uploaded))
		s.uploads.Delete(ctx, uploaded...)
	}()
}

type nopSubmitObserver struct{}

func (nopSubmitObserver) ObserveSubmit(string) {}
