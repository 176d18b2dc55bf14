package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cordobacasas/casas/internal/domain"
)

const (
	defaultUploadConcurrency = 3
	storageKeyPrefix         = "listings/"
)

// ImageEncoder converts a raw upload into a storable JPEG.
type ImageEncoder interface {
	Encode(asset domain.ImageAsset) (*domain.OptimizedAsset, error)
}

// UploadObserver receives per-asset outcomes. Result is one of "stored",
// "decode_error", "encode_error", "upload_error" or "canceled".
type UploadObserver interface {
	ObserveAsset(result string, elapsed time.Duration)
	ObserveDropped(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveAsset(string, time.Duration) {}
func (nopObserver) ObserveDropped(int)                 {}

// UploadOptions bounds a batch. MaxCount <= 0 disables the cap.
type UploadOptions struct {
	MaxCount      int
	ExistingCount int
}

// UploadFailure describes an asset that could not be stored. Err wraps
// domain.ErrDecode, domain.ErrEncode or domain.ErrUpload.
type UploadFailure struct {
	Index    int
	Filename string
	Err      error
}

// UploadReport is the outcome of a batch. Stored follows input order.
type UploadReport struct {
	Stored   []domain.StoredImage
	Failures []UploadFailure
	Dropped  int
}

// CapacityExceeded reports whether assets were dropped to honour the cap.
func (r *UploadReport) CapacityExceeded() bool {
	return r.Dropped > 0
}

// UploadPipeline encodes assets and writes them to an object store.
type UploadPipeline struct {
	codec       ImageEncoder
	store       domain.ObjectStore
	concurrency int
	observer    UploadObserver
}

type UploadPipelineOption func(*UploadPipeline)

// WithConcurrency sets how many assets are processed at once.
func WithConcurrency(n int) UploadPipelineOption {
	return func(p *UploadPipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithObserver(o UploadObserver) UploadPipelineOption {
	return func(p *UploadPipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// NewUploadPipeline creates a new UploadPipeline.
func NewUploadPipeline(codec ImageEncoder, store domain.ObjectStore, opts ...UploadPipelineOption) *UploadPipeline {
	p := &UploadPipeline{
		codec:       codec,
		store:       store,
		concurrency: defaultUploadConcurrency,
		observer:    nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type uploadResult struct {
	key string
	err error
}

// UploadAll stores as many assets as the cap admits. Assets past the cap are
// dropped and counted; assets that fail are reported and skipped. The only
// error returned is the context's, in which case nothing is kept.
func (p *UploadPipeline) UploadAll(ctx context.Context, assets []domain.ImageAsset, opts UploadOptions) (*UploadReport, error) {
	report := &UploadReport{}

	admitted := assets
	if opts.MaxCount > 0 {
		room := max(0, opts.MaxCount-opts.ExistingCount)
		if len(assets) > room {
			admitted = assets[:room]
			report.Dropped = len(assets) - room
			p.observer.ObserveDropped(report.Dropped)
		}
	}

	results := make([]uploadResult, len(admitted))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, asset := range admitted {
		g.Go(func() error {
			start := time.Now()
			key, err := p.process(ctx, asset)
			results[i] = uploadResult{key: key, err: err}
			p.observer.ObserveAsset(outcome(err), time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		p.discard(ctx, results)
		return report, fmt.Errorf("upload batch: %w", err)
	}

	for i, res := range results {
		if res.err != nil {
			slog.Warn("image skipped", "filename", admitted[i].Filename, "error", res.err)
			report.Failures = append(report.Failures, UploadFailure{
				Index:    i,
				Filename: admitted[i].Filename,
				Err:      res.err,
			})
			continue
		}
		report.Stored = append(report.Stored, domain.StoredImage{
			URL: p.store.PublicURL(res.key),
			Key: res.key,
		})
	}
	return report, nil
}

// UploadRequired stores a single asset that the caller cannot do without.
// Any failure is returned as an error.
func (p *UploadPipeline) UploadRequired(ctx context.Context, asset domain.ImageAsset) (domain.StoredImage, error) {
	report, err := p.UploadAll(ctx, []domain.ImageAsset{asset}, UploadOptions{})
	if err != nil {
		return domain.StoredImage{}, err
	}
	if len(report.Failures) > 0 {
		return domain.StoredImage{}, report.Failures[0].Err
	}
	return report.Stored[0], nil
}

// Delete removes previously stored images, best effort.
func (p *UploadPipeline) Delete(ctx context.Context, images ...domain.StoredImage) {
	for _, img := range images {
		if img.Key == "" {
			continue
		}
		if err := p.store.Delete(ctx, img.Key); err != nil {
			slog.Warn("delete stored image", "key", img.Key, "error", err)
		}
	}
}

func (p *UploadPipeline) process(ctx context.Context, asset domain.ImageAsset) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	optimized, err := p.codec.Encode(asset)
	if err != nil {
		return "", err
	}

	key := storageKey(optimized.Filename)
	if err := p.store.Upload(ctx, key, optimized.ContentType, optimized.Data); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %s: %w", domain.ErrUpload, asset.Filename, err)
	}
	return key, nil
}

func (p *UploadPipeline) discard(ctx context.Context, results []uploadResult) {
	cleanup := context.WithoutCancel(ctx)
	for _, res := range results {
		if res.err == nil && res.key != "" {
			if err := p.store.Delete(cleanup, res.key); err != nil {
				slog.Warn("delete orphaned upload", "key", res.key, "error", err)
			}
		}
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "stored"
	case errors.Is(err, domain.ErrDecode):
		return "decode_error"
	case errors.Is(err, domain.ErrEncode):
		return "encode_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "upload_error"
	}
}

// storageKey builds a collision-resistant object key that keeps the
// original file name readable.
func storageKey(filename string) string {
	return storageKeyPrefix + uuid.NewString() + "_" + sanitizeFilename(filename)
}

// sanitizeFilename keeps ASCII letters, digits, '.', '-' and '_'. Each run
// of other characters becomes a single '_', so keys never need escaping in
// a URL.
func sanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	replaced := false
	for _, r := range name {
		if isKeyRune(r) {
			b.WriteRune(r)
			replaced = false
			continue
		}
		if !replaced {
			b.WriteByte('_')
			replaced = true
		}
	}
	if strings.Trim(b.String(), "_.") == "" {
		return "image.jpg"
	}
	return b.String()
}

func isKeyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '-', r == '_':
		return true
	}
	return false
}
