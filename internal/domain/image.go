package domain

import "context"

// ImageAsset is a raw image as selected by the admin, before optimization.
type ImageAsset struct {
	Filename    string
	ContentType string
	Data        []byte
}

// OptimizedAsset is the re-encoded, size-bounded form of an ImageAsset.
type OptimizedAsset struct {
	Filename    string
	ContentType string // always "image/jpeg"
	Width       int
	Height      int
	Data        []byte
}

// StoredImage is an uploaded image. Key is empty for images loaded from a
// persisted listing, since rows only keep the public URL.
type StoredImage struct {
	URL string
	Key string
}

// ObjectStore is the binary asset store behind listing images.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}

// FileReader is implemented by object stores that serve their own bytes
// (the SQLite file store); remote stores hand out direct URLs instead.
type FileReader interface {
	Get(ctx context.Context, key string) (data []byte, contentType string, err error)
}
