package s3

import (
	"context"
	"os"
	"testing"

	"github.com/cordobacasas/casas/internal/domain"
)

var _ domain.ObjectStore = (*Store)(nil)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "endpoint and bucket",
			cfg:  Config{Endpoint: "localhost:9000", Bucket: "propiedades"},
			want: "http://localhost:9000/propiedades/listings/a_b.jpg",
		},
		{
			name: "tls endpoint",
			cfg:  Config{Endpoint: "s3.example.com", Bucket: "propiedades", UseSSL: true},
			want: "https://s3.example.com/propiedades/listings/a_b.jpg",
		},
		{
			name: "public base url",
			cfg:  Config{Endpoint: "localhost:9000", Bucket: "propiedades", PublicBaseURL: "https://cdn.example.com/"},
			want: "https://cdn.example.com/listings/a_b.jpg",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := newStore(tc.cfg)
			if err != nil {
				t.Fatalf("newStore: %v", err)
			}
			if got := s.PublicURL("listings/a_b.jpg"); got != tc.want {
				t.Fatalf("PublicURL = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPublicURL_EscapesKeySegments(t *testing.T) {
	s, err := newStore(Config{Endpoint: "localhost:9000", Bucket: "propiedades"})
	if err != nil {
		t.Fatalf("newStore: %v", err)
	}
	want := "http://localhost:9000/propiedades/listings/plano%20%232%3F.jpg"
	if got := s.PublicURL("listings/plano #2?.jpg"); got != want {
		t.Fatalf("PublicURL = %q, want %q", got, want)
	}
}

// TestStore_RoundTrip runs against a live MinIO when MINIO_TEST_ENDPOINT is set.
func TestStore_RoundTrip(t *testing.T) {
	endpoint := os.Getenv("MINIO_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_TEST_ENDPOINT not set")
	}
	ctx := context.Background()
	s, err := New(ctx, Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_TEST_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_TEST_SECRET_KEY"),
		Bucket:    "casas-test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	key := "listings/test_roundtrip.jpg"
	if err := s.Upload(ctx, key, "image/jpeg", []byte{0xff, 0xd8}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
