// Package s3 stores listing images in an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL overrides the URL images are served from, e.g. a CDN in
	// front of the bucket. Defaults to the endpoint followed by the bucket.
	PublicBaseURL string
	// PublicRead attaches an anonymous read policy to the bucket.
	PublicRead bool
}

// Store implements domain.ObjectStore on top of MinIO.
type Store struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// New connects to the bucket, creating it if needed.
func New(ctx context.Context, cfg Config) (*Store, error) {
	s, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.ensureBucket(ctx, cfg.PublicRead); err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client for %s: %w", cfg.Endpoint, err)
	}

	base := cfg.PublicBaseURL
	if base == "" {
		base = client.EndpointURL().String() + "/" + cfg.Bucket
	}
	return &Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(base, "/"),
	}, nil
}

func (s *Store) ensureBucket(ctx context.Context, publicRead bool) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
		slog.Info("bucket created", "bucket", s.bucket)
	}
	if publicRead {
		if err := s.client.SetBucketPolicy(ctx, s.bucket, readOnlyPolicy(s.bucket)); err != nil {
			return fmt.Errorf("set bucket policy: %w", err)
		}
	}
	return nil
}

func (s *Store) Upload(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *Store) PublicURL(key string) string {
	return s.baseURL + "/" + escapeKey(key)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

func readOnlyPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

// escapeKey path-escapes each segment of an object key.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
