package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/cordobacasas/casas/internal/domain"
)

// FileStore implements domain.ObjectStore and domain.FileReader using SQLite
// BLOBs. It backs image storage when no object storage bucket is configured.
type FileStore struct {
	db        *sql.DB
	urlPrefix string
}

func (s *FileStore) Upload(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_blobs (storage_key, content_type, data) VALUES (?, ?, ?)
		 ON CONFLICT (storage_key) DO UPDATE SET content_type = excluded.content_type, data = excluded.data`,
		key, contentType, data,
	)
	if err != nil {
		return fmt.Errorf("save file blob: %w", err)
	}
	return nil
}

func (s *FileStore) PublicURL(key string) string {
	return s.urlPrefix + escapeKey(key)
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	var data []byte
	var contentType string
	err := s.db.QueryRowContext(ctx,
		"SELECT data, content_type FROM file_blobs WHERE storage_key = ?", key,
	).Scan(&data, &contentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", fmt.Errorf("get file blob: %w", err)
	}
	return data, contentType, nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM file_blobs WHERE storage_key = ?", key,
	)
	if err != nil {
		return fmt.Errorf("delete file blob: %w", err)
	}
	return nil
}

// escapeKey path-escapes each segment of an object key.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
