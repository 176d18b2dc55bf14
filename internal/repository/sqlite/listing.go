package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cordobacasas/casas/internal/domain"
)

const listingColumns = `id, title, description, price, address, property_type, operation, status,
	bedrooms, bathrooms, surface_area, primary_image, images, featured, created_at, updated_at`

// listingRepo implements domain.ListingRepository using SQLite. Image URLs
// are stored as a JSON array.
type listingRepo struct {
	db *sql.DB
}

func (r *listingRepo) Create(ctx context.Context, l *domain.Listing) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = domain.StatusActive
	}
	images, err := encodeImages(l.Images)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO listings (`+listingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Title, l.Description, l.Price, l.Address, l.Type, l.Operation, l.Status,
		l.Bedrooms, l.Bathrooms, l.SurfaceArea, l.PrimaryImage, images, l.Featured, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}

	l.CreatedAt = now
	l.UpdatedAt = now
	return nil
}

// Update overwrites the editable columns. Status and creation time are
// kept, and copied back into l.
func (r *listingRepo) Update(ctx context.Context, l *domain.Listing) error {
	images, err := encodeImages(l.Images)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE listings SET title = ?, description = ?, price = ?, address = ?, property_type = ?,
		 operation = ?, bedrooms = ?, bathrooms = ?, surface_area = ?, primary_image = ?, images = ?,
		 featured = ?, updated_at = ?
		 WHERE id = ?`,
		l.Title, l.Description, l.Price, l.Address, l.Type, l.Operation,
		l.Bedrooms, l.Bathrooms, l.SurfaceArea, l.PrimaryImage, images, l.Featured, now, l.ID,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	if err := tx.QueryRowContext(ctx,
		"SELECT status, created_at FROM listings WHERE id = ?", l.ID,
	).Scan(&l.Status, &l.CreatedAt); err != nil {
		return fmt.Errorf("reload listing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	l.UpdatedAt = now
	return nil
}

func (r *listingRepo) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+listingColumns+" FROM listings WHERE id = ?", id)
	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

func (r *listingRepo) List(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	var where []string
	var args []any
	if filter.Type != "" {
		where = append(where, "property_type = ?")
		args = append(args, filter.Type)
	}
	if filter.Operation != "" {
		where = append(where, "operation = ?")
		args = append(args, filter.Operation)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.MaxPrice > 0 {
		where = append(where, "price <= ?")
		args = append(args, filter.MaxPrice)
	}
	if filter.FeaturedOnly {
		where = append(where, "featured = 1")
	}

	query := "SELECT " + listingColumns + " FROM listings"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (r *listingRepo) UpdateStatus(ctx context.Context, id string, status domain.ListingStatus) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE listings SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update listing status: %w", err)
	}
	return requireRow(result)
}

func (r *listingRepo) SetFeatured(ctx context.Context, id string, featured bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE listings SET featured = ?, updated_at = ? WHERE id = ?",
		featured, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update listing featured: %w", err)
	}
	return requireRow(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*domain.Listing, error) {
	l := &domain.Listing{}
	var images string
	err := row.Scan(&l.ID, &l.Title, &l.Description, &l.Price, &l.Address, &l.Type, &l.Operation, &l.Status,
		&l.Bedrooms, &l.Bathrooms, &l.SurfaceArea, &l.PrimaryImage, &images, &l.Featured, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(images), &l.Images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	return l, nil
}

func encodeImages(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	b, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("encode images: %w", err)
	}
	return string(b), nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
