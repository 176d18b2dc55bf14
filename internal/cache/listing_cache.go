// Package cache keeps public listing pages in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cordobacasas/casas/internal/domain"
)

const (
	keyPrefix  = "listing:"
	defaultTTL = 10 * time.Minute
)

// ListingCache implements domain.ListingCache with Redis.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListingCache connects to Redis at addr.
func NewListingCache(ctx context.Context, addr string, ttl time.Duration) (*ListingCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ListingCache{client: client, ttl: ttl}, nil
}

func (c *ListingCache) Get(ctx context.Context, id string) (*domain.Listing, error) {
	data, err := c.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached listing: %w", err)
	}
	var l domain.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode cached listing: %w", err)
	}
	return &l, nil
}

func (c *ListingCache) Set(ctx context.Context, l *domain.Listing) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode listing: %w", err)
	}
	return c.client.Set(ctx, keyPrefix+l.ID, data, c.ttl).Err()
}

func (c *ListingCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, keyPrefix+id).Err()
}

func (c *ListingCache) Close() error {
	return c.client.Close()
}
