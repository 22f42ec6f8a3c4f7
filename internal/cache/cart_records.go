package cache

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/olynsn15/fruitopia-store/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	recordTTL    = 15 * time.Minute
	recordJitter = 5 * time.Minute
)

// CartRecordCache fronts the cart record store. Entries expire after
// recordTTL plus up to recordJitter so a burst of sign-ins does not expire
// together.
type CartRecordCache struct {
	client *redis.Client
	ttl    time.Duration
	jitter time.Duration
}

func NewCartRecordCache(client *redis.Client) *CartRecordCache {
	return &CartRecordCache{client: client, ttl: recordTTL, jitter: recordJitter}
}

func (c *CartRecordCache) Get(ctx context.Context, userID string) (*domain.CartRecord, error) {
	var record domain.CartRecord
	if err := getJSON(ctx, c.client, recordKey(userID), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *CartRecordCache) Set(ctx context.Context, userID string, record *domain.CartRecord) error {
	ttl := c.ttl
	if c.jitter > 0 {
		ttl += rand.N(c.jitter)
	}
	return setJSON(ctx, c.client, recordKey(userID), record, ttl)
}

func (c *CartRecordCache) Delete(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, recordKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", recordKey(userID), err)
	}
	return nil
}

func recordKey(userID string) string {
	return "cart:" + userID
}
