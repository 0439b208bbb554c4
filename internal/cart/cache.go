package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultCountTTL = 10 * time.Minute

type countStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartCountKey(cartID string) string
}

// RedisCountCache keeps badge counts in redis so the storefront header does
// not sum line items on every page view.
type RedisCountCache struct {
	store countStore
	ttl   time.Duration
}

// NewRedisCountCache builds a count cache on top of the shared redis client.
func NewRedisCountCache(store countStore, ttl time.Duration) (*RedisCountCache, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if ttl <= 0 {
		ttl = defaultCountTTL
	}
	return &RedisCountCache{store: store, ttl: ttl}, nil
}

func (c *RedisCountCache) Get(ctx context.Context, cartID uuid.UUID) (int, bool, error) {
	raw, err := c.store.Get(ctx, c.store.CartCountKey(cartID.String()))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("decode cached count: %w", err)
	}
	return count, true, nil
}

func (c *RedisCountCache) Set(ctx context.Context, cartID uuid.UUID, count int) error {
	return c.store.Set(ctx, c.store.CartCountKey(cartID.String()), count, c.ttl)
}

func (c *RedisCountCache) Invalidate(ctx context.Context, cartID uuid.UUID) error {
	return c.store.Del(ctx, c.store.CartCountKey(cartID.String()))
}
