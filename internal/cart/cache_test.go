package cart

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeCountStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeCountStore() *fakeCountStore {
	return &fakeCountStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCountStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeCountStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCountStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeCountStore) CartCountKey(cartID string) string {
	return "cart:" + cartID + ":count"
}

func TestRedisCountCacheRoundTrip(t *testing.T) {
	store := newFakeCountStore()
	cache, err := NewRedisCountCache(store, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()
	cartID := uuid.New()

	_, ok, err := cache.Get(ctx, cartID)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Set(ctx, cartID, 7))
	require.Equal(t, time.Minute, store.ttls[store.CartCountKey(cartID.String())])

	count, ok, err := cache.Get(ctx, cartID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7, count)

	require.NoError(t, cache.Invalidate(ctx, cartID))
	_, ok, err = cache.Get(ctx, cartID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCountCacheRejectsCorruptValue(t *testing.T) {
	store := newFakeCountStore()
	cache, err := NewRedisCountCache(store, 0)
	require.NoError(t, err)
	cartID := uuid.New()
	store.data[store.CartCountKey(cartID.String())] = "many"

	_, _, err = cache.Get(context.Background(), cartID)
	require.Error(t, err)
}

func TestNewRedisCountCacheRequiresStore(t *testing.T) {
	_, err := NewRedisCountCache(nil, time.Minute)
	require.Error(t, err)
}
