package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMockStore() *mockStore {
	return &mockStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *mockStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) AccessSessionKey(accessID string) string {
	return "sess:" + accessID
}

func newTestManager() (*Manager, *mockStore) {
	store := newMockStore()
	m := newManager(store, store, 24*time.Hour)
	m.now = func() time.Time { return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC) }
	return m, store
}

func TestGenerateStoresDigestNotToken(t *testing.T) {
	manager, store := newTestManager()
	userID := uuid.New()

	token, err := manager.Generate(context.Background(), "access-1", userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	raw := store.data["sess:access-1"]
	require.NotContains(t, raw, token)
	require.Equal(t, 24*time.Hour, store.ttls["sess:access-1"])

	var rec record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	require.Equal(t, userID, rec.UserID)
	require.Equal(t, digest(token), rec.Digest)
	require.Equal(t, manager.now().UTC(), rec.IssuedAt)
}

func TestRotateReplacesSession(t *testing.T) {
	manager, store := newTestManager()
	ctx := context.Background()
	userID := uuid.New()
	token, err := manager.Generate(ctx, "access-1", userID)
	require.NoError(t, err)

	_, _, err = manager.Rotate(ctx, "access-1", userID, "wrong")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	newAccessID, newToken, err := manager.Rotate(ctx, "access-1", userID, token)
	require.NoError(t, err)
	require.NotEqual(t, token, newToken)
	require.NotContains(t, store.data, "sess:access-1")
	require.Contains(t, store.data, "sess:"+newAccessID)

	_, _, err = manager.Rotate(ctx, "access-1", userID, token)
	require.ErrorIs(t, err, ErrInvalidRefreshToken, "a rotated token cannot be replayed")
}

func TestRotateRejectsOtherUser(t *testing.T) {
	manager, store := newTestManager()
	ctx := context.Background()
	token, err := manager.Generate(ctx, "access-1", uuid.New())
	require.NoError(t, err)

	_, _, err = manager.Rotate(ctx, "access-1", uuid.New(), token)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
	require.Contains(t, store.data, "sess:access-1")
}

func TestRotateUnknownOrCorruptSession(t *testing.T) {
	manager, store := newTestManager()
	ctx := context.Background()

	_, _, err := manager.Rotate(ctx, "missing", uuid.New(), "token")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	store.data["sess:legacy"] = "plain-refresh-token"
	_, _, err = manager.Rotate(ctx, "legacy", uuid.New(), "plain-refresh-token")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRevokeClearsSession(t *testing.T) {
	manager, _ := newTestManager()
	ctx := context.Background()
	_, err := manager.Generate(ctx, "access-1", uuid.New())
	require.NoError(t, err)

	ok, err := manager.HasSession(ctx, "access-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, manager.Revoke(ctx, "access-1"))
	ok, err = manager.HasSession(ctx, "access-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManagerRejectsBlankInput(t *testing.T) {
	manager, _ := newTestManager()
	ctx := context.Background()

	_, err := manager.Generate(ctx, " ", uuid.New())
	require.Error(t, err)
	_, err = manager.Generate(ctx, "access-1", uuid.Nil)
	require.Error(t, err)
	_, err = manager.HasSession(ctx, "")
	require.Error(t, err)
	require.Error(t, manager.Revoke(ctx, ""))
}
