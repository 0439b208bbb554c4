package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/shopfront-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "test-scope", 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Fatalf("expected allowed on first request")
	}
	if count != 1 {
		t.Fatalf("expected counter 1 got %d", count)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expected expire for first increment")
	}

	allowed, count, err = client.FixedWindowAllow(ctx, "test-scope", 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 2 {
		t.Fatalf("unexpected second call state allowed=%v count=%d", allowed, count)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expire should not be set again")
	}

	allowed, _, err = client.FixedWindowAllow(ctx, "test-scope", 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected limit reached")
	}
}

func TestIncrWithTTLSurfacesScriptFailure(t *testing.T) {
	mock := newMockCmdable()
	mock.evalErr = errors.New("NOSCRIPT")
	client := &Client{store: mock}

	if _, err := client.IncrWithTTL(context.Background(), "k", time.Minute); err == nil {
		t.Fatalf("expected eval error")
	}
}

func TestIncrWithTTLPassesWindowInMillis(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{store: mock}

	if _, err := client.IncrWithTTL(context.Background(), "k", 90*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.expireCalls) != 1 || mock.expireCalls[0].ttl != 90*time.Second {
		t.Fatalf("unexpected expire calls %+v", mock.expireCalls)
	}
}

func TestReleaseLockChecksOwner(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.LockKey("cron-worker")
	mock.data[key] = "owner-a"

	released, err := client.ReleaseLock(ctx, key, "owner-b")
	if err != nil || released {
		t.Fatalf("non-owner release: released=%v err=%v", released, err)
	}
	if _, ok := mock.data[key]; !ok {
		t.Fatalf("lock removed by non-owner")
	}

	released, err = client.ReleaseLock(ctx, key, "owner-a")
	if err != nil || !released {
		t.Fatalf("owner release: released=%v err=%v", released, err)
	}
	if _, ok := mock.data[key]; ok {
		t.Fatalf("lock still present after owner release")
	}
}

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	key := client.CartCountKey("cart-1")
	if err := client.Set(ctx, key, 3, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	val, err := client.Get(ctx, key)
	if err != nil || val != "3" {
		t.Fatalf("unexpected get %q err=%v", val, err)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected error from zero client")
	}
	if _, err := client.IncrWithTTL(context.Background(), "k", time.Second); err == nil {
		t.Fatalf("expected error from zero client incr")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on zero client should be a no-op, got %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("unexpected options db=%d pool=%d", opts.DB, opts.PoolSize)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("cart-add", "abc"): "sf:idempotency:cart-add:abc",
		client.RateLimitKey("login:ip:1.2.3.4"):  "sf:rate_limit:login:ip:1.2.3.4",
		client.AccessSessionKey("jti"):           "sf:session:access:jti",
		client.CartCountKey("c1"):                "sf:cart:c1:count",
		client.LockKey("cron"):                   "sf:lock:cron",
		client.IdempotencyKey("scope", ""):       "sf:idempotency:scope",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %s got %s", want, got)
		}
	}
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	expireCalls []expireCall
	evalErr     error
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// Eval emulates the two scripts the client ships.
func (m *mockCmdable) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if m.evalErr != nil {
		return redis.NewCmdResult(nil, m.evalErr)
	}
	key := keys[0]
	switch script {
	case incrScript:
		m.incr[key]++
		if ms := args[0].(int64); m.incr[key] == 1 && ms > 0 {
			m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: time.Duration(ms) * time.Millisecond})
		}
		return redis.NewCmdResult(m.incr[key], nil)
	case releaseScript:
		if v, ok := m.data[key]; ok && v == args[0] {
			delete(m.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
}
