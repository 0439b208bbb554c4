package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 2 * time.Hour

// ErrLockLost is returned by Release when the lock expired while held and
// may have been taken by another worker.
var ErrLockLost = errors.New("cron lock lost before release")

// Lock makes a cron cycle exclusive across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) (bool, error)
	LockKey(name string) string
}

// RedisLock is a single-holder lease in redis. Each Acquire writes a fresh
// owner token; Release deletes the key only while that token is still there.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
	owner string
}

// NewRedisLock names the lease. A ttl <= 0 uses two hours, which bounds how
// long a crashed holder blocks the other replicas.
func NewRedisLock(store lockStore, name string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if name == "" {
		return nil, errors.New("lock name is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: store.LockKey(name), ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	if l.owner != "" {
		return false, fmt.Errorf("lock %s already held by this worker", l.key)
	}
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.owner = token
	}
	return ok, nil
}

// Release is a no-op when the lock is not held.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	released, err := l.store.ReleaseLock(ctx, l.key, l.owner)
	if err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	l.owner = ""
	if !released {
		return ErrLockLost
	}
	return nil
}
