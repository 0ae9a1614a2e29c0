package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-backend/pkg/instance"
)

const defaultLockTTL = time.Hour

// ErrLeaseLost reports that another holder took the lock while a run was in flight.
var ErrLeaseLost = errors.New("cron lease lost")

// Locker hands out exclusive leases; a nil lease with a nil error means
// another worker currently holds the lock.
type Locker interface {
	TryAcquire(ctx context.Context) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	Extend(ctx context.Context) error
	Release(ctx context.Context) error
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
	ExpireIfValue(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// RedisLock leases a single redis key whose value names the holder.
type RedisLock struct {
	store leaseStore
	key   string
	ttl   time.Duration
}

func NewRedisLock(store leaseStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) TryAcquire(ctx context.Context) (Lease, error) {
	holder := instance.Holder() + ":" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, holder, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, nil
	}
	return &redisLease{lock: l, holder: holder}, nil
}

type redisLease struct {
	lock   *RedisLock
	holder string
}

func (r *redisLease) Extend(ctx context.Context) error {
	ok, err := r.lock.store.ExpireIfValue(ctx, r.lock.key, r.holder, r.lock.ttl)
	if err != nil {
		return fmt.Errorf("extend %s: %w", r.lock.key, err)
	}
	if !ok {
		return ErrLeaseLost
	}
	return nil
}

func (r *redisLease) Release(ctx context.Context) error {
	if _, err := r.lock.store.DeleteIfValue(ctx, r.lock.key, r.holder); err != nil {
		return fmt.Errorf("release %s: %w", r.lock.key, err)
	}
	return nil
}
