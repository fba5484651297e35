package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out a cluster-wide lease so only one cron-worker replica sweeps per cycle.
type Locker interface {
	TryLock(ctx context.Context) (Lease, bool, error)
}

// Lease is a held lock. Unlock is a no-op once the lease has expired or moved to another owner.
type Lease interface {
	Unlock(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
}

// NewRedisLock builds a SET NX lock. The ttl must outlast a full sweep.
func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("cron lock: redis store required")
	case key == "":
		return nil, errors.New("cron lock: key required")
	case ttl <= 0:
		return nil, errors.New("cron lock: ttl must be positive")
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) TryLock(ctx context.Context) (Lease, bool, error) {
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("cron lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{lock: l, token: token}, true, nil
}

type redisLease struct {
	lock  *RedisLock
	token string
}

func (l *redisLease) Unlock(ctx context.Context) error {
	holder, err := l.lock.store.Get(ctx, l.lock.key)
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cron lock %s: read holder: %w", l.lock.key, err)
	}
	if holder != l.token {
		return nil
	}
	return l.lock.store.Del(ctx, l.lock.key)
}
