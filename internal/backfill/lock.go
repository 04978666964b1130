package backfill

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"callsync/pkg/utils"
)

// Locker is the cross-process single-run guard. The in-process mutex in
// Runner already prevents concurrent runs inside one process; a Locker
// extends that across replicas.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisLock implements Locker on the shared concurrency-cap scripts with
// a limit of one. The TTL bounds how long a crashed process can keep the
// slot; pick it above the longest expected run.
type RedisLock struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewRedisLock(rdb *redis.Client, key string, ttl time.Duration) *RedisLock {
	if key == "" {
		key = "backfill:lock"
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisLock{rdb: rdb, key: key, ttl: ttl}
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.rdb, l.key, 1, l.ttl)
}

func (l *RedisLock) Release(ctx context.Context) error {
	return utils.ReleaseConcurrencyCap(ctx, l.rdb, l.key)
}
