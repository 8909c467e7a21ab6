package utils

import (
	"context" // Context for Redis operations
	"errors"  // Error values
	"time"    // Lock and reservation TTLs

	"github.com/google/uuid"       // Lock ownership tokens
	"github.com/redis/go-redis/v9" // Redis client
)

// ErrLockNotAcquired is returned when the lock is still held after the wait bound
var ErrLockNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a Redis-backed mutual exclusion lock shared by all replicas
type Locker struct {
	rdb   *redis.Client
	ttl   time.Duration
	retry time.Duration
}

// NewLocker creates a distributed lock helper
func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, ttl: ttl, retry: 25 * time.Millisecond}
}

// WithLock runs fn while holding key. It waits until ctx is done for the lock.
func (l *Locker) WithLock(ctx context.Context, key string, fn func() error) error {
	token := uuid.NewString() // Owner token so we never release someone else's lock
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(ErrLockNotAcquired, ctx.Err())
		case <-time.After(l.retry):
		}
	}
	// Release with a fresh context so a cancelled request still frees the lock
	defer releaseScript.Run(context.Background(), l.rdb, []string{key}, token)
	return fn()
}

// Reserver holds short-lived claims on values across replicas
type Reserver struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewReserver creates a reservation helper; keys are prefix+value
func NewReserver(rdb *redis.Client, prefix string, ttl time.Duration) *Reserver {
	return &Reserver{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Reserve returns true if value was free and is now held by the caller
func (r *Reserver) Reserve(ctx context.Context, value string) (bool, error) {
	return r.rdb.SetNX(ctx, r.prefix+value, "1", r.ttl).Result()
}

// Release drops a reservation
func (r *Reserver) Release(ctx context.Context, value string) error {
	return r.rdb.Del(ctx, r.prefix+value).Err()
}
