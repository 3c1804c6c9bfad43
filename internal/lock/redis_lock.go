package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLock implements DistributedLock using Redis SET NX with expiration.
type RedisLock struct {
	client *redis.Client
	key    string
	value  string // unique identifier for this lock holder
	ttl    time.Duration

	mu   sync.RWMutex
	held bool
}

// NewRedisLock creates a Redis-backed lock. The value identifies this holder
// so another instance can never release or extend a lock it does not own; when
// empty, a timestamp-based value is generated.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration, value string) *RedisLock {
	if value == "" {
		value = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return &RedisLock{
		client: client,
		key:    key,
		value:  value,
		ttl:    ttl,
	}
}

// Acquire attempts to acquire the lock atomically.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, err
	}

	if acquired {
		l.mu.Lock()
		l.held = true
		l.mu.Unlock()
	}

	return acquired, nil
}

// releaseScript deletes the key only when the value matches, so a lock that
// expired and was taken over is never deleted by the old holder.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// Release releases the lock if held by this instance.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return nil
	}

	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Int64()
	if err != nil {
		return err
	}
	if result == 1 {
		l.held = false
	}

	return nil
}

// extendScript refreshes the TTL only when the value matches.
var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	end
	return 0
`)

// Extend refreshes the lock's TTL if held by this instance.
func (l *RedisLock) Extend(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return ErrLockNotHeld
	}

	result, err := extendScript.Run(ctx, l.client, []string{l.key}, l.value, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		l.held = false
		return ErrLockNotHeld
	}

	return nil
}

// IsHeld reports whether this instance currently holds the lock.
func (l *RedisLock) IsHeld() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.held
}

// Ensure RedisLock implements DistributedLock
var _ DistributedLock = (*RedisLock)(nil)
