package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"aspos-sync/pkg/uid"
)

// ErrBusy is returned by ProcessNext when another drain holds the lease.
var ErrBusy = errors.New("queue: drain already in progress")

// Lease is a single-flight lock with expiry. Acquire returns a token that
// must be passed to Release; ok is false when the lease is held elsewhere.
type Lease interface {
	Acquire(ctx context.Context, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, token string) error
}

// MemoryLease is an in-process lease for single-instance deployments.
type MemoryLease struct {
	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

// NewMemoryLease creates an unheld lease.
func NewMemoryLease() *MemoryLease {
	return &MemoryLease{now: time.Now}
}

// Acquire takes the lease if it is free or expired.
func (l *MemoryLease) Acquire(_ context.Context, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.token != "" && now.Before(l.expires) {
		return "", false, nil
	}
	l.token = uid.New()
	l.expires = now.Add(ttl)
	return l.token, true, nil
}

// Release frees the lease if token still owns it.
func (l *MemoryLease) Release(_ context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token == token {
		l.token = ""
	}
	return nil
}

// releaseIfOwnerScript deletes the lease key only while it still holds the
// caller's token, so an expired holder cannot free a newer lease.
var releaseIfOwnerScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// RedisLease is a lease shared by every instance using the same Redis.
type RedisLease struct {
	client *redis.Client
	key    string
}

// NewRedisLease creates a lease on the key keyPrefix+":queue:lease".
func NewRedisLease(client *redis.Client, keyPrefix string) *RedisLease {
	return &RedisLease{client: client, key: keyPrefix + ":queue:lease"}
}

// Acquire sets the lease key with NX and a millisecond expiry.
func (l *RedisLease) Acquire(ctx context.Context, ttl time.Duration) (string, bool, error) {
	token := uid.New()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release deletes the lease key if token still owns it.
func (l *RedisLease) Release(ctx context.Context, token string) error {
	if err := releaseIfOwnerScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

var (
	_ Lease = (*MemoryLease)(nil)
	_ Lease = (*RedisLease)(nil)
)
