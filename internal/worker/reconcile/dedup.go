package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "reminder:sent:"

// Dedup is a send-once guard keyed by appointment id.
type Dedup interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisDedup is a send-once guard backed by Redis SETNX with a TTL. It makes
// the consultation reminder idempotent against duplicate ticks inside the
// eligibility window.
type RedisDedup struct {
	client *redis.Client
}

// NewRedisDedup creates a Redis-backed dedup guard.
func NewRedisDedup(client *redis.Client) *RedisDedup {
	return &RedisDedup{client: client}
}

// Acquire claims the marker for key. Returns false when another tick
// already claimed it.
func (d *RedisDedup) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupKeyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reconcile: acquire dedup marker: %w", err)
	}
	return ok, nil
}

// Release drops the marker so a failed send can be retried on the next
// tick.
func (d *RedisDedup) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, dedupKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reconcile: release dedup marker: %w", err)
	}
	return nil
}

// LocalDedup is an in-process fallback for single-instance deployments
// without Redis. Markers do not survive a restart, so a restart inside
// the reminder window can re-send.
type LocalDedup struct {
	mu      sync.Mutex
	claimed map[string]time.Time
}

// NewLocalDedup creates an in-process dedup guard.
func NewLocalDedup() *LocalDedup {
	return &LocalDedup{claimed: make(map[string]time.Time)}
}

// Acquire claims the marker for key until its TTL passes.
func (d *LocalDedup) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	for k, expiry := range d.claimed {
		if now.After(expiry) {
			delete(d.claimed, k)
		}
	}
	if _, held := d.claimed[key]; held {
		return false, nil
	}
	d.claimed[key] = now.Add(ttl)
	return true, nil
}

// Release drops the marker.
func (d *LocalDedup) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claimed, key)
	return nil
}
