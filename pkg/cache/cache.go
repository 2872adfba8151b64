// Package cache is the accelerator cache collaborator. It is never the
// source of truth: every failure on the read or write path degrades to a
// miss so the callers fall back to the blob store.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// Get returns the stored value and whether it was present. Backend
	// failures report a miss.
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fill func() ([]byte, error)) ([]byte, error)
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// AcquireLock takes a TTL-bounded lock, waiting up to wait for the
	// current holder. Returns the release token and whether the lock was
	// obtained.
	AcquireLock(ctx context.Context, key string, ttl, wait time.Duration) (string, bool)
	// ReleaseLock releases only when token still owns the lock.
	ReleaseLock(ctx context.Context, key, token string) error
}
