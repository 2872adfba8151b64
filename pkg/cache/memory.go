package cache

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCache backs tests and single-node development runs.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) get(key string) ([]byte, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(key)
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func (c *MemoryCache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *MemoryCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fill func() ([]byte, error)) ([]byte, error) {
	if val, ok := c.Get(ctx, key); ok {
		return val, nil
	}
	val, err := fill()
	if err != nil {
		return nil, err
	}
	_ = c.Set(ctx, key, val, ttl)
	return val, nil
}

func (c *MemoryCache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	if val, ok := c.get(key); ok {
		n, _ = strconv.ParseInt(string(val), 10, 64)
	}
	n++
	entry := memoryEntry{value: []byte(strconv.FormatInt(n, 10))}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = entry
	return n, nil
}

func (c *MemoryCache) AcquireLock(ctx context.Context, key string, ttl, wait time.Duration) (string, bool) {
	token := uuid.New().String()
	deadline := time.Now().Add(wait)
	for {
		c.mu.Lock()
		if _, held := c.get(key); !held {
			entry := memoryEntry{value: []byte(token)}
			if ttl > 0 {
				entry.expiresAt = time.Now().Add(ttl)
			}
			c.entries[key] = entry
			c.mu.Unlock()
			return token, true
		}
		c.mu.Unlock()
		if time.Now().After(deadline) {
			return "", false
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (c *MemoryCache) ReleaseLock(ctx context.Context, key, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if val, ok := c.get(key); ok && string(val) == token {
		delete(c.entries, key)
	}
	return nil
}
