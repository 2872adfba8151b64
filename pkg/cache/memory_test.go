package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryCacheSetGetExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if err := c.Set(ctx, "k", []byte("v"), 20*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	if val, ok := c.Get(ctx, "k"); !ok || string(val) != "v" {
		t.Fatalf("get: %q %v", val, ok)
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("entry should have expired")
	}
}

func TestMemoryCacheDeletePattern(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	c.Set(ctx, "results:rec-1", []byte("a"), 0)
	c.Set(ctx, "progress:rec-1", []byte("b"), 0)
	c.Set(ctx, "results:rec-2", []byte("c"), 0)

	if err := c.DeletePattern(ctx, "results:*"); err != nil {
		t.Fatalf("delete pattern: %v", err)
	}
	if _, ok := c.Get(ctx, "results:rec-1"); ok {
		t.Fatal("results:rec-1 should be gone")
	}
	if _, ok := c.Get(ctx, "results:rec-2"); ok {
		t.Fatal("results:rec-2 should be gone")
	}
	if _, ok := c.Get(ctx, "progress:rec-1"); !ok {
		t.Fatal("progress:rec-1 should survive")
	}
}

func TestMemoryCacheGetOrSetFillsOnce(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	fills := 0
	fill := func() ([]byte, error) {
		fills++
		return []byte("filled"), nil
	}

	for i := 0; i < 3; i++ {
		val, err := c.GetOrSet(ctx, "k", time.Minute, fill)
		if err != nil {
			t.Fatalf("get or set: %v", err)
		}
		if string(val) != "filled" {
			t.Fatalf("value %q", val)
		}
	}
	if fills != 1 {
		t.Fatalf("fill ran %d times", fills)
	}
}

func TestMemoryCacheGetOrSetFillErrorNotCached(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	boom := errors.New("boom")
	if _, err := c.GetOrSet(ctx, "k", time.Minute, func() ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("want fill error, got %v", err)
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("failed fill must not cache")
	}
}

func TestMemoryCacheIncrement(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	for want := int64(1); want <= 3; want++ {
		got, err := c.Increment(ctx, "attempts", time.Minute)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Fatalf("want %d, got %d", want, got)
		}
	}
}

func TestAcquireLockSingleWinner(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.AcquireLock(ctx, "lock:pipeline:rec-1", time.Minute, 0); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("want exactly one lock winner, got %d", wins.Load())
	}
}

func TestReleaseLockRequiresToken(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	token, ok := c.AcquireLock(ctx, "lock:x", time.Minute, 0)
	if !ok {
		t.Fatal("acquire failed")
	}

	if err := c.ReleaseLock(ctx, "lock:x", "someone-else"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok := c.AcquireLock(ctx, "lock:x", time.Minute, 0); ok {
		t.Fatal("foreign token must not release the lock")
	}

	if err := c.ReleaseLock(ctx, "lock:x", token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok := c.AcquireLock(ctx, "lock:x", time.Minute, 0); !ok {
		t.Fatal("owner release should free the lock")
	}
}

func TestAcquireLockWaitsForRelease(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	token, ok := c.AcquireLock(ctx, "lock:y", time.Minute, 0)
	if !ok {
		t.Fatal("acquire failed")
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		c.ReleaseLock(ctx, "lock:y", token)
	}()

	if _, ok := c.AcquireLock(ctx, "lock:y", time.Minute, 500*time.Millisecond); !ok {
		t.Fatal("waiter should win after release")
	}
}

func TestAcquireLockExpiredHolder(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if _, ok := c.AcquireLock(ctx, "lock:z", 10*time.Millisecond, 0); !ok {
		t.Fatal("acquire failed")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.AcquireLock(ctx, "lock:z", time.Minute, 0); !ok {
		t.Fatal("expired lock should be reacquirable")
	}
}
