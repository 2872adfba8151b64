package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type redisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache get failed, treating as miss")
		}
		return nil, false
	}
	return val, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache set failed")
		return err
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Strs("keys", keys).Msg("cache delete failed")
		return err
	}
	return nil
}

func (c *redisCache) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("pattern", pattern).Msg("cache scan failed")
		return err
	}
	return c.Delete(ctx, keys...)
}

func (c *redisCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fill func() ([]byte, error)) ([]byte, error) {
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

func (c *redisCache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache increment failed")
		return 0, err
	}
	if n == 1 && ttl > 0 {
		_ = c.client.Expire(ctx, key, ttl).Err()
	}
	return n, nil
}

func (c *redisCache) AcquireLock(ctx context.Context, key string, ttl, wait time.Duration) (string, bool) {
	token := uuid.New().String()
	deadline := time.Now().Add(wait)
	for {
		ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("lock acquire failed")
			return "", false
		}
		if ok {
			return token, true
		}
		if time.Now().After(deadline) {
			return "", false
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// releaseScript deletes the lock only when the caller still holds it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (c *redisCache) ReleaseLock(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, c.client, []string{key}, token).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("lock release failed")
		return err
	}
	return nil
}
