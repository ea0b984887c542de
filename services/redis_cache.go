package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares session slots between API instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "matrix:session:", now: time.Now}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*SessionState, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, err
	}
	// Redis expiry is coarse; the payload timestamp is authoritative.
	if c.now().Sub(state.SavedAt) >= c.ttl {
		return nil, false, nil
	}
	return &state, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, state *SessionState) error {
	stamped := *state
	stamped.SavedAt = c.now()
	data, err := json.Marshal(&stamped)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, c.ttl).Err()
}

func (c *RedisCache) Clear(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
