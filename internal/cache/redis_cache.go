package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"mesaviva/backend/internal/domain"
)

type RedisEventFeedCache struct {
	client *redis.Client
}

func NewRedisEventFeedCache(addr string, password string, db int) *RedisEventFeedCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisEventFeedCache{client: client}
}

func (c *RedisEventFeedCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisEventFeedCache) Close() error {
	return c.client.Close()
}

func (c *RedisEventFeedCache) Get(ctx context.Context, key string) ([]domain.SystemEvent, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var events []domain.SystemEvent
	if err := json.Unmarshal([]byte(val), &events); err != nil {
		return nil, false, err
	}
	return events, true, nil
}

func (c *RedisEventFeedCache) Set(ctx context.Context, key string, events []domain.SystemEvent, ttl time.Duration) error {
	payload, err := json.Marshal(events)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisEventFeedCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
