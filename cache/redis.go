package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client - узкий набор команд Redis, нужный таблице лидеров.
type Client interface {
	Exist(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, key string) error
	ZAdd(ctx context.Context, key string, members ...redis.Z) error
	ZRem(ctx context.Context, key string, member string) error
	ZRevRangeWithScores(ctx context.Context, key string, offset, limit int) ([]redis.Z, error)
	Close() error
}

type client struct {
	redisClient *redis.Client
}

func NewRedisClient(ctx context.Context, addr string) (Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:            addr,
		MaxRetries:      5,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		PoolSize:        5,
	})

	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, err
	}

	return &client{redisClient: redisClient}, nil
}

func (c *client) Exist(ctx context.Context, key string) (bool, error) {
	n, err := c.redisClient.Exists(ctx, key).Uint64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *client) Del(ctx context.Context, key string) error {
	return c.redisClient.Del(ctx, key).Err()
}

func (c *client) ZAdd(ctx context.Context, key string, members ...redis.Z) error {
	if len(members) == 0 {
		return nil
	}
	return c.redisClient.ZAdd(ctx, key, members...).Err()
}

func (c *client) ZRem(ctx context.Context, key string, member string) error {
	return c.redisClient.ZRem(ctx, key, member).Err()
}

func (c *client) ZRevRangeWithScores(ctx context.Context, key string, offset, limit int) ([]redis.Z, error) {
	return c.redisClient.ZRevRangeWithScores(ctx, key, int64(offset), int64(offset+limit-1)).Result()
}

func (c *client) Close() error {
	return c.redisClient.Close()
}
