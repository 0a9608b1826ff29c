package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "tile:"

type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisCache(cfg RedisConfig, log *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour // default TTL
	}

	return &RedisCache{
		client:  client,
		ttl:     ttl,
		timeout: 2 * time.Second,
		logger:  log,
	}, nil
}

func (c *RedisCache) keyFor(k TileKey) string {
	return redisKeyPrefix + k.String()
}

func (c *RedisCache) Get(key TileKey) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.keyFor(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Error("Redis cache get failed", zap.Stringer("key", key), zap.Error(err))
		}
		return nil, false
	}

	return data, true
}

func (c *RedisCache) Has(key TileKey) bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	n, err := c.client.Exists(ctx, c.keyFor(key)).Result()
	if err != nil {
		c.logger.Error("Redis cache exists failed", zap.Stringer("key", key), zap.Error(err))
		return false
	}
	return n > 0
}

func (c *RedisCache) Set(key TileKey, value []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.client.Set(ctx, c.keyFor(key), value, c.ttl).Err(); err != nil {
		c.logger.Error("Redis cache set failed", zap.Stringer("key", key), zap.Error(err))
	}
}

// Clear removes every tile written by this cache. Other keys in the database
// are left alone.
func (c *RedisCache) Clear() {
	ctx := context.Background()

	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 500).Iterator()
	batch := make([]string, 0, 500)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			c.client.Del(ctx, batch...)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		c.client.Del(ctx, batch...)
	}
	if err := iter.Err(); err != nil {
		c.logger.Error("Redis cache clear failed", zap.Error(err))
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
