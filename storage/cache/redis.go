// Package cache stores recommendation results, in redis or in process memory.
package cache

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/coursemate/core"
)

const keyPrefix = "coursemate:"

// DefaultTTL applies when a cache is created with a non-positive TTL: entries always expire.
const DefaultTTL = 10 * time.Minute

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

// RedisCache keeps JSON encoded course id lists under a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient connects to the configured redis server and checks it answers.
func NewRedisClient(ctx context.Context, conf core.CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddress,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "pinging redis at %s", conf.RedisAddress)
	}
	return client, nil
}

// NewRedisCache wraps client; a non-positive ttl means DefaultTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttlOrDefault(ttl)}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]string, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	var ids []string
	if err = json.Unmarshal(data, &ids); err != nil {
		return nil, false, errors.Wrap(err, "decoding cached value")
	}
	return ids, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return errors.Wrap(err, "encoding value")
	}
	return errors.Wrap(c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(), "redis set")
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
