package cachesvc

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

const scanCount = 100

// redisCache namespaces every key with the app name.
type redisCache struct {
	client    *redis.Client
	namespace string
}

var _ core.Cache = (*redisCache)(nil)

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, conf core.CacheConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

func NewRedisCache(client *redis.Client, namespace string) core.Cache {
	return &redisCache{client: client, namespace: namespace + ":"}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.namespace+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, core.NewUpstreamError("redis", err)
	}
	return val, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.namespace+key, value, ttl).Err(); err != nil {
		return core.NewUpstreamError("redis", err)
	}
	return nil
}

func (c *redisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, c.namespace+prefix+"*", scanCount).Iterator()
	keys := make([]string, 0, scanCount)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return core.NewUpstreamError("redis", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return core.NewUpstreamError("redis", err)
	}
	return nil
}
