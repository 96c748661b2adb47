package cachesvc

import (
	"context"

	"github.com/trezcool/academia/core"
)

// New returns the cache engine selected by conf: "redis" or, by default, "memory".
func New(ctx context.Context, conf *core.Config) (core.Cache, func() error, error) {
	if conf.Cache.Engine != "redis" {
		return NewMemoryCache(), func() error { return nil }, nil
	}
	client, err := NewRedisClient(ctx, conf.Cache)
	if err != nil {
		return nil, nil, err
	}
	return NewRedisCache(client, conf.AppName), client.Close, nil
}
