package cache

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/catalog/internal/clock"
	"github.com/smallbiznis/catalog/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cache",
	fx.Provide(NewRedisClient),
	fx.Provide(NewStore),
	fx.Provide(func(s Store) Invalidator { return s }),
	fx.Provide(NewTypeResolverCache),
)

// NewRedisClient returns nil when the redis backend is not configured.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (redis.UniversalClient, error) {
	if !cfg.UseRedis() {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("ping redis %s: %w", cfg.Cache.RedisAddr, err)
				}
				return nil
			},
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}
	log.Info("redis configured", zap.String("addr", cfg.Cache.RedisAddr))
	return client, nil
}

func NewStore(client redis.UniversalClient, c clock.Clock, log *zap.Logger) Store {
	if client != nil {
		log.Named("cache").Info("using redis query cache")
		return NewRedisStore(client, "")
	}
	log.Named("cache").Info("using in-memory query cache")
	return NewMemoryStore(c)
}
