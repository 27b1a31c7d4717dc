package lock

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/catalog/internal/clock"
	"go.uber.org/fx"
)

var Module = fx.Module("lock",
	fx.Provide(New),
)

// New prefers a redis lease so several processes share one lock space.
func New(client redis.UniversalClient, c clock.Clock) Locker {
	if client != nil {
		return NewRedisLocker(client)
	}
	return NewLocalLocker(c)
}
