package cache

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "catalog:cache:"
	tagKeySegment      = "tag:"
)

// invalidateTagsScript deletes every key recorded under the given tag sets, then the sets.
const invalidateTagsScript = `
local removed = 0
for _, tag in ipairs(KEYS) do
  local members = redis.call("SMEMBERS", tag)
  for _, key in ipairs(members) do
    removed = removed + redis.call("DEL", key)
  end
  redis.call("DEL", tag)
end
return removed
`

type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	invalidate *redis.Script
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{
		client:     client,
		prefix:     prefix,
		invalidate: redis.NewScript(invalidateTagsScript),
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.valueKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	if ttl <= 0 {
		return nil
	}
	valueKey := s.valueKey(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, valueKey, value, ttl)
		for _, tag := range tags {
			tagKey := s.tagKey(tag)
			pipe.SAdd(ctx, tagKey, valueKey)
			// Tag sets live at least as long as their longest member.
			pipe.ExpireNX(ctx, tagKey, ttl)
			pipe.ExpireGT(ctx, tagKey, ttl)
		}
		return nil
	})
	return err
}

func (s *RedisStore) InvalidateTags(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for _, tag := range tags {
		keys = append(keys, s.tagKey(tag))
	}
	err := s.invalidate.Run(ctx, s.client, keys).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (s *RedisStore) valueKey(key string) string {
	return s.prefix + key
}

func (s *RedisStore) tagKey(tag string) string {
	return s.prefix + tagKeySegment + tag
}

var _ Store = (*RedisStore)(nil)
