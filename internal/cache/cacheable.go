package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smallbiznis/catalog/internal/observability/metrics"
	"go.uber.org/zap"
)

// Policy describes how results of one query are cached.
type Policy[Req any] struct {
	// Name prefixes keys and labels metrics, e.g. "catalog.tree".
	Name string
	TTL  func(Req) time.Duration
	Tags func(Req) []string
}

type LoadFunc[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Tagged is implemented by results whose invalidation depends on what they
// contain rather than on the request alone.
type Tagged interface {
	CacheTags() []string
}

// Cacheable wraps a pure query function with read-through caching. Store
// failures are logged and the query is served uncached.
type Cacheable[Req, Resp any] struct {
	store   Store
	policy  Policy[Req]
	load    LoadFunc[Req, Resp]
	metrics *metrics.QueryMetrics
	log     *zap.Logger
}

func NewCacheable[Req, Resp any](store Store, policy Policy[Req], load LoadFunc[Req, Resp], m *metrics.QueryMetrics, log *zap.Logger) *Cacheable[Req, Resp] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cacheable[Req, Resp]{
		store:   store,
		policy:  policy,
		load:    load,
		metrics: m,
		log:     log.With(zap.String("query", policy.Name)),
	}
}

// Key derives the cache key from the full, normalized request.
func (c *Cacheable[Req, Resp]) Key(req Req) (string, error) {
	return Key(c.policy.Name, req)
}

func (c *Cacheable[Req, Resp]) Get(ctx context.Context, req Req) (Resp, error) {
	ttl := time.Duration(0)
	if c.policy.TTL != nil {
		ttl = c.policy.TTL(req)
	}
	if c.store == nil || ttl <= 0 {
		c.metrics.ObserveCache(c.policy.Name, metrics.CacheResultBypass)
		return c.load(ctx, req)
	}

	key, err := c.Key(req)
	if err != nil {
		c.log.Warn("cache key derivation failed", zap.Error(err))
		c.metrics.ObserveCache(c.policy.Name, metrics.CacheResultError)
		return c.load(ctx, req)
	}

	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		c.metrics.ObserveCache(c.policy.Name, metrics.CacheResultError)
	} else if ok {
		var cached Resp
		if err := json.Unmarshal(raw, &cached); err == nil {
			c.metrics.ObserveCache(c.policy.Name, metrics.CacheResultHit)
			return cached, nil
		}
		c.log.Warn("cache entry undecodable", zap.String("key", key))
		c.metrics.ObserveCache(c.policy.Name, metrics.CacheResultError)
	} else {
		c.metrics.ObserveCache(c.policy.Name, metrics.CacheResultMiss)
	}

	resp, err := c.load(ctx, req)
	if err != nil {
		return resp, err
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		c.log.Warn("cache entry unencodable", zap.Error(err))
		return resp, nil
	}
	var tags []string
	if c.policy.Tags != nil {
		tags = c.policy.Tags(req)
	}
	if tagged, ok := any(resp).(Tagged); ok {
		tags = append(tags, tagged.CacheTags()...)
	}
	if err := c.store.Set(ctx, key, raw, ttl, tags); err != nil {
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return resp, nil
}

// Key returns "<name>:<sha256 of the JSON encoded params>". encoding/json emits
// struct fields in declaration order and map keys sorted, so equal requests
// always hash alike.
func Key(name string, params any) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode cache params: %w", err)
	}
	sum := sha256.Sum256(raw)
	return name + ":" + hex.EncodeToString(sum[:]), nil
}
