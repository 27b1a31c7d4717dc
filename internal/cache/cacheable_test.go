package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/catalog/internal/clock"
	"github.com/smallbiznis/catalog/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookup struct {
	ID    string `json:"id"`
	Depth int    `json:"depth"`
}

type result struct {
	Value string            `json:"value"`
	Meta  map[string]string `json:"meta"`
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("unreachable")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration, []string) error {
	return errors.New("unreachable")
}

func (failingStore) InvalidateTags(context.Context, ...string) error { return nil }

func newQueryMetrics(t *testing.T) *metrics.QueryMetrics {
	m, err := metrics.NewQueryMetrics(prometheus.NewRegistry(), metrics.Config{})
	require.NoError(t, err)
	return m
}

func TestKeyIsDeterministic(t *testing.T) {
	a, err := Key("catalog.detail", lookup{ID: "1", Depth: 2})
	require.NoError(t, err)
	b, err := Key("catalog.detail", lookup{ID: "1", Depth: 2})
	require.NoError(t, err)
	c, err := Key("catalog.detail", lookup{ID: "1", Depth: 3})
	require.NoError(t, err)
	d, err := Key("catalog.tree", lookup{ID: "1", Depth: 2})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Contains(t, a, "catalog.detail:")
}

func TestCacheableServesSecondCallFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(clock.NewSystemClock())
	calls := 0
	cached := NewCacheable(store, Policy[lookup]{
		Name: "catalog.detail",
		TTL:  func(lookup) time.Duration { return time.Minute },
		Tags: func(req lookup) []string { return []string{"catalog", "catalog_" + req.ID} },
	}, func(_ context.Context, req lookup) (result, error) {
		calls++
		return result{Value: req.ID, Meta: map[string]string{"k": "v"}}, nil
	}, newQueryMetrics(t), nil)

	first, err := cached.Get(ctx, lookup{ID: "9"})
	require.NoError(t, err)
	second, err := cached.Get(ctx, lookup{ID: "9"})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	require.NoError(t, store.InvalidateTags(ctx, "catalog_9"))
	_, err = cached.Get(ctx, lookup{ID: "9"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCacheableDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	calls := 0
	boom := errors.New("catalog_not_found")
	cached := NewCacheable(NewMemoryStore(clock.NewSystemClock()), Policy[lookup]{
		Name: "catalog.detail",
		TTL:  func(lookup) time.Duration { return time.Minute },
	}, func(context.Context, lookup) (result, error) {
		calls++
		return result{}, boom
	}, nil, nil)

	_, err := cached.Get(ctx, lookup{ID: "1"})
	assert.ErrorIs(t, err, boom)
	_, err = cached.Get(ctx, lookup{ID: "1"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestCacheableFallsBackWhenStoreFails(t *testing.T) {
	cached := NewCacheable[lookup, result](failingStore{}, Policy[lookup]{
		Name: "catalog.tree",
		TTL:  func(lookup) time.Duration { return time.Minute },
	}, func(_ context.Context, req lookup) (result, error) {
		return result{Value: "fresh"}, nil
	}, nil, nil)

	resp, err := cached.Get(context.Background(), lookup{ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "fresh", resp.Value)
}
