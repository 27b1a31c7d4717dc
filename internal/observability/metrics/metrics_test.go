package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("operation", "move"),
		attribute.String("catalog_id", "456"),
		attribute.String("type_code", "product"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("operation"), attrs[0].Key)
	assert.Equal(t, attribute.Key("type_code"), attrs[1].Key)
}

func TestQueryMetricsCountsCacheResults(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewQueryMetrics(registry, Config{ServiceName: "catalog", Environment: "test"})
	require.NoError(t, err)

	m.ObserveCache("catalog.tree", CacheResultMiss)
	m.ObserveCache("catalog.tree", CacheResultHit)
	m.ObserveCache("catalog.tree", CacheResultHit)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("catalog.tree", CacheResultHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("catalog.tree", CacheResultMiss)))
}

func TestQueryMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewQueryMetrics(registry, Config{})
	require.NoError(t, err)
	second, err := NewQueryMetrics(registry, Config{})
	require.NoError(t, err)

	first.ObserveQuery("catalog.list", nil, time.Millisecond)
	second.ObserveQuery("catalog.list", errors.New("boom"), time.Millisecond)

	count, err := testutil.GatherAndCount(registry, "catalog_query_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *QueryMetrics
	assert.NotPanics(t, func() {
		m.ObserveCache("q", CacheResultHit)
		m.ObserveQuery("q", nil, time.Second)
		m.ObserveTreeNodes(true, 3)
	})
	var w *Metrics
	assert.NotPanics(t, func() {
		w.RecordMutation(context.Background(), "move", "product")
	})
}
