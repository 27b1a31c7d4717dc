package metrics

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	CacheResultHit    = "hit"
	CacheResultMiss   = "miss"
	CacheResultError  = "error"
	CacheResultBypass = "bypass"
)

const (
	QueryStatusOK    = "ok"
	QueryStatusError = "error"
)

// QueryMetrics captures read-side latency and cache effectiveness for Prometheus scraping.
type QueryMetrics struct {
	cacheRequests *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	treeNodes     *prometheus.HistogramVec
}

// NewRegistry returns the registry holding the catalog collectors. Runtime and
// process collectors stay on the default registry, which is gathered alongside it.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func NewQueryMetrics(registerer prometheus.Registerer, cfg Config) (*QueryMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "catalog"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	cacheRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "catalog_cache_requests_total",
		Help:        "Cached query lookups by query and result.",
		ConstLabels: constLabels,
	}, []string{"query", "result"})
	queryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "catalog_query_duration_seconds",
		Help:        "Catalog query latency including cache lookups.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"query", "status"})
	treeNodes := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "catalog_tree_nodes",
		Help:        "Nodes rendered per tree query.",
		Buckets:     prometheus.ExponentialBuckets(1, 4, 8),
		ConstLabels: constLabels,
	}, []string{"scope"})

	var err error
	if cacheRequests, err = register(registerer, cacheRequests); err != nil {
		return nil, err
	}
	if queryDuration, err = register(registerer, queryDuration); err != nil {
		return nil, err
	}
	if treeNodes, err = register(registerer, treeNodes); err != nil {
		return nil, err
	}

	return &QueryMetrics{
		cacheRequests: cacheRequests,
		queryDuration: queryDuration,
		treeNodes:     treeNodes,
	}, nil
}

// register reuses an identical collector when one is already registered.
func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) (C, error) {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}

func (m *QueryMetrics) ObserveCache(query, result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(sanitizeLabel(query), sanitizeLabel(result)).Inc()
}

func (m *QueryMetrics) ObserveQuery(query string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := QueryStatusOK
	if err != nil {
		status = QueryStatusError
	}
	m.queryDuration.WithLabelValues(sanitizeLabel(query), status).Observe(elapsed.Seconds())
}

func (m *QueryMetrics) ObserveTreeNodes(scoped bool, nodes int) {
	if m == nil {
		return
	}
	scope := "all"
	if scoped {
		scope = "type"
	}
	m.treeNodes.WithLabelValues(scope).Observe(float64(nodes))
}

func sanitizeLabel(val string) string {
	val = strings.TrimSpace(val)
	if val == "" {
		return "unknown"
	}
	return val
}
