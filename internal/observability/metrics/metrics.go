package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes catalog write-side instruments exported over OTLP.
type Metrics struct {
	treeMutations  metric.Int64Counter
	movedNodes     metric.Int64Histogram
	lockContention metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "catalog"
	}
	meter := provider.Meter(name)

	treeMutations, err := meter.Int64Counter("catalog_tree_mutations_total")
	if err != nil {
		return nil, err
	}
	movedNodes, err := meter.Int64Histogram("catalog_tree_moved_nodes",
		metric.WithDescription("Nodes whose level or path was recomputed by a single move."))
	if err != nil {
		return nil, err
	}
	lockContention, err := meter.Int64Counter("catalog_tree_lock_contention_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		treeMutations:  treeMutations,
		movedNodes:     movedNodes,
		lockContention: lockContention,
	}, nil
}

// RecordMutation counts a write on a catalog tree.
func (m *Metrics) RecordMutation(ctx context.Context, operation, typeCode string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("type_code", strings.TrimSpace(typeCode)),
	)
	m.treeMutations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMovedNodes records the size of a re-parented subtree.
func (m *Metrics) RecordMovedNodes(ctx context.Context, typeCode string, nodes int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("type_code", strings.TrimSpace(typeCode)))
	m.movedNodes.Record(ctx, int64(nodes), metric.WithAttributes(attrs...))
}

// RecordLockContention counts writes rejected because the tree lock was held.
func (m *Metrics) RecordLockContention(ctx context.Context, typeCode string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("type_code", strings.TrimSpace(typeCode)))
	m.lockContention.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"operation": {},
	"type_code": {},
	"query":     {},
	"result":    {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
