// Package observability wires OpenTelemetry tracing for the bot. Spans from
// the Gin middleware, the services and the GORM plugin all flow through the
// provider installed here.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials"

	"github.com/tbourn/bodytemp-bot/internal/config"
)

// ServiceInfo describes the running process for the trace resource.
type ServiceInfo struct {
	Version      string
	StoreDriver  string
	StoreProject string
	StoreDataset string
}

func (i ServiceInfo) attributes(serviceName string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(i.Version),
	}
	if i.StoreDriver != "" {
		attrs = append(attrs, semconv.DBSystemKey.String(i.StoreDriver))
	}
	if i.StoreProject != "" {
		attrs = append(attrs, attribute.String("store.project", i.StoreProject))
	}
	if i.StoreDataset != "" {
		attrs = append(attrs, attribute.String("store.dataset", i.StoreDataset))
	}
	return attrs
}

// Test seams.
var (
	newOTLPClient = otlptracegrpc.NewClient

	newOTLPExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, client)
	}

	newServiceResourceFn = func(ctx context.Context, attrs []attribute.KeyValue) (*resource.Resource, error) {
		return resource.New(ctx, resource.WithAttributes(attrs...))
	}
)

// SetupOTel installs a batching OTLP/gRPC tracer provider and the W3C
// propagators, and returns its shutdown function. When tracing is disabled
// the globals are left untouched and shutdown is a no-op.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, info ServiceInfo) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	exp, err := newOTLPExporterFn(ctx, newOTLPClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := newServiceResourceFn(ctx, info.attributes(cfg.ServiceName))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
