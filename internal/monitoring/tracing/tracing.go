package tracing

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"gemini-adapter-go/internal/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "gemini-adapter"

var (
	setupOnce sync.Once
	provider  *sdktrace.TracerProvider
)

// Init wires an OTLP gRPC trace exporter when OTEL_EXPORTER_OTLP_ENDPOINT
// is set and is a no-op otherwise. The returned function flushes pending
// spans and stops the provider.
func Init(ctx context.Context) (func(context.Context) error, error) {
	var err error
	setupOnce.Do(func() {
		provider, err = build(ctx)
	})
	if err != nil || provider == nil {
		return func(context.Context) error { return nil }, err
	}
	return provider.Shutdown, nil
}

func build(ctx context.Context) (*sdktrace.TracerProvider, error) {
	endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if endpoint == "" {
		return nil, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if plaintext() {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version.Version),
			attribute.String("service.instance.id", instanceID()),
		),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp, nil
}

// plaintext reports whether the exporter should skip TLS; it defaults to
// true so local collectors work out of the box.
func plaintext() bool {
	v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"))
	return v == "" || v == "1" || strings.EqualFold(v, "true")
}

// Tracer returns a tracer scoped to one gateway component.
func Tracer(component string) trace.Tracer {
	if component == "" {
		return otel.Tracer(serviceName)
	}
	return otel.Tracer(serviceName + "/" + component)
}

// StartSpan opens a span on the component's tracer.
func StartSpan(ctx context.Context, component, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer(component).Start(ctx, name, opts...)
}

func instanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown"
}
